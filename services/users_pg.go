package services

import (
	"context"
	"errors"

	"hostel-market/models"

	"github.com/jackc/pgx/v5"
)

type pgUsers struct{ q querier }

const userColumns = `id, display_name, username, address, currency, is_banned, joined_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	var currency string
	if err := row.Scan(&u.ID, &u.DisplayName, &u.Username, &u.Address, &currency, &u.Banned, &u.JoinedAt); err != nil {
		return models.User{}, err
	}
	u.Currency = models.Currency(currency)
	return u, nil
}

func (r pgUsers) Get(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, persistErr("get user", err)
	}
	return u, nil
}

func (r pgUsers) Ensure(ctx context.Context, in models.User) (models.User, error) {
	currency := in.Currency
	if currency == "" {
		currency = models.CurrencyINR
	}
	u, err := scanUser(r.q.QueryRow(ctx, `
		INSERT INTO users (id, display_name, username, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE users.display_name END,
			username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE users.username END
		RETURNING `+userColumns,
		in.ID, in.DisplayName, in.Username, string(currency),
	))
	if err != nil {
		return models.User{}, persistErr("ensure user", err)
	}
	return u, nil
}

func (r pgUsers) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return persistErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r pgUsers) SetAddress(ctx context.Context, id int64, address string) error {
	return r.exec(ctx, "set address", `UPDATE users SET address = $2 WHERE id = $1`, id, address)
}

func (r pgUsers) SetCurrency(ctx context.Context, id int64, c models.Currency) error {
	return r.exec(ctx, "set currency", `UPDATE users SET currency = $2 WHERE id = $1`, id, string(c))
}

func (r pgUsers) SetBanned(ctx context.Context, id int64, banned bool) error {
	return r.exec(ctx, "set banned", `UPDATE users SET is_banned = $2 WHERE id = $1`, id, banned)
}

func (r pgUsers) List(ctx context.Context, page, pageSize int) ([]models.User, int, error) {
	page, pageSize = normalizePage(page, pageSize)
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*)::int FROM users`).Scan(&total); err != nil {
		return nil, 0, persistErr("count users", err)
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY joined_at, id
		LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, total, persistErr("list users", err)
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, total, persistErr("scan user", err)
		}
		out = append(out, u)
	}
	return out, total, persistErr("list users", rows.Err())
}
