package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostel-market/models"

	"github.com/jackc/pgx/v5"
)

type pgLedger struct{ q querier }

const orderColumns = `id, user_id, product_code, product_name, quantity, unit_price::text, total::text,
	profit::text, currency, payment_method, address, customer_name, customer_phone, customer_room,
	status, reason, created_at, updated_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	var unit, total, profit, currency, payment, status string
	err := row.Scan(&o.ID, &o.UserID, &o.ProductCode, &o.ProductName, &o.Quantity, &unit, &total,
		&profit, &currency, &payment, &o.Address, &o.CustomerName, &o.CustomerPhone, &o.CustomerRoom,
		&status, &o.Reason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return models.Order{}, err
	}
	o.UnitPrice = parseDecimal(unit)
	o.Total = parseDecimal(total)
	o.Profit = parseDecimal(profit)
	o.Currency = models.Currency(currency)
	o.Payment = models.PaymentMethod(payment)
	o.Status = models.OrderStatus(status)
	return o, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (l pgLedger) Insert(ctx context.Context, o models.Order) error {
	tag, err := l.q.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, product_code, product_name, quantity, unit_price, total, profit,
			currency, payment_method, address, customer_name, customer_phone, customer_room,
			status, reason, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric,
			$9, $10, $11, $12, $13, $14, $15, $16,
			COALESCE($17::timestamptz, now()), COALESCE($17::timestamptz, now())
		)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.UserID, o.ProductCode, o.ProductName, o.Quantity, o.UnitPrice.String(), o.Total.String(), o.Profit.String(),
		string(o.Currency), string(o.Payment), o.Address, o.CustomerName, o.CustomerPhone, o.CustomerRoom,
		string(o.Status), o.Reason, nullTime(o.CreatedAt),
	)
	if err != nil {
		return persistErr("insert order", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateOrder
	}
	return nil
}

// allStatuses lists every status, used to derive legal source states for an UPDATE guard.
var allStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusAccepted,
	models.OrderStatusOutForDelivery,
	models.OrderStatusDelivered,
	models.OrderStatusCancelled,
}

func sourcesFor(to models.OrderStatus) []string {
	var out []string
	for _, from := range allStatuses {
		if models.CanTransition(from, to, true) {
			out = append(out, string(from))
		}
	}
	return out
}

func (l pgLedger) UpdateStatus(ctx context.Context, id string, to models.OrderStatus, reason string) (models.Order, error) {
	o, err := scanOrder(l.q.QueryRow(ctx, `
		UPDATE orders SET
			status = $2,
			reason = CASE WHEN $3 <> '' THEN $3 ELSE reason END,
			updated_at = now()
		WHERE id = $1 AND status = ANY($4)
		RETURNING `+orderColumns,
		id, string(to), reason, sourcesFor(to),
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, persistErr("update order status", err)
	}
	cur, err := l.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	return cur, ErrInvalidTransition
}

func (l pgLedger) Get(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(l.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, persistErr("get order", err)
	}
	return o, nil
}

func orderWhere(f models.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != 0 {
		add("user_id = $%d", f.UserID)
	}
	if len(f.Statuses) > 0 {
		st := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			st[i] = string(s)
		}
		add("status = ANY($%d)", st)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (l pgLedger) List(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	where, args := orderWhere(f)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id DESC`
	if f.PageSize > 0 {
		page, size := normalizePage(f.Page, f.PageSize)
		args = append(args, size, (page-1)*size)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, persistErr("list orders", err)
	}
	defer rows.Close()
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, persistErr("scan order", err)
		}
		out = append(out, o)
	}
	return out, persistErr("list orders", rows.Err())
}

func (l pgLedger) Stats(ctx context.Context, since, until time.Time) (models.DailyStats, error) {
	var s models.DailyStats
	var revenue, profit string
	err := l.q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'cancelled')::int,
			COUNT(*) FILTER (WHERE status = 'cancelled')::int,
			COALESCE(SUM(total) FILTER (WHERE status <> 'cancelled'), 0)::text,
			COALESCE(SUM(profit) FILTER (WHERE status <> 'cancelled'), 0)::text
		FROM orders
		WHERE created_at >= $1 AND created_at < $2`,
		since, until,
	).Scan(&s.OrdersCount, &s.CancelledCount, &revenue, &profit)
	if err != nil {
		return s, persistErr("order stats", err)
	}
	s.Revenue = parseDecimal(revenue)
	s.Profit = parseDecimal(profit)
	return s, nil
}
