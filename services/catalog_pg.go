package services

import (
	"context"
	"errors"

	"hostel-market/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type pgCatalog struct{ q querier }

const productColumns = `code, name, original_price::text, price::text, discount::text, stock,
	image_id, payment_methods, location, profit_margin::text, is_active, created_at`

func scanProduct(row pgx.Row) (models.Product, error) {
	var p models.Product
	var orig, price, discount, margin string
	err := row.Scan(&p.Code, &p.Name, &orig, &price, &discount, &p.Stock,
		&p.ImageID, &p.PaymentMethods, &p.Location, &margin, &p.Active, &p.CreatedAt)
	if err != nil {
		return models.Product{}, err
	}
	p.OriginalPrice = parseDecimal(orig)
	p.Price = parseDecimal(price)
	p.Discount = parseDecimal(discount)
	p.ProfitMargin = parseDecimal(margin)
	return p, nil
}

func (c pgCatalog) Get(ctx context.Context, code string) (models.Product, error) {
	p, err := scanProduct(c.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Product{}, ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, persistErr("get product", err)
	}
	return p, nil
}

func (c pgCatalog) Put(ctx context.Context, p models.Product) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO products (code, name, original_price, price, discount, stock, image_id,
			payment_methods, location, profit_margin, is_active, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9, $10::numeric, $11,
			COALESCE($12::timestamptz, now()))
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			original_price = EXCLUDED.original_price,
			price = EXCLUDED.price,
			discount = EXCLUDED.discount,
			stock = EXCLUDED.stock,
			image_id = EXCLUDED.image_id,
			payment_methods = EXCLUDED.payment_methods,
			location = EXCLUDED.location,
			profit_margin = EXCLUDED.profit_margin,
			is_active = EXCLUDED.is_active`,
		p.Code, p.Name, p.OriginalPrice.String(), p.Price.String(), p.Discount.String(), p.Stock,
		p.ImageID, p.PaymentMethods, p.Location, p.ProfitMargin.String(), p.Active, nullTime(p.CreatedAt),
	)
	return persistErr("put product", err)
}

func (c pgCatalog) Delete(ctx context.Context, code string) error {
	tag, err := c.q.Exec(ctx, `DELETE FROM products WHERE code = $1`, code)
	if err != nil {
		return persistErr("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (c pgCatalog) Delist(ctx context.Context, code string) error {
	tag, err := c.q.Exec(ctx, `UPDATE products SET is_active = false WHERE code = $1 AND is_active`, code)
	if err != nil {
		return persistErr("delist product", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AdjustStock is a single conditional UPDATE, so two concurrent orders can never
// both pass the stock check.
func (c pgCatalog) AdjustStock(ctx context.Context, code string, delta int) (int, error) {
	var stock int
	err := c.q.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2
		WHERE code = $1 AND stock + $2 >= 0
		RETURNING stock`,
		code, delta,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, persistErr("adjust stock", err)
	}
	err = c.q.QueryRow(ctx, `SELECT stock FROM products WHERE code = $1`, code).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, persistErr("adjust stock", err)
	}
	return stock, ErrInsufficientStock
}

func (c pgCatalog) SetProfit(ctx context.Context, code string, margin decimal.Decimal) error {
	tag, err := c.q.Exec(ctx, `UPDATE products SET profit_margin = $2::numeric WHERE code = $1`, code, margin.String())
	if err != nil {
		return persistErr("set profit", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (c pgCatalog) ListActive(ctx context.Context, page, pageSize int) (models.ProductPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	out := models.ProductPage{Page: page, PageSize: pageSize}
	if err := c.q.QueryRow(ctx, `SELECT COUNT(*)::int FROM products WHERE is_active`).Scan(&out.Total); err != nil {
		return out, persistErr("count products", err)
	}
	rows, err := c.q.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE is_active
		ORDER BY created_at, code
		LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return out, persistErr("list products", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return out, persistErr("scan product", err)
		}
		out.Items = append(out.Items, p)
	}
	return out, persistErr("list products", rows.Err())
}
