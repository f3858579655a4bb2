package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hostel-market/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount returns (orig-sell)/orig*100 rounded to one decimal place.
func Discount(orig, sell decimal.Decimal) decimal.Decimal {
	if !orig.IsPositive() {
		return decimal.Zero
	}
	return orig.Sub(sell).Div(orig).Mul(hundred).Round(1)
}

type NewProduct struct {
	Name           string
	OriginalPrice  decimal.Decimal
	Price          decimal.Decimal
	Stock          int
	ImageID        string
	// Market variant only.
	PaymentMethods string
	Location       string
}

// AddProduct stores a new active product under a fresh code.
func AddProduct(ctx context.Context, catalog Catalog, in NewProduct) (models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Product{}, fmt.Errorf("name is required")
	}
	if !in.OriginalPrice.IsPositive() || !in.Price.IsPositive() {
		return models.Product{}, fmt.Errorf("prices must be > 0")
	}
	if in.Stock <= 0 {
		return models.Product{}, fmt.Errorf("stock must be > 0")
	}

	var code string
	for i := 0; i < maxCodeAttempts; i++ {
		candidate := NewProductCode()
		_, err := catalog.Get(ctx, candidate)
		if errors.Is(err, ErrProductNotFound) {
			code = candidate
			break
		}
		if err != nil {
			return models.Product{}, err
		}
	}
	if code == "" {
		return models.Product{}, fmt.Errorf("could not allocate a product code")
	}

	p := models.Product{
		Code:           code,
		Name:           name,
		OriginalPrice:  in.OriginalPrice,
		Price:          in.Price,
		Discount:       Discount(in.OriginalPrice, in.Price),
		Stock:          in.Stock,
		ImageID:        in.ImageID,
		PaymentMethods: strings.TrimSpace(in.PaymentMethods),
		Location:       strings.TrimSpace(in.Location),
		ProfitMargin:   decimal.Zero,
		Active:         true,
	}
	if err := catalog.Put(ctx, p); err != nil {
		return models.Product{}, err
	}
	return catalog.Get(ctx, code)
}

// ListAll walks every page of active products.
func ListAll(ctx context.Context, catalog Catalog) ([]models.Product, error) {
	const size = 50
	var out []models.Product
	for page := 1; ; page++ {
		pg, err := catalog.ListActive(ctx, page, size)
		if err != nil {
			return nil, err
		}
		out = append(out, pg.Items...)
		if page >= pg.Pages() {
			return out, nil
		}
	}
}

// Money formats an amount kept in INR for display in the given currency.
// USD amounts are converted with rate (INR per USD) and rounded to cents.
func Money(amount decimal.Decimal, c models.Currency, rate decimal.Decimal) string {
	if c == models.CurrencyUSD && rate.IsPositive() {
		return "$" + amount.Div(rate).StringFixed(2)
	}
	return "₹" + amount.StringFixed(2)
}
