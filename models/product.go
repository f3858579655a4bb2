package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is one sellable catalog entry. Prices are kept in the base currency (INR).
type Product struct {
	Code           string
	Name           string
	OriginalPrice  decimal.Decimal
	Price          decimal.Decimal // selling price
	Discount       decimal.Decimal // percent, fixed when the product is added
	Stock          int
	ImageID        string // opaque Telegram file id, empty when no photo
	// Free text shown on the product card in the market variant, e.g. "UPI, Card, COD".
	PaymentMethods string
	Location       string
	ProfitMargin   decimal.Decimal
	Active         bool // false once delisted
	CreatedAt      time.Time
}

// Available reports whether the product can be ordered right now.
func (p Product) Available() bool {
	return p.Active && p.Stock > 0
}

// ProductPage is one page of the catalog listing.
type ProductPage struct {
	Items    []Product
	Page     int
	PageSize int
	Total    int
}

// Pages returns the number of pages for the listing (at least 1).
func (p ProductPage) Pages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}
