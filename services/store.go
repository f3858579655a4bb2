package services

import (
	"context"
	"time"

	"hostel-market/models"

	"github.com/shopspring/decimal"
)

// Catalog holds the products for sale.
type Catalog interface {
	Get(ctx context.Context, code string) (models.Product, error)
	// Put inserts or fully replaces the product.
	Put(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, code string) error
	Delist(ctx context.Context, code string) error
	// AdjustStock adds delta to the stock and returns the new count. It fails with
	// ErrInsufficientStock, changing nothing, if the result would be negative.
	AdjustStock(ctx context.Context, code string, delta int) (int, error)
	SetProfit(ctx context.Context, code string, margin decimal.Decimal) error
	// ListActive returns one page of products that are not delisted, oldest first.
	ListActive(ctx context.Context, page, pageSize int) (models.ProductPage, error)
}

// Ledger records orders and their status changes.
type Ledger interface {
	// Insert fails with ErrDuplicateOrder if the id is taken.
	Insert(ctx context.Context, o models.Order) error
	// UpdateStatus enforces models.CanTransition with admin rights and returns the updated row.
	UpdateStatus(ctx context.Context, id string, to models.OrderStatus, reason string) (models.Order, error)
	Get(ctx context.Context, id string) (models.Order, error)
	// List returns matching orders, newest first.
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	// Stats aggregates orders created in [since, until).
	Stats(ctx context.Context, since, until time.Time) (models.DailyStats, error)
}

// Users is the customer directory.
type Users interface {
	Get(ctx context.Context, id int64) (models.User, error)
	// Ensure registers the user on first contact and refreshes the display name and username.
	Ensure(ctx context.Context, u models.User) (models.User, error)
	SetAddress(ctx context.Context, id int64, address string) error
	SetCurrency(ctx context.Context, id int64, c models.Currency) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	List(ctx context.Context, page, pageSize int) ([]models.User, int, error)
}

// Tx is a view of the stores whose writes commit or roll back together.
type Tx interface {
	Catalog() Catalog
	Ledger() Ledger
	Users() Users
}

// Store is the top-level handle built once in main and passed to the kernel.
type Store interface {
	Tx
	// InTx runs fn in one unit of work; any error from fn undoes every write it made.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 5
	}
	return page, pageSize
}
