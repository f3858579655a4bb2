package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusAccepted       OrderStatus = "accepted"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// ParseOrderStatus accepts the stored value as well as a few spellings admins type by hand.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return OrderStatusPending, true
	case "accepted", "accept":
		return OrderStatusAccepted, true
	case "out_for_delivery", "out-for-delivery", "outfordelivery", "delivering", "shipped":
		return OrderStatusOutForDelivery, true
	case "delivered":
		return OrderStatusDelivered, true
	case "cancelled", "canceled", "cancel":
		return OrderStatusCancelled, true
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusAccepted:
		return "Accepted"
	case OrderStatusOutForDelivery:
		return "Out for delivery"
	case OrderStatusDelivered:
		return "Delivered"
	case OrderStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// CanTransition reports whether an order may move from one status to another.
// Customers may only cancel their own pending orders; admins may additionally
// advance the lifecycle and cancel anything not yet terminal.
func CanTransition(from, to OrderStatus, byAdmin bool) bool {
	if from == to || from.Terminal() {
		return false
	}
	if !byAdmin {
		return from == OrderStatusPending && to == OrderStatusCancelled
	}
	switch to {
	case OrderStatusCancelled:
		return true
	case OrderStatusAccepted:
		return from == OrderStatusPending
	case OrderStatusOutForDelivery:
		return from == OrderStatusAccepted
	case OrderStatusDelivered:
		return from == OrderStatusOutForDelivery
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

func (p PaymentMethod) Label() string {
	if p == PaymentOnline {
		return "Online"
	}
	return "Cash on delivery"
}

// Order is a ledger row. UnitPrice and Profit are snapshots taken at commit.
type Order struct {
	ID            string
	UserID        int64
	ProductCode   string
	ProductName   string
	Quantity      int
	UnitPrice     decimal.Decimal
	Total         decimal.Decimal
	Profit        decimal.Decimal
	Currency      Currency
	Payment       PaymentMethod
	Address       string
	CustomerName  string
	CustomerPhone string
	CustomerRoom  string
	Status        OrderStatus
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderFilter selects ledger rows. Zero values mean "any"; PageSize 0 returns every match.
type OrderFilter struct {
	UserID   int64
	Statuses []OrderStatus
	Since    time.Time
	Until    time.Time
	Page     int
	PageSize int
}

// Match reports whether o passes the filter (pagination aside).
func (f OrderFilter) Match(o Order) bool {
	if f.UserID != 0 && o.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if o.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.Since.IsZero() && o.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !o.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

// OpenStatuses are the non-terminal statuses.
var OpenStatuses = []OrderStatus{OrderStatusPending, OrderStatusAccepted, OrderStatusOutForDelivery}

type DailyStats struct {
	OrdersCount    int
	CancelledCount int
	Revenue        decimal.Decimal
	Profit         decimal.Decimal
}
