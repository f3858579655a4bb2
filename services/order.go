package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostel-market/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type PlaceOrderInput struct {
	UserID        int64
	ProductCode   string
	Quantity      int
	Payment       models.PaymentMethod
	Currency      models.Currency
	Address       string
	CustomerName  string
	CustomerPhone string
	CustomerRoom  string
}

// PlaceOrder decrements stock and records the order in one unit of work. The
// unit price and profit margin are read inside the transaction, so they are
// the values current at commit time. If stock ran out since the quantity was
// chosen, it fails with ErrInsufficientStock and nothing is written.
func PlaceOrder(ctx context.Context, store Store, in PlaceOrderInput) (models.Order, error) {
	if in.Quantity <= 0 {
		return models.Order{}, ErrInvalidQuantity
	}
	if in.Payment == "" {
		in.Payment = models.PaymentCOD
	}
	if in.Currency == "" {
		in.Currency = models.CurrencyINR
	}
	var order models.Order
	err := store.InTx(ctx, func(tx Tx) error {
		p, err := tx.Catalog().Get(ctx, in.ProductCode)
		if err != nil {
			return err
		}
		if !p.Active {
			return ErrProductNotFound
		}
		if _, err := tx.Catalog().AdjustStock(ctx, p.Code, -in.Quantity); err != nil {
			return err
		}
		qty := decimal.NewFromInt(int64(in.Quantity))
		order = models.Order{
			UserID:        in.UserID,
			ProductCode:   p.Code,
			ProductName:   p.Name,
			Quantity:      in.Quantity,
			UnitPrice:     p.Price,
			Total:         p.Price.Mul(qty),
			Profit:        p.ProfitMargin.Mul(qty),
			Currency:      in.Currency,
			Payment:       in.Payment,
			Address:       in.Address,
			CustomerName:  in.CustomerName,
			CustomerPhone: in.CustomerPhone,
			CustomerRoom:  in.CustomerRoom,
			Status:        models.OrderStatusPending,
		}
		for i := 0; i < maxCodeAttempts; i++ {
			order.ID = NewOrderID()
			err = tx.Ledger().Insert(ctx, order)
			if !errors.Is(err, ErrDuplicateOrder) {
				break
			}
		}
		if err != nil {
			return err
		}
		order, err = tx.Ledger().Get(ctx, order.ID)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}
	return order, nil
}

type CancelOrderInput struct {
	OrderID string
	ActorID int64
	ByAdmin bool
	Reason  string
}

// CancelOrder marks the order cancelled and returns its quantity to stock, both
// or neither. A customer can only cancel their own pending order; anyone else's
// order is reported as not found.
func CancelOrder(ctx context.Context, store Store, in CancelOrderInput) (models.Order, error) {
	var out models.Order
	err := store.InTx(ctx, func(tx Tx) error {
		o, err := tx.Ledger().Get(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if !in.ByAdmin && o.UserID != in.ActorID {
			return ErrOrderNotFound
		}
		if !models.CanTransition(o.Status, models.OrderStatusCancelled, in.ByAdmin) {
			return ErrInvalidTransition
		}
		if _, err := tx.Catalog().AdjustStock(ctx, o.ProductCode, o.Quantity); err != nil {
			if !errors.Is(err, ErrProductNotFound) {
				return err
			}
			log.WithFields(log.Fields{"order_id": o.ID, "product": o.ProductCode}).
				Warn("cancel: product no longer exists, stock not restored")
		}
		out, err = tx.Ledger().UpdateStatus(ctx, o.ID, models.OrderStatusCancelled, in.Reason)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}
	return out, nil
}

// SetOrderStatus moves an order along its lifecycle on an admin's behalf.
// Cancellation goes through CancelOrder so stock is restored.
func SetOrderStatus(ctx context.Context, store Store, id string, to models.OrderStatus, reason string) (models.Order, error) {
	if to == models.OrderStatusCancelled {
		return CancelOrder(ctx, store, CancelOrderInput{OrderID: id, ByAdmin: true, Reason: reason})
	}
	var out models.Order
	err := store.InTx(ctx, func(tx Tx) error {
		o, err := tx.Ledger().Get(ctx, id)
		if err != nil {
			return err
		}
		if !models.CanTransition(o.Status, to, true) {
			return ErrInvalidTransition
		}
		out, err = tx.Ledger().UpdateStatus(ctx, id, to, reason)
		return err
	})
	return out, err
}

// DailyReport summarizes the calendar day containing now and returns the most recent orders of that day.
type DailyReport struct {
	Day    time.Time
	Stats  models.DailyStats
	Recent []models.Order
}

func GetDailyReport(ctx context.Context, ledger Ledger, now time.Time, recent int) (DailyReport, error) {
	y, m, d := now.Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	until := since.AddDate(0, 0, 1)
	stats, err := ledger.Stats(ctx, since, until)
	if err != nil {
		return DailyReport{}, fmt.Errorf("daily stats: %w", err)
	}
	orders, err := ledger.List(ctx, models.OrderFilter{Since: since, Until: until, Page: 1, PageSize: recent})
	if err != nil {
		return DailyReport{}, fmt.Errorf("recent orders: %w", err)
	}
	return DailyReport{Day: since, Stats: stats, Recent: orders}, nil
}

// CustomerMessageForOrderStatus returns the text sent to the customer when their order changes status.
func CustomerMessageForOrderStatus(o models.Order, money func(decimal.Decimal) string) string {
	total := o.Total.StringFixed(2)
	if money != nil {
		total = money(o.Total)
	}
	switch o.Status {
	case models.OrderStatusAccepted:
		return fmt.Sprintf("✅ Your order %s (%s) has been accepted.", o.ID, total)
	case models.OrderStatusOutForDelivery:
		return fmt.Sprintf("🚚 Your order %s is out for delivery.", o.ID)
	case models.OrderStatusDelivered:
		return fmt.Sprintf("📦 Your order %s has been delivered. Enjoy!", o.ID)
	case models.OrderStatusCancelled:
		msg := fmt.Sprintf("❌ Your order %s (%s) has been cancelled.", o.ID, total)
		if o.Reason != "" {
			msg += "\nReason: " + o.Reason
		}
		return msg
	default:
		return fmt.Sprintf("Your order %s is now %s.", o.ID, o.Status.Label())
	}
}
