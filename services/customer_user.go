package services

import (
	"context"

	"hostel-market/models"
)

// ToggleCurrency switches the user's display currency and returns the new value.
func ToggleCurrency(ctx context.Context, users Users, id int64) (models.Currency, error) {
	u, err := users.Get(ctx, id)
	if err != nil {
		return "", err
	}
	next := u.Currency.Toggle()
	if err := users.SetCurrency(ctx, id, next); err != nil {
		return "", err
	}
	return next, nil
}

// CustomerProfile is what /profile shows.
type CustomerProfile struct {
	User      models.User
	Total     int
	Active    int
	Completed int
	Cancelled int
}

func GetCustomerProfile(ctx context.Context, store Store, id int64) (CustomerProfile, error) {
	u, err := store.Users().Get(ctx, id)
	if err != nil {
		return CustomerProfile{}, err
	}
	orders, err := store.Ledger().List(ctx, models.OrderFilter{UserID: id})
	if err != nil {
		return CustomerProfile{}, err
	}
	p := CustomerProfile{User: u, Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case models.OrderStatusDelivered:
			p.Completed++
		case models.OrderStatusCancelled:
			p.Cancelled++
		default:
			p.Active++
		}
	}
	return p, nil
}
