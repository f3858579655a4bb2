package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"hostel-market/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidStatusTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		admin    bool
		want     bool
	}{
		{models.OrderStatusPending, models.OrderStatusAccepted, true, true},
		{models.OrderStatusPending, models.OrderStatusAccepted, false, false},
		{models.OrderStatusPending, models.OrderStatusCancelled, false, true},
		{models.OrderStatusPending, models.OrderStatusCancelled, true, true},
		{models.OrderStatusPending, models.OrderStatusOutForDelivery, true, false},
		{models.OrderStatusPending, models.OrderStatusDelivered, true, false},
		{models.OrderStatusAccepted, models.OrderStatusOutForDelivery, true, true},
		{models.OrderStatusAccepted, models.OrderStatusCancelled, true, true},
		{models.OrderStatusAccepted, models.OrderStatusCancelled, false, false},
		{models.OrderStatusAccepted, models.OrderStatusPending, true, false},
		{models.OrderStatusAccepted, models.OrderStatusDelivered, true, false},
		{models.OrderStatusOutForDelivery, models.OrderStatusDelivered, true, true},
		{models.OrderStatusOutForDelivery, models.OrderStatusCancelled, true, true},
		{models.OrderStatusOutForDelivery, models.OrderStatusAccepted, true, false},
		{models.OrderStatusDelivered, models.OrderStatusCancelled, true, false},
		{models.OrderStatusCancelled, models.OrderStatusPending, true, false},
		{models.OrderStatusCancelled, models.OrderStatusCancelled, true, false},
		{"", models.OrderStatusPending, true, false},
		{models.OrderStatusPending, "", true, false},
	}
	for _, tt := range tests {
		got := models.CanTransition(tt.from, tt.to, tt.admin)
		if got != tt.want {
			t.Errorf("CanTransition(%q, %q, admin=%v) = %v, want %v", tt.from, tt.to, tt.admin, got, tt.want)
		}
	}
}

func TestCustomerMessageForOrderStatus(t *testing.T) {
	o := models.Order{ID: "ORD-ABC123", Total: decimal.NewFromInt(120), Status: models.OrderStatusAccepted}
	m := CustomerMessageForOrderStatus(o, nil)
	if !strings.Contains(m, "ORD-ABC123") || !strings.Contains(m, "120.00") {
		t.Errorf("message should contain order id and total: %s", m)
	}
	o.Status = models.OrderStatusCancelled
	o.Reason = "out of chips"
	m = CustomerMessageForOrderStatus(o, nil)
	if !strings.Contains(m, "cancelled") || !strings.Contains(m, "out of chips") {
		t.Errorf("cancel message should contain the reason: %s", m)
	}
}

func seedProduct(t *testing.T, s Store, stock int, margin int64) models.Product {
	t.Helper()
	p, err := AddProduct(context.Background(), s.Catalog(), NewProduct{
		Name:          "Chips",
		OriginalPrice: decimal.NewFromInt(50),
		Price:         decimal.NewFromInt(40),
		Stock:         stock,
	})
	require.NoError(t, err)
	if margin != 0 {
		require.NoError(t, s.Catalog().SetProfit(context.Background(), p.Code, decimal.NewFromInt(margin)))
	}
	return p
}

func TestPlaceOrder_DecrementsStockAndSnapshotsPrice(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedProduct(t, s, 10, 5)

	o, err := PlaceOrder(ctx, s, PlaceOrderInput{UserID: 7, ProductCode: p.Code, Quantity: 3})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(o.ID, "ORD-"))
	assert.Len(t, o.ID, 10)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(120)), "total %s", o.Total)
	assert.True(t, o.Profit.Equal(decimal.NewFromInt(15)), "profit %s", o.Profit)

	got, err := s.Catalog().Get(ctx, p.Code)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	// Later price changes do not touch the ledger row.
	got.Price = decimal.NewFromInt(99)
	require.NoError(t, s.Catalog().Put(ctx, got))
	stored, err := s.Ledger().Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.UnitPrice.Equal(decimal.NewFromInt(40)))
}

func TestPlaceOrder_InsufficientStockWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedProduct(t, s, 2, 0)

	_, err := PlaceOrder(ctx, s, PlaceOrderInput{UserID: 7, ProductCode: p.Code, Quantity: 3})
	require.ErrorIs(t, err, ErrInsufficientStock)

	got, _ := s.Catalog().Get(ctx, p.Code)
	assert.Equal(t, 2, got.Stock)
	orders, err := s.Ledger().List(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_DelistedProduct(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedProduct(t, s, 5, 0)
	require.NoError(t, s.Catalog().Delist(ctx, p.Code))

	_, err := PlaceOrder(ctx, s, PlaceOrderInput{UserID: 7, ProductCode: p.Code, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceOrder_ConcurrentOrdersNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedProduct(t, s, 10, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = PlaceOrder(ctx, s, PlaceOrderInput{UserID: int64(i + 1), ProductCode: p.Code, Quantity: 6})
		}(i)
	}
	wg.Wait()

	var ok, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exhausted)

	got, _ := s.Catalog().Get(ctx, p.Code)
	assert.Equal(t, 4, got.Stock)
	orders, _ := s.Ledger().List(ctx, models.OrderFilter{})
	assert.Len(t, orders, 1)
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedProduct(t, s, 10, 0)
	o, err := PlaceOrder(ctx, s, PlaceOrderInput{UserID: 7, ProductCode: p.Code, Quantity: 4})
	require.NoError(t, err)

	out, err := CancelOrder(ctx, s, CancelOrderInput{OrderID: o.ID, ActorID: 7})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, out.Status)

	got, _ := s.Catalog().Get(ctx, p.Code)
	assert.Equal(t, 10, got.Stock)
}

func TestCancelOrder_CustomerRules(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedProduct(t, s, 10, 0)
	o, err := PlaceOrder(ctx, s, PlaceOrderInput{UserID: 7, ProductCode: p.Code, Quantity: 4})
	require.NoError(t, err)

	_, err = CancelOrder(ctx, s, CancelOrderInput{OrderID: o.ID, ActorID: 8})
	assert.ErrorIs(t, err, ErrOrderNotFound, "someone else's order")

	_, err = SetOrderStatus(ctx, s, o.ID, models.OrderStatusAccepted, "")
	require.NoError(t, err)

	_, err = CancelOrder(ctx, s, CancelOrderInput{OrderID: o.ID, ActorID: 7})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, _ := s.Catalog().Get(ctx, p.Code)
	assert.Equal(t, 6, got.Stock, "rejected cancel must not restock")
	stored, _ := s.Ledger().Get(ctx, o.ID)
	assert.Equal(t, models.OrderStatusAccepted, stored.Status)

	out, err := CancelOrder(ctx, s, CancelOrderInput{OrderID: o.ID, ByAdmin: true, Reason: "closed"})
	require.NoError(t, err)
	assert.Equal(t, "closed", out.Reason)
	got, _ = s.Catalog().Get(ctx, p.Code)
	assert.Equal(t, 10, got.Stock)

	_, err = CancelOrder(ctx, s, CancelOrderInput{OrderID: o.ID, ByAdmin: true})
	assert.ErrorIs(t, err, ErrInvalidTransition, "already cancelled")
	got, _ = s.Catalog().Get(ctx, p.Code)
	assert.Equal(t, 10, got.Stock)
}

func TestSetOrderStatus_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedProduct(t, s, 10, 0)
	o, err := PlaceOrder(ctx, s, PlaceOrderInput{UserID: 7, ProductCode: p.Code, Quantity: 1})
	require.NoError(t, err)

	_, err = SetOrderStatus(ctx, s, o.ID, models.OrderStatusDelivered, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, st := range []models.OrderStatus{
		models.OrderStatusAccepted, models.OrderStatusOutForDelivery, models.OrderStatusDelivered,
	} {
		out, err := SetOrderStatus(ctx, s, o.ID, st, "")
		require.NoError(t, err)
		assert.Equal(t, st, out.Status)
	}

	_, err = SetOrderStatus(ctx, s, o.ID, models.OrderStatusCancelled, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = SetOrderStatus(ctx, s, "ORD-NOPE00", models.OrderStatusAccepted, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
