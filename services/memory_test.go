package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"hostel-market/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscount(t *testing.T) {
	tests := []struct {
		orig, sell int64
		want       string
	}{
		{100, 80, "20.0"},
		{50, 50, "0.0"},
		{50, 40, "20.0"},
		{30, 20, "33.3"},
		{80, 100, "-25.0"},
	}
	for _, tt := range tests {
		got := Discount(decimal.NewFromInt(tt.orig), decimal.NewFromInt(tt.sell)).StringFixed(1)
		assert.Equal(t, tt.want, got, "Discount(%d, %d)", tt.orig, tt.sell)
	}
}

func TestAddProduct(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p, err := AddProduct(ctx, s.Catalog(), NewProduct{
		Name:          "  Chips ",
		OriginalPrice: decimal.NewFromInt(100),
		Price:         decimal.NewFromInt(80),
		Stock:         3,
		ImageID:       "photo-big",
	})
	require.NoError(t, err)
	assert.Len(t, p.Code, 8)
	assert.Equal(t, "Chips", p.Name)
	assert.Equal(t, "20.0", p.Discount.StringFixed(1))
	assert.True(t, p.Active)
	assert.True(t, p.Available())
	assert.True(t, p.ProfitMargin.IsZero())

	_, err = AddProduct(ctx, s.Catalog(), NewProduct{Name: "x", OriginalPrice: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)})
	assert.Error(t, err, "zero stock")
}

func TestMemoryCatalog_AdjustStockNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Catalog().Put(ctx, models.Product{Code: "AAAA0001", Name: "Tea", Stock: 2, Active: true}))

	n, err := s.Catalog().AdjustStock(ctx, "AAAA0001", -2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.Catalog().AdjustStock(ctx, "AAAA0001", -1)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	p, _ := s.Catalog().Get(ctx, "AAAA0001")
	assert.Equal(t, 0, p.Stock)
	assert.False(t, p.Available())

	_, err = s.Catalog().AdjustStock(ctx, "MISSING0", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Catalog().Put(ctx, models.Product{Code: "AAAA0001", Name: "Tea", Stock: 5, Active: true}))
	_, err := s.Users().Ensure(ctx, models.User{ID: 1, DisplayName: "Ann"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Catalog().AdjustStock(ctx, "AAAA0001", -3); err != nil {
			return err
		}
		if err := tx.Ledger().Insert(ctx, models.Order{ID: "ORD-000001", ProductCode: "AAAA0001", Quantity: 3}); err != nil {
			return err
		}
		if err := tx.Users().SetAddress(ctx, 1, "Room 12"); err != nil {
			return err
		}
		if err := tx.Catalog().Put(ctx, models.Product{Code: "BBBB0002", Name: "New", Stock: 1, Active: true}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, _ := s.Catalog().Get(ctx, "AAAA0001")
	assert.Equal(t, 5, p.Stock)
	_, err = s.Ledger().Get(ctx, "ORD-000001")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	u, _ := s.Users().Get(ctx, 1)
	assert.Empty(t, u.Address)
	_, err = s.Catalog().Get(ctx, "BBBB0002")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryCatalog_ListActivePaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"P1", "P2", "P3", "P4", "P5", "P6", "P7"} {
		require.NoError(t, s.Catalog().Put(ctx, models.Product{
			Code: code, Name: code, Stock: 1, Active: true, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Catalog().Delist(ctx, "P2"))
	assert.ErrorIs(t, s.Catalog().Delist(ctx, "P2"), ErrProductNotFound)

	page1, err := s.Catalog().ListActive(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 6, page1.Total)
	assert.Equal(t, 2, page1.Pages())
	require.Len(t, page1.Items, 5)
	assert.Equal(t, "P1", page1.Items[0].Code)
	assert.Equal(t, "P3", page1.Items[1].Code)

	page2, err := s.Catalog().ListActive(ctx, 2, 5)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, "P7", page2.Items[0].Code)

	all, err := ListAll(ctx, s.Catalog())
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestMemoryLedger_ListAndStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: "ORD-A", UserID: 1, Total: decimal.NewFromInt(100), Profit: decimal.NewFromInt(10), Status: models.OrderStatusPending, CreatedAt: day},
		{ID: "ORD-B", UserID: 2, Total: decimal.NewFromInt(50), Profit: decimal.NewFromInt(5), Status: models.OrderStatusDelivered, CreatedAt: day.Add(time.Hour)},
		{ID: "ORD-C", UserID: 1, Total: decimal.NewFromInt(70), Profit: decimal.NewFromInt(7), Status: models.OrderStatusCancelled, CreatedAt: day.Add(2 * time.Hour)},
		{ID: "ORD-D", UserID: 1, Total: decimal.NewFromInt(30), Profit: decimal.NewFromInt(3), Status: models.OrderStatusPending, CreatedAt: day.AddDate(0, 0, -1)},
	}
	for _, o := range orders {
		require.NoError(t, s.Ledger().Insert(ctx, o))
	}
	assert.ErrorIs(t, s.Ledger().Insert(ctx, orders[0]), ErrDuplicateOrder)

	mine, err := s.Ledger().List(ctx, models.OrderFilter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "ORD-C", mine[0].ID, "newest first")

	open, err := s.Ledger().List(ctx, models.OrderFilter{Statuses: models.OpenStatuses, Page: 1, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "ORD-A", open[0].ID)

	report, err := GetDailyReport(ctx, s.Ledger(), day.Add(5*time.Hour), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.OrdersCount)
	assert.Equal(t, 1, report.Stats.CancelledCount)
	assert.True(t, report.Stats.Profit.Equal(decimal.NewFromInt(15)))
	assert.True(t, report.Stats.Revenue.Equal(decimal.NewFromInt(150)))
	assert.Len(t, report.Recent, 3)
}

func TestUsers_ProfileAndCurrency(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u, err := s.Users().Ensure(ctx, models.User{ID: 42, DisplayName: "Ravi", Username: "ravi"})
	require.NoError(t, err)
	assert.Equal(t, models.CurrencyINR, u.Currency)
	assert.False(t, u.JoinedAt.IsZero())

	u, err = s.Users().Ensure(ctx, models.User{ID: 42})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", u.DisplayName, "empty name does not overwrite")

	c, err := ToggleCurrency(ctx, s.Users(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.CurrencyUSD, c)

	p := seedProduct(t, s, 5, 0)
	o, err := PlaceOrder(ctx, s, PlaceOrderInput{UserID: 42, ProductCode: p.Code, Quantity: 1})
	require.NoError(t, err)
	_, err = PlaceOrder(ctx, s, PlaceOrderInput{UserID: 42, ProductCode: p.Code, Quantity: 1})
	require.NoError(t, err)
	_, err = CancelOrder(ctx, s, CancelOrderInput{OrderID: o.ID, ActorID: 42})
	require.NoError(t, err)

	prof, err := GetCustomerProfile(ctx, s, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, prof.Total)
	assert.Equal(t, 1, prof.Active)
	assert.Equal(t, 1, prof.Cancelled)

	_, err = ToggleCurrency(ctx, s.Users(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMoney(t *testing.T) {
	rate := decimal.NewFromInt(83)
	assert.Equal(t, "₹166.00", Money(decimal.NewFromInt(166), models.CurrencyINR, rate))
	assert.Equal(t, "$2.00", Money(decimal.NewFromInt(166), models.CurrencyUSD, rate))
	assert.Equal(t, "₹10.00", Money(decimal.NewFromInt(10), models.CurrencyUSD, decimal.Zero))
}
