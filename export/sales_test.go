package export

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hostel-market/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestColumnWidth(t *testing.T) {
	assert.Equal(t, 6, ColumnWidth(4))
	assert.Equal(t, 50, ColumnWidth(48))
	assert.Equal(t, 50, ColumnWidth(200))
}

func TestSalesLog_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sales.xlsx")
	log := NewSalesLog(path)
	t0 := time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)
	orders := []models.Order{
		{
			ID: "ORD-222222", ProductName: "Soda", Quantity: 1, UnitPrice: decimal.NewFromInt(25),
			Total: decimal.NewFromInt(25), Profit: decimal.Zero, Payment: models.PaymentCOD,
			CustomerName: strings.Repeat("N", 80), CustomerPhone: "+91 98765 43210", CustomerRoom: "B-12",
			UserID: 2, CreatedAt: t0.Add(time.Hour),
		},
		{
			ID: "ORD-111111", ProductName: "Chips", Quantity: 3, UnitPrice: decimal.NewFromInt(40),
			Total: decimal.NewFromInt(120), Profit: decimal.NewFromInt(15), Payment: models.PaymentCOD,
			CustomerName: "Asha", CustomerPhone: "9876543210", CustomerRoom: "A-1",
			UserID: 1, CreatedAt: t0,
		},
	}

	got, err := log.Export(context.Background(), orders)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, "Chips", rows[1][1], "oldest order first")
	assert.Equal(t, "3", rows[1][2])
	assert.Equal(t, "120", rows[1][4])
	assert.Equal(t, "15", rows[1][5])
	assert.Equal(t, "Cash on delivery", rows[1][6])

	w, err := f.GetColWidth(sheetName, "H")
	require.NoError(t, err)
	assert.Equal(t, float64(50), w, "customer name column is capped")
	w, err = f.GetColWidth(sheetName, "C")
	require.NoError(t, err)
	assert.Equal(t, float64(len("Quantity")+2), w)

	// Regenerated in full: exporting fewer orders shrinks the sheet.
	_, err = log.Export(context.Background(), orders[:1])
	require.NoError(t, err)
	f2, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f2.Close()
	rows, err = f2.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
