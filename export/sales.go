// Package export writes the sales log spreadsheet.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unicode/utf8"

	"hostel-market/models"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName     = "Sales"
	maxColumnWide = 50
)

var Headers = []string{
	"Date", "Product", "Quantity", "Unit Price", "Total Price", "Profit",
	"Payment Method", "Customer Name", "Customer Phone", "Customer Room", "User ID",
}

// SalesLog regenerates the whole workbook at Path on every Export.
type SalesLog struct {
	Path string
	mu   sync.Mutex
}

func NewSalesLog(path string) *SalesLog {
	return &SalesLog{Path: path}
}

func row(o models.Order) []interface{} {
	return []interface{}{
		o.CreatedAt.Format("2006-01-02 15:04:05"),
		o.ProductName,
		o.Quantity,
		o.UnitPrice.InexactFloat64(),
		o.Total.InexactFloat64(),
		o.Profit.InexactFloat64(),
		o.Payment.Label(),
		o.CustomerName,
		o.CustomerPhone,
		o.CustomerRoom,
		o.UserID,
	}
}

// Export writes one header row and one row per order, oldest first, and returns the file path.
func (s *SalesLog) Export(_ context.Context, orders []models.Order) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	widths := make([]int, len(Headers))
	put := func(r int, values []interface{}) error {
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[c] {
				widths[c] = n
			}
		}
		return nil
	}

	headerRow := make([]interface{}, len(Headers))
	for i, h := range Headers {
		headerRow[i] = h
	}
	if err := put(1, headerRow); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, o := range sorted {
		if err := put(i+2, row(o)); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return "", fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return "", fmt.Errorf("apply header style: %w", err)
	}
	for c, w := range widths {
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(sheetName, col, col, float64(ColumnWidth(w))); err != nil {
			return "", fmt.Errorf("column width: %w", err)
		}
	}

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := f.SaveAs(s.Path); err != nil {
		return "", fmt.Errorf("save sales log: %w", err)
	}
	return s.Path, nil
}

// ColumnWidth is the auto-size rule: longest cell plus two, capped at 50.
func ColumnWidth(longest int) int {
	if longest+2 > maxColumnWide {
		return maxColumnWide
	}
	return longest + 2
}
