// Package export renders approved receipts as an xlsx workbook for the
// accounting hand-off.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/field-operations/internal/model"
)

// SheetName is the worksheet holding the receipt rows.
const SheetName = "Receipts"

// Headers of the receipt sheet, in column order.
var Headers = []string{
	"Receipt ID", "Project ID", "Submitted By", "Category", "Description",
	"Amount", "Approved By", "Approved At", "Submitted At", "Image",
}

// Receipts writes one row per receipt after a bold header row and a total
// row at the bottom. Amounts are written in currency units.
func Receipts(receipts []model.Receipt) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if f.GetSheetName(0) != SheetName {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("delete default sheet: %w", err)
		}
	}

	if err := setRow(f, 1, toAny(Headers)); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}

	var total int64
	for i, r := range receipts {
		total += r.AmountCents
		values := []any{
			r.ID, r.ProjectID, r.UserID, r.Category, r.Description,
			cents(r.AmountCents), idOrEmpty(r.DecidedBy), timeOrEmpty(r.DecidedAt),
			r.CreatedAt.UTC().Format(time.DateTime), r.ImageRef,
		}
		if err := setRow(f, i+2, values); err != nil {
			return nil, err
		}
	}
	if err := setRow(f, len(receipts)+2, []any{"Total", "", "", "", "", cents(total)}); err != nil {
		return nil, err
	}

	last, _ := excelize.ColumnNumberToName(len(Headers))
	_ = f.SetColWidth(SheetName, "A", last, 15)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &buf, nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func cents(v int64) float64 { return float64(v) / 100 }

func idOrEmpty(id *uint64) any {
	if id == nil {
		return ""
	}
	return *id
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.DateTime)
}
