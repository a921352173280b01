package export

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iliyamo/field-operations/internal/model"
)

func TestReceiptsWorkbook(t *testing.T) {
	approver := uint64(2)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	buf, err := Receipts([]model.Receipt{
		{ID: 1, ProjectID: 4, UserID: 5, AmountCents: 1250, Category: "fuel", DecidedBy: &approver, DecidedAt: &at, CreatedAt: at},
		{ID: 2, ProjectID: 4, UserID: 6, AmountCents: 399, Category: "meals", CreatedAt: at},
	})
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 1 || got[0] != SheetName {
		t.Fatalf("sheets = %v", got)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 2 + total", len(rows))
	}
	if rows[0][0] != "Receipt ID" || rows[1][3] != "fuel" || rows[1][5] != "12.5" {
		t.Fatalf("unexpected first rows: %v / %v", rows[0], rows[1])
	}
	if rows[1][7] != "2026-03-01 09:30:00" {
		t.Fatalf("approved at = %q", rows[1][7])
	}
	if rows[3][0] != "Total" || rows[3][5] != "16.49" {
		t.Fatalf("total row = %v", rows[3])
	}
}
