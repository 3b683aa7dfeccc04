// Package export renders operator worklists as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the workbooks produced here
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FollowUpSheet is the name of the single sheet in a follow-up workbook
const FollowUpSheet = "Seguimiento"

var followUpHeaders = []string{
	"Pedido", "Orden", "Fecha", "Cliente", "DNI/CUIT", "Teléfono", "Total", "Marcas", "Nota", "WhatsApp",
}

// FollowUpRow is one order waiting for the customer to pay the shortfall
type FollowUpRow struct {
	OrderID        int64
	OrderNumber    int64
	CreatedAt      time.Time
	CustomerName   string
	Identification string
	Phone          string
	Total          decimal.Decimal
	Markers        []string
	OwnerNote      string
	WhatsAppLink   string
}

// WriteFollowUp writes rows as an xlsx workbook to w
func WriteFollowUp(w io.Writer, rows []FollowUpRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", FollowUpSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	for i, header := range followUpHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(FollowUpSheet, cell, header); err != nil {
			return fmt.Errorf("export: header %s: %w", header, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(followUpHeaders), 1)
	if err := f.SetCellStyle(FollowUpSheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("export: apply header style: %w", err)
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("export: money style: %w", err)
	}

	for i, r := range rows {
		row := i + 2
		total, _ := r.Total.Float64()
		values := []any{
			r.OrderNumber,
			r.OrderID,
			formatDate(r.CreatedAt),
			r.CustomerName,
			r.Identification,
			r.Phone,
			total,
			strings.Join(r.Markers, " "),
			r.OwnerNote,
			r.WhatsAppLink,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(FollowUpSheet, cell, v); err != nil {
				return fmt.Errorf("export: row %d: %w", row, err)
			}
		}
		if err := f.SetCellStyle(FollowUpSheet, fmt.Sprintf("G%d", row), fmt.Sprintf("G%d", row), moneyStyle); err != nil {
			return fmt.Errorf("export: row %d style: %w", row, err)
		}
	}

	if err := f.SetColWidth(FollowUpSheet, "D", "D", 28); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}
	if err := f.SetColWidth(FollowUpSheet, "I", "J", 40); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// FollowUpFilename names a follow-up export for the given day
func FollowUpFilename(now time.Time) string {
	return fmt.Sprintf("seguimiento-%s.xlsx", now.Format("2006-01-02"))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}
