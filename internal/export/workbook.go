// Package export renders calculated documents as spreadsheets.
package export

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

const (
	SheetItems   = "Items"
	SheetTaxes   = "Taxes"
	SheetBreakup = "Breakup"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	itemHeader = []any{"Item", "Qty", "Price List Rate", "Discount %", "Rate", "Amount", "Net Rate", "Net Amount", "Base Net Amount", "Item Tax Amount", "Valuation Rate"}
	taxHeader  = []any{"Row", "Charge Type", "Account", "Description", "Rate", "Included In Rate", "Tax Amount", "Tax Amount After Discount", "Total", "Base Tax Amount", "Base Total"}
)

// Workbook builds the item, tax and item-wise breakup sheets of a calculated
// document. The caller owns the returned file and must Close it.
func Workbook(doc *taxes.Document) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetItems); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetTaxes, SheetBreakup} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	w := sheetWriter{f: f, header: bold}
	w.items(doc)
	w.taxes(doc)
	w.breakup(doc)
	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) row(sheet string, n int, values []any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("%s row %d: %w", sheet, n, err)
		return
	}
	if n == 1 {
		w.err = w.f.SetRowStyle(sheet, 1, 1, w.header)
	}
}

func (w *sheetWriter) items(doc *taxes.Document) {
	w.row(SheetItems, 1, itemHeader)
	for i, it := range doc.Items {
		w.row(SheetItems, i+2, []any{
			itemKey(it), num(it.Qty), num(it.PriceListRate), num(it.DiscountPercentage),
			num(it.Rate), num(it.Amount), num(it.NetRate), num(it.NetAmount),
			num(it.BaseNetAmount), num(it.ItemTaxAmount), num(it.ValuationRate),
		})
	}
	n := len(doc.Items) + 3
	w.row(SheetItems, n, []any{"Net Total", nil, nil, nil, nil, num(doc.Total), nil, num(doc.NetTotal), num(doc.BaseNetTotal)})
	w.row(SheetItems, n+1, []any{"Grand Total", nil, nil, nil, nil, nil, nil, num(doc.GrandTotal), num(doc.BaseGrandTotal)})
	if doc.Type.HasRoundedTotal() {
		w.row(SheetItems, n+2, []any{"Rounded Total", nil, nil, nil, nil, nil, nil, num(doc.RoundedTotal), num(doc.BaseRoundedTotal)})
	}
}

func (w *sheetWriter) taxes(doc *taxes.Document) {
	w.row(SheetTaxes, 1, taxHeader)
	for i, tax := range doc.Taxes {
		w.row(SheetTaxes, i+2, []any{
			i + 1, string(tax.ChargeType), tax.AccountHead, tax.Description, num(tax.Rate), tax.IncludedInRate,
			num(tax.TaxAmount), num(tax.TaxAmountAfterDiscount), num(tax.Total),
			num(tax.BaseTaxAmount), num(tax.BaseTotal),
		})
	}
}

// breakup lays out one row per item and one column per tax line, holding the
// company currency amount each line charged the item.
func (w *sheetWriter) breakup(doc *taxes.Document) {
	header := []any{"Item"}
	for i, tax := range doc.Taxes {
		header = append(header, taxLabel(i, tax))
	}
	w.row(SheetBreakup, 1, header)

	seen := map[string]bool{}
	n := 2
	for _, it := range doc.Items {
		key := itemKey(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		values := []any{key}
		for _, tax := range doc.Taxes {
			if d, ok := tax.ItemWiseDetail[key]; ok {
				values = append(values, num(d.Amount))
			} else {
				values = append(values, nil)
			}
		}
		w.row(SheetBreakup, n, values)
		n++
	}
}

func taxLabel(i int, tax taxes.TaxLine) string {
	switch {
	case tax.Description != "":
		return tax.Description
	case tax.AccountHead != "":
		return tax.AccountHead
	default:
		return fmt.Sprintf("Row %d", i+1)
	}
}

func itemKey(it taxes.LineItem) string {
	if it.ItemCode != "" {
		return it.ItemCode
	}
	return it.ItemName
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
