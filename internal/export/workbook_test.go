package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

func calculated(t *testing.T) *taxes.Document {
	t.Helper()
	doc := &taxes.Document{
		Type: taxes.DocSalesInvoice,
		Items: []taxes.LineItem{
			{ItemCode: "A", Qty: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)},
			{ItemCode: "B", Qty: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)},
		},
		Taxes: []taxes.TaxLine{
			{ChargeType: taxes.ChargeOnNetTotal, AccountHead: "VAT", Rate: decimal.NewFromInt(10)},
			{ChargeType: taxes.ChargeActual, Description: "Freight", TaxAmount: decimal.NewFromInt(5)},
		},
	}
	require.NoError(t, taxes.Calculate(doc, taxes.Options{}))
	return doc
}

func TestWorkbookSheets(t *testing.T) {
	f, err := Workbook(calculated(t))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{SheetItems, SheetTaxes, SheetBreakup}, f.GetSheetList())

	header, err := f.GetCellValue(SheetItems, "A1")
	require.NoError(t, err)
	require.Equal(t, "Item", header)
	item, _ := f.GetCellValue(SheetItems, "A3")
	require.Equal(t, "B", item)
	grand, _ := f.GetCellValue(SheetItems, "H6")
	require.Equal(t, "225", grand)

	chargeType, _ := f.GetCellValue(SheetTaxes, "B3")
	require.Equal(t, "actual", chargeType)
	total, _ := f.GetCellValue(SheetTaxes, "I3")
	require.Equal(t, "225", total)
}

func TestWorkbookBreakupMatrix(t *testing.T) {
	f, err := Workbook(calculated(t))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetBreakup)
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Item", "VAT", "Freight"},
		{"A", "10", "2.5"},
		{"B", "10", "2.5"},
	}, rows)
}

func TestWorkbookRoundTripsThroughWriter(t *testing.T) {
	f, err := Workbook(&taxes.Document{Type: taxes.DocPurchaseReceipt})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	reopened, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer reopened.Close()
	rows, err := reopened.GetRows(SheetTaxes)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
