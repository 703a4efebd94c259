package taxes

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

func item(code, qty, rate string) LineItem {
	return LineItem{ItemCode: code, Qty: d(qty), Rate: d(rate)}
}

func onNetTotal(rate string) TaxLine {
	return TaxLine{ChargeType: ChargeOnNetTotal, AccountHead: "VAT", Rate: d(rate)}
}

func calculate(t *testing.T, doc *Document) {
	t.Helper()
	require.NoError(t, Calculate(doc, Options{}))
}

func TestCalculateSingleTaxOnNetTotal(t *testing.T) {
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "1", "100")},
		Taxes: []TaxLine{onNetTotal("10")},
	}
	calculate(t, doc)

	requireDecimal(t, "100", doc.NetTotal, "net total")
	requireDecimal(t, "10", doc.Taxes[0].TaxAmount, "tax amount")
	requireDecimal(t, "110", doc.Taxes[0].Total, "tax total")
	requireDecimal(t, "110", doc.GrandTotal, "grand total")
	requireDecimal(t, "10", doc.TotalTaxesAndCharges, "total taxes")
	requireDecimal(t, "110", doc.RoundedTotal, "rounded total")
	requireDecimal(t, "110", doc.BaseGrandTotal, "base grand total")
	require.Equal(t, 1, doc.Taxes[0].Idx)
	require.Equal(t, CategoryTotal, doc.Taxes[0].Category)
	require.Equal(t, Add, doc.Taxes[0].AddOrDeduct)
}

func TestCalculateDependentRows(t *testing.T) {
	doc := &Document{
		Type:  DocSalesOrder,
		Items: []LineItem{item("A", "1", "100"), item("B", "1", "100")},
		Taxes: []TaxLine{
			onNetTotal("10"),
			{ChargeType: ChargeOnPreviousRowAmount, Rate: d("50"), RowReference: 1},
		},
	}
	calculate(t, doc)

	requireDecimal(t, "200", doc.NetTotal, "net total")
	requireDecimal(t, "20", doc.Taxes[0].TaxAmount, "row 1 tax")
	requireDecimal(t, "220", doc.Taxes[0].Total, "row 1 total")
	requireDecimal(t, "10", doc.Taxes[1].TaxAmount, "row 2 tax")
	requireDecimal(t, "230", doc.Taxes[1].Total, "row 2 total")
	requireDecimal(t, "230", doc.GrandTotal, "grand total")
}

func TestCalculateOnPreviousRowTotal(t *testing.T) {
	doc := &Document{
		Type:  DocQuotation,
		Items: []LineItem{item("A", "2", "50")},
		Taxes: []TaxLine{
			onNetTotal("10"),
			{ChargeType: ChargeOnPreviousRowTotal, Rate: d("5"), RowReference: 1},
		},
	}
	calculate(t, doc)

	requireDecimal(t, "5.5", doc.Taxes[1].TaxAmount, "row 2 tax")
	requireDecimal(t, "115.5", doc.GrandTotal, "grand total")
	requireDecimal(t, "116", doc.RoundedTotal, "rounded total")
}

func TestCalculateItemValuesFromPriceList(t *testing.T) {
	doc := &Document{
		Type:            DocSalesInvoice,
		Currency:        "USD",
		CompanyCurrency: "IDR",
		ConversionRate:  d("2"),
		Items: []LineItem{
			{ItemCode: "A", Qty: d("2"), PriceListRate: d("200"), DiscountPercentage: d("25")},
			{ItemCode: "B", Qty: d("1"), PriceListRate: d("80"), Rate: d("80"), DiscountPercentage: d("100")},
		},
	}
	calculate(t, doc)

	a := doc.Items[0]
	requireDecimal(t, "150", a.Rate, "rate")
	requireDecimal(t, "300", a.Amount, "amount")
	requireDecimal(t, "300", a.NetAmount, "net amount")
	requireDecimal(t, "600", a.BaseAmount, "base amount")
	requireDecimal(t, "400", a.BasePriceListRate, "base price list rate")
	requireDecimal(t, "0", doc.Items[1].Rate, "fully discounted rate")
	requireDecimal(t, "300", doc.GrandTotal, "grand total")
	requireDecimal(t, "600", doc.BaseGrandTotal, "base grand total")
}

func TestCalculateActualChargeSpreadsExactly(t *testing.T) {
	doc := &Document{
		Type: DocSalesInvoice,
		Items: []LineItem{
			item("A", "1", "100"),
			item("B", "1", "100"),
			item("C", "1", "1"),
		},
		Taxes: []TaxLine{{ChargeType: ChargeActual, AccountHead: "Freight", TaxAmount: d("10")}},
	}
	calculate(t, doc)

	tax := doc.Taxes[0]
	requireDecimal(t, "10", tax.TaxAmount, "actual amount")
	requireDecimal(t, "4.98", tax.ItemWiseDetail["A"].Amount, "share A")
	requireDecimal(t, "4.98", tax.ItemWiseDetail["B"].Amount, "share B")
	requireDecimal(t, "0.04", tax.ItemWiseDetail["C"].Amount, "share C")

	sum := decimal.Zero
	for _, detail := range tax.ItemWiseDetail {
		sum = sum.Add(detail.Amount)
	}
	requireDecimal(t, "10", sum, "sum of shares")
	requireDecimal(t, "211", doc.GrandTotal, "grand total")
}

func TestCalculateActualChargeWithZeroNetTotal(t *testing.T) {
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "0", "100")},
		Taxes: []TaxLine{{ChargeType: ChargeActual, TaxAmount: d("7")}},
	}
	calculate(t, doc)

	requireDecimal(t, "0", doc.NetTotal, "net total")
	requireDecimal(t, "7", doc.GrandTotal, "grand total")
}

func TestCalculateItemTaxRateOverride(t *testing.T) {
	a := item("A", "1", "100")
	a.ItemTaxRate = ItemTaxRate{"VAT": d("5")}
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{a, item("B", "1", "100"), item("B", "1", "50")},
		Taxes: []TaxLine{onNetTotal("10")},
	}
	calculate(t, doc)

	tax := doc.Taxes[0]
	requireDecimal(t, "20", tax.TaxAmount, "tax amount")
	requireDecimal(t, "5", tax.ItemWiseDetail["A"].Rate, "override rate")
	requireDecimal(t, "5", tax.ItemWiseDetail["A"].Amount, "override amount")
	requireDecimal(t, "15", tax.ItemWiseDetail["B"].Amount, "repeated item accumulates")
	requireDecimal(t, "270", doc.GrandTotal, "grand total")
}

func TestCalculateDiscountOnNetTotal(t *testing.T) {
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  d("30"),
		Items:           []LineItem{item("A", "1", "100")},
	}
	calculate(t, doc)

	requireDecimal(t, "70", doc.Items[0].NetAmount, "net amount")
	requireDecimal(t, "70", doc.Items[0].NetRate, "net rate")
	requireDecimal(t, "100", doc.Total, "total")
	requireDecimal(t, "70", doc.NetTotal, "net total")
	requireDecimal(t, "70", doc.GrandTotal, "grand total")
	requireDecimal(t, "30", doc.BaseDiscountAmount, "base discount")
}

func TestCalculateDiscountOnNetTotalCarriesRoundingLoss(t *testing.T) {
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  d("10"),
		Items:           []LineItem{item("A", "1", "10"), item("B", "1", "10"), item("C", "1", "10")},
		Taxes:           []TaxLine{onNetTotal("10")},
	}
	calculate(t, doc)

	requireDecimal(t, "6.67", doc.Items[0].NetAmount, "item A")
	requireDecimal(t, "6.67", doc.Items[1].NetAmount, "item B")
	requireDecimal(t, "6.66", doc.Items[2].NetAmount, "item C")
	requireDecimal(t, "20", doc.NetTotal, "net total")
	requireDecimal(t, "2.01", doc.Taxes[0].TaxAmount, "tax amount")
	requireDecimal(t, "22.01", doc.GrandTotal, "grand total")
}

func TestCalculateDiscountOnNetTotalWithInclusiveTax(t *testing.T) {
	vat := onNetTotal("10")
	vat.IncludedInRate = true
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  d("15"),
		Items:           []LineItem{item("A", "1", "110"), item("B", "1", "55")},
		Taxes:           []TaxLine{vat},
	}
	calculate(t, doc)

	// The last item is carried to total less discount, not net total less discount.
	requireDecimal(t, "165", doc.Total, "total")
	requireDecimal(t, "90", doc.Items[0].NetAmount, "item A")
	requireDecimal(t, "60", doc.Items[1].NetAmount, "item B")
	requireDecimal(t, "150", doc.NetTotal, "net total")
	requireDecimal(t, "15", doc.Taxes[0].TaxAmount, "tax amount")
	requireDecimal(t, "165", doc.GrandTotal, "grand total")
}

func TestCalculateSingleItemInclusiveTaxWithNetTotalDiscount(t *testing.T) {
	vat := onNetTotal("10")
	vat.IncludedInRate = true
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  d("10"),
		Items:           []LineItem{item("A", "1", "110")},
		Taxes:           []TaxLine{vat},
	}
	calculate(t, doc)

	requireDecimal(t, "100", doc.Items[0].NetAmount, "net amount")
	requireDecimal(t, "100", doc.Items[0].NetRate, "net rate")
	requireDecimal(t, "110", doc.GrandTotal, "grand total")
}

func TestCalculateDiscountOnGrandTotal(t *testing.T) {
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnGrandTotal,
		DiscountAmount:  d("10"),
		Items:           []LineItem{item("A", "1", "10"), item("B", "1", "10"), item("C", "1", "10")},
		Taxes:           []TaxLine{onNetTotal("10")},
	}
	calculate(t, doc)

	tax := doc.Taxes[0]
	requireDecimal(t, "6.97", doc.Items[0].NetAmount, "item A")
	requireDecimal(t, "20.91", doc.NetTotal, "net total")
	// Tax amount keeps the undiscounted figure.
	requireDecimal(t, "3", tax.TaxAmount, "tax amount")
	requireDecimal(t, "2.09", tax.TaxAmountAfterDiscount, "tax after discount")
	requireDecimal(t, "23", tax.Total, "tax total")
	requireDecimal(t, "23", doc.GrandTotal, "grand total")
	requireDecimal(t, "2.09", doc.TotalTaxesAndCharges, "total taxes")
}

func TestCalculateDiscountOnGrandTotalExcludesActualCharges(t *testing.T) {
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnGrandTotal,
		DiscountAmount:  d("11"),
		Items:           []LineItem{item("A", "1", "100")},
		Taxes: []TaxLine{
			onNetTotal("10"),
			{ChargeType: ChargeActual, TaxAmount: d("20")},
			{ChargeType: ChargeOnPreviousRowAmount, Rate: d("50"), RowReference: 2},
		},
	}
	calculate(t, doc)

	// Base is 140 less the 20 actual and the 10 chained off it.
	requireDecimal(t, "90", doc.Items[0].NetAmount, "net amount")
	requireDecimal(t, "129", doc.GrandTotal, "grand total")
}

func TestCalculateDiscountWithZeroBaseSkipsSecondPass(t *testing.T) {
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  d("5"),
		Items:           []LineItem{item("A", "1", "0")},
	}
	calculate(t, doc)

	requireDecimal(t, "0", doc.Items[0].NetAmount, "net amount")
	requireDecimal(t, "0", doc.GrandTotal, "grand total")
}

func TestCalculateInclusiveRoundTrip(t *testing.T) {
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "1", "118")},
		Taxes: []TaxLine{{ChargeType: ChargeOnNetTotal, Rate: d("18"), IncludedInRate: true}},
	}
	calculate(t, doc)

	requireDecimal(t, "100", doc.Items[0].NetAmount, "net amount")
	requireDecimal(t, "100", doc.Items[0].NetRate, "net rate")
	requireDecimal(t, "18", doc.Taxes[0].TaxAmount, "tax amount")
	requireDecimal(t, "118", doc.GrandTotal, "grand total")
	requireDecimal(t, doc.Total.String(), doc.GrandTotal, "grand equals entered total")
}

func TestCalculateInclusiveCompounding(t *testing.T) {
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "1", "115.50")},
		Taxes: []TaxLine{
			{ChargeType: ChargeOnNetTotal, Rate: d("10"), IncludedInRate: true},
			{ChargeType: ChargeOnPreviousRowTotal, Rate: d("5"), RowReference: 1, IncludedInRate: true},
		},
	}
	calculate(t, doc)

	requireDecimal(t, "100", doc.NetTotal, "net total")
	requireDecimal(t, "10", doc.Taxes[0].TaxAmount, "row 1 tax")
	requireDecimal(t, "5.5", doc.Taxes[1].TaxAmount, "row 2 tax")
	requireDecimal(t, "115.5", doc.GrandTotal, "grand total")
}

func TestCalculateInclusiveAbsorbsRoundingDrift(t *testing.T) {
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "1", "10"), item("B", "1", "10")},
		Taxes: []TaxLine{{ChargeType: ChargeOnNetTotal, Rate: d("18"), IncludedInRate: true}},
	}
	calculate(t, doc)

	requireDecimal(t, "8.47", doc.Items[0].NetAmount, "net amount")
	requireDecimal(t, "16.94", doc.NetTotal, "net total")
	requireDecimal(t, "3.06", doc.Taxes[0].TaxAmount, "tax amount")
	requireDecimal(t, "20", doc.GrandTotal, "grand total")
}

func TestCalculateInclusiveLeavesLargeDriftAlone(t *testing.T) {
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "1", "10"), item("B", "1", "10"), item("C", "1", "10")},
		Taxes: []TaxLine{{ChargeType: ChargeOnNetTotal, Rate: d("18"), IncludedInRate: true}},
	}
	calculate(t, doc)

	requireDecimal(t, "29.97", doc.GrandTotal, "grand total")
}

func TestCalculateDeductAndValuationCategories(t *testing.T) {
	doc := &Document{
		Type: DocPurchaseInvoice,
		Items: []LineItem{
			{ItemCode: "A", Qty: d("1"), Rate: d("100"), IsStockItem: true},
		},
		Taxes: []TaxLine{
			{ChargeType: ChargeOnNetTotal, Rate: d("10"), Category: CategoryValuation},
			{ChargeType: ChargeOnNetTotal, Rate: d("5"), AddOrDeduct: Deduct},
		},
	}
	calculate(t, doc)

	requireDecimal(t, "10", doc.Taxes[0].TaxAmount, "valuation tax")
	requireDecimal(t, "100", doc.Taxes[0].Total, "valuation row total")
	requireDecimal(t, "95", doc.GrandTotal, "grand total")
	requireDecimal(t, "0", doc.TaxesAndChargesAdded, "added")
	requireDecimal(t, "5", doc.TaxesAndChargesDeducted, "deducted")
	requireDecimal(t, "95", doc.BaseGrandTotal, "base grand total")
	requireDecimal(t, "10", doc.Items[0].ItemTaxAmount, "item tax amount")
	requireDecimal(t, "110", doc.Items[0].ValuationRate, "valuation rate")
}

func TestCalculateValuationSplitsAcrossStockItems(t *testing.T) {
	doc := &Document{
		Type: DocPurchaseReceipt,
		Items: []LineItem{
			{ItemCode: "A", Qty: d("1"), Rate: d("100"), IsStockItem: true},
			{ItemCode: "B", Qty: d("2"), Rate: d("100"), IsStockItem: true, ConversionFactor: d("5")},
			{ItemCode: "SVC", Qty: d("1"), Rate: d("50")},
		},
		Taxes: []TaxLine{{ChargeType: ChargeActual, TaxAmount: d("35"), Category: CategoryValuationAndTotal}},
	}
	calculate(t, doc)

	requireDecimal(t, "11.67", doc.Items[0].ItemTaxAmount, "share A")
	requireDecimal(t, "23.33", doc.Items[1].ItemTaxAmount, "share B takes remainder")
	requireDecimal(t, "111.67", doc.Items[0].ValuationRate, "valuation A")
	requireDecimal(t, "22.33", doc.Items[1].ValuationRate, "valuation B")
	requireDecimal(t, "0", doc.Items[2].ValuationRate, "non stock item")
	requireDecimal(t, "0", doc.RoundedTotal, "purchase receipt has no rounded total")
}

func TestCalculateOutstandingAmount(t *testing.T) {
	build := func(typ DocType) *Document {
		return &Document{
			Type:           typ,
			Items:          []LineItem{item("A", "1", "100")},
			Taxes:          []TaxLine{onNetTotal("10")},
			Advances:       []Advance{{Reference: "ADV-1", AllocatedAmount: d("10")}},
			WriteOffAmount: d("5"),
			PaidAmount:     d("20"),
		}
	}

	sales := build(DocSalesInvoice)
	calculate(t, sales)
	requireDecimal(t, "10", sales.TotalAdvance, "total advance")
	requireDecimal(t, "75", sales.OutstandingAmount, "sales outstanding")

	purchase := build(DocPurchaseInvoice)
	calculate(t, purchase)
	requireDecimal(t, "95", purchase.OutstandingAmount, "purchase outstanding")

	ret := build(DocSalesInvoice)
	ret.IsReturn = true
	calculate(t, ret)
	requireDecimal(t, "0", ret.OutstandingAmount, "return outstanding")

	submitted := build(DocSalesInvoice)
	submitted.Status = StatusSubmitted
	calculate(t, submitted)
	requireDecimal(t, "10", submitted.TotalAdvance, "submitted advance")
	requireDecimal(t, "0", submitted.OutstandingAmount, "submitted outstanding untouched")

	cancelled := build(DocSalesInvoice)
	cancelled.Status = StatusCancelled
	calculate(t, cancelled)
	requireDecimal(t, "0", cancelled.TotalAdvance, "cancelled advance untouched")
}

func TestCalculateOutstandingInCompanyCurrency(t *testing.T) {
	doc := &Document{
		Type:                 DocSalesInvoice,
		Currency:             "USD",
		CompanyCurrency:      "IDR",
		PartyAccountCurrency: "IDR",
		ConversionRate:       d("80"),
		Items:                []LineItem{item("A", "1", "10")},
		Taxes:                []TaxLine{onNetTotal("10")},
		Advances:             []Advance{{AllocatedAmount: d("100")}},
	}
	calculate(t, doc)

	requireDecimal(t, "11", doc.GrandTotal, "grand total")
	requireDecimal(t, "880", doc.BaseGrandTotal, "base grand total")
	requireDecimal(t, "880", doc.Taxes[0].ItemWiseDetail["A"].Amount.Add(doc.BaseNetTotal), "base breakup")
	requireDecimal(t, "780", doc.OutstandingAmount, "outstanding")
}

func TestCalculateRoundedTotalTiesToEven(t *testing.T) {
	doc := &Document{Type: DocSalesInvoice, Items: []LineItem{item("A", "1", "110.50")}}
	calculate(t, doc)
	requireDecimal(t, "110", doc.RoundedTotal, "rounded down to even")

	doc = &Document{Type: DocSalesInvoice, Items: []LineItem{item("A", "1", "111.50")}}
	calculate(t, doc)
	requireDecimal(t, "112", doc.RoundedTotal, "rounded up to even")
}

func TestCalculateIsIdempotent(t *testing.T) {
	doc := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnGrandTotal,
		DiscountAmount:  d("10"),
		Items:           []LineItem{item("A", "3", "10.33"), item("B", "1", "99.99")},
		Taxes: []TaxLine{
			{ChargeType: ChargeOnNetTotal, Rate: d("12.5"), IncludedInRate: true},
			{ChargeType: ChargeActual, TaxAmount: d("4.5")},
			{ChargeType: ChargeOnPreviousRowTotal, Rate: d("2"), RowReference: 2},
		},
	}
	calculate(t, doc)
	first := snapshot(doc)
	calculate(t, doc)
	require.Equal(t, first, snapshot(doc))
}

func TestCalculateConservation(t *testing.T) {
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "3", "33.33"), item("B", "7", "1.11"), item("C", "1", "0.05")},
		Taxes: []TaxLine{
			onNetTotal("7.5"),
			{ChargeType: ChargeActual, TaxAmount: d("3.33")},
			{ChargeType: ChargeOnPreviousRowAmount, Rate: d("10"), RowReference: 1},
		},
	}
	calculate(t, doc)

	sum := doc.NetTotal
	for _, tax := range doc.Taxes {
		sum = sum.Add(tax.TaxAmountAfterDiscount)
	}
	requireDecimal(t, doc.GrandTotal.String(), sum, "net total plus taxes")
}

func TestCalculateConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  Document
		want error
		row  int
	}{
		{
			name: "discount without target",
			doc:  Document{DiscountAmount: d("5"), Items: []LineItem{item("A", "1", "10")}},
			want: ErrApplyDiscountOnRequired,
		},
		{
			name: "unknown discount target",
			doc:  Document{DiscountAmount: d("5"), ApplyDiscountOn: "items", Items: []LineItem{item("A", "1", "10")}},
			want: ErrInvalidApplyDiscountOn,
		},
		{
			name: "previous row on first row",
			doc:  Document{Taxes: []TaxLine{{ChargeType: ChargeOnPreviousRowAmount, RowReference: 1}}},
			want: ErrPreviousRowOnFirstRow,
			row:  1,
		},
		{
			name: "missing row reference",
			doc:  Document{Taxes: []TaxLine{onNetTotal("1"), {ChargeType: ChargeOnPreviousRowTotal}}},
			want: ErrRowReferenceRequired,
			row:  2,
		},
		{
			name: "forward row reference",
			doc:  Document{Taxes: []TaxLine{onNetTotal("1"), {ChargeType: ChargeOnPreviousRowAmount, RowReference: 2}}},
			want: ErrRowReferenceInvalid,
			row:  2,
		},
		{
			name: "reference on net total",
			doc:  Document{Taxes: []TaxLine{onNetTotal("1"), {ChargeType: ChargeOnNetTotal, RowReference: 1}}},
			want: ErrRowReferenceNotAllowed,
			row:  2,
		},
		{
			name: "unknown charge type",
			doc:  Document{Taxes: []TaxLine{{ChargeType: "per_unit"}}},
			want: ErrUnknownChargeType,
			row:  1,
		},
		{
			name: "inclusive actual",
			doc:  Document{Taxes: []TaxLine{{ChargeType: ChargeActual, IncludedInRate: true}}},
			want: ErrInclusiveActual,
			row:  1,
		},
		{
			name: "inclusive valuation",
			doc:  Document{Taxes: []TaxLine{{ChargeType: ChargeOnNetTotal, Category: CategoryValuation, IncludedInRate: true}}},
			want: ErrInclusiveValuation,
			row:  1,
		},
		{
			name: "inclusive row on exclusive row",
			doc: Document{Taxes: []TaxLine{
				onNetTotal("10"),
				{ChargeType: ChargeOnPreviousRowAmount, Rate: d("5"), RowReference: 1, IncludedInRate: true},
			}},
			want: ErrInclusivePreviousRow,
			row:  2,
		},
		{
			name: "foreign currency without rate",
			doc:  Document{Currency: "USD", CompanyCurrency: "IDR"},
			want: ErrConversionRateRequired,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := tc.doc
			err := Calculate(&doc, Options{})
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), "got %v", err)

			var cfg *ConfigError
			require.True(t, errors.As(err, &cfg))
			require.Equal(t, tc.row, cfg.Row)
		})
	}
}

func TestCalculateNilDocument(t *testing.T) {
	require.ErrorIs(t, Calculate(nil, Options{}), ErrNilDocument)
}

func TestCalculateCustomPrecision(t *testing.T) {
	prec := PrecisionTable{Currency: 0, Float: 3}
	doc := &Document{
		Type:  DocSalesInvoice,
		Items: []LineItem{item("A", "1", "100")},
		Taxes: []TaxLine{onNetTotal("12.5")},
	}
	require.NoError(t, Calculate(doc, Options{Precision: prec}))

	requireDecimal(t, "13", doc.Taxes[0].TaxAmount, "tax rounded to whole units")
	requireDecimal(t, "113", doc.GrandTotal, "grand total")
}

func TestPrecisionTableOverrides(t *testing.T) {
	prec := PrecisionTable{Currency: 2, Float: 3, Overrides: map[string]int32{"item.rate": 4}}
	require.Equal(t, int32(4), prec.Digits(EntityItem, "rate"))
	require.Equal(t, int32(2), prec.Digits(EntityItem, "amount"))
	require.Equal(t, int32(3), prec.Digits(EntityTax, "rate"))
	require.Equal(t, int32(3), prec.Digits(EntityItem, "qty"))
}

func TestValidateTaxLines(t *testing.T) {
	require.NoError(t, ValidateTaxLines([]TaxLine{
		onNetTotal("10"),
		{ChargeType: ChargeOnPreviousRowTotal, Rate: d("2"), RowReference: 1},
	}))
	err := ValidateTaxLines([]TaxLine{{ChargeType: ChargeActual, RowReference: 3}})
	require.ErrorIs(t, err, ErrRowReferenceNotAllowed)
	require.True(t, IsConfigError(err))
	require.Equal(t, "tax row 1 row_reference: row reference is only allowed for charges on a previous row", err.Error())
}

func snapshot(doc *Document) []string {
	out := []string{
		doc.Total.String(), doc.NetTotal.String(), doc.GrandTotal.String(),
		doc.BaseGrandTotal.String(), doc.TotalTaxesAndCharges.String(), doc.RoundedTotal.String(),
	}
	for _, it := range doc.Items {
		out = append(out, it.Rate.String(), it.Amount.String(), it.NetAmount.String(), it.NetRate.String())
	}
	for _, tax := range doc.Taxes {
		out = append(out, tax.TaxAmount.String(), tax.TaxAmountAfterDiscount.String(), tax.Total.String())
	}
	return out
}

func TestRunReportsPasses(t *testing.T) {
	plain := &Document{Type: DocSalesInvoice, Items: []LineItem{item("A", "1", "10")}}
	res, err := Run(plain, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Passes)

	discounted := &Document{
		Type:            DocSalesInvoice,
		ApplyDiscountOn: DiscountOnNetTotal,
		DiscountAmount:  d("1"),
		Items:           []LineItem{item("A", "1", "10")},
	}
	res, err = Run(discounted, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Passes)
}
