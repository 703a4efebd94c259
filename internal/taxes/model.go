package taxes

import "github.com/shopspring/decimal"

// DocType identifies the kind of transaction document being calculated.
type DocType string

const (
	DocQuotation         DocType = "quotation"
	DocSalesOrder        DocType = "sales_order"
	DocDeliveryNote      DocType = "delivery_note"
	DocSalesInvoice      DocType = "sales_invoice"
	DocSupplierQuotation DocType = "supplier_quotation"
	DocPurchaseOrder     DocType = "purchase_order"
	DocPurchaseReceipt   DocType = "purchase_receipt"
	DocPurchaseInvoice   DocType = "purchase_invoice"
)

// IsBuying reports whether the document belongs to the purchase cycle.
func (t DocType) IsBuying() bool {
	switch t {
	case DocSupplierQuotation, DocPurchaseOrder, DocPurchaseReceipt, DocPurchaseInvoice:
		return true
	}
	return false
}

// HasRoundedTotal reports whether the document type carries a rounded total.
func (t DocType) HasRoundedTotal() bool {
	switch t {
	case DocQuotation, DocSalesOrder, DocDeliveryNote, DocSalesInvoice, DocPurchaseOrder, DocPurchaseInvoice:
		return true
	}
	return false
}

// HasOutstanding reports whether the document is a payable or receivable.
func (t DocType) HasOutstanding() bool {
	return t == DocSalesInvoice || t == DocPurchaseInvoice
}

// DocStatus mirrors the document lifecycle state supplied by the caller.
type DocStatus int

const (
	StatusDraft DocStatus = iota
	StatusSubmitted
	StatusCancelled
)

// ChargeType controls how a tax line derives its amount.
type ChargeType string

const (
	ChargeOnNetTotal          ChargeType = "on_net_total"
	ChargeOnPreviousRowAmount ChargeType = "on_previous_row_amount"
	ChargeOnPreviousRowTotal  ChargeType = "on_previous_row_total"
	ChargeActual              ChargeType = "actual"
)

func (c ChargeType) onPreviousRow() bool {
	return c == ChargeOnPreviousRowAmount || c == ChargeOnPreviousRowTotal
}

// Category decides whether a tax line counts toward totals, valuation or both.
type Category string

const (
	CategoryTotal             Category = "total"
	CategoryValuation         Category = "valuation"
	CategoryValuationAndTotal Category = "valuation_and_total"
)

// AddOrDeduct is the sign of a tax line.
type AddOrDeduct string

const (
	Add    AddOrDeduct = "add"
	Deduct AddOrDeduct = "deduct"
)

// DiscountOn selects the figure a document-level discount applies to.
type DiscountOn string

const (
	DiscountOnNetTotal   DiscountOn = "net_total"
	DiscountOnGrandTotal DiscountOn = "grand_total"
)

// ItemTaxRate maps a tax account head to an item specific rate override.
type ItemTaxRate map[string]decimal.Decimal

// Lookup returns the override rate for the account, if any.
func (m ItemTaxRate) Lookup(account string) (decimal.Decimal, bool) {
	if m == nil || account == "" {
		return decimal.Zero, false
	}
	rate, ok := m[account]
	return rate, ok
}

// ItemTaxDetail is one entry of a tax line's per-item breakup. Amount is in
// company currency.
type ItemTaxDetail struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// ItemWiseDetail is keyed by item code, falling back to item name.
type ItemWiseDetail map[string]ItemTaxDetail

// Advance is an advance payment allocated against an invoice.
type Advance struct {
	Reference       string          `json:"reference,omitempty"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
}

// LineItem is a single row of the document's items table.
type LineItem struct {
	ItemCode           string          `json:"itemCode"`
	ItemName           string          `json:"itemName,omitempty"`
	Qty                decimal.Decimal `json:"qty"`
	PriceListRate      decimal.Decimal `json:"priceListRate"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	Rate               decimal.Decimal `json:"rate"`
	NetRate            decimal.Decimal `json:"netRate"`
	Amount             decimal.Decimal `json:"amount"`
	NetAmount          decimal.Decimal `json:"netAmount"`

	BasePriceListRate decimal.Decimal `json:"basePriceListRate"`
	BaseRate          decimal.Decimal `json:"baseRate"`
	BaseNetRate       decimal.Decimal `json:"baseNetRate"`
	BaseAmount        decimal.Decimal `json:"baseAmount"`
	BaseNetAmount     decimal.Decimal `json:"baseNetAmount"`

	ItemTaxRate ItemTaxRate `json:"itemTaxRate,omitempty"`

	// Buying documents only.
	IsStockItem      bool            `json:"isStockItem,omitempty"`
	ConversionFactor decimal.Decimal `json:"conversionFactor"`
	ItemTaxAmount    decimal.Decimal `json:"itemTaxAmount"`
	ValuationRate    decimal.Decimal `json:"valuationRate"`
}

func (it *LineItem) key() string {
	if it.ItemCode != "" {
		return it.ItemCode
	}
	return it.ItemName
}

// TaxLine is a row of the document's taxes and charges table. Rows are
// addressed by their 1-based position.
type TaxLine struct {
	Idx            int             `json:"idx"`
	ChargeType     ChargeType      `json:"chargeType"`
	AccountHead    string          `json:"accountHead,omitempty"`
	Description    string          `json:"description,omitempty"`
	Rate           decimal.Decimal `json:"rate"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	IncludedInRate bool            `json:"includedInRate,omitempty"`
	RowReference   int             `json:"rowReference,omitempty"`
	Category       Category        `json:"category,omitempty"`
	AddOrDeduct    AddOrDeduct     `json:"addOrDeduct,omitempty"`

	Total                  decimal.Decimal `json:"total"`
	TaxAmountAfterDiscount decimal.Decimal `json:"taxAmountAfterDiscount"`

	BaseTaxAmount              decimal.Decimal `json:"baseTaxAmount"`
	BaseTotal                  decimal.Decimal `json:"baseTotal"`
	BaseTaxAmountAfterDiscount decimal.Decimal `json:"baseTaxAmountAfterDiscount"`

	ItemWiseDetail ItemWiseDetail `json:"itemWiseDetail,omitempty"`

	// Working values for the item currently being processed.
	TaxAmountForCurrentItem          decimal.Decimal `json:"-"`
	GrandTotalForCurrentItem         decimal.Decimal `json:"-"`
	TaxFractionForCurrentItem        decimal.Decimal `json:"-"`
	GrandTotalFractionForCurrentItem decimal.Decimal `json:"-"`
}

func (t *TaxLine) applyDefaults() {
	if t.Category == "" {
		t.Category = CategoryTotal
	}
	if t.AddOrDeduct == "" {
		t.AddOrDeduct = Add
	}
}

func (t *TaxLine) countsTowardTotal() bool {
	return t.Category == CategoryTotal || t.Category == CategoryValuationAndTotal
}

func (t *TaxLine) countsTowardValuation() bool {
	return t.Category == CategoryValuation || t.Category == CategoryValuationAndTotal
}

// Document is the snapshot mutated by Calculate.
type Document struct {
	Name     string    `json:"name,omitempty"`
	Type     DocType   `json:"type"`
	Status   DocStatus `json:"status"`
	IsReturn bool      `json:"isReturn,omitempty"`

	Currency             string          `json:"currency,omitempty"`
	CompanyCurrency      string          `json:"companyCurrency,omitempty"`
	PartyAccountCurrency string          `json:"partyAccountCurrency,omitempty"`
	ConversionRate       decimal.Decimal `json:"conversionRate"`

	ApplyDiscountOn    DiscountOn      `json:"applyDiscountOn,omitempty"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	BaseDiscountAmount decimal.Decimal `json:"baseDiscountAmount"`

	Total        decimal.Decimal `json:"total"`
	BaseTotal    decimal.Decimal `json:"baseTotal"`
	NetTotal     decimal.Decimal `json:"netTotal"`
	BaseNetTotal decimal.Decimal `json:"baseNetTotal"`

	TotalTaxesAndCharges        decimal.Decimal `json:"totalTaxesAndCharges"`
	BaseTotalTaxesAndCharges    decimal.Decimal `json:"baseTotalTaxesAndCharges"`
	TaxesAndChargesAdded        decimal.Decimal `json:"taxesAndChargesAdded"`
	BaseTaxesAndChargesAdded    decimal.Decimal `json:"baseTaxesAndChargesAdded"`
	TaxesAndChargesDeducted     decimal.Decimal `json:"taxesAndChargesDeducted"`
	BaseTaxesAndChargesDeducted decimal.Decimal `json:"baseTaxesAndChargesDeducted"`
	GrandTotal                  decimal.Decimal `json:"grandTotal"`
	BaseGrandTotal              decimal.Decimal `json:"baseGrandTotal"`
	RoundedTotal                decimal.Decimal `json:"roundedTotal"`
	BaseRoundedTotal            decimal.Decimal `json:"baseRoundedTotal"`

	PaidAmount         decimal.Decimal `json:"paidAmount"`
	BasePaidAmount     decimal.Decimal `json:"basePaidAmount"`
	WriteOffAmount     decimal.Decimal `json:"writeOffAmount"`
	BaseWriteOffAmount decimal.Decimal `json:"baseWriteOffAmount"`
	Advances           []Advance       `json:"advances,omitempty"`
	TotalAdvance       decimal.Decimal `json:"totalAdvance"`
	OutstandingAmount  decimal.Decimal `json:"outstandingAmount"`

	Items []LineItem `json:"items"`
	Taxes []TaxLine  `json:"taxes"`
}

func (d *Document) partyCurrencyMatches() bool {
	return d.PartyAccountCurrency == "" || d.PartyAccountCurrency == d.Currency
}
