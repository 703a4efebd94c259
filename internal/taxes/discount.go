package taxes

import "github.com/shopspring/decimal"

// applyDiscountAmount spreads the document discount over the item net amounts
// and reports whether a second pass is needed.
func (c *calculation) applyDiscountAmount() (bool, error) {
	doc := c.doc
	if !doc.DiscountAmount.IsPositive() {
		doc.BaseDiscountAmount = zero
		return false, nil
	}
	switch doc.ApplyDiscountOn {
	case DiscountOnNetTotal, DiscountOnGrandTotal:
	case "":
		return false, &ConfigError{Field: "apply_discount_on", Err: ErrApplyDiscountOnRequired}
	default:
		return false, &ConfigError{Field: "apply_discount_on", Err: ErrInvalidApplyDiscountOn}
	}

	doc.DiscountAmount = c.round(doc.DiscountAmount, EntityDocument, "discount_amount")
	doc.BaseDiscountAmount = c.toBase(doc.DiscountAmount, EntityDocument, "discount_amount")

	base := c.totalForDiscountAmount()
	if base.IsZero() {
		return false, nil
	}

	carryLoss := len(doc.Taxes) == 0 || doc.ApplyDiscountOn == DiscountOnNetTotal
	lastItem := len(doc.Items) - 1
	netTotal := zero
	for i := range doc.Items {
		item := &doc.Items[i]
		share := doc.DiscountAmount.Mul(item.NetAmount).Div(base)
		item.NetAmount = c.round(item.NetAmount.Sub(share), EntityItem, "net_amount")
		netTotal = netTotal.Add(item.NetAmount)

		// the last item absorbs the rounding loss so that the nets add up to
		// total less discount
		if carryLoss && i == lastItem {
			loss := c.round(doc.Total.Sub(netTotal).Sub(doc.DiscountAmount), EntityDocument, "net_total")
			item.NetAmount = c.round(item.NetAmount.Add(loss), EntityItem, "net_amount")
		}

		item.NetRate = zero
		if !item.Qty.IsZero() {
			item.NetRate = c.round(item.NetAmount.Div(item.Qty), EntityItem, "net_rate")
		}
		c.setItemNetBase(item)
	}
	return true, nil
}

// totalForDiscountAmount is the figure the discount is proportioned against.
// On the grand total, actual charges and rows chained off them are excluded.
func (c *calculation) totalForDiscountAmount() decimal.Decimal {
	doc := c.doc
	if doc.ApplyDiscountOn == DiscountOnNetTotal || len(doc.Taxes) == 0 {
		return doc.NetTotal
	}

	actual := make(map[int]decimal.Decimal)
	for _, tax := range doc.Taxes {
		if _, seen := actual[tax.Idx]; seen {
			continue
		}
		if tax.ChargeType == ChargeActual {
			actual[tax.Idx] = tax.TaxAmount
			continue
		}
		if amount, ok := actual[tax.RowReference]; ok && tax.RowReference > 0 {
			actual[tax.Idx] = amount.Mul(percent(tax.Rate))
		}
	}
	excluded := zero
	for _, amount := range actual {
		excluded = excluded.Add(amount)
	}
	return c.round(doc.GrandTotal.Sub(excluded), EntityDocument, "grand_total")
}
