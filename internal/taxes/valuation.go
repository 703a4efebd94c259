package taxes

// updateValuationRate spreads valuation charges over stock items by their
// share of the base net amount, or of the quantity when every amount is zero.
func (c *calculation) updateValuationRate() {
	doc := c.doc

	stockQty, stockAmount := zero, zero
	lastStock := -1
	for i, item := range doc.Items {
		if item.IsStockItem {
			stockQty = stockQty.Add(item.Qty)
			stockAmount = stockAmount.Add(item.BaseNetAmount)
			lastStock = i
		}
	}

	valuation := zero
	for _, tax := range doc.Taxes {
		if tax.countsTowardValuation() {
			valuation = valuation.Add(tax.BaseTaxAmountAfterDiscount)
		}
	}

	remaining := valuation
	for i := range doc.Items {
		item := &doc.Items[i]
		if !item.IsStockItem || item.Qty.IsZero() {
			item.ItemTaxAmount = zero
			item.ValuationRate = zero
			continue
		}

		if i == lastStock {
			item.ItemTaxAmount = c.round(remaining, EntityItem, "item_tax_amount")
		} else {
			share := zero
			switch {
			case !stockAmount.IsZero():
				share = item.BaseNetAmount.Div(stockAmount)
			case !stockQty.IsZero():
				share = item.Qty.Div(stockQty)
			}
			item.ItemTaxAmount = c.round(share.Mul(valuation), EntityItem, "item_tax_amount")
			remaining = remaining.Sub(item.ItemTaxAmount)
		}

		factor := item.ConversionFactor
		if factor.IsZero() {
			factor = one
		}
		stockUnits := item.Qty.Mul(factor)
		item.ValuationRate = c.round(item.BaseNetAmount.Add(item.ItemTaxAmount).Div(stockUnits), EntityItem, "valuation_rate")
	}
}
