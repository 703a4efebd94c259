package taxes

import "github.com/shopspring/decimal"

func (c *calculation) anyInclusive() bool {
	for _, tax := range c.doc.Taxes {
		if tax.IncludedInRate {
			return true
		}
	}
	return false
}

func (c *calculation) allInclusive() bool {
	if len(c.doc.Taxes) == 0 {
		return false
	}
	for _, tax := range c.doc.Taxes {
		if !tax.IncludedInRate {
			return false
		}
	}
	return true
}

// determineExclusiveRate backs the inclusive taxes out of each item amount so
// that net amount plus tax reproduces the entered amount.
func (c *calculation) determineExclusiveRate() {
	if !c.anyInclusive() {
		return
	}
	taxes := c.doc.Taxes
	for i := range c.doc.Items {
		item := &c.doc.Items[i]
		cumulated := zero
		for j := range taxes {
			tax := &taxes[j]
			tax.TaxFractionForCurrentItem = c.inclusiveFraction(tax, item.ItemTaxRate)
			if j == 0 {
				tax.GrandTotalFractionForCurrentItem = one.Add(tax.TaxFractionForCurrentItem)
			} else {
				tax.GrandTotalFractionForCurrentItem = taxes[j-1].GrandTotalFractionForCurrentItem.
					Add(tax.TaxFractionForCurrentItem)
			}
			cumulated = cumulated.Add(tax.TaxFractionForCurrentItem)
		}

		if cumulated.IsZero() || c.discountApplied() || item.Qty.IsZero() {
			continue
		}
		item.NetAmount = c.round(item.Amount.Div(one.Add(cumulated)), EntityItem, "net_amount")
		item.NetRate = c.round(item.NetAmount.Div(item.Qty), EntityItem, "net_rate")
		item.DiscountPercentage = c.round(item.DiscountPercentage, EntityItem, "discount_percentage")
		c.setItemNetBase(item)
	}
}

func (c *calculation) inclusiveFraction(tax *TaxLine, overrides ItemTaxRate) decimal.Decimal {
	fraction := zero
	if tax.IncludedInRate {
		rate := percent(c.taxRate(tax, overrides))
		switch tax.ChargeType {
		case ChargeOnNetTotal:
			fraction = rate
		case ChargeOnPreviousRowAmount:
			fraction = rate.Mul(c.referencedRow(tax).TaxFractionForCurrentItem)
		case ChargeOnPreviousRowTotal:
			fraction = rate.Mul(c.referencedRow(tax).GrandTotalFractionForCurrentItem)
		}
	}
	if tax.AddOrDeduct == Deduct {
		fraction = fraction.Neg()
	}
	return fraction
}

// taxRate prefers the item's override for the tax account over the line rate.
func (c *calculation) taxRate(tax *TaxLine, overrides ItemTaxRate) decimal.Decimal {
	if rate, ok := overrides.Lookup(tax.AccountHead); ok {
		return c.round(rate, EntityTax, "rate")
	}
	return tax.Rate
}

func (c *calculation) referencedRow(tax *TaxLine) *TaxLine {
	return &c.doc.Taxes[tax.RowReference-1]
}

// manipulateGrandTotalForInclusiveTax absorbs small rounding drift into the
// last tax row when every tax is included in the item rates.
func (c *calculation) manipulateGrandTotalForInclusiveTax() {
	if !c.allInclusive() {
		return
	}
	last := &c.doc.Taxes[len(c.doc.Taxes)-1]
	diff := c.doc.Total.Sub(c.round(last.Total, EntityDocument, "grand_total"))
	band := decimal.New(2, -c.prec.Digits(EntityTax, "tax_amount"))
	if diff.IsZero() || diff.Abs().GreaterThan(band) {
		return
	}
	last.TaxAmount = c.round(last.TaxAmount.Add(diff), EntityTax, "tax_amount")
	last.TaxAmountAfterDiscount = c.round(last.TaxAmountAfterDiscount.Add(diff), EntityTax, "tax_amount_after_discount")
	last.Total = c.round(last.Total.Add(diff), EntityTax, "total")
	c.setTaxBase(last)
}
