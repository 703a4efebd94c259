package taxes

import "github.com/shopspring/decimal"

func (c *calculation) initializeTaxes() error {
	keepTaxAmount := c.discountApplied() && c.doc.ApplyDiscountOn == DiscountOnGrandTotal
	for i := range c.doc.Taxes {
		tax := &c.doc.Taxes[i]
		tax.Idx = i + 1
		if !c.discountApplied() {
			tax.applyDefaults()
			if err := validateTaxLine(c.doc.Taxes, i); err != nil {
				return err
			}
		}

		tax.ItemWiseDetail = ItemWiseDetail{}
		tax.Total = zero
		tax.TaxAmountAfterDiscount = zero
		tax.TaxAmountForCurrentItem = zero
		tax.GrandTotalForCurrentItem = zero
		tax.TaxFractionForCurrentItem = zero
		tax.GrandTotalFractionForCurrentItem = zero
		if tax.ChargeType != ChargeActual && !keepTaxAmount {
			tax.TaxAmount = zero
		}

		tax.Rate = c.round(tax.Rate, EntityTax, "rate")
		tax.TaxAmount = c.round(tax.TaxAmount, EntityTax, "tax_amount")
	}
	return nil
}

// calculateTaxes walks every item through every tax row, accumulating row
// amounts and running totals.
func (c *calculation) calculateTaxes() {
	doc := c.doc
	taxes := doc.Taxes
	accumulate := !(c.discountApplied() && doc.ApplyDiscountOn == DiscountOnGrandTotal)

	// Undistributed remainder of each actual charge, keyed by row.
	actualRemaining := make(map[int]decimal.Decimal)
	for _, tax := range taxes {
		if tax.ChargeType == ChargeActual {
			actualRemaining[tax.Idx] = tax.TaxAmount
		}
	}

	lastItem := len(doc.Items) - 1
	for n := range doc.Items {
		item := &doc.Items[n]
		for i := range taxes {
			tax := &taxes[i]
			current, rate := c.currentTaxAmount(item, tax)

			if tax.ChargeType == ChargeActual {
				actualRemaining[tax.Idx] = actualRemaining[tax.Idx].Sub(current)
				if n == lastItem {
					current = current.Add(actualRemaining[tax.Idx])
				}
			}
			c.setItemWiseTax(item, tax, rate, current)

			if tax.ChargeType != ChargeActual && accumulate {
				tax.TaxAmount = tax.TaxAmount.Add(current)
			}
			tax.TaxAmountForCurrentItem = current
			tax.TaxAmountAfterDiscount = tax.TaxAmountAfterDiscount.Add(current)

			contribution := current
			if tax.Category == CategoryValuation {
				contribution = zero
			}
			if tax.AddOrDeduct == Deduct {
				contribution = contribution.Neg()
			}
			running := item.NetAmount
			if i > 0 {
				running = taxes[i-1].GrandTotalForCurrentItem
			}
			tax.GrandTotalForCurrentItem = c.round(running.Add(contribution), EntityTax, "total")
			tax.Total = tax.Total.Add(tax.GrandTotalForCurrentItem)

			if n == lastItem {
				c.roundOffTotals(tax)
				if i == len(taxes)-1 && c.discountApplied() &&
					doc.ApplyDiscountOn == DiscountOnGrandTotal && doc.DiscountAmount.IsPositive() {
					c.adjustDiscountAmountLoss(tax)
				}
			}
		}
	}
}

// currentTaxAmount returns the row's amount for one item and the rate used.
func (c *calculation) currentTaxAmount(item *LineItem, tax *TaxLine) (decimal.Decimal, decimal.Decimal) {
	rate := c.taxRate(tax, item.ItemTaxRate)
	current := zero
	switch tax.ChargeType {
	case ChargeActual:
		if !c.doc.NetTotal.IsZero() {
			current = item.NetAmount.Mul(tax.TaxAmount).Div(c.doc.NetTotal)
		}
	case ChargeOnNetTotal:
		current = percent(rate).Mul(item.NetAmount)
	case ChargeOnPreviousRowAmount:
		current = percent(rate).Mul(c.referencedRow(tax).TaxAmountForCurrentItem)
	case ChargeOnPreviousRowTotal:
		current = percent(rate).Mul(c.referencedRow(tax).GrandTotalForCurrentItem)
	}
	return c.round(current, EntityTax, "tax_amount"), rate
}

func (c *calculation) setItemWiseTax(item *LineItem, tax *TaxLine, rate, current decimal.Decimal) {
	key := item.key()
	amount := current.Mul(c.doc.ConversionRate)
	if prev, ok := tax.ItemWiseDetail[key]; ok {
		amount = amount.Add(prev.Amount)
	}
	tax.ItemWiseDetail[key] = ItemTaxDetail{
		Rate:   rate,
		Amount: c.round(amount, EntityTax, "base_tax_amount"),
	}
}

func (c *calculation) roundOffTotals(tax *TaxLine) {
	tax.Total = c.round(tax.Total, EntityTax, "total")
	tax.TaxAmount = c.round(tax.TaxAmount, EntityTax, "tax_amount")
	tax.TaxAmountAfterDiscount = c.round(tax.TaxAmountAfterDiscount, EntityTax, "tax_amount_after_discount")
	c.setTaxBase(tax)
}

func (c *calculation) setTaxBase(tax *TaxLine) {
	tax.BaseTotal = c.toBase(tax.Total, EntityTax, "total")
	tax.BaseTaxAmount = c.toBase(tax.TaxAmount, EntityTax, "tax_amount")
	tax.BaseTaxAmountAfterDiscount = c.toBase(tax.TaxAmountAfterDiscount, EntityTax, "tax_amount_after_discount")
}

// adjustDiscountAmountLoss makes the grand total land exactly on the
// pre-discount grand total minus the discount.
func (c *calculation) adjustDiscountAmountLoss(tax *TaxLine) {
	doc := c.doc
	loss := doc.GrandTotal.Sub(doc.DiscountAmount).Sub(tax.Total)
	tax.TaxAmountAfterDiscount = c.round(tax.TaxAmountAfterDiscount.Add(loss), EntityTax, "tax_amount_after_discount")
	tax.Total = c.round(tax.Total.Add(loss), EntityTax, "total")
	tax.BaseTotal = c.toBase(tax.Total, EntityTax, "total")
	tax.BaseTaxAmountAfterDiscount = c.toBase(tax.TaxAmountAfterDiscount, EntityTax, "tax_amount_after_discount")
}
