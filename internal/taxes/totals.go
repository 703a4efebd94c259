package taxes

import "github.com/shopspring/decimal"

func (c *calculation) calculateTotals() {
	doc := c.doc
	if n := len(doc.Taxes); n > 0 {
		doc.GrandTotal = doc.Taxes[n-1].Total
	} else {
		doc.GrandTotal = doc.NetTotal
	}

	doc.TotalTaxesAndCharges = c.round(doc.GrandTotal.Sub(doc.NetTotal), EntityDocument, "total_taxes_and_charges")
	doc.BaseTotalTaxesAndCharges = c.toBase(doc.TotalTaxesAndCharges, EntityDocument, "total_taxes_and_charges")

	if doc.Type.IsBuying() {
		added, deducted := zero, zero
		for _, tax := range doc.Taxes {
			if !tax.countsTowardTotal() {
				continue
			}
			if tax.AddOrDeduct == Deduct {
				deducted = deducted.Add(tax.TaxAmountAfterDiscount)
			} else {
				added = added.Add(tax.TaxAmountAfterDiscount)
			}
		}
		doc.TaxesAndChargesAdded = c.round(added, EntityDocument, "taxes_and_charges_added")
		doc.TaxesAndChargesDeducted = c.round(deducted, EntityDocument, "taxes_and_charges_deducted")
		doc.BaseTaxesAndChargesAdded = c.toBase(doc.TaxesAndChargesAdded, EntityDocument, "taxes_and_charges_added")
		doc.BaseTaxesAndChargesDeducted = c.toBase(doc.TaxesAndChargesDeducted, EntityDocument, "taxes_and_charges_deducted")

		if doc.TaxesAndChargesAdded.IsZero() && doc.TaxesAndChargesDeducted.IsZero() {
			doc.BaseGrandTotal = doc.BaseNetTotal
		} else {
			doc.BaseGrandTotal = doc.GrandTotal.Mul(doc.ConversionRate)
		}
	} else {
		if doc.TotalTaxesAndCharges.IsZero() {
			doc.BaseGrandTotal = doc.BaseNetTotal
		} else {
			doc.BaseGrandTotal = doc.GrandTotal.Mul(doc.ConversionRate)
		}
	}

	doc.GrandTotal = c.round(doc.GrandTotal, EntityDocument, "grand_total")
	doc.BaseGrandTotal = c.round(doc.BaseGrandTotal, EntityDocument, "base_grand_total")

	if doc.Type.HasRoundedTotal() {
		// Whole units, ties to even.
		doc.RoundedTotal = doc.GrandTotal.RoundBank(0)
		doc.BaseRoundedTotal = doc.BaseGrandTotal.RoundBank(0)
	}
}

func (c *calculation) calculateTotalAdvance() {
	doc := c.doc
	if doc.Status == StatusCancelled {
		return
	}
	total := zero
	for _, adv := range doc.Advances {
		total = total.Add(c.round(adv.AllocatedAmount, EntityAdvance, "allocated_amount"))
	}
	doc.TotalAdvance = c.round(total, EntityDocument, "total_advance")
	if doc.Status == StatusDraft {
		c.calculateOutstandingAmount()
	}
}

func (c *calculation) calculateOutstandingAmount() {
	doc := c.doc
	if doc.IsReturn {
		return
	}
	doc.WriteOffAmount = c.round(doc.WriteOffAmount, EntityDocument, "write_off_amount")
	doc.BaseWriteOffAmount = c.toBase(doc.WriteOffAmount, EntityDocument, "write_off_amount")
	doc.PaidAmount = c.round(doc.PaidAmount, EntityDocument, "paid_amount")
	doc.BasePaidAmount = c.toBase(doc.PaidAmount, EntityDocument, "paid_amount")

	var toPay, paid decimal.Decimal
	if doc.partyCurrencyMatches() {
		toPay = doc.GrandTotal.Sub(doc.TotalAdvance).Sub(doc.WriteOffAmount)
		paid = doc.PaidAmount
	} else {
		toPay = doc.BaseGrandTotal.Sub(doc.TotalAdvance).Sub(doc.BaseWriteOffAmount)
		paid = doc.BasePaidAmount
	}
	toPay = c.round(toPay, EntityDocument, "grand_total")

	if doc.Type == DocSalesInvoice {
		toPay = toPay.Sub(paid)
	}
	doc.OutstandingAmount = c.round(toPay, EntityDocument, "outstanding_amount")
}
