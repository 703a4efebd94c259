package taxes

// calculateItemValues derives rate, amount and their base values from the
// list price. It runs once; the discount pass keeps the redistributed nets.
func (c *calculation) calculateItemValues() {
	if c.discountApplied() {
		return
	}
	for i := range c.doc.Items {
		item := &c.doc.Items[i]
		item.Qty = c.round(item.Qty, EntityItem, "qty")
		item.PriceListRate = c.round(item.PriceListRate, EntityItem, "price_list_rate")
		item.DiscountPercentage = c.round(item.DiscountPercentage, EntityItem, "discount_percentage")
		item.Rate = c.round(item.Rate, EntityItem, "rate")

		switch {
		case item.DiscountPercentage.Equal(hundred):
			item.Rate = zero
		case item.Rate.IsZero():
			factor := one.Sub(percent(item.DiscountPercentage))
			item.Rate = c.round(item.PriceListRate.Mul(factor), EntityItem, "rate")
		}

		item.NetRate = item.Rate
		item.Amount = c.round(item.Rate.Mul(item.Qty), EntityItem, "amount")
		item.NetAmount = item.Amount
		item.ItemTaxAmount = zero

		item.BasePriceListRate = c.toBase(item.PriceListRate, EntityItem, "price_list_rate")
		item.BaseRate = c.toBase(item.Rate, EntityItem, "rate")
		item.BaseAmount = c.toBase(item.Amount, EntityItem, "amount")
		c.setItemNetBase(item)
	}
}

func (c *calculation) setItemNetBase(item *LineItem) {
	item.BaseNetRate = c.toBase(item.NetRate, EntityItem, "net_rate")
	item.BaseNetAmount = c.toBase(item.NetAmount, EntityItem, "net_amount")
}

func (c *calculation) calculateNetTotal() {
	doc := c.doc
	total, baseTotal, netTotal, baseNetTotal := zero, zero, zero, zero
	for _, item := range doc.Items {
		total = total.Add(item.Amount)
		baseTotal = baseTotal.Add(item.BaseAmount)
		netTotal = netTotal.Add(item.NetAmount)
		baseNetTotal = baseNetTotal.Add(item.BaseNetAmount)
	}
	doc.Total = c.round(total, EntityDocument, "total")
	doc.BaseTotal = c.round(baseTotal, EntityDocument, "base_total")
	doc.NetTotal = c.round(netTotal, EntityDocument, "net_total")
	doc.BaseNetTotal = c.round(baseNetTotal, EntityDocument, "base_net_total")
}
