// Package taxes computes line, tax and document totals for sales and purchase
// documents. Calculate is deterministic and mutates the document in place.
package taxes

import "github.com/shopspring/decimal"

// Options tunes a calculation. The zero value uses DefaultPrecision.
type Options struct {
	Precision Precision
}

type phase int

const (
	phaseInitial phase = iota
	phaseDiscountApplied
)

type calculation struct {
	doc   *Document
	prec  Precision
	phase phase
}

// Result describes how a calculation ran.
type Result struct {
	// Passes is 2 when a document discount was redistributed over the items.
	Passes int
}

// Calculate recomputes every derived field of doc. On a ConfigError the
// document may be partially updated and should be discarded.
func Calculate(doc *Document, opts Options) error {
	_, err := Run(doc, opts)
	return err
}

// Run is Calculate that also reports how the calculation ran.
func Run(doc *Document, opts Options) (Result, error) {
	if doc == nil {
		return Result{}, ErrNilDocument
	}
	prec := opts.Precision
	if prec == nil {
		prec = DefaultPrecision()
	}
	c := &calculation{doc: doc, prec: prec}
	passes, err := c.calculate()
	return Result{Passes: passes}, err
}

func (c *calculation) calculate() (int, error) {
	if err := c.validateConversionRate(); err != nil {
		return 0, err
	}

	c.phase = phaseInitial
	if err := c.run(); err != nil {
		return 1, err
	}
	passes := 1

	redistributed, err := c.applyDiscountAmount()
	if err != nil {
		return passes, err
	}
	if redistributed {
		c.phase = phaseDiscountApplied
		passes++
		if err := c.run(); err != nil {
			return passes, err
		}
	}

	if c.doc.Type.HasOutstanding() {
		c.calculateTotalAdvance()
	}
	if c.doc.Type.IsBuying() {
		c.updateValuationRate()
	}
	return passes, nil
}

func (c *calculation) run() error {
	c.calculateItemValues()
	if err := c.initializeTaxes(); err != nil {
		return err
	}
	c.determineExclusiveRate()
	c.calculateNetTotal()
	c.calculateTaxes()
	c.manipulateGrandTotalForInclusiveTax()
	c.calculateTotals()
	return nil
}

func (c *calculation) validateConversionRate() error {
	doc := c.doc
	if doc.Currency == "" {
		doc.Currency = doc.CompanyCurrency
	}
	if doc.Currency == doc.CompanyCurrency {
		doc.ConversionRate = one
		return nil
	}
	if doc.ConversionRate.IsPositive() {
		return nil
	}
	if doc.CompanyCurrency == "" {
		doc.ConversionRate = one
		return nil
	}
	return &ConfigError{Field: "conversion_rate", Err: ErrConversionRateRequired}
}

func (c *calculation) round(v decimal.Decimal, entity Entity, field string) decimal.Decimal {
	return v.Round(c.prec.Digits(entity, field))
}

// toBase converts a document currency value into company currency, rounding
// to the precision of the base field.
func (c *calculation) toBase(v decimal.Decimal, entity Entity, field string) decimal.Decimal {
	v = c.round(v, entity, field)
	return c.round(v.Mul(c.doc.ConversionRate), entity, "base_"+field)
}

func (c *calculation) discountApplied() bool {
	return c.phase == phaseDiscountApplied
}
