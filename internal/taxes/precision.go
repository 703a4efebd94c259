package taxes

import "github.com/shopspring/decimal"

// Entity names the record a precision lookup is made for.
type Entity string

const (
	EntityDocument Entity = "document"
	EntityItem     Entity = "item"
	EntityTax      Entity = "tax"
	EntityAdvance  Entity = "advance"
)

// Precision returns the number of decimal places a field is rounded to.
type Precision interface {
	Digits(entity Entity, field string) int32
}

// PrecisionFunc adapts a plain function to Precision.
type PrecisionFunc func(entity Entity, field string) int32

// Digits implements Precision.
func (f PrecisionFunc) Digits(entity Entity, field string) int32 {
	return f(entity, field)
}

// floatFields are stored as plain floats rather than currency amounts.
var floatFields = map[string]struct{}{
	"document.conversion_rate": {},
	"item.qty":                 {},
	"item.discount_percentage": {},
	"item.conversion_factor":   {},
	"tax.rate":                 {},
}

// PrecisionTable resolves currency fields to Currency places and float fields
// to Float places. Overrides are keyed by "entity.field", e.g. "item.rate".
type PrecisionTable struct {
	Currency  int32
	Float     int32
	Overrides map[string]int32
}

// DefaultPrecision is two places for money and three for rates and quantities.
func DefaultPrecision() PrecisionTable {
	return PrecisionTable{Currency: 2, Float: 3}
}

// Digits implements Precision.
func (p PrecisionTable) Digits(entity Entity, field string) int32 {
	key := string(entity) + "." + field
	if v, ok := p.Overrides[key]; ok {
		return v
	}
	if _, ok := floatFields[key]; ok {
		return p.Float
	}
	return p.Currency
}

var (
	zero    = decimal.Zero
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// percent converts a percentage rate into a multiplier.
func percent(rate decimal.Decimal) decimal.Decimal {
	return rate.Div(hundred)
}
