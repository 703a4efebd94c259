// Package validation builds the request validator shared by the calculation
// and template endpoints.
package validation

import (
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

const (
	docTypes    = "oneof=quotation sales_order delivery_note sales_invoice supplier_quotation purchase_order purchase_receipt purchase_invoice"
	chargeTypes = "oneof=on_net_total on_previous_row_amount on_previous_row_total actual"
)

// New returns a validator that knows the engine's document types. Decimals
// are compared as numbers and field errors are reported by their JSON name.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	v.RegisterStructValidationMapRules(map[string]string{
		"Name":                 "max=140",
		"Type":                 "required," + docTypes,
		"Status":               "gte=0,lte=2",
		"Currency":             "omitempty,len=3",
		"CompanyCurrency":      "omitempty,len=3",
		"PartyAccountCurrency": "omitempty,len=3",
		"ConversionRate":       "gte=0",
		"ApplyDiscountOn":      "omitempty,oneof=net_total grand_total",
		"PaidAmount":           "gte=0",
		"WriteOffAmount":       "gte=0",
		"Advances":             "dive",
		"Items":                "dive",
		"Taxes":                "max=100,dive",
	}, taxes.Document{})
	v.RegisterStructValidationMapRules(map[string]string{
		"ItemCode":           "required_without=ItemName,max=140",
		"DiscountPercentage": "gte=0,lte=100",
		"ConversionFactor":   "gte=0",
	}, taxes.LineItem{})
	v.RegisterStructValidationMapRules(map[string]string{
		"ChargeType":   "required," + chargeTypes,
		"RowReference": "gte=0",
		"Category":     "omitempty,oneof=total valuation valuation_and_total",
		"AddOrDeduct":  "omitempty,oneof=add deduct",
	}, taxes.TaxLine{})
	v.RegisterStructValidationMapRules(map[string]string{
		"AllocatedAmount": "gte=0",
	}, taxes.Advance{})
	return v
}

// Fields flattens validation failures into a field to tag map suitable for
// error details. It returns nil for any other error.
func Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		// drop the root struct name
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		out[ns] = fe.Tag()
	}
	return out
}
