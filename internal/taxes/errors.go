package taxes

import (
	"errors"
	"fmt"
)

var (
	// ErrNilDocument is returned when Calculate receives no document.
	ErrNilDocument = errors.New("document is required")
	// ErrApplyDiscountOnRequired is returned when a discount amount is set without a target.
	ErrApplyDiscountOnRequired = errors.New("apply discount on is required when a discount amount is set")
	// ErrInvalidApplyDiscountOn is returned for an unknown discount target.
	ErrInvalidApplyDiscountOn = errors.New("apply discount on must be net_total or grand_total")
	// ErrConversionRateRequired is returned for a foreign currency document without a rate.
	ErrConversionRateRequired = errors.New("conversion rate is required for a foreign currency document")
	// ErrUnknownChargeType is returned for an unrecognised charge type.
	ErrUnknownChargeType = errors.New("unknown charge type")
	// ErrPreviousRowOnFirstRow is returned when the first row refers to a previous row.
	ErrPreviousRowOnFirstRow = errors.New("charge type on previous row amount or total cannot be used on the first row")
	// ErrRowReferenceRequired is returned when a previous-row charge has no reference.
	ErrRowReferenceRequired = errors.New("row reference is required for charges on a previous row")
	// ErrRowReferenceInvalid is returned when a reference does not point to an earlier row.
	ErrRowReferenceInvalid = errors.New("row reference must point to an earlier row")
	// ErrRowReferenceNotAllowed is returned when a net-total or actual charge carries a reference.
	ErrRowReferenceNotAllowed = errors.New("row reference is only allowed for charges on a previous row")
	// ErrInclusiveActual is returned when an actual charge is marked as included in rate.
	ErrInclusiveActual = errors.New("actual charges cannot be included in the item rate")
	// ErrInclusiveValuation is returned when a valuation-only charge is marked as included in rate.
	ErrInclusiveValuation = errors.New("valuation charges cannot be included in the item rate")
	// ErrInclusivePreviousRow is returned when an inclusive row depends on a non-inclusive row.
	ErrInclusivePreviousRow = errors.New("taxes in referenced rows must also be included in the item rate")
)

// ConfigError reports a document that cannot be calculated until the caller
// fixes it. Row is the 1-based tax row, or 0 for header fields.
type ConfigError struct {
	Row   int
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("tax row %d %s: %s", e.Row, e.Field, e.Err.Error())
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

func rowError(row int, field string, err error) *ConfigError {
	return &ConfigError{Row: row, Field: field, Err: err}
}
