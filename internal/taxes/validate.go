package taxes

// ValidateTaxLines checks the taxes table for configuration errors without
// running a calculation. Calculate performs the same checks on its first pass.
func ValidateTaxLines(lines []TaxLine) error {
	for i := range lines {
		if err := validateTaxLine(lines, i); err != nil {
			return err
		}
	}
	return nil
}

func validateTaxLine(lines []TaxLine, i int) error {
	tax := lines[i]
	row := i + 1

	switch tax.ChargeType {
	case ChargeOnNetTotal, ChargeActual:
		if tax.RowReference != 0 {
			return rowError(row, "row_reference", ErrRowReferenceNotAllowed)
		}
	case ChargeOnPreviousRowAmount, ChargeOnPreviousRowTotal:
		if row == 1 {
			return rowError(row, "charge_type", ErrPreviousRowOnFirstRow)
		}
		if tax.RowReference == 0 {
			return rowError(row, "row_reference", ErrRowReferenceRequired)
		}
		if tax.RowReference < 0 || tax.RowReference >= row {
			return rowError(row, "row_reference", ErrRowReferenceInvalid)
		}
	default:
		return rowError(row, "charge_type", ErrUnknownChargeType)
	}

	if !tax.IncludedInRate {
		return nil
	}
	switch {
	case tax.ChargeType == ChargeActual:
		return rowError(row, "included_in_rate", ErrInclusiveActual)
	case tax.Category == CategoryValuation:
		return rowError(row, "included_in_rate", ErrInclusiveValuation)
	case tax.ChargeType == ChargeOnPreviousRowAmount && !lines[tax.RowReference-1].IncludedInRate:
		return rowError(row, "included_in_rate", ErrInclusivePreviousRow)
	case tax.ChargeType == ChargeOnPreviousRowTotal:
		for _, prev := range lines[:tax.RowReference] {
			if !prev.IncludedInRate {
				return rowError(row, "included_in_rate", ErrInclusivePreviousRow)
			}
		}
	}
	return nil
}
