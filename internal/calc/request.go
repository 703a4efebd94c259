package calc

import (
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

// Request is a document to calculate. When it carries no tax lines and names
// a TaxTemplate, the template's lines are used.
type Request struct {
	taxes.Document
	TaxTemplate string `json:"taxTemplate,omitempty"`
}
