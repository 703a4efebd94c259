package templates

import (
	"context"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-taxcalc/internal/common"
	"github.com/noah-isme/backend-taxcalc/internal/obs"
	"github.com/noah-isme/backend-taxcalc/internal/resilience"
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
	"github.com/noah-isme/backend-taxcalc/internal/validation"
)

const maxNameLen = 140

// Service validates templates and maps store failures onto API errors.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService constructs a Service. A nil store disables templates.
func NewService(store Store, validate *validator.Validate) *Service {
	if validate == nil {
		validate = validation.New()
	}
	return &Service{store: store, validate: validate}
}

// Enabled reports whether a store is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.store != nil
}

// Get loads a template by name.
func (s *Service) Get(ctx context.Context, name string) (Template, error) {
	if !s.Enabled() {
		return Template{}, errDisabled()
	}
	t, err := s.store.Get(ctx, strings.TrimSpace(name))
	switch {
	case err == nil:
		obs.IncCounter(obs.TemplateLookupsTotal, "hit")
		return t, nil
	case errors.Is(err, ErrTemplateNotFound):
		obs.IncCounter(obs.TemplateLookupsTotal, "miss")
		return Template{}, common.NotFound("tax template not found", err)
	default:
		obs.IncCounter(obs.TemplateLookupsTotal, "error")
		return Template{}, storeError(err)
	}
}

// List returns one page of template summaries and the total count.
func (s *Service) List(ctx context.Context, page common.Pagination) ([]Summary, int64, error) {
	if !s.Enabled() {
		return nil, 0, errDisabled()
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, storeError(err)
	}
	items, err := s.store.List(ctx, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, storeError(err)
	}
	if items == nil {
		items = []Summary{}
	}
	return items, total, nil
}

// Save validates t and replaces the stored template of the same name.
func (s *Service) Save(ctx context.Context, t Template) (Template, error) {
	if !s.Enabled() {
		return Template{}, errDisabled()
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" || len(t.Name) > maxNameLen {
		return Template{}, common.BadRequest("name", "template name must be 1-140 characters", nil)
	}
	for i := range t.Lines {
		line := &t.Lines[i]
		line.Idx = i + 1
		if line.Category == "" {
			line.Category = taxes.CategoryTotal
		}
		if line.AddOrDeduct == "" {
			line.AddOrDeduct = taxes.Add
		}
		if err := s.validate.Struct(line); err != nil {
			return Template{}, &common.AppError{
				Code:       "VALIDATION_ERROR",
				Message:    "invalid tax line",
				HTTPStatus: http.StatusBadRequest,
				Err:        err,
				Details:    map[string]any{"row": i + 1, "fields": validation.Fields(err)},
			}
		}
	}
	if err := taxes.ValidateTaxLines(t.Lines); err != nil {
		return Template{}, InvalidTaxes(err)
	}
	if err := s.store.Save(ctx, t); err != nil {
		return Template{}, storeError(err)
	}
	return s.Get(ctx, t.Name)
}

// InvalidTaxes maps an engine configuration error onto a 422 response.
// Other errors pass through untouched.
func InvalidTaxes(err error) error {
	var cfg *taxes.ConfigError
	if !errors.As(err, &cfg) {
		return err
	}
	details := map[string]any{"reason": cfg.Err.Error()}
	if cfg.Row > 0 {
		details["row"] = cfg.Row
	}
	if cfg.Field != "" {
		details["field"] = cfg.Field
	}
	return &common.AppError{
		Code:       "INVALID_DOCUMENT",
		Message:    cfg.Error(),
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
		Details:    details,
	}
}

// storeError maps store failures that callers can act on to 503s.
func storeError(err error) error {
	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return errDisabled()
	case errors.Is(err, resilience.ErrOpenCircuit):
		return common.NewAppError("TEMPLATES_UNAVAILABLE", "tax template store is temporarily unavailable", http.StatusServiceUnavailable, err)
	default:
		return err
	}
}

func errDisabled() error {
	return common.NewAppError("TEMPLATES_DISABLED", "tax templates require a database", http.StatusServiceUnavailable, ErrStoreUnavailable)
}
