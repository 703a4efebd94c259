// Package calc runs document calculations on behalf of the HTTP API, the
// recalculation worker and the CLI.
package calc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-taxcalc/internal/common"
	"github.com/noah-isme/backend-taxcalc/internal/obs"
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
	"github.com/noah-isme/backend-taxcalc/internal/templates"
	"github.com/noah-isme/backend-taxcalc/internal/validation"
)

const maxTemplateName = 140

// Service validates requests, resolves tax templates, caches results and
// runs the engine.
type Service struct {
	templates *templates.Service
	cache     *Cache
	validate  *validator.Validate
	precision taxes.Precision
	cacheTag  string
	logger    zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Templates *templates.Service
	Cache     *Cache
	Validator *validator.Validate
	Precision taxes.Precision
	// CacheTag is mixed into result cache keys; change it whenever Precision changes.
	CacheTag string
	Logger   zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}
	if cfg.Precision == nil {
		cfg.Precision = taxes.DefaultPrecision()
	}
	return &Service{
		templates: cfg.Templates,
		cache:     cfg.Cache,
		validate:  cfg.Validator,
		precision: cfg.Precision,
		cacheTag:  cfg.CacheTag,
		logger:    cfg.Logger,
	}
}

// Validate checks the request shape without touching templates or the engine.
func (s *Service) Validate(req Request) error {
	if len(req.TaxTemplate) > maxTemplateName {
		return common.BadRequest("taxTemplate", "tax template name is too long", nil)
	}
	if err := s.validate.Struct(&req.Document); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		return &common.AppError{
			Code:       "VALIDATION_ERROR",
			Message:    "invalid document",
			HTTPStatus: http.StatusBadRequest,
			Err:        err,
			Details:    map[string]any{"fields": validation.Fields(err)},
		}
	}
	return nil
}

// Calculate returns the calculated document. The request is not modified.
func (s *Service) Calculate(ctx context.Context, req Request) (*taxes.Document, error) {
	ctx, span := obs.StartSpan(ctx, "calc.calculate",
		attribute.String("calc.doc_type", string(req.Type)),
		attribute.Int("calc.items", len(req.Items)),
	)
	defer span.End()
	logger := s.loggerFor(ctx)

	if err := s.Validate(req); err != nil {
		obs.ObserveCalculation(string(req.Type), "invalid", 0, 0)
		return nil, err
	}
	doc, err := s.resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	key, err := common.HashJSON(struct {
		Tag string          `json:"tag"`
		Doc *taxes.Document `json:"doc"`
	}{s.cacheTag, doc})
	if err != nil {
		return nil, err
	}
	var cached taxes.Document
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.Warn().Err(err).Msg("calc cache read failed")
	}
	if hit {
		obs.IncCounter(obs.CalculationCacheTotal, "hit")
		span.SetAttributes(attribute.Bool("calc.cache_hit", true))
		return &cached, nil
	}
	obs.IncCounter(obs.CalculationCacheTotal, "miss")

	start := time.Now()
	res, err := taxes.Run(doc, taxes.Options{Precision: s.precision})
	took := time.Since(start)
	if err != nil {
		obs.ObserveCalculation(string(doc.Type), "config_error", res.Passes, took)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Str("doc_type", string(doc.Type)).Str("doc_name", doc.Name).Msg("document rejected")
		return nil, templates.InvalidTaxes(err)
	}
	obs.ObserveCalculation(string(doc.Type), "ok", res.Passes, took)
	span.SetAttributes(attribute.Int("calc.passes", res.Passes))

	if err := s.cache.SetJSON(ctx, key, doc); err != nil {
		logger.Warn().Err(err).Msg("calc cache write failed")
	}
	logger.Debug().
		Str("doc_type", string(doc.Type)).
		Str("doc_name", doc.Name).
		Int("items", len(doc.Items)).
		Int("taxes", len(doc.Taxes)).
		Int("passes", res.Passes).
		Str("grand_total", doc.GrandTotal.String()).
		Dur("took", took).
		Msg("document calculated")
	return doc, nil
}

// resolve copies the request into a fresh document, filling tax lines from
// the named template.
func (s *Service) resolve(ctx context.Context, req Request) (*taxes.Document, error) {
	doc := req.Document
	doc.Items = append([]taxes.LineItem(nil), req.Items...)
	doc.Taxes = append([]taxes.TaxLine(nil), req.Taxes...)
	doc.Advances = append([]taxes.Advance(nil), req.Advances...)

	name := strings.TrimSpace(req.TaxTemplate)
	if len(doc.Taxes) > 0 || name == "" {
		return &doc, nil
	}
	if !s.templates.Enabled() {
		return nil, common.BadRequest("taxTemplate", "tax templates are not enabled", nil)
	}
	t, err := s.templates.Get(ctx, name)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusNotFound {
			return nil, &common.AppError{
				Code:       "UNKNOWN_TEMPLATE",
				Message:    "tax template not found",
				HTTPStatus: http.StatusUnprocessableEntity,
				Err:        err,
				Details:    map[string]any{"field": "taxTemplate"},
			}
		}
		return nil, err
	}
	doc.Taxes = t.Lines
	return &doc, nil
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
