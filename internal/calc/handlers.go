package calc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-taxcalc/internal/common"
	"github.com/noah-isme/backend-taxcalc/internal/export"
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

// Enqueuer schedules an async recalculation.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string, req Request) error
}

// Handler exposes the calculation endpoints.
type Handler struct {
	service  *Service
	results  *Results
	enqueuer Enqueuer
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Results  *Results
	Enqueuer Enqueuer
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, results: cfg.Results, enqueuer: cfg.Enqueuer}
}

func decodeRequest(r *http.Request) (Request, error) {
	var req Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Request{}, common.BadRequest("", "invalid JSON body", err)
	}
	return req, nil
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) (*taxes.Document, bool) {
	req, err := decodeRequest(r)
	if err != nil {
		common.WriteError(w, err)
		return nil, false
	}
	doc, err := h.service.Calculate(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return nil, false
	}
	return doc, true
}

// Calculate handles POST /api/v1/calculations.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.calculate(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, doc)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Export handles POST /api/v1/calculations/export, answering with a workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.calculate(w, r)
	if !ok {
		return
	}
	f, err := export.Workbook(doc)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	defer f.Close()

	name := unsafeFilename.ReplaceAllString(doc.Name, "_")
	if name == "" {
		name = "calculation"
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("doc_name", doc.Name).Msg("write workbook")
	}
}

// Enqueue handles POST /api/v1/calculations/async.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil || h.results == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "ASYNC_DISABLED", "async recalculation is not configured", nil)
		return
	}
	req, err := decodeRequest(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.Validate(req); err != nil {
		common.WriteError(w, err)
		return
	}

	jobID := uuid.NewString()
	ctx := r.Context()
	if err := h.results.Put(ctx, JobResult{JobID: jobID, Status: JobQueued}); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.enqueuer.Enqueue(ctx, jobID, req); err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/calculations/async/"+jobID)
	common.Data(w, http.StatusAccepted, map[string]any{"jobId": jobID, "status": JobQueued})
}

// AsyncResult handles GET /api/v1/calculations/async/{id}.
func (h *Handler) AsyncResult(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "ASYNC_DISABLED", "async recalculation is not configured", nil)
		return
	}
	jobID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(jobID); err != nil {
		common.WriteError(w, common.NotFound("calculation result not found", err))
		return
	}
	res, err := h.results.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrResultNotFound) {
			common.WriteError(w, common.NotFound("calculation result not found", err))
			return
		}
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}
