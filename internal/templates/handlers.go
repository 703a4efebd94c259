package templates

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-taxcalc/internal/common"
	"github.com/noah-isme/backend-taxcalc/internal/taxes"
)

const defaultPerPage = 50

// Handler exposes the tax template endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type saveRequest struct {
	Title string          `json:"title"`
	Lines []taxes.TaxLine `json:"lines"`
}

// List handles GET /api/v1/tax-templates.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, defaultPerPage)
	items, total, err := h.service.List(r.Context(), page)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page.TotalItems = int(total)
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": page,
	})
}

// Get handles GET /api/v1/tax-templates/{name}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, t)
}

// Put handles PUT /api/v1/tax-templates/{name}, replacing the template.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.BadRequest("", "invalid JSON body", err))
		return
	}
	saved, err := h.service.Save(r.Context(), Template{
		Name:  chi.URLParam(r, "name"),
		Title: req.Title,
		Lines: req.Lines,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, saved)
}
