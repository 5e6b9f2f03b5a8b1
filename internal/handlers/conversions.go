package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tamil-braille/api/internal/platform/auth"
	"github.com/tamil-braille/api/internal/platform/httpx"
	"github.com/tamil-braille/api/internal/platform/pagination"
	"github.com/tamil-braille/api/internal/services"
)

// ConversionHandlers exposes the signed-in user's conversion history.
type ConversionHandlers struct {
	authn       *auth.Authenticator
	conversions services.ConversionService
	pageSize    int
	maxPageSize int
}

// NewConversionHandlers constructs the history handler set. maxPageSize is
// usually the history retention limit.
func NewConversionHandlers(authn *auth.Authenticator, svc services.ConversionService, maxPageSize int) *ConversionHandlers {
	return &ConversionHandlers{
		authn:       authn,
		conversions: svc,
		pageSize:    pagination.DefaultPageSize,
		maxPageSize: maxPageSize,
	}
}

// Routes registers the /conversions endpoints.
func (h *ConversionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireUser())
	}
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Delete("/", h.clear)
	r.Get("/{conversionID}", h.get)
	r.Delete("/{conversionID}", h.remove)
	r.Post("/{conversionID}:toggle-like", h.toggleLike)
	r.Post("/{conversionID}:export", h.export)
}

type conversionListResponse struct {
	Items         []recordPayload `json:"items"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

type exportResponse struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	URL         string `json:"url,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

func (h *ConversionHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.conversions == nil {
		writeConversionUnavailable(ctx, w)
		return
	}
	ownerID, ok := requireOwner(ctx, w)
	if !ok {
		return
	}
	var req convertRequest
	if !decodeJSONBody(w, r, maxConvertRequestBody, &req) {
		return
	}

	result, err := h.conversions.Convert(ctx, services.ConvertCommand{OwnerID: ownerID, Text: req.Text, Save: true})
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	payload, err := buildConversionPayload(ctx, h.conversions, result)
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, payload)
}

func (h *ConversionHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.conversions == nil {
		writeConversionUnavailable(ctx, w)
		return
	}
	ownerID, ok := requireOwner(ctx, w)
	if !ok {
		return
	}
	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: h.pageSize, MaxPageSize: h.maxPageSize})
	if err != nil {
		code := "invalid_page_size"
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			code = "invalid_page_token"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.conversions.ListHistory(ctx, ownerID, services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken})
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	resp := conversionListResponse{
		Items:         make([]recordPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Items {
		resp.Items = append(resp.Items, buildRecordPayload(record))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *ConversionHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, conversionID, ok := h.recordRef(w, r)
	if !ok {
		return
	}
	record, err := h.conversions.GetConversion(ctx, ownerID, conversionID)
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildRecordPayload(record))
}

func (h *ConversionHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, conversionID, ok := h.recordRef(w, r)
	if !ok {
		return
	}
	if err := h.conversions.DeleteConversion(ctx, ownerID, conversionID); err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversionHandlers) clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.conversions == nil {
		writeConversionUnavailable(ctx, w)
		return
	}
	ownerID, ok := requireOwner(ctx, w)
	if !ok {
		return
	}
	removed, err := h.conversions.ClearHistory(ctx, ownerID)
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"deleted": removed})
}

func (h *ConversionHandlers) toggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, conversionID, ok := h.recordRef(w, r)
	if !ok {
		return
	}
	record, err := h.conversions.ToggleLike(ctx, ownerID, conversionID)
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildRecordPayload(record))
}

// export returns a signed link as JSON when uploads are configured, and the
// document itself as an attachment otherwise.
func (h *ConversionHandlers) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, conversionID, ok := h.recordRef(w, r)
	if !ok {
		return
	}
	export, err := h.conversions.Export(ctx, ownerID, conversionID)
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}

	if export.URL != "" {
		resp := exportResponse{FileName: export.FileName, ContentType: export.ContentType, URL: export.URL}
		if export.ExpiresAt != nil {
			resp.ExpiresAt = export.ExpiresAt.UTC().Format(time.RFC3339)
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Content)
}

func (h *ConversionHandlers) recordRef(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	ctx := r.Context()
	if h.conversions == nil {
		writeConversionUnavailable(ctx, w)
		return "", "", false
	}
	ownerID, ok := requireOwner(ctx, w)
	if !ok {
		return "", "", false
	}
	conversionID := strings.TrimSpace(chi.URLParam(r, "conversionID"))
	if conversionID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "conversion id is required", http.StatusBadRequest))
		return "", "", false
	}
	return ownerID, conversionID, true
}
