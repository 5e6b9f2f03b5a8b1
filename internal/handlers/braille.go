package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tamil-braille/api/internal/platform/httpx"
	"github.com/tamil-braille/api/internal/services"
)

const maxConvertRequestBody = 128 * 1024

// BrailleHandlers exposes the stateless conversion endpoints.
type BrailleHandlers struct {
	conversions services.ConversionService
}

// NewBrailleHandlers constructs the stateless handler set.
func NewBrailleHandlers(svc services.ConversionService) *BrailleHandlers {
	return &BrailleHandlers{conversions: svc}
}

// Routes registers /braille:convert, /braille:render and /braille/table.
func (h *BrailleHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/braille:convert", h.convert)
	r.Post("/braille:render", h.render)
	r.Get("/braille/table", h.table)
}

type convertRequest struct {
	Text string `json:"text"`
}

type renderRequest struct {
	Cells [][]int `json:"cells"`
}

type unmappedPayload struct {
	Position int    `json:"position"`
	Char     string `json:"char"`
}

type conversionPayload struct {
	Text     string                `json:"text"`
	Cells    [][]int               `json:"cells"`
	Braille  string                `json:"braille"`
	Matrices []services.CellMatrix `json:"matrices"`
	Unmapped []unmappedPayload     `json:"unmapped"`
	Record   *recordPayload        `json:"record,omitempty"`
}

type recordPayload struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	BraillePattern [][]int `json:"braillePattern"`
	Liked          bool    `json:"liked"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

func (h *BrailleHandlers) convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.conversions == nil {
		writeConversionUnavailable(ctx, w)
		return
	}
	var req convertRequest
	if !decodeJSONBody(w, r, maxConvertRequestBody, &req) {
		return
	}

	result, err := h.conversions.Convert(ctx, services.ConvertCommand{Text: req.Text})
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	payload, err := buildConversionPayload(ctx, h.conversions, result)
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *BrailleHandlers) render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.conversions == nil {
		writeConversionUnavailable(ctx, w)
		return
	}
	var req renderRequest
	if !decodeJSONBody(w, r, maxConvertRequestBody, &req) {
		return
	}

	out, err := h.conversions.Render(ctx, req.Cells)
	if err != nil {
		writeConversionError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"braille": out})
}

func (h *BrailleHandlers) table(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.conversions == nil {
		writeConversionUnavailable(ctx, w)
		return
	}
	summary := h.conversions.Table(ctx)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"entries":      summary.Entries,
		"maxKeyLength": summary.MaxKeyLength,
		"source":       summary.Source,
	})
}

func buildConversionPayload(ctx context.Context, svc services.ConversionService, result services.ConversionResult) (conversionPayload, error) {
	matrices, err := svc.Visualize(ctx, result.Cells)
	if err != nil {
		return conversionPayload{}, err
	}
	payload := conversionPayload{
		Text:     result.Text,
		Cells:    nonNilCells(result.Cells),
		Braille:  result.Braille,
		Matrices: matrices,
		Unmapped: make([]unmappedPayload, 0, len(result.Unmapped)),
	}
	for _, miss := range result.Unmapped {
		payload.Unmapped = append(payload.Unmapped, unmappedPayload{Position: miss.Position, Char: miss.Char})
	}
	if result.Record != nil {
		record := buildRecordPayload(*result.Record)
		payload.Record = &record
	}
	return payload, nil
}

func buildRecordPayload(record services.ConversionRecord) recordPayload {
	return recordPayload{
		ID:             record.ID,
		Text:           record.TamilText,
		BraillePattern: nonNilCells(record.BraillePattern),
		Liked:          record.Liked,
		CreatedAt:      record.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func nonNilCells(cells [][]int) [][]int {
	out := make([][]int, len(cells))
	for i, dots := range cells {
		if dots == nil {
			dots = []int{}
		}
		out[i] = dots
	}
	return out
}

func writeConversionUnavailable(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "conversion service not available", http.StatusServiceUnavailable))
}

func writeConversionError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrConversionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrConversionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "conversion not found", http.StatusNotFound))
	case errors.Is(err, services.ErrConversionExportDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("export_disabled", "exports are not available", http.StatusNotImplemented))
	case errors.Is(err, services.ErrConversionUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "conversion history temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("conversion_error", "failed to process conversion", http.StatusInternalServerError))
	}
}
