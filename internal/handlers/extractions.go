package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tamil-braille/api/internal/platform/httpx"
	"github.com/tamil-braille/api/internal/services"
)

const (
	extractionFormField = "file"
	// multipartOverhead leaves room for boundaries and part headers around the file.
	multipartOverhead = 64 * 1024
)

// ExtractionHandlers accepts file uploads and returns the text found in them.
type ExtractionHandlers struct {
	extractions services.ExtractionService
	maxBytes    int64
	limiter     rateLimiter
}

// ExtractionOption customises ExtractionHandlers.
type ExtractionOption func(*ExtractionHandlers)

// WithExtractionRateLimit caps uploads per client within window.
func WithExtractionRateLimit(limit int, window time.Duration) ExtractionOption {
	return func(h *ExtractionHandlers) {
		h.limiter = newWindowLimiter(limit, window, time.Now)
	}
}

// NewExtractionHandlers constructs the upload handler set.
func NewExtractionHandlers(svc services.ExtractionService, maxBytes int64, opts ...ExtractionOption) *ExtractionHandlers {
	if maxBytes <= 0 {
		maxBytes = services.DefaultExtractionMaxBytes
	}
	h := &ExtractionHandlers{extractions: svc, maxBytes: maxBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers POST /extractions.
func (h *ExtractionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(limitByClient(h.limiter)).Post("/extractions", h.extract)
}

type extractionResponse struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	ContentType string `json:"contentType"`
	Bytes       int64  `json:"bytes"`
}

func (h *ExtractionHandlers) extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.extractions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "extraction service not available", http.StatusServiceUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	file, header, err := r.FormFile(extractionFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeExtractionError(w, r, &services.ExtractionError{Reason: services.ExtractionReasonSizeLimitExceeded, Message: services.ExtractionSizeLimitMessage(h.maxBytes)})
		case errors.Is(err, http.ErrMissingFile):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "multipart field \"file\" is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected a multipart/form-data upload", http.StatusBadRequest))
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	result, err := h.extractions.Extract(ctx, services.ExtractionUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeExtractionError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, extractionResponse{
		Text:        result.Text,
		Source:      string(result.Source),
		ContentType: result.ContentType,
		Bytes:       result.Bytes,
	})
}

func writeExtractionError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var extractionErr *services.ExtractionError
	if !errors.As(err, &extractionErr) {
		httpx.WriteError(ctx, w, httpx.NewError(services.ExtractionReasonFailed, "failed to extract text", http.StatusUnprocessableEntity))
		return
	}
	status := http.StatusUnprocessableEntity
	switch extractionErr.Reason {
	case services.ExtractionReasonSizeLimitExceeded:
		status = http.StatusRequestEntityTooLarge
	case services.ExtractionReasonUnsupportedFormat:
		status = http.StatusUnsupportedMediaType
	}
	httpx.WriteError(ctx, w, httpx.NewError(extractionErr.Reason, extractionErr.Message, status))
}
