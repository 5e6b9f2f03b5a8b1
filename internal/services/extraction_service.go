package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	domain "github.com/tamil-braille/api/internal/domain"
	"github.com/tamil-braille/api/internal/platform/ocr"
	"github.com/tamil-braille/api/internal/platform/textutil"
)

// DefaultExtractionMaxBytes caps uploads when no limit is configured.
const DefaultExtractionMaxBytes int64 = 10 << 20

// Extraction failure reasons.
const (
	ExtractionReasonUnsupportedFormat = "unsupported_format"
	ExtractionReasonSizeLimitExceeded = "size_limit_exceeded"
	ExtractionReasonFailed            = "extraction_failed"
)

const (
	extractionMessageUnsupported = "Please upload a TXT, image or PDF file"
	extractionMessageText        = "Failed to read text file"
	extractionMessageImage       = "Failed to extract text from image"
	extractionMessagePDF         = "Failed to extract text from PDF"
)

// ExtractionSizeLimitMessage names the upload limit in whole MB, KB or bytes,
// e.g. "File size exceeds 10MB limit".
func ExtractionSizeLimitMessage(maxBytes int64) string {
	limit := fmt.Sprintf("%dB", maxBytes)
	switch {
	case maxBytes >= 1<<20 && maxBytes%(1<<20) == 0:
		limit = fmt.Sprintf("%dMB", maxBytes>>20)
	case maxBytes >= 1<<10 && maxBytes%(1<<10) == 0:
		limit = fmt.Sprintf("%dKB", maxBytes>>10)
	}
	return "File size exceeds " + limit + " limit"
}

var errExtractionEngineRequired = errors.New("extraction: ocr engine is required")

// ExtractionError reports why text could not be obtained from an upload.
// Message is safe to show to end users.
type ExtractionError struct {
	Reason  string
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Reason, e.Err)
	}
	return "extraction: " + e.Reason
}

func (e *ExtractionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

var extractionContentTypes = map[string]domain.ExtractionSource{
	"text/plain":      domain.ExtractionSourceText,
	"image/png":       domain.ExtractionSourceImage,
	"image/jpeg":      domain.ExtractionSourceImage,
	"image/tiff":      domain.ExtractionSourceImage,
	"image/bmp":       domain.ExtractionSourceImage,
	"image/webp":      domain.ExtractionSourceImage,
	"image/gif":       domain.ExtractionSourceImage,
	"application/pdf": domain.ExtractionSourcePDF,
}

// ExtractionServiceDeps wires the recognisers used for image and PDF uploads.
type ExtractionServiceDeps struct {
	OCR        ocr.Engine
	Rasterizer ocr.Rasterizer
	MaxBytes   int64
	Metrics    ConversionMetrics
	Logger     func(context.Context, string, map[string]any)
}

type extractionService struct {
	engine     ocr.Engine
	rasterizer ocr.Rasterizer
	maxBytes   int64
	metrics    ConversionMetrics
	logger     func(context.Context, string, map[string]any)
}

var _ ExtractionService = (*extractionService)(nil)

// NewExtractionService constructs an ExtractionService. A nil Rasterizer
// defaults to pdftoppm on PATH.
func NewExtractionService(deps ExtractionServiceDeps) (ExtractionService, error) {
	if deps.OCR == nil {
		return nil, errExtractionEngineRequired
	}
	rasterizer := deps.Rasterizer
	if rasterizer == nil {
		rasterizer = ocr.PDFToPPM{}
	}
	maxBytes := deps.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultExtractionMaxBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &extractionService{
		engine:     deps.OCR,
		rasterizer: rasterizer,
		maxBytes:   maxBytes,
		metrics:    deps.Metrics,
		logger:     logger,
	}, nil
}

func (s *extractionService) Extract(ctx context.Context, upload ExtractionUpload) (ExtractionResult, error) {
	result, err := s.extract(ctx, upload)
	outcome := "ok"
	if err != nil {
		outcome = ExtractionReasonFailed
		var extractionErr *ExtractionError
		if errors.As(err, &extractionErr) {
			outcome = extractionErr.Reason
		}
		s.logger(ctx, "extraction.failed", map[string]any{
			"fileName":    upload.FileName,
			"contentType": upload.ContentType,
			"reason":      outcome,
			"error":       err,
		})
	}
	if s.metrics != nil {
		source := string(result.Source)
		if source == "" {
			source = "unknown"
		}
		s.metrics.RecordExtraction(ctx, source, outcome)
	}
	return result, err
}

func (s *extractionService) extract(ctx context.Context, upload ExtractionUpload) (ExtractionResult, error) {
	if upload.Body == nil {
		return ExtractionResult{}, &ExtractionError{Reason: ExtractionReasonFailed, Message: extractionMessageText, Err: errors.New("upload body is required")}
	}
	if upload.Size > s.maxBytes {
		return ExtractionResult{}, &ExtractionError{Reason: ExtractionReasonSizeLimitExceeded, Message: ExtractionSizeLimitMessage(s.maxBytes)}
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxBytes+1))
	if err != nil {
		return ExtractionResult{}, &ExtractionError{Reason: ExtractionReasonFailed, Message: extractionMessageText, Err: err}
	}
	if int64(len(data)) > s.maxBytes {
		return ExtractionResult{}, &ExtractionError{Reason: ExtractionReasonSizeLimitExceeded, Message: ExtractionSizeLimitMessage(s.maxBytes)}
	}

	contentType := detectExtractionContentType(upload.ContentType, data)
	source, ok := extractionContentTypes[contentType]
	if !ok {
		return ExtractionResult{}, &ExtractionError{
			Reason:  ExtractionReasonUnsupportedFormat,
			Message: extractionMessageUnsupported,
			Err:     fmt.Errorf("content type %q", contentType),
		}
	}

	result := ExtractionResult{Source: source, ContentType: contentType, Bytes: int64(len(data))}
	switch source {
	case domain.ExtractionSourceText:
		text, err := decodeTextUpload(data)
		if err != nil {
			return result, &ExtractionError{Reason: ExtractionReasonFailed, Message: extractionMessageText, Err: err}
		}
		result.Text = text
	case domain.ExtractionSourceImage:
		text, err := s.recognize(ctx, data)
		if err != nil {
			return result, &ExtractionError{Reason: ExtractionReasonFailed, Message: extractionMessageImage, Err: err}
		}
		result.Text = text
	case domain.ExtractionSourcePDF:
		page, err := s.rasterizer.FirstPage(ctx, data)
		if err != nil {
			return result, &ExtractionError{Reason: ExtractionReasonFailed, Message: extractionMessagePDF, Err: err}
		}
		text, err := s.recognize(ctx, page)
		if err != nil {
			return result, &ExtractionError{Reason: ExtractionReasonFailed, Message: extractionMessagePDF, Err: err}
		}
		result.Text = text
	}
	return result, nil
}

func (s *extractionService) recognize(ctx context.Context, image []byte) (string, error) {
	raw, err := s.engine.Recognize(ctx, image)
	if err != nil {
		return "", err
	}
	line := textutil.FirstNonEmptyLine(raw)
	if line == "" {
		return "", ocr.ErrNoText
	}
	return line, nil
}

func decodeTextUpload(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text file is not valid UTF-8")
	}
	return textutil.StripBOM(string(data)), nil
}

// detectExtractionContentType trusts a specific declared media type and sniffs otherwise.
func detectExtractionContentType(declared string, data []byte) string {
	if mediaType := normaliseMediaType(declared); mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	return normaliseMediaType(http.DetectContentType(data))
}

func normaliseMediaType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(value)
	}
	switch mediaType {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/x-ms-bmp":
		return "image/bmp"
	}
	return mediaType
}
