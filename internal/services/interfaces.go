package services

import (
	"context"
	"io"
	"time"

	domain "github.com/tamil-braille/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination          = domain.Pagination
	ConversionRecord    = domain.ConversionRecord
	ConversionResult    = domain.ConversionResult
	ConversionExport    = domain.ConversionExport
	UnmappedCharacter   = domain.UnmappedCharacter
	MappingTableSummary = domain.MappingTableSummary
	ExtractionResult    = domain.ExtractionResult
	SystemHealthReport  = domain.SystemHealthReport
)

// ConversionService converts Tamil text and manages each owner's saved history.
type ConversionService interface {
	Convert(ctx context.Context, cmd ConvertCommand) (ConversionResult, error)
	Render(ctx context.Context, cells [][]int) (string, error)
	Visualize(ctx context.Context, cells [][]int) ([]CellMatrix, error)
	ListHistory(ctx context.Context, ownerID string, pager Pagination) (domain.CursorPage[ConversionRecord], error)
	GetConversion(ctx context.Context, ownerID, conversionID string) (ConversionRecord, error)
	DeleteConversion(ctx context.Context, ownerID, conversionID string) error
	ToggleLike(ctx context.Context, ownerID, conversionID string) (ConversionRecord, error)
	ClearHistory(ctx context.Context, ownerID string) (int, error)
	Export(ctx context.Context, ownerID, conversionID string) (ConversionExport, error)
	Table(ctx context.Context) MappingTableSummary
}

// ConvertCommand asks for text to be converted. The result is persisted only
// when Save is set and OwnerID is non-empty.
type ConvertCommand struct {
	OwnerID string
	Text    string
	Save    bool
}

// CellMatrix is the dot layout of one cell, rows top to bottom, left column first.
type CellMatrix [][2]bool

// ExtractionService recovers plain text from an uploaded file.
type ExtractionService interface {
	Extract(ctx context.Context, upload ExtractionUpload) (ExtractionResult, error)
}

// ExtractionUpload describes a file handed in for text extraction. Size is the
// declared length when known; the reader is still bounded by the configured limit.
type ExtractionUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SystemService exposes runtime health for the health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// ConversionEvent is published after a conversion is saved to history.
type ConversionEvent struct {
	RecordID      string    `json:"recordId"`
	OwnerID       string    `json:"ownerId"`
	CellCount     int       `json:"cellCount"`
	UnmappedCount int       `json:"unmappedCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ConversionEventPublisher delivers conversion events to subscribers.
type ConversionEventPublisher interface {
	PublishConversion(ctx context.Context, event ConversionEvent) (string, error)
}

// ExportFile is a rendered download ready for upload.
type ExportFile struct {
	OwnerID     string
	RecordID    string
	FileName    string
	ContentType string
	Content     []byte
}

// ExportLink is where an uploaded export can be downloaded.
type ExportLink struct {
	URL       string
	ExpiresAt time.Time
}

// ExportUploader stores export documents and returns time-limited download links.
type ExportUploader interface {
	Upload(ctx context.Context, file ExportFile) (ExportLink, error)
}

// ConversionMetrics records conversion and extraction counters.
type ConversionMetrics interface {
	RecordConversion(ctx context.Context, cells, unmapped int, saved bool)
	RecordExtraction(ctx context.Context, source, outcome string)
}
