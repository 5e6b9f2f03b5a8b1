package domain

import "time"

// ConversionIDPrefix prefixes every persisted conversion identifier.
const ConversionIDPrefix = "cnv_"

// DefaultHistoryLimit is the number of conversions retained per owner.
const DefaultHistoryLimit = 50

// ConversionRecord is one saved Tamil to Braille conversion.
type ConversionRecord struct {
	ID        string
	OwnerID   string
	TamilText string
	// BraillePattern holds each cell as its ascending dot list.
	BraillePattern [][]int
	Liked          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UnmappedCharacter is an input code point the mapping table did not cover.
type UnmappedCharacter struct {
	Position int
	Char     string
}

// ConversionResult is the outcome of converting a piece of text.
type ConversionResult struct {
	Text     string
	Cells    [][]int
	Braille  string
	Unmapped []UnmappedCharacter
	// Record is set when the conversion was saved to history.
	Record *ConversionRecord
}

// ConversionExport is a downloadable rendering of a conversion.
type ConversionExport struct {
	FileName    string
	ContentType string
	Content     []byte
	// URL is a signed download link when the document was uploaded.
	URL       string
	ExpiresAt *time.Time
}

// MappingTableSummary describes the loaded mapping table.
type MappingTableSummary struct {
	Entries      int
	MaxKeyLength int
	Source       string
}

// ExtractionSource identifies how text was obtained from an upload.
type ExtractionSource string

const (
	ExtractionSourceText  ExtractionSource = "text"
	ExtractionSourceImage ExtractionSource = "image"
	ExtractionSourcePDF   ExtractionSource = "pdf"
)

// ExtractionResult carries text recovered from an uploaded file.
type ExtractionResult struct {
	Text        string
	Source      ExtractionSource
	ContentType string
	Bytes       int64
}

// Pagination asks for one page of a listing. PageToken is opaque to callers
// and empty for the first page.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage is one page of a listing; NextPageToken is empty on the last page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
