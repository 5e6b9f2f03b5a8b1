package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/tamil-braille/api/internal/braille"
	domain "github.com/tamil-braille/api/internal/domain"
	"github.com/tamil-braille/api/internal/repositories"
)

var (
	errConversionConverterRequired = errors.New("conversion: converter is required")
	errConversionClockRequired     = errors.New("conversion: clock is required")
)

// ErrConversionInvalidInput indicates the caller provided invalid text or cells.
var ErrConversionInvalidInput = errors.New("conversion: invalid input")

// ErrConversionNotFound indicates the conversion does not exist for the caller.
var ErrConversionNotFound = errors.New("conversion: not found")

// ErrConversionUnavailable indicates history storage is missing or failing.
var ErrConversionUnavailable = errors.New("conversion: service unavailable")

// ErrConversionExportDisabled indicates exports cannot be produced because history is not configured.
var ErrConversionExportDisabled = errors.New("conversion: export disabled")

const (
	// MaxConversionTextLength bounds the input, counted in code points.
	MaxConversionTextLength = 10000

	exportContentType = "text/plain; charset=utf-8"
)

// ConversionServiceDeps wires the converter with its optional collaborators.
// Repository may be nil, in which case only stateless operations work.
type ConversionServiceDeps struct {
	Converter    *braille.Converter
	TableSource  string
	Repository   repositories.ConversionRepository
	HistoryLimit int
	Publisher    ConversionEventPublisher
	Exports      ExportUploader
	Metrics      ConversionMetrics
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(context.Context, string, map[string]any)
}

type conversionService struct {
	converter   *braille.Converter
	tableSource string
	repo        repositories.ConversionRepository
	limit       int
	publisher   ConversionEventPublisher
	exports     ExportUploader
	metrics     ConversionMetrics
	now         func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

var _ ConversionService = (*conversionService)(nil)

// NewConversionService constructs a ConversionService with the provided dependencies.
func NewConversionService(deps ConversionServiceDeps) (ConversionService, error) {
	if deps.Converter == nil {
		return nil, errConversionConverterRequired
	}
	clock := deps.Clock
	if clock == nil {
		return nil, errConversionClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	limit := deps.HistoryLimit
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	source := strings.TrimSpace(deps.TableSource)
	if source == "" {
		source = "embedded"
	}

	return &conversionService{
		converter:   deps.Converter,
		tableSource: source,
		repo:        deps.Repository,
		limit:       limit,
		publisher:   deps.Publisher,
		exports:     deps.Exports,
		metrics:     deps.Metrics,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *conversionService) Convert(ctx context.Context, cmd ConvertCommand) (ConversionResult, error) {
	text := cmd.Text
	if strings.TrimSpace(text) == "" {
		return ConversionResult{}, fmt.Errorf("%w: text is required", ErrConversionInvalidInput)
	}
	if n := utf8.RuneCountInString(text); n > MaxConversionTextLength {
		return ConversionResult{}, fmt.Errorf("%w: text has %d characters, limit is %d", ErrConversionInvalidInput, n, MaxConversionTextLength)
	}

	detailed := s.converter.ConvertDetailed(text)
	result := ConversionResult{
		Text:     text,
		Cells:    detailed.Cells.Dots(),
		Braille:  braille.Render(detailed.Cells),
		Unmapped: unmappedCharacters(detailed.Unmapped),
	}
	if len(result.Unmapped) > 0 {
		s.logger(ctx, "conversion.unmapped", map[string]any{
			"count": len(result.Unmapped),
			"first": result.Unmapped[0].Char,
		})
	}

	ownerID := strings.TrimSpace(cmd.OwnerID)
	saved := cmd.Save && ownerID != ""
	if saved {
		record, err := s.save(ctx, ownerID, text, result.Cells)
		if err != nil {
			return ConversionResult{}, err
		}
		result.Record = &record
		s.publish(ctx, ConversionEvent{
			RecordID:      record.ID,
			OwnerID:       record.OwnerID,
			CellCount:     len(result.Cells),
			UnmappedCount: len(result.Unmapped),
			CreatedAt:     record.CreatedAt,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordConversion(ctx, len(result.Cells), len(result.Unmapped), saved)
	}
	return result, nil
}

func (s *conversionService) save(ctx context.Context, ownerID, text string, cells [][]int) (ConversionRecord, error) {
	if s.repo == nil {
		return ConversionRecord{}, fmt.Errorf("%w: history is not configured", ErrConversionUnavailable)
	}
	now := s.now()
	record := ConversionRecord{
		ID:             ensureConversionID(s.newID()),
		OwnerID:        ownerID,
		TamilText:      text,
		BraillePattern: cells,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	evicted, err := s.repo.SaveWithRetention(ctx, record, s.limit)
	if err != nil {
		return ConversionRecord{}, s.mapRepositoryError(err)
	}
	if len(evicted) > 0 {
		s.logger(ctx, "conversion.history.evicted", map[string]any{
			"ownerId": ownerID,
			"evicted": len(evicted),
		})
	}
	return record, nil
}

func (s *conversionService) publish(ctx context.Context, event ConversionEvent) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishConversion(ctx, event); err != nil {
		s.logger(ctx, "conversion.publish.failed", map[string]any{
			"recordId": event.RecordID,
			"error":    err,
		})
	}
}

func (s *conversionService) Render(ctx context.Context, cells [][]int) (string, error) {
	out, err := braille.RenderDots(cells)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionInvalidInput, err)
	}
	return out, nil
}

func (s *conversionService) Visualize(ctx context.Context, cells [][]int) ([]CellMatrix, error) {
	seq, err := braille.SequenceFromDots(cells)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionInvalidInput, err)
	}
	rows := braille.RowsFor(seq)
	matrices := make([]CellMatrix, len(seq))
	for i, cell := range seq {
		matrices[i] = braille.ToMatrix(cell, rows)
	}
	return matrices, nil
}

func (s *conversionService) ListHistory(ctx context.Context, ownerID string, pager Pagination) (domain.CursorPage[ConversionRecord], error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.CursorPage[ConversionRecord]{}, fmt.Errorf("%w: owner id is required", ErrConversionInvalidInput)
	}
	if s.repo == nil {
		return domain.CursorPage[ConversionRecord]{}, fmt.Errorf("%w: history is not configured", ErrConversionUnavailable)
	}
	page, err := s.repo.ListRecent(ctx, ownerID, pager)
	if err != nil {
		return domain.CursorPage[ConversionRecord]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *conversionService) GetConversion(ctx context.Context, ownerID, conversionID string) (ConversionRecord, error) {
	ownerID, conversionID, err := s.requireRecordRef(ownerID, conversionID)
	if err != nil {
		return ConversionRecord{}, err
	}
	record, err := s.repo.FindByID(ctx, ownerID, conversionID)
	if err != nil {
		return ConversionRecord{}, s.mapRepositoryError(err)
	}
	return record, nil
}

func (s *conversionService) DeleteConversion(ctx context.Context, ownerID, conversionID string) error {
	ownerID, conversionID, err := s.requireRecordRef(ownerID, conversionID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, conversionID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *conversionService) ToggleLike(ctx context.Context, ownerID, conversionID string) (ConversionRecord, error) {
	ownerID, conversionID, err := s.requireRecordRef(ownerID, conversionID)
	if err != nil {
		return ConversionRecord{}, err
	}
	record, err := s.repo.ToggleLiked(ctx, ownerID, conversionID, s.now())
	if err != nil {
		return ConversionRecord{}, s.mapRepositoryError(err)
	}
	return record, nil
}

func (s *conversionService) ClearHistory(ctx context.Context, ownerID string) (int, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return 0, fmt.Errorf("%w: owner id is required", ErrConversionInvalidInput)
	}
	if s.repo == nil {
		return 0, fmt.Errorf("%w: history is not configured", ErrConversionUnavailable)
	}
	removed, err := s.repo.DeleteAll(ctx, ownerID)
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}
	s.logger(ctx, "conversion.history.cleared", map[string]any{
		"ownerId": ownerID,
		"removed": removed,
	})
	return removed, nil
}

func (s *conversionService) Export(ctx context.Context, ownerID, conversionID string) (ConversionExport, error) {
	if s.repo == nil {
		return ConversionExport{}, ErrConversionExportDisabled
	}
	record, err := s.GetConversion(ctx, ownerID, conversionID)
	if err != nil {
		return ConversionExport{}, err
	}

	rendered, err := braille.RenderDots(record.BraillePattern)
	if err != nil {
		// A stored pattern that no longer validates is corrupt data, not caller error.
		return ConversionExport{}, fmt.Errorf("conversion: render stored pattern for %s: %w", record.ID, err)
	}

	export := ConversionExport{
		FileName:    fmt.Sprintf("braille-%d.txt", s.now().UnixMilli()),
		ContentType: exportContentType,
		Content:     []byte(exportDocument(record.TamilText, rendered)),
	}
	if s.exports == nil {
		return export, nil
	}

	link, err := s.exports.Upload(ctx, ExportFile{
		OwnerID:     record.OwnerID,
		RecordID:    record.ID,
		FileName:    export.FileName,
		ContentType: export.ContentType,
		Content:     export.Content,
	})
	if err != nil {
		s.logger(ctx, "conversion.export.failed", map[string]any{
			"recordId": record.ID,
			"error":    err,
		})
		return ConversionExport{}, fmt.Errorf("%w: upload export: %v", ErrConversionUnavailable, err)
	}
	expires := link.ExpiresAt.UTC()
	export.URL = link.URL
	export.ExpiresAt = &expires
	export.Content = nil
	return export, nil
}

func (s *conversionService) Table(ctx context.Context) MappingTableSummary {
	table := s.converter.Table()
	return MappingTableSummary{
		Entries:      table.Len(),
		MaxKeyLength: table.MaxKeyLength(),
		Source:       s.tableSource,
	}
}

func (s *conversionService) requireRecordRef(ownerID, conversionID string) (string, string, error) {
	ownerID = strings.TrimSpace(ownerID)
	conversionID = strings.TrimSpace(conversionID)
	if ownerID == "" || conversionID == "" {
		return "", "", fmt.Errorf("%w: owner id and conversion id are required", ErrConversionInvalidInput)
	}
	if s.repo == nil {
		return "", "", fmt.Errorf("%w: history is not configured", ErrConversionUnavailable)
	}
	return ownerID, conversionID, nil
}

func (s *conversionService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrConversionNotFound
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrConversionUnavailable, err)
		}
	}
	return fmt.Errorf("conversion: %w", err)
}

func exportDocument(text, rendered string) string {
	var b strings.Builder
	b.Grow(len(text) + len(rendered) + 32)
	b.WriteString("Tamil Text:\n")
	b.WriteString(text)
	b.WriteString("\n\nBraille:\n")
	b.WriteString(rendered)
	return b.String()
}

func unmappedCharacters(in []braille.Unmapped) []UnmappedCharacter {
	if len(in) == 0 {
		return nil
	}
	out := make([]UnmappedCharacter, len(in))
	for i, miss := range in {
		out[i] = UnmappedCharacter{Position: miss.Position, Char: string(miss.Char)}
	}
	return out
}

func ensureConversionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		id = ulid.Make().String()
	}
	if strings.HasPrefix(id, domain.ConversionIDPrefix) {
		return id
	}
	return domain.ConversionIDPrefix + strings.ToLower(id)
}
