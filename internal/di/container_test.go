package di

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/tamil-braille/api/internal/domain"
	"github.com/tamil-braille/api/internal/platform/config"
	"github.com/tamil-braille/api/internal/platform/ocr"
	"github.com/tamil-braille/api/internal/platform/storage"
	"github.com/tamil-braille/api/internal/repositories"
	"github.com/tamil-braille/api/internal/services"
)

func memoryConfig() config.Config {
	return config.Config{
		Environment: "test",
		History: config.HistoryConfig{
			Backend: config.HistoryBackendMemory,
			Limit:   2,
		},
		Extraction: config.ExtractionConfig{MaxBytes: 1 << 20, OCRLanguage: "ta", PDFDPI: 144},
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), memoryConfig(), nil, Collaborators{}); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestNewContainerMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()

	reg, err := OpenRegistry(ctx, cfg, repositories.DependencyCheck{
		Name:  "mapping",
		Check: func(context.Context) error { return nil },
	})
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	container, err := NewContainer(ctx, cfg, reg, Collaborators{TableSource: "embedded"})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Close(context.Background()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	if container.Services.Extractions == nil {
		t.Fatalf("expected extraction service to be built from the configured language")
	}

	conversions := container.Services.Conversions
	for _, text := range []string{"அ", "ஆ", "இ"} {
		if _, err := conversions.Convert(ctx, services.ConvertCommand{OwnerID: "user-1", Text: text, Save: true}); err != nil {
			t.Fatalf("Convert(%q): %v", text, err)
		}
	}
	page, err := conversions.ListHistory(ctx, "user-1", services.Pagination{PageSize: 10})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(page.Items) != cfg.History.Limit {
		t.Fatalf("expected history capped at %d, got %d", cfg.History.Limit, len(page.Items))
	}

	report, err := container.Services.System.HealthReport(ctx)
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK || report.Environment != "test" {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, name := range []string{"history", "mapping"} {
		if _, ok := report.Checks[name]; !ok {
			t.Fatalf("expected %s check in %v", name, report.Checks)
		}
	}
}

func TestOpenRegistryUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.History.Backend = "cassandra"
	if _, err := OpenRegistry(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOpenRegistrySQLiteBackend(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.History.Backend = config.HistoryBackendSQLite
	cfg.History.SQLitePath = t.TempDir() + "/history.db"

	reg, err := OpenRegistry(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	defer reg.Close(ctx)

	report, err := reg.Health().Collect(ctx)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if check := report.Checks["history"]; check.Status != domain.HealthStatusOK {
		t.Fatalf("expected healthy sqlite history, got %+v", check)
	}
}

type stubExporter struct {
	got  storage.ExportFile
	link storage.ExportLink
	err  error
}

func (s *stubExporter) Export(_ context.Context, file storage.ExportFile) (storage.ExportLink, error) {
	s.got = file
	return s.link, s.err
}

func TestStorageExportUploader(t *testing.T) {
	expires := time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC)
	exporter := &stubExporter{link: storage.ExportLink{Object: "exports/u/r/a.txt", URL: "https://signed", ExpiresAt: expires}}
	uploader := StorageExportUploader{Exporter: exporter}

	link, err := uploader.Upload(context.Background(), services.ExportFile{
		OwnerID:  "u",
		RecordID: "r",
		FileName: "a.txt",
		Content:  []byte("x"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if link.URL != "https://signed" || !link.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected link %+v", link)
	}
	if exporter.got.OwnerID != "u" || string(exporter.got.Content) != "x" {
		t.Fatalf("unexpected exported file %+v", exporter.got)
	}

	exporter.err = errors.New("boom")
	if _, err := uploader.Upload(context.Background(), services.ExportFile{}); err == nil {
		t.Fatalf("expected exporter error to propagate")
	}
}

func TestNewContainerExtractionWithoutOCRSupport(t *testing.T) {
	if ocr.Enabled() {
		t.Skip("tesseract is compiled in")
	}
	ctx := context.Background()
	cfg := memoryConfig()
	reg, err := OpenRegistry(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	container, err := NewContainer(ctx, cfg, reg, Collaborators{})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer container.Close(ctx)

	result, err := container.Services.Extractions.Extract(ctx, services.ExtractionUpload{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Body:        strings.NewReader("வணக்கம்"),
	})
	if err != nil || result.Text != "வணக்கம்" {
		t.Fatalf("expected text upload to succeed, got %+v %v", result, err)
	}

	_, err = container.Services.Extractions.Extract(ctx, services.ExtractionUpload{
		FileName:    "scan.png",
		ContentType: "image/png",
		Body:        strings.NewReader("\x89PNG\r\n\x1a\n"),
	})
	var extractErr *services.ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Reason != services.ExtractionReasonFailed {
		t.Fatalf("expected extraction_failed, got %v", err)
	}
	if !errors.Is(err, ocr.ErrOCRNotEnabled) {
		t.Fatalf("expected ErrOCRNotEnabled in the chain, got %v", err)
	}
}

func TestNewContainerRejectsUnknownOCRLanguage(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Extraction.OCRLanguage = "not a language"
	reg, err := OpenRegistry(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenRegistry: %v", err)
	}
	defer reg.Close(ctx)
	if _, err := NewContainer(ctx, cfg, reg, Collaborators{}); err == nil {
		t.Fatalf("expected error for invalid ocr language")
	}
}
