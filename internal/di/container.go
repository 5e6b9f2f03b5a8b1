package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tamil-braille/api/internal/braille"
	"github.com/tamil-braille/api/internal/platform/config"
	"github.com/tamil-braille/api/internal/platform/ocr"
	"github.com/tamil-braille/api/internal/platform/storage"
	"github.com/tamil-braille/api/internal/repositories"
	"github.com/tamil-braille/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Conversions services.ConversionService
	Extractions services.ExtractionService
	System      services.SystemService
}

// Collaborators carries the optional infrastructure built by the entry point.
// Nil fields disable the matching feature, except OCR and Rasterizer which
// fall back to the configured Tesseract engine and pdftoppm.
type Collaborators struct {
	Table       *braille.Table
	TableSource string
	Publisher   services.ConversionEventPublisher
	Exports     services.ExportUploader
	Metrics     services.ConversionMetrics
	OCR         ocr.Engine
	Rasterizer  ocr.Rasterizer
	Build       services.BuildInfo
	Clock       func() time.Time
	Logger      func(component string) func(context.Context, string, map[string]any)
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can pass a registry
// opened against the memory backend.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Collaborators) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, reg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, reg repositories.Registry, deps Collaborators) (Services, error) {
	var svc Services

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := func(component string) func(context.Context, string, map[string]any) {
		if deps.Logger == nil {
			return nil
		}
		return deps.Logger(component)
	}

	table := deps.Table
	if table == nil {
		var err error
		if table, err = braille.DefaultTable(); err != nil {
			return Services{}, fmt.Errorf("load default mapping table: %w", err)
		}
	}
	converter, err := braille.NewConverter(table)
	if err != nil {
		return Services{}, fmt.Errorf("build converter: %w", err)
	}

	conversionSvc, err := services.NewConversionService(services.ConversionServiceDeps{
		Converter:    converter,
		TableSource:  deps.TableSource,
		Repository:   reg.Conversions(),
		HistoryLimit: cfg.History.Limit,
		Publisher:    deps.Publisher,
		Exports:      deps.Exports,
		Metrics:      deps.Metrics,
		Clock:        clock,
		Logger:       logger("conversion"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build conversion service: %w", err)
	}
	svc.Conversions = conversionSvc

	engine := deps.OCR
	if engine == nil {
		// Builds without the ocr tag get the stub, so text uploads keep working
		// and image or PDF uploads fail as extraction_failed.
		tesseract, err := ocr.NewTesseract(cfg.Extraction.OCRLanguage)
		if err != nil {
			return Services{}, fmt.Errorf("build ocr engine: %w", err)
		}
		engine = tesseract
	}
	rasterizer := deps.Rasterizer
	if rasterizer == nil {
		rasterizer = ocr.PDFToPPM{DPI: cfg.Extraction.PDFDPI}
	}
	extractionSvc, err := services.NewExtractionService(services.ExtractionServiceDeps{
		OCR:        engine,
		Rasterizer: rasterizer,
		MaxBytes:   cfg.Extraction.MaxBytes,
		Metrics:    deps.Metrics,
		Logger:     logger("extraction"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build extraction service: %w", err)
	}
	svc.Extractions = extractionSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Environment
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// StorageExportUploader adapts a storage.Exporter to services.ExportUploader.
type StorageExportUploader struct {
	Exporter interface {
		Export(ctx context.Context, file storage.ExportFile) (storage.ExportLink, error)
	}
}

var _ services.ExportUploader = StorageExportUploader{}

// Upload stores file and returns its signed link.
func (u StorageExportUploader) Upload(ctx context.Context, file services.ExportFile) (services.ExportLink, error) {
	if u.Exporter == nil {
		return services.ExportLink{}, errors.New("export uploader: exporter is required")
	}
	link, err := u.Exporter.Export(ctx, storage.ExportFile{
		OwnerID:     file.OwnerID,
		RecordID:    file.RecordID,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Content:     file.Content,
	})
	if err != nil {
		return services.ExportLink{}, err
	}
	return services.ExportLink{URL: link.URL, ExpiresAt: link.ExpiresAt}, nil
}
