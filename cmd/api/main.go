package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/tamil-braille/api/internal/braille"
	"github.com/tamil-braille/api/internal/di"
	"github.com/tamil-braille/api/internal/handlers"
	"github.com/tamil-braille/api/internal/platform/auth"
	"github.com/tamil-braille/api/internal/platform/config"
	"github.com/tamil-braille/api/internal/platform/jobs"
	"github.com/tamil-braille/api/internal/platform/observability"
	"github.com/tamil-braille/api/internal/platform/ocr"
	"github.com/tamil-braille/api/internal/platform/pagination"
	"github.com/tamil-braille/api/internal/platform/secrets"
	platformstorage "github.com/tamil-braille/api/internal/platform/storage"
	"github.com/tamil-braille/api/internal/repositories"
	"github.com/tamil-braille/api/internal/services"
)

const (
	shutdownTimeout        = 10 * time.Second
	extractionRateLimit    = 30
	extractionRateWindow   = time.Minute
	firebaseVerifyDeadline = 5 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	table, tableSource, err := loadMappingTable(cfg.Mapping)
	if err != nil {
		logger.Fatal("failed to load mapping table", zap.String("path", cfg.Mapping.TablePath), zap.Error(err))
	}
	logger.Info("mapping table loaded",
		zap.String("source", tableSource),
		zap.Int("entries", table.Len()),
		zap.Int("maxKeyLength", table.MaxKeyLength()),
	)

	registry, err := di.OpenRegistry(ctx, cfg, mappingCheck(table))
	if err != nil {
		logger.Fatal("failed to open history backend", zap.String("backend", cfg.History.Backend), zap.Error(err))
	}

	publisher, stopPublisher, err := newConversionPublisher(ctx, cfg.Events)
	if err != nil {
		logger.Fatal("failed to initialise conversion publisher", zap.Error(err))
	}
	defer stopPublisher()

	exports, closeExports, err := newExportUploader(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise export uploader", zap.Error(err))
	}
	defer closeExports()

	authenticator, err := newAuthenticator(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}

	metrics, err := observability.NewConversionMetrics(nil)
	if err != nil {
		logger.Fatal("failed to register conversion metrics", zap.Error(err))
	}

	collaborators := di.Collaborators{
		Table:       table,
		TableSource: tableSource,
		Publisher:   publisher,
		Exports:     exports,
		Metrics:     metrics,
		Build:       buildInfo,
		Clock:       time.Now,
		Logger: func(component string) func(context.Context, string, map[string]any) {
			return observability.EventLogger(logger, component)
		},
	}
	engine, err := ocr.NewTesseract(cfg.Extraction.OCRLanguage)
	if err != nil {
		logger.Fatal("failed to initialise ocr engine", zap.Error(err))
	}
	if !ocr.Enabled() {
		logger.Warn("ocr support not compiled in; image and pdf uploads will fail")
	}
	collaborators.OCR = engine
	collaborators.Rasterizer = ocr.PDFToPPM{DPI: cfg.Extraction.PDFDPI}

	container, err := di.NewContainer(ctx, cfg, registry, collaborators)
	if err != nil {
		_ = registry.Close(ctx)
		logger.Fatal("failed to assemble services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("history backend close error", zap.Error(err))
		}
	}()

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)
	brailleHandlers := handlers.NewBrailleHandlers(container.Services.Conversions)
	conversionHandlers := handlers.NewConversionHandlers(authenticator, container.Services.Conversions, pagination.DefaultMaxPageSize)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(traceProjectID(cfg)),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithBrailleRoutes(brailleHandlers.Routes),
		handlers.WithConversionRoutes(conversionHandlers.Routes),
	}
	extractionHandlers := handlers.NewExtractionHandlers(
		container.Services.Extractions,
		cfg.Extraction.MaxBytes,
		handlers.WithExtractionRateLimit(extractionRateLimit, extractionRateWindow),
	)
	opts = append(opts, handlers.WithExtractionRoutes(extractionHandlers.Routes))

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("tamil braille api listening",
			zap.String("historyBackend", cfg.History.Backend),
			zap.Bool("ocr", container.Services.Extractions != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func loadMappingTable(cfg config.MappingConfig) (*braille.Table, string, error) {
	path := strings.TrimSpace(cfg.TablePath)
	table, err := braille.LoadTableOrDefault(path)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return table, "embedded", nil
	}
	return table, path, nil
}

func mappingCheck(table *braille.Table) repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name:     "mapping",
		Critical: true,
		Check: func(context.Context) error {
			if table == nil || table.Len() == 0 {
				return errors.New("mapping table is empty")
			}
			return nil
		},
	}
}

func newConversionPublisher(ctx context.Context, cfg config.EventsConfig) (services.ConversionEventPublisher, func(), error) {
	noop := func() {}
	topicName := strings.TrimSpace(cfg.ConversionTopic)
	if topicName == "" {
		return nil, noop, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub client: %w", err)
	}
	publisher, err := jobs.NewPubSubConversionPublisher(client.Topic(topicName))
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return publisher, func() {
		publisher.Stop()
		_ = client.Close()
	}, nil
}

func newExportUploader(ctx context.Context, cfg config.StorageConfig) (services.ExportUploader, func(), error) {
	noop := func() {}
	if strings.TrimSpace(cfg.ExportsBucket) == "" {
		return nil, noop, nil
	}

	signer, err := platformstorage.SignerFromServiceAccountJSON([]byte(strings.TrimSpace(cfg.SignerKey)))
	if err != nil {
		return nil, noop, fmt.Errorf("parse storage signer key: %w", err)
	}
	signedURLs, err := platformstorage.NewClient(signer)
	if err != nil {
		return nil, noop, err
	}

	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		return nil, noop, fmt.Errorf("storage client: %w", err)
	}
	writer, err := platformstorage.NewGCSWriter(client)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	exporter, err := platformstorage.NewExporter(cfg.ExportsBucket, writer, signedURLs, cfg.SignedURLTTL)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return di.StorageExportUploader{Exporter: exporter}, func() { _ = client.Close() }, nil
}

func newAuthenticator(ctx context.Context, cfg config.Config) (*auth.Authenticator, error) {
	opts := []auth.Option{
		auth.WithAnonymousUID(cfg.Auth.AnonymousUID),
		auth.WithVerificationTimeout(firebaseVerifyDeadline),
	}
	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
		return auth.NewAuthenticator(nil, opts...), nil
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(verifier, opts...), nil
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["BRAILLE_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["BRAILLE_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("BRAILLE_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("BRAILLE_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("BRAILLE_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("BRAILLE_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secrets that must resolve for the features the
// environment turns on.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.TrimSpace(env["BRAILLE_STORAGE_EXPORTS_BUCKET"]) != "" {
		required = append(required, "Storage.SignerKey")
	}
	return required
}
