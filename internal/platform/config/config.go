// Package config assembles runtime configuration from defaults, a .env file,
// the process environment and Secret Manager references.
package config

import (
	"context"
	"strings"
	"time"
)

const (
	envPrefix = "BRAILLE_"

	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultEnvironment    = "local"
	defaultHistoryLimit   = 50
	defaultSQLitePath     = "braille-history.db"
	defaultMaxUploadBytes = 10 << 20
	defaultOCRLanguage    = "ta"
	defaultPDFDPI         = 144
	defaultSignedURLTTL   = 15 * time.Minute
)

// History backends.
const (
	HistoryBackendFirestore = "firestore"
	HistoryBackendSQLite    = "sqlite"
	HistoryBackendMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	History     HistoryConfig
	Mapping     MappingConfig
	Extraction  ExtractionConfig
	Storage     StorageConfig
	Events      EventsConfig
	Auth        AuthConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for ID token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// HistoryConfig selects where conversion history lives.
type HistoryConfig struct {
	Backend    string
	Limit      int
	SQLitePath string
}

// MappingConfig points at a mapping table asset; empty means the embedded table.
type MappingConfig struct {
	TablePath string
}

// ExtractionConfig bounds uploads and tunes OCR.
type ExtractionConfig struct {
	MaxBytes    int64
	OCRLanguage string
	PDFDPI      int
}

// StorageConfig configures export uploads. Exports stay inline when ExportsBucket is empty.
type StorageConfig struct {
	ExportsBucket string
	SignerKey     string
	SignedURLTTL  time.Duration
}

// EventsConfig configures Pub/Sub publishing; an empty topic disables it.
type EventsConfig struct {
	ProjectID       string
	ConversionTopic string
}

// AuthConfig controls request authentication.
type AuthConfig struct {
	// AnonymousUID, when set, is the owner used for requests without a bearer token.
	AnonymousUID string
}

// Load builds the configuration from defaults, the .env file, the process
// environment and WithEnvMap, in increasing precedence, then resolves secret
// references and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	stack, err := options.layers()
	if err != nil {
		return Config{}, err
	}
	env := &reader{layers: stack}

	cfg := Config{
		Environment: strings.ToLower(env.str("ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         env.str("SERVER_PORT", defaultPort),
			ReadTimeout:  env.duration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("FIRESTORE_EMULATOR_HOST", ""),
		},
		History: HistoryConfig{
			Backend:    strings.ToLower(env.str("HISTORY_BACKEND", HistoryBackendMemory)),
			Limit:      env.integer("HISTORY_LIMIT", defaultHistoryLimit),
			SQLitePath: env.str("HISTORY_SQLITE_PATH", defaultSQLitePath),
		},
		Mapping: MappingConfig{
			TablePath: env.str("MAPPING_TABLE_PATH", ""),
		},
		Extraction: ExtractionConfig{
			MaxBytes:    int64(env.integer("EXTRACTION_MAX_BYTES", defaultMaxUploadBytes)),
			OCRLanguage: env.str("OCR_LANGUAGE", defaultOCRLanguage),
			PDFDPI:      env.integer("OCR_PDF_DPI", defaultPDFDPI),
		},
		Storage: StorageConfig{
			ExportsBucket: env.str("STORAGE_EXPORTS_BUCKET", ""),
			SignerKey:     env.str("STORAGE_SIGNER_KEY", ""),
			SignedURLTTL:  env.duration("STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
		},
		Events: EventsConfig{
			ProjectID:       env.str("PUBSUB_PROJECT_ID", ""),
			ConversionTopic: env.str("PUBSUB_CONVERSION_TOPIC", ""),
		},
		Auth: AuthConfig{
			AnonymousUID: env.str("AUTH_ANONYMOUS_UID", ""),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firestore.ProjectID
	}

	if err := resolveSecrets(ctx, options.secret, options.requiredSecrets,
		secretField{"Storage.SignerKey", &cfg.Storage.SignerKey},
	); err != nil {
		return Config{}, err
	}
	if err := validateConfig(cfg, env.malformed); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config, malformed []string) error {
	invalid := append([]string(nil), malformed...)

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	switch cfg.History.Backend {
	case HistoryBackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case HistoryBackendSQLite:
		if strings.TrimSpace(cfg.History.SQLitePath) == "" {
			invalid = append(invalid, "History.SQLitePath")
		}
	case HistoryBackendMemory:
	default:
		invalid = append(invalid, "History.Backend")
	}
	if cfg.History.Limit <= 0 {
		invalid = append(invalid, "History.Limit")
	}
	if cfg.Extraction.MaxBytes <= 0 {
		invalid = append(invalid, "Extraction.MaxBytes")
	}
	if strings.TrimSpace(cfg.Extraction.OCRLanguage) == "" {
		invalid = append(invalid, "Extraction.OCRLanguage")
	}
	if cfg.Extraction.PDFDPI <= 0 {
		invalid = append(invalid, "Extraction.PDFDPI")
	}
	if cfg.Storage.ExportsBucket != "" {
		if cfg.Storage.SignerKey == "" {
			invalid = append(invalid, "Storage.SignerKey")
		}
		if cfg.Storage.SignedURLTTL <= 0 {
			invalid = append(invalid, "Storage.SignedURLTTL")
		}
	}
	if cfg.Events.ConversionTopic != "" && cfg.Events.ProjectID == "" {
		invalid = append(invalid, "Events.ProjectID")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
