package repositories

import (
	"context"
	"time"

	domain "github.com/tamil-braille/api/internal/domain"
)

// Registry exposes the repositories a backend provides, plus its lifecycle hook.
type Registry interface {
	Close(ctx context.Context) error

	Conversions() ConversionRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ConversionRepository persists conversion history scoped by owner. Records
// owned by someone else behave as missing.
type ConversionRepository interface {
	// SaveWithRetention inserts record and, in the same transaction, deletes
	// the owner's oldest records beyond limit. It returns the evicted ids.
	SaveWithRetention(ctx context.Context, record domain.ConversionRecord, limit int) ([]string, error)
	FindByID(ctx context.Context, ownerID, id string) (domain.ConversionRecord, error)
	// ListRecent returns the owner's records newest first.
	ListRecent(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.ConversionRecord], error)
	Update(ctx context.Context, record domain.ConversionRecord) error
	// ToggleLiked flips Liked and stamps updatedAt in a single atomic step,
	// returning the stored record.
	ToggleLiked(ctx context.Context, ownerID, id string, updatedAt time.Time) (domain.ConversionRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteAll(ctx context.Context, ownerID string) (int, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
