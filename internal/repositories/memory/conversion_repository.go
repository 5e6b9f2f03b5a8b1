// Package memory is the process-local history backend used for local runs and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domain "github.com/tamil-braille/api/internal/domain"
	"github.com/tamil-braille/api/internal/platform/pagination"
	"github.com/tamil-braille/api/internal/repositories"
)

// Error satisfies repositories.RepositoryError.
type Error struct {
	op       string
	notFound bool
	conflict bool
}

func (e *Error) Error() string {
	switch {
	case e.notFound:
		return e.op + ": conversion not found"
	case e.conflict:
		return e.op + ": conversion already exists"
	}
	return e.op + ": failed"
}

func (e *Error) IsNotFound() bool    { return e.notFound }
func (e *Error) IsConflict() bool    { return e.conflict }
func (e *Error) IsUnavailable() bool { return false }

// ConversionRepository keeps each owner's history sorted newest first.
type ConversionRepository struct {
	mu      sync.RWMutex
	byOwner map[string][]domain.ConversionRecord
}

var _ repositories.ConversionRepository = (*ConversionRepository)(nil)

// NewConversionRepository returns an empty repository.
func NewConversionRepository() *ConversionRepository {
	return &ConversionRepository{byOwner: make(map[string][]domain.ConversionRecord)}
}

func (r *ConversionRepository) SaveWithRetention(ctx context.Context, record domain.ConversionRecord, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if record.ID == "" || record.OwnerID == "" {
		return nil, errors.New("memory: id and owner are required")
	}
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.byOwner[record.OwnerID]
	for _, existing := range records {
		if existing.ID == record.ID {
			return nil, &Error{op: "conversions.save", conflict: true}
		}
	}
	records = append(records, clone(record))
	sort.SliceStable(records, func(i, j int) bool { return newer(records[i], records[j]) })

	var evicted []string
	if len(records) > limit {
		for _, stale := range records[limit:] {
			evicted = append(evicted, stale.ID)
		}
		records = records[:limit:limit]
	}
	r.byOwner[record.OwnerID] = records
	return evicted, nil
}

func (r *ConversionRepository) FindByID(ctx context.Context, ownerID, id string) (domain.ConversionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConversionRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, record := range r.byOwner[ownerID] {
		if record.ID == id {
			return clone(record), nil
		}
	}
	return domain.ConversionRecord{}, &Error{op: "conversions.get", notFound: true}
}

func (r *ConversionRepository) ListRecent(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.ConversionRecord], error) {
	var page domain.CursorPage[domain.ConversionRecord]
	if err := ctx.Err(); err != nil {
		return page, err
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return page, err
	}
	size := pager.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, record := range r.byOwner[ownerID] {
		if !cursor.After(record.CreatedAt, record.ID) {
			continue
		}
		if len(page.Items) == size {
			last := page.Items[size-1]
			page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, clone(record))
	}
	return page, nil
}

func (r *ConversionRepository) Update(ctx context.Context, record domain.ConversionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.byOwner[record.OwnerID]
	for i := range records {
		if records[i].ID == record.ID {
			records[i].Liked = record.Liked
			records[i].UpdatedAt = record.UpdatedAt
			return nil
		}
	}
	return &Error{op: "conversions.update", notFound: true}
}

func (r *ConversionRepository) ToggleLiked(ctx context.Context, ownerID, id string, updatedAt time.Time) (domain.ConversionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConversionRecord{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.byOwner[ownerID]
	for i := range records {
		if records[i].ID == id {
			records[i].Liked = !records[i].Liked
			records[i].UpdatedAt = updatedAt
			return clone(records[i]), nil
		}
	}
	return domain.ConversionRecord{}, &Error{op: "conversions.like", notFound: true}
}

func (r *ConversionRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.byOwner[ownerID]
	for i := range records {
		if records[i].ID == id {
			r.byOwner[ownerID] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return &Error{op: "conversions.delete", notFound: true}
}

func (r *ConversionRepository) DeleteAll(ctx context.Context, ownerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.byOwner[ownerID])
	delete(r.byOwner, ownerID)
	return n, nil
}

func newer(a, b domain.ConversionRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func clone(record domain.ConversionRecord) domain.ConversionRecord {
	pattern := make([][]int, len(record.BraillePattern))
	for i, dots := range record.BraillePattern {
		pattern[i] = append([]int{}, dots...)
	}
	record.BraillePattern = pattern
	return record
}
