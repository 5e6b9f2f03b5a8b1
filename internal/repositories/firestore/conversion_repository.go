package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/tamil-braille/api/internal/domain"
	pfirestore "github.com/tamil-braille/api/internal/platform/firestore"
	"github.com/tamil-braille/api/internal/platform/pagination"
	"github.com/tamil-braille/api/internal/repositories"
)

const conversionsCollection = "brailleConversions"

// ConversionRepository stores conversion history in Firestore. Queries filter
// on ownerId and order by createdAt and document id, which needs a composite index.
type ConversionRepository struct {
	coll     *pfirestore.Collection[domain.ConversionRecord]
	provider *pfirestore.Provider
}

var _ repositories.ConversionRepository = (*ConversionRepository)(nil)

// NewConversionRepository constructs a Firestore-backed conversion repository.
func NewConversionRepository(provider *pfirestore.Provider) (*ConversionRepository, error) {
	if provider == nil {
		return nil, errors.New("conversion repository: firestore provider is required")
	}
	encode := func(record domain.ConversionRecord) (any, error) {
		return encodeConversion(record), nil
	}
	decode := func(snap *firestore.DocumentSnapshot) (domain.ConversionRecord, error) {
		var doc conversionDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.ConversionRecord{}, err
		}
		return decodeConversion(snap.Ref.ID, doc), nil
	}
	return &ConversionRepository{
		coll:     pfirestore.NewCollection[domain.ConversionRecord](provider, conversionsCollection, encode, decode),
		provider: provider,
	}, nil
}

// SaveWithRetention creates the record and evicts the owner's oldest records
// beyond limit in one transaction.
func (r *ConversionRepository) SaveWithRetention(ctx context.Context, record domain.ConversionRecord, limit int) ([]string, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.OwnerID = strings.TrimSpace(record.OwnerID)
	if record.ID == "" || record.OwnerID == "" {
		return nil, errors.New("conversion repository: id and owner are required")
	}
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	ref, err := r.coll.Doc(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	payload, err := r.coll.Encode(record)
	if err != nil {
		return nil, err
	}

	var evicted []string
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		evicted = evicted[:0]
		// The new record takes one slot, so only limit-1 existing ones survive.
		stale, err := r.coll.QueryTx(ctx, tx, func(q firestore.Query) firestore.Query {
			return ownerQuery(q, record.OwnerID).Offset(limit - 1)
		})
		if err != nil {
			return err
		}
		if err := tx.Create(ref, payload); err != nil {
			return err
		}
		for _, doc := range stale {
			staleRef, err := r.coll.Doc(ctx, doc.ID)
			if err != nil {
				return err
			}
			if err := tx.Delete(staleRef); err != nil {
				return err
			}
			evicted = append(evicted, doc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, pfirestore.WrapError("brailleConversions.save", err)
	}
	return evicted, nil
}

// FindByID loads the owner's record.
func (r *ConversionRepository) FindByID(ctx context.Context, ownerID, id string) (domain.ConversionRecord, error) {
	doc, err := r.coll.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ConversionRecord{}, err
	}
	if doc.Data.OwnerID != ownerID {
		return domain.ConversionRecord{}, pfirestore.NotFound("brailleConversions.get", "conversion not found")
	}
	return doc.Data, nil
}

// ListRecent pages the owner's records newest first.
func (r *ConversionRepository) ListRecent(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.ConversionRecord], error) {
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.ConversionRecord]{}, err
	}
	size := pager.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}

	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		q = ownerQuery(q, ownerID)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.ConversionRecord]{}, err
	}

	page := domain.CursorPage[domain.ConversionRecord]{Items: make([]domain.ConversionRecord, 0, min(len(docs), size))}
	for i, doc := range docs {
		if i == size {
			last := page.Items[size-1]
			page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, doc.Data)
	}
	return page, nil
}

// Update persists the mutable fields of an existing record.
func (r *ConversionRepository) Update(ctx context.Context, record domain.ConversionRecord) error {
	ref, err := r.coll.Doc(ctx, record.ID)
	if err != nil {
		return err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := r.coll.Decode(snap)
		if err != nil {
			return err
		}
		if current.Data.OwnerID != record.OwnerID {
			return pfirestore.NotFound("brailleConversions.update", "conversion not found")
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "liked", Value: record.Liked},
			{Path: "updatedAt", Value: record.UpdatedAt.UTC()},
		})
	})
	return pfirestore.WrapError("brailleConversions.update", err)
}

// ToggleLiked flips the liked flag inside a transaction, so concurrent toggles
// each take effect.
func (r *ConversionRepository) ToggleLiked(ctx context.Context, ownerID, id string, updatedAt time.Time) (domain.ConversionRecord, error) {
	ref, err := r.coll.Doc(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ConversionRecord{}, err
	}
	var record domain.ConversionRecord
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := r.coll.Decode(snap)
		if err != nil {
			return err
		}
		if current.Data.OwnerID != ownerID {
			return pfirestore.NotFound("brailleConversions.like", "conversion not found")
		}
		record = current.Data
		record.Liked = !record.Liked
		record.UpdatedAt = updatedAt.UTC()
		return tx.Update(ref, []firestore.Update{
			{Path: "liked", Value: record.Liked},
			{Path: "updatedAt", Value: record.UpdatedAt},
		})
	})
	if err != nil {
		return domain.ConversionRecord{}, pfirestore.WrapError("brailleConversions.like", err)
	}
	return record, nil
}

// Delete removes the owner's record.
func (r *ConversionRepository) Delete(ctx context.Context, ownerID, id string) error {
	ref, err := r.coll.Doc(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if owner, _ := snap.DataAt("ownerId"); owner != ownerID {
			return pfirestore.NotFound("brailleConversions.delete", "conversion not found")
		}
		return tx.Delete(ref)
	})
	return pfirestore.WrapError("brailleConversions.delete", err)
}

// DeleteAll removes every record the owner has.
func (r *ConversionRepository) DeleteAll(ctx context.Context, ownerID string) (int, error) {
	docs, err := r.coll.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerId", "==", ownerID)
	})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	writer := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		ref, err := r.coll.Doc(ctx, doc.ID)
		if err != nil {
			return 0, err
		}
		job, err := writer.Delete(ref)
		if err != nil {
			return 0, pfirestore.WrapError("brailleConversions.clear", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, pfirestore.WrapError("brailleConversions.clear", err)
		}
		deleted++
	}
	return deleted, nil
}

func ownerQuery(q firestore.Query, ownerID string) firestore.Query {
	return q.Where("ownerId", "==", ownerID).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)
}

// Firestore rejects nested arrays, so each cell is wrapped in a map.
type cellDocument struct {
	Dots []int `firestore:"dots"`
}

type conversionDocument struct {
	OwnerID        string         `firestore:"ownerId"`
	TamilText      string         `firestore:"tamilText"`
	BraillePattern []cellDocument `firestore:"braillePattern"`
	Liked          bool           `firestore:"liked"`
	CreatedAt      time.Time      `firestore:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt"`
}

func encodeConversion(record domain.ConversionRecord) conversionDocument {
	cells := make([]cellDocument, len(record.BraillePattern))
	for i, dots := range record.BraillePattern {
		cells[i] = cellDocument{Dots: append([]int{}, dots...)}
	}
	return conversionDocument{
		OwnerID:        record.OwnerID,
		TamilText:      record.TamilText,
		BraillePattern: cells,
		Liked:          record.Liked,
		CreatedAt:      record.CreatedAt.UTC(),
		UpdatedAt:      record.UpdatedAt.UTC(),
	}
}

func decodeConversion(id string, doc conversionDocument) domain.ConversionRecord {
	pattern := make([][]int, len(doc.BraillePattern))
	for i, cell := range doc.BraillePattern {
		pattern[i] = append([]int{}, cell.Dots...)
	}
	return domain.ConversionRecord{
		ID:             id,
		OwnerID:        doc.OwnerID,
		TamilText:      doc.TamilText,
		BraillePattern: pattern,
		Liked:          doc.Liked,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
}
