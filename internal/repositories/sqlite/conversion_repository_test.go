package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/tamil-braille/api/internal/domain"
	"github.com/tamil-braille/api/internal/repositories"
)

func newTestRepository(t *testing.T) *ConversionRepository {
	t.Helper()
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func record(owner string, i int) domain.ConversionRecord {
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second)
	return domain.ConversionRecord{
		ID:             fmt.Sprintf("cnv_%s_%03d", owner, i),
		OwnerID:        owner,
		TamilText:      "தமிழ்",
		BraillePattern: [][]int{{2, 3, 4, 5}, {1, 3, 4}, {2, 4}, {4}, {1, 2, 3, 5, 6}},
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestSaveWithRetentionKeepsNewest(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var evicted []string
	for i := 0; i < 55; i++ {
		out, err := repo.SaveWithRetention(ctx, record("u1", i), domain.DefaultHistoryLimit)
		require.NoError(t, err)
		evicted = append(evicted, out...)
	}
	require.Equal(t, []string{"cnv_u1_000", "cnv_u1_001", "cnv_u1_002", "cnv_u1_003", "cnv_u1_004"}, evicted)

	page, err := repo.ListRecent(ctx, "u1", domain.Pagination{PageSize: 50})
	require.NoError(t, err)
	require.Len(t, page.Items, 50)
	require.Equal(t, "cnv_u1_054", page.Items[0].ID)
	require.Equal(t, "cnv_u1_005", page.Items[49].ID)
	require.Empty(t, page.NextPageToken)

	// Another owner's history is untouched by u1's retention.
	_, err = repo.SaveWithRetention(ctx, record("u2", 0), domain.DefaultHistoryLimit)
	require.NoError(t, err)
	other, err := repo.ListRecent(ctx, "u2", domain.Pagination{})
	require.NoError(t, err)
	require.Len(t, other.Items, 1)
}

func TestListRecentPages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := repo.SaveWithRetention(ctx, record("u1", i), 50)
		require.NoError(t, err)
	}

	first, err := repo.ListRecent(ctx, "u1", domain.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"cnv_u1_004", "cnv_u1_003"}, ids(first.Items))
	require.NotEmpty(t, first.NextPageToken)

	second, err := repo.ListRecent(ctx, "u1", domain.Pagination{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Equal(t, []string{"cnv_u1_002", "cnv_u1_001"}, ids(second.Items))

	third, err := repo.ListRecent(ctx, "u1", domain.Pagination{PageSize: 2, PageToken: second.NextPageToken})
	require.NoError(t, err)
	require.Equal(t, []string{"cnv_u1_000"}, ids(third.Items))
	require.Empty(t, third.NextPageToken)
}

func TestFindUpdateDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	rec := record("u1", 1)
	_, err := repo.SaveWithRetention(ctx, rec, 50)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, "u1", rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.BraillePattern, got.BraillePattern)
	require.Equal(t, rec.TamilText, got.TamilText)
	require.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	require.False(t, got.Liked)

	got.Liked = true
	got.UpdatedAt = got.UpdatedAt.Add(time.Minute)
	require.NoError(t, repo.Update(ctx, got))
	again, err := repo.FindByID(ctx, "u1", rec.ID)
	require.NoError(t, err)
	require.True(t, again.Liked)

	_, err = repo.FindByID(ctx, "intruder", rec.ID)
	requireNotFound(t, err)
	requireNotFound(t, repo.Delete(ctx, "intruder", rec.ID))

	require.NoError(t, repo.Delete(ctx, "u1", rec.ID))
	requireNotFound(t, repo.Delete(ctx, "u1", rec.ID))
}

func TestDuplicateIDConflicts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	_, err := repo.SaveWithRetention(ctx, record("u1", 1), 50)
	require.NoError(t, err)

	_, err = repo.SaveWithRetention(ctx, record("u1", 1), 50)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsConflict())
}

func TestDeleteAll(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := repo.SaveWithRetention(ctx, record("u1", i), 50)
		require.NoError(t, err)
	}
	_, err := repo.SaveWithRetention(ctx, record("u2", 0), 50)
	require.NoError(t, err)

	n, err := repo.DeleteAll(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	page, err := repo.ListRecent(ctx, "u2", domain.Pagination{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NoError(t, repo.Ping(ctx))
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr), "expected repository error, got %v", err)
	require.True(t, repoErr.IsNotFound())
}

func ids(records []domain.ConversionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestToggleLikedCountsEveryFlip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	rec := record("u1", 1)
	_, err := repo.SaveWithRetention(ctx, rec, 50)
	require.NoError(t, err)

	stamp := rec.CreatedAt.Add(time.Hour)
	first, err := repo.ToggleLiked(ctx, "u1", rec.ID, stamp)
	require.NoError(t, err)
	require.True(t, first.Liked)
	require.True(t, stamp.Equal(first.UpdatedAt))
	require.Equal(t, rec.TamilText, first.TamilText)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ToggleLiked(ctx, "u1", rec.ID, stamp)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.FindByID(ctx, "u1", rec.ID)
	require.NoError(t, err)
	require.True(t, got.Liked, "21 flips must leave the record liked")

	_, err = repo.ToggleLiked(ctx, "intruder", rec.ID, stamp)
	requireNotFound(t, err)
}
