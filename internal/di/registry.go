package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/iterator"

	"github.com/tamil-braille/api/internal/platform/config"
	pfirestore "github.com/tamil-braille/api/internal/platform/firestore"
	"github.com/tamil-braille/api/internal/repositories"
	firestoreRepo "github.com/tamil-braille/api/internal/repositories/firestore"
	"github.com/tamil-braille/api/internal/repositories/memory"
	"github.com/tamil-braille/api/internal/repositories/sqlite"
)

const historyCheckTimeout = 1500 * time.Millisecond

type registry struct {
	conversions repositories.ConversionRepository
	health      repositories.HealthRepository
	closers     []func(context.Context) error
}

var _ repositories.Registry = (*registry)(nil)

func (r *registry) Conversions() repositories.ConversionRepository { return r.conversions }

func (r *registry) Health() repositories.HealthRepository { return r.health }

// Close releases backend clients in reverse order of acquisition.
func (r *registry) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// OpenRegistry connects the history backend selected by cfg.History.Backend and
// builds a health repository probing it alongside any extra checks.
func OpenRegistry(ctx context.Context, cfg config.Config, extra ...repositories.DependencyCheck) (repositories.Registry, error) {
	reg := &registry{}

	var historyCheck func(context.Context) error
	switch cfg.History.Backend {
	case config.HistoryBackendMemory, "":
		reg.conversions = memory.NewConversionRepository()
		historyCheck = func(context.Context) error { return nil }
	case config.HistoryBackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.History.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		reg.conversions = repo
		reg.closers = append(reg.closers, func(context.Context) error { return repo.Close() })
		historyCheck = repo.Ping
	case config.HistoryBackendFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		reg.closers = append(reg.closers, provider.Close)
		client, err := provider.Client(ctx)
		if err != nil {
			_ = reg.Close(ctx)
			return nil, fmt.Errorf("dial firestore history: %w", err)
		}
		repo, err := firestoreRepo.NewConversionRepository(provider)
		if err != nil {
			_ = reg.Close(ctx)
			return nil, err
		}
		reg.conversions = repo
		historyCheck = func(ctx context.Context) error {
			_, err := client.Collections(ctx).Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			return err
		}
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}

	checks := make([]repositories.DependencyCheck, 0, len(extra)+1)
	checks = append(checks, repositories.DependencyCheck{
		Name:     "history",
		Timeout:  historyCheckTimeout,
		Critical: true,
		Check:    historyCheck,
	})
	checks = append(checks, extra...)

	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		_ = reg.Close(ctx)
		return nil, err
	}
	reg.health = health
	return reg, nil
}
