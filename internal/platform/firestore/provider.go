// Package firestore shares one Firestore client across repositories and maps
// its gRPC errors onto repository error categories.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tamil-braille/api/internal/platform/config"
)

const (
	dialTimeout = 10 * time.Second
	// Upper bound for one transaction including retries.
	txTimeout  = 15 * time.Second
	txAttempts = 5
)

// ErrProviderClosed is returned by Client after Close.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider dials the Firestore client on first use and hands the same client
// to every caller until Close.
type Provider struct {
	projectID    string
	emulatorHost string

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// NewProvider reads the project from cfg, falling back to GOOGLE_CLOUD_PROJECT,
// and the emulator host from cfg, falling back to FIRESTORE_EMULATOR_HOST.
func NewProvider(cfg config.FirestoreConfig) *Provider {
	return &Provider{
		projectID:    firstSet(cfg.ProjectID, os.Getenv("GOOGLE_CLOUD_PROJECT")),
		emulatorHost: firstSet(cfg.EmulatorHost, os.Getenv("FIRESTORE_EMULATOR_HOST")),
	}
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Client returns the shared client.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	case p.projectID == "":
		return nil, errors.New("firestore: project id is required")
	}

	var opts []option.ClientOption
	if p.emulatorHost != "" {
		opts = append(opts,
			option.WithEndpoint(p.emulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := firestore.NewClient(dialCtx, p.projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: dial project %s: %w", p.projectID, err)
	}
	p.client = client
	return client, nil
}

// Close closes the client, giving up when ctx ends first. The provider cannot
// be used afterwards.
func (p *Provider) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	client := p.client
	p.client, p.closed = nil, true
	p.mu.Unlock()
	if client == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- client.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunTransaction runs fn in a transaction on the shared client. fn may be
// retried, so it must not have side effects outside tx.
func (p *Provider) RunTransaction(ctx context.Context, fn func(context.Context, *firestore.Transaction) error) error {
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}
	client, err := p.Client(ctx)
	if err != nil {
		return WrapError("transaction", err)
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > txTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, txTimeout)
		defer cancel()
	}
	return WrapError("transaction", client.RunTransaction(ctx, fn, firestore.MaxAttempts(txAttempts)))
}
