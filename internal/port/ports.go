// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/sinc-labs/janitor/internal/domain"
)

// RecordStore is the primary persisted account collection.
type RecordStore interface {
	// ScanAll returns a snapshot of every account. No id appears twice.
	ScanAll(ctx context.Context) ([]domain.Account, error)
	// DeleteByID removes an account. A missing id yields *domain.ErrNotFound.
	DeleteByID(ctx context.Context, id string) error
	// UpdateUsageCounter overwrites the usage counter and nothing else.
	UpdateUsageCounter(ctx context.Context, id string, value int64) error
}

// AccountProvisioner creates or updates an account with defaulted fields.
// Kept apart from RecordStore because the reconciler never provisions.
type AccountProvisioner interface {
	UpsertAccount(ctx context.Context, id string, defaults domain.WelcomeDefaults) error
}

// IdentityStore is the authentication system, physically separate from the record store.
type IdentityStore interface {
	// DeleteAccountByID removes an identity. A missing id yields *domain.ErrNotFound.
	DeleteAccountByID(ctx context.Context, id string) error
}

// RunLock guards against overlapping runs across processes.
type RunLock interface {
	// TryAcquire returns ok=false without error when the lock is held elsewhere.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Runner executes one reconciliation run.
type Runner interface {
	Run(ctx context.Context) (*domain.RunSummary, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
