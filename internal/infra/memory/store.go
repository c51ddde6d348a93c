// Package memory provides in-process record and identity stores for local
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sinc-labs/janitor/internal/domain"
)

// FaultFunc lets callers inject failures. Returning non-nil aborts the call.
type FaultFunc func(op, id string) error

// RecordStore is a map-backed account collection.
type RecordStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	fault    FaultFunc
}

// NewRecordStore creates a record store seeded with accounts.
func NewRecordStore(seed ...domain.Account) *RecordStore {
	s := &RecordStore{accounts: make(map[string]domain.Account, len(seed))}
	for _, a := range seed {
		s.accounts[a.ID] = a
	}
	return s
}

// SetFault installs a fault injector; nil removes it.
func (s *RecordStore) SetFault(f FaultFunc) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

func (s *RecordStore) check(op, id string) error {
	if s.fault == nil {
		return nil
	}
	if err := s.fault(op, id); err != nil {
		return &domain.ErrStoreUnavailable{Store: domain.StoreRecord, Op: op, Err: err}
	}
	return nil
}

// ScanAll returns a copy of every account ordered by id.
func (s *RecordStore) ScanAll(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ErrStoreUnavailable{Store: domain.StoreRecord, Op: "scan", Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("scan", ""); err != nil {
		return nil, err
	}

	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteByID removes an account.
func (s *RecordStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("delete", id); err != nil {
		return err
	}
	if _, ok := s.accounts[id]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	delete(s.accounts, id)
	return nil
}

// UpdateUsageCounter overwrites the usage counter.
func (s *RecordStore) UpdateUsageCounter(ctx context.Context, id string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("update", id); err != nil {
		return err
	}
	a, ok := s.accounts[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	a.UsageCounter = value
	s.accounts[id] = a
	return nil
}

// UpsertAccount creates the account or merges the defaults into it.
func (s *RecordStore) UpsertAccount(ctx context.Context, id string, d domain.WelcomeDefaults) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("upsert", id); err != nil {
		return err
	}
	a, ok := s.accounts[id]
	if !ok {
		a = domain.Account{ID: id, CreatedAt: time.Now().UTC()}
	}
	a.Status = d.Status
	a.BetaApproved = d.BetaApproved
	a.UsageCounter = d.UsageCounter
	a.DeletionPending = d.DeletionPending
	s.accounts[id] = a
	return nil
}

// Get returns one account.
func (s *RecordStore) Get(id string) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// IdentityStore is a set of identity ids.
type IdentityStore struct {
	mu    sync.RWMutex
	ids   map[string]struct{}
	fault FaultFunc
}

// NewIdentityStore creates an identity store holding ids.
func NewIdentityStore(ids ...string) *IdentityStore {
	s := &IdentityStore{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// SetFault installs a fault injector; nil removes it.
func (s *IdentityStore) SetFault(f FaultFunc) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

// DeleteAccountByID removes an identity.
func (s *IdentityStore) DeleteAccountByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fault != nil {
		if err := s.fault("delete", id); err != nil {
			return &domain.ErrStoreUnavailable{Store: domain.StoreIdentity, Op: "delete", Err: err}
		}
	}
	if _, ok := s.ids[id]; !ok {
		return &domain.ErrNotFound{Resource: "identity", ID: id}
	}
	delete(s.ids, id)
	return nil
}

// Has reports whether an identity exists.
func (s *IdentityStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}
