package domain

import (
	"sort"
	"time"
)

// ============================================================
// Plans & run summaries
// ============================================================

// ResetTarget is the value every surviving account's usage counter is set to.
const ResetTarget int64 = 0

// Store names used to tag action failures.
const (
	StoreRecord   = "record_store"
	StoreIdentity = "identity_store"
)

// Actions applied by the reconciler.
const (
	ActionDelete = "delete"
	ActionReset  = "reset"
)

// FailureKind classifies an action failure by the store that failed.
type FailureKind string

const (
	KindRecordStoreUnavailable   FailureKind = "RecordStoreUnavailable"
	KindIdentityStoreUnavailable FailureKind = "IdentityStoreUnavailable"
)

// KindForStore maps a store name to its failure kind.
func KindForStore(store string) FailureKind {
	if store == StoreIdentity {
		return KindIdentityStoreUnavailable
	}
	return KindRecordStoreUnavailable
}

// ResetAction overwrites one account's usage counter.
type ResetAction struct {
	AccountID string `json:"account_id"`
	Value     int64  `json:"value"`
}

// Plan is the planner's partition of one scan. Purge and Reset never share an id.
type Plan struct {
	Purge []string      `json:"purge"`
	Reset []ResetAction `json:"reset"`
}

// Size returns the number of planned actions.
func (p Plan) Size() int {
	return len(p.Purge) + len(p.Reset)
}

// Empty reports whether there is nothing to do.
func (p Plan) Empty() bool {
	return p.Size() == 0
}

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusEmpty     RunStatus = "empty"
)

// ActionError records one action that did not complete.
type ActionError struct {
	AccountID string      `json:"account_id"`
	Store     string      `json:"store"`
	Action    string      `json:"action"`
	Kind      FailureKind `json:"kind"`
	Cause     string      `json:"cause"`
}

// RunSummary is produced once per run and is never persisted by the reconciler.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Status      RunStatus     `json:"status"`
	Scanned     int           `json:"scanned"`
	PurgedCount int           `json:"purged_count"`
	ResetCount  int           `json:"reset_count"`
	Errors      []ActionError `json:"errors"`
	ScanError   string        `json:"scan_error,omitempty"`
}

// Duration returns how long the run took.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// SortErrors orders errors by account id, record store before identity store.
func (s *RunSummary) SortErrors() {
	sort.SliceStable(s.Errors, func(i, j int) bool {
		a, b := s.Errors[i], s.Errors[j]
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		if a.Store != b.Store {
			return a.Store == StoreRecord
		}
		return a.Action < b.Action
	})
}

// Finalize stamps the finish time and derives Status from the counters.
func (s *RunSummary) Finalize(now time.Time) {
	s.FinishedAt = now
	if s.Errors == nil {
		s.Errors = []ActionError{}
	}
	switch {
	case s.ScanError != "":
		s.Status = RunStatusFailed
	case s.Scanned == 0:
		s.Status = RunStatusEmpty
	case len(s.Errors) > 0:
		s.Status = RunStatusPartial
	default:
		s.Status = RunStatusSucceeded
	}
}
