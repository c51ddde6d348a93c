package service

import (
	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/port"
)

const latestRunKey = "run:latest"

// RunHistory keeps recent run summaries for the operator API.
type RunHistory struct {
	cache port.Cache[*domain.RunSummary]
}

// NewRunHistory wraps a TTL cache.
func NewRunHistory(cache port.Cache[*domain.RunSummary]) *RunHistory {
	return &RunHistory{cache: cache}
}

// Record stores a finished run under its id and as the latest run.
func (h *RunHistory) Record(s *domain.RunSummary) {
	h.cache.Set("run:"+s.RunID, s)
	h.cache.Set(latestRunKey, s)
}

// Get returns a run by id.
func (h *RunHistory) Get(runID string) (*domain.RunSummary, error) {
	if s, ok := h.cache.Get("run:" + runID); ok {
		return s, nil
	}
	return nil, &domain.ErrNotFound{Resource: "run", ID: runID}
}

// Latest returns the most recently finished run.
func (h *RunHistory) Latest() (*domain.RunSummary, error) {
	if s, ok := h.cache.Get(latestRunKey); ok {
		return s, nil
	}
	return nil, &domain.ErrNotFound{Resource: "run", ID: "latest"}
}
