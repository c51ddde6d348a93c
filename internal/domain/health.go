package domain

import "time"

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LastChecked string `json:"lastChecked"`
	Detail      string `json:"detail,omitempty"`
}

// JanitorMetrics is returned by GET /v1/metrics/janitor.
type JanitorMetrics struct {
	RunsSucceeded       int64     `json:"runsSucceeded"`
	RunsPartial         int64     `json:"runsPartial"`
	RunsFailed          int64     `json:"runsFailed"`
	RunsEmpty           int64     `json:"runsEmpty"`
	RecordStoreErrors   int64     `json:"recordStoreErrors"`
	IdentityStoreErrors int64     `json:"identityStoreErrors"`
	LastRunFinishedAt   time.Time `json:"lastRunFinishedAt"`
	LastRunPurgedCount  int64     `json:"lastRunPurgedCount"`
	LastRunResetCount   int64     `json:"lastRunResetCount"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
