package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// AccountStatus is informational; the janitor never changes it.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
)

// Account is one end user as held by the record store.
type Account struct {
	ID              string        `json:"id" db:"id"`
	Status          AccountStatus `json:"status" db:"status"`
	DeletionPending bool          `json:"deletion_pending" db:"deletion_pending"`
	UsageCounter    int64         `json:"tokens_used" db:"usage_counter"`
	BetaApproved    bool          `json:"is_beta_approved" db:"beta_approved"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
}

// PurgeEligible reports whether the account must be removed from both stores.
func (a Account) PurgeEligible() bool {
	return a.DeletionPending
}

// WelcomeDefaults are the fields written by the create-or-update welcome
// operation. Fields not listed here are left untouched on existing records.
type WelcomeDefaults struct {
	Status          AccountStatus `json:"status"`
	BetaApproved    bool          `json:"is_beta_approved"`
	UsageCounter    int64         `json:"tokens_used"`
	DeletionPending bool          `json:"deletion_pending"`
}

// DefaultWelcome returns the defaults applied to a newly signed-up account.
func DefaultWelcome() WelcomeDefaults {
	return WelcomeDefaults{
		Status:          AccountStatusActive,
		BetaApproved:    true,
		UsageCounter:    0,
		DeletionPending: false,
	}
}
