package service

import "github.com/sinc-labs/janitor/internal/domain"

// BuildPlan partitions a scan into purge and reset actions in one pass.
// Every distinct id lands on exactly one list. A repeated id keeps its
// first classification so the lists can never overlap.
func BuildPlan(accounts []domain.Account) domain.Plan {
	plan := domain.Plan{
		Purge: make([]string, 0),
		Reset: make([]domain.ResetAction, 0),
	}
	seen := make(map[string]struct{}, len(accounts))

	for _, a := range accounts {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}

		if a.PurgeEligible() {
			plan.Purge = append(plan.Purge, a.ID)
			continue
		}
		plan.Reset = append(plan.Reset, domain.ResetAction{AccountID: a.ID, Value: domain.ResetTarget})
	}
	return plan
}
