package service_test

import (
	"fmt"
	"testing"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/service"
)

func TestBuildPlan_Partition(t *testing.T) {
	cases := []struct {
		name      string
		accounts  []domain.Account
		wantPurge int
		wantReset int
	}{
		{name: "empty", accounts: nil},
		{name: "all pending", accounts: generate(5, func(int) bool { return true }), wantPurge: 5},
		{name: "none pending", accounts: generate(5, func(int) bool { return false }), wantReset: 5},
		{name: "alternating", accounts: generate(9, func(i int) bool { return i%2 == 0 }), wantPurge: 5, wantReset: 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := service.BuildPlan(tc.accounts)

			if len(plan.Purge) != tc.wantPurge {
				t.Errorf("expected %d purges, got %d", tc.wantPurge, len(plan.Purge))
			}
			if len(plan.Reset) != tc.wantReset {
				t.Errorf("expected %d resets, got %d", tc.wantReset, len(plan.Reset))
			}
			if plan.Size() != len(tc.accounts) {
				t.Errorf("expected |purge|+|reset| == %d, got %d", len(tc.accounts), plan.Size())
			}

			seen := make(map[string]bool)
			for _, id := range plan.Purge {
				seen[id] = true
			}
			for _, r := range plan.Reset {
				if seen[r.AccountID] {
					t.Errorf("id %s on both lists", r.AccountID)
				}
				if r.Value != 0 {
					t.Errorf("expected reset target 0, got %d", r.Value)
				}
			}
		})
	}
}

func TestBuildPlan_EmptyListsNotNil(t *testing.T) {
	plan := service.BuildPlan(nil)
	if plan.Purge == nil || plan.Reset == nil {
		t.Fatal("expected empty, non-nil lists")
	}
	if !plan.Empty() {
		t.Error("expected empty plan")
	}
}

func TestBuildPlan_DuplicateIDKeepsFirst(t *testing.T) {
	plan := service.BuildPlan([]domain.Account{
		{ID: "dup", DeletionPending: true},
		{ID: "dup", DeletionPending: false},
		{ID: "other"},
	})

	if len(plan.Purge) != 1 || plan.Purge[0] != "dup" {
		t.Errorf("expected dup on purge list, got %v", plan.Purge)
	}
	if len(plan.Reset) != 1 || plan.Reset[0].AccountID != "other" {
		t.Errorf("expected only other on reset list, got %v", plan.Reset)
	}
}

func generate(n int, pending func(int) bool) []domain.Account {
	out := make([]domain.Account, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Account{
			ID:              fmt.Sprintf("acct-%d", i),
			DeletionPending: pending(i),
			UsageCounter:    int64(i * 3),
		})
	}
	return out
}
