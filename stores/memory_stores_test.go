package stores

import (
	"context"
	"testing"
	"time"

	policyengine "github.com/mraaron360/RBAC-AND-ABAC"
)

func seedDecisions(t *testing.T) *MemoryDecisionStore {
	t.Helper()
	s := NewMemoryDecisionStore()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	recs := []*policyengine.DecisionRecord{
		{ID: "r1", Timestamp: base, Decision: policyengine.PolicyDecision{
			UserID: "u-1", App: "salesforce", Permission: "standard", Effect: policyengine.EffectAllow, MatchedPolicy: "p1"}},
		{ID: "r2", Timestamp: base.Add(time.Hour), Decision: policyengine.PolicyDecision{
			UserID: "u-2", App: "salesforce", Permission: "admin", Effect: policyengine.EffectDeny, MatchedPolicy: "p2"}},
		{ID: "r3", Timestamp: base.Add(2 * time.Hour), Decision: policyengine.PolicyDecision{
			UserID: "u-1", App: "wiki", Permission: "read", Effect: policyengine.EffectAllow, MatchedPolicy: "p3"}},
	}
	for _, r := range recs {
		if err := s.LogDecision(context.Background(), r); err != nil {
			t.Fatalf("log: %v", err)
		}
	}
	return s
}

func TestMemoryDecisionStoreFilters(t *testing.T) {
	s := seedDecisions(t)
	ctx := context.Background()

	all, err := s.ListDecisions(ctx, policyengine.DecisionFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %d err %v", len(all), err)
	}

	byUser, _ := s.ListDecisions(ctx, policyengine.DecisionFilter{UserID: "u-1"})
	if len(byUser) != 2 {
		t.Fatalf("by user = %d, want 2", len(byUser))
	}

	byApp, _ := s.ListDecisions(ctx, policyengine.DecisionFilter{App: "wiki"})
	if len(byApp) != 1 || byApp[0].ID != "r3" {
		t.Fatalf("by app = %+v", byApp)
	}

	byEffect, _ := s.ListDecisions(ctx, policyengine.DecisionFilter{Effect: policyengine.EffectDeny})
	if len(byEffect) != 1 || byEffect[0].ID != "r2" {
		t.Fatalf("by effect = %+v", byEffect)
	}

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	byWindow, _ := s.ListDecisions(ctx, policyengine.DecisionFilter{
		Start: base.Add(30 * time.Minute),
		End:   base.Add(90 * time.Minute),
	})
	if len(byWindow) != 1 || byWindow[0].ID != "r2" {
		t.Fatalf("by window = %+v", byWindow)
	}

	limited, _ := s.ListDecisions(ctx, policyengine.DecisionFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("limited = %d, want 2", len(limited))
	}
}

func TestMemoryAssignmentStore(t *testing.T) {
	s := NewMemoryAssignmentStore()
	ctx := context.Background()

	if _, err := s.GetAssignment(ctx, "u-1"); err == nil {
		t.Fatal("expected an error for an unknown user")
	}

	a := &policyengine.Assignment{UserID: "u-1", Roles: []string{"r"}, Entitlements: []string{"e"}}
	if err := s.SaveAssignment(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetAssignment(ctx, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u-1" || len(got.Roles) != 1 || got.Roles[0] != "r" {
		t.Fatalf("got = %+v", got)
	}

	// Saving again replaces the previous assignment.
	if err := s.SaveAssignment(ctx, &policyengine.Assignment{UserID: "u-1", Roles: []string{"r2"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = s.GetAssignment(ctx, "u-1")
	if len(got.Roles) != 1 || got.Roles[0] != "r2" {
		t.Fatalf("got = %+v, want replaced roles", got)
	}
}
