package stores

import (
	"context"
	"fmt"
	"sync"

	policyengine "github.com/mraaron360/RBAC-AND-ABAC"
)

// MemoryDecisionStore keeps decision records in memory, for tests and
// single-process deployments.
type MemoryDecisionStore struct {
	mu      sync.RWMutex
	records []*policyengine.DecisionRecord
}

func NewMemoryDecisionStore() *MemoryDecisionStore {
	return &MemoryDecisionStore{records: make([]*policyengine.DecisionRecord, 0)}
}

func (s *MemoryDecisionStore) LogDecision(ctx context.Context, rec *policyengine.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryDecisionStore) ListDecisions(ctx context.Context, filter policyengine.DecisionFilter) ([]*policyengine.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*policyengine.DecisionRecord, 0)
	for _, rec := range s.records {
		if filter.UserID != "" && rec.Decision.UserID != filter.UserID {
			continue
		}
		if filter.App != "" && rec.Decision.App != filter.App {
			continue
		}
		if filter.Effect != "" && rec.Decision.Effect != filter.Effect {
			continue
		}
		if !filter.Start.IsZero() && rec.Timestamp.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && rec.Timestamp.After(filter.End) {
			continue
		}
		result = append(result, rec)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// MemoryAssignmentStore keeps the latest assignment per user.
type MemoryAssignmentStore struct {
	mu          sync.RWMutex
	assignments map[string]*policyengine.Assignment
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{assignments: make(map[string]*policyengine.Assignment)}
}

func (s *MemoryAssignmentStore) SaveAssignment(ctx context.Context, a *policyengine.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *a
	s.assignments[a.UserID] = &dup
	return nil
}

func (s *MemoryAssignmentStore) GetAssignment(ctx context.Context, userID string) (*policyengine.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[userID]
	if !ok {
		return nil, fmt.Errorf("no assignment for user %s", userID)
	}
	dup := *a
	return &dup, nil
}
