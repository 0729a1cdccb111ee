package stores

import (
	"context"
	"encoding/json"
	"time"

	policyengine "github.com/mraaron360/RBAC-AND-ABAC"
	"github.com/oarkflow/squealx"
)

// SQLDecisionStore persists decision records in SQL via named queries.
// Run Migrate first to create the decision_log table.
type SQLDecisionStore struct {
	db *squealx.DB
}

func NewSQLDecisionStore(db *squealx.DB) (*SQLDecisionStore, error) {
	return &SQLDecisionStore{db: db}, nil
}

func (s *SQLDecisionStore) LogDecision(ctx context.Context, rec *policyengine.DecisionRecord) error {
	ctxB, _ := json.Marshal(rec.Context)
	q := `INSERT INTO decision_log(id, timestamp, user_id, app, permission, effect, matched_policy, context_json) VALUES(:id, :timestamp, :user_id, :app, :permission, :effect, :matched_policy, :context_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             rec.ID,
		"timestamp":      rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"user_id":        rec.Decision.UserID,
		"app":            rec.Decision.App,
		"permission":     rec.Decision.Permission,
		"effect":         string(rec.Decision.Effect),
		"matched_policy": rec.Decision.MatchedPolicy,
		"context_json":   string(ctxB),
	})
	return err
}

func (s *SQLDecisionStore) ListDecisions(ctx context.Context, filter policyengine.DecisionFilter) ([]*policyengine.DecisionRecord, error) {
	q := `SELECT id, timestamp, user_id, app, permission, effect, matched_policy, context_json FROM decision_log WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.App != "" {
		q += " AND app = :app"
		params["app"] = filter.App
	}
	if filter.Effect != "" {
		q += " AND effect = :effect"
		params["effect"] = string(filter.Effect)
	}
	if !filter.Start.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.Start.UTC().Format(time.RFC3339Nano)
	}
	if !filter.End.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.End.UTC().Format(time.RFC3339Nano)
	}
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*policyengine.DecisionRecord, 0)
	for r.Next() {
		var id, ts, userID, app, permission, effect, matched, ctxJSON string
		if err := r.Scan(&id, &ts, &userID, &app, &permission, &effect, &matched, &ctxJSON); err != nil {
			return nil, err
		}
		rec := &policyengine.DecisionRecord{
			ID: id,
			Decision: policyengine.PolicyDecision{
				UserID:        userID,
				App:           app,
				Permission:    permission,
				Effect:        policyengine.Effect(effect),
				MatchedPolicy: matched,
			},
		}
		if t, err := parseFlexibleTime(ts); err == nil {
			rec.Timestamp = t
		}
		_ = json.Unmarshal([]byte(ctxJSON), &rec.Context)
		out = append(out, rec)
	}
	return out, nil
}
