package policyengine

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// ============================================================================
// AUDIT REPORTS (collaborator)
// ============================================================================

// WriteAssignmentReportCSV writes one row per assignment with roles and
// entitlements joined by ';'.
func WriteAssignmentReportCSV(w io.Writer, assignments []*Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"user_id", "roles", "entitlements"}); err != nil {
		return err
	}
	for _, a := range assignments {
		row := []string{a.UserID, strings.Join(a.Roles, ";"), strings.Join(a.Entitlements, ";")}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDecisionReportCSV writes one row per decision record.
func WriteDecisionReportCSV(w io.Writer, records []*DecisionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "timestamp", "user_id", "app", "permission", "effect", "matched_policy"}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Timestamp.Format(time.RFC3339),
			rec.Decision.UserID,
			rec.Decision.App,
			rec.Decision.Permission,
			string(rec.Decision.Effect),
			rec.Decision.MatchedPolicy,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportJSON writes any report value as indented JSON.
func WriteReportJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
