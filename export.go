package policyengine

import (
	"encoding/json"
	"sort"
)

// ============================================================================
// IDENTITY-PROVIDER EXPORT (collaborator)
// ============================================================================

// UserGrant is one user's computed grants in the export payload.
type UserGrant struct {
	UserID       string   `json:"user_id"`
	Roles        []string `json:"roles"`
	Entitlements []string `json:"entitlements"`
}

// ExportPayload is the shape a downstream identity provider consumes:
// per-user grants plus the inverted entitlement->members view it needs
// for group provisioning. All slices are sorted so repeated exports of
// the same assignments are byte-identical.
type ExportPayload struct {
	Users  []UserGrant         `json:"users"`
	Groups map[string][]string `json:"groups"`
}

// BuildExportPayload shapes finished assignments for export. The input
// records are not retained or mutated.
func BuildExportPayload(assignments []*Assignment) *ExportPayload {
	p := &ExportPayload{
		Users:  make([]UserGrant, 0, len(assignments)),
		Groups: make(map[string][]string),
	}
	for _, a := range assignments {
		p.Users = append(p.Users, UserGrant{
			UserID:       a.UserID,
			Roles:        append([]string(nil), a.Roles...),
			Entitlements: append([]string(nil), a.Entitlements...),
		})
		for _, ent := range a.Entitlements {
			p.Groups[ent] = append(p.Groups[ent], a.UserID)
		}
	}
	sort.Slice(p.Users, func(i, j int) bool { return p.Users[i].UserID < p.Users[j].UserID })
	for ent := range p.Groups {
		sort.Strings(p.Groups[ent])
	}
	return p
}

// ToJSON serializes the payload as indented JSON.
func (p *ExportPayload) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
