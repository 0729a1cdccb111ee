package policyengine

import "regexp"

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Attributes is a flat map of attribute names to scalar values.
// Legal value kinds are string, int64 and bool; anything else is
// rejected when an expression touches it.
type Attributes map[string]any

// User carries identity plus HR attributes (department, job_title,
// country, employment_type, ...).
type User struct {
	ID    string     `json:"id" yaml:"id"`
	Attrs Attributes `json:"attrs" yaml:"attrs"`
}

// Attr returns the named attribute. The user ID is addressable as "id".
func (u *User) Attr(name string) (any, bool) {
	if u == nil {
		return nil, false
	}
	if name == "id" {
		return u.ID, true
	}
	v, ok := u.Attrs[name]
	return v, ok
}

// Resource identifies what is being accessed: an application and a
// permission/action within it.
type Resource struct {
	App        string     `json:"app" yaml:"app"`
	Permission string     `json:"permission" yaml:"permission"`
	Attrs      Attributes `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Attr returns the named resource attribute. "app" and "permission"
// resolve to the fixed fields before the free-form attrs.
func (r *Resource) Attr(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	switch name {
	case "app":
		return r.App, true
	case "permission":
		return r.Permission, true
	}
	v, ok := r.Attrs[name]
	return v, ok
}

// Context carries ambient request facts supplied by the caller, e.g.
// the wall-clock hour. The engine never reads a clock itself.
type Context map[string]any

// Effect is the outcome a policy produces when it matches.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// ============================================================================
// RBAC CONFIGURATION
// ============================================================================

// MatchCondition is one (attribute, pattern) pair of a mapping rule.
// Exactly one of Equals or Regex must be set; the mode is an explicit
// field rather than being sniffed from the pattern string.
type MatchCondition struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Equals    string `json:"equals,omitempty" yaml:"equals,omitempty"`
	Regex     string `json:"regex,omitempty" yaml:"regex,omitempty"`

	re *regexp.Regexp
}

// MappingRule assigns roles to users whose attributes satisfy every
// condition in When (logical AND across pairs).
type MappingRule struct {
	When        []MatchCondition `json:"when" yaml:"when"`
	AssignRoles []string         `json:"assign_roles" yaml:"assign_roles"`
}

// RoleDefinition maps a role name to its entitlements (opaque
// identifiers such as "app:salesforce:standard" or "group:sales:emea").
type RoleDefinition struct {
	Entitlements []string `json:"entitlements" yaml:"entitlements"`
}

// RoleConfig is the loaded RBAC table: role definitions plus the
// ordered attribute-mapping rules that assign them.
type RoleConfig struct {
	Roles    map[string]RoleDefinition `json:"roles" yaml:"roles"`
	Mappings []MappingRule             `json:"mappings" yaml:"mappings"`
}

// ============================================================================
// ABAC CONFIGURATION
// ============================================================================

// PolicyRule pairs a boolean condition string with an effect. Rules are
// evaluated in declared order and the first match wins, so the position
// of a rule in its list is part of the configuration contract.
type PolicyRule struct {
	Name   string `json:"name" yaml:"name"`
	Effect Effect `json:"effect" yaml:"effect"`
	When   string `json:"when" yaml:"when"`

	expr *Expression
}

// Compile parses the rule's condition once so repeated decisions do not
// re-parse it. A rejected expression is returned as an error; callers
// that keep the rule anyway get non-match semantics at decision time.
func (p *PolicyRule) Compile() error {
	expr, err := CompileExpression(p.When)
	if err != nil {
		return err
	}
	p.expr = expr
	return nil
}

// ============================================================================
// RESULT RECORDS
// ============================================================================

// Assignment is the RBAC result for one user. Roles and entitlements
// are deduplicated and sorted; the record is never mutated after
// construction.
type Assignment struct {
	UserID       string   `json:"user_id" yaml:"user_id"`
	Roles        []string `json:"roles" yaml:"roles"`
	Entitlements []string `json:"entitlements" yaml:"entitlements"`
}

// PolicyDecision is the ABAC result for one (user, resource, context)
// triple. MatchedPolicy is empty when no rule matched and the default
// deny applied.
type PolicyDecision struct {
	UserID        string `json:"user_id"`
	App           string `json:"app"`
	Permission    string `json:"permission"`
	Effect        Effect `json:"effect"`
	MatchedPolicy string `json:"matched_policy,omitempty"`
}

// Allowed reports whether the decision grants access.
func (d *PolicyDecision) Allowed() bool {
	return d != nil && d.Effect == EffectAllow
}
