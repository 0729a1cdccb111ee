package policyengine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// ============================================================================
// RBAC MAPPER
// ============================================================================

// Compile validates every mapping rule and compiles its regex patterns.
// A malformed pattern is a load-time ConfigError; per-user evaluation
// never compiles anything.
func (rc *RoleConfig) Compile() error {
	for mi := range rc.Mappings {
		rule := &rc.Mappings[mi]
		if len(rule.AssignRoles) == 0 {
			return &ConfigError{Msg: fmt.Sprintf("mapping %d assigns no roles", mi)}
		}
		for ci := range rule.When {
			cond := &rule.When[ci]
			if cond.Attribute == "" {
				return &ConfigError{Msg: fmt.Sprintf("mapping %d condition %d has no attribute", mi, ci)}
			}
			hasEq := cond.Equals != ""
			hasRe := cond.Regex != ""
			if hasEq == hasRe {
				return &ConfigError{Msg: fmt.Sprintf("mapping %d condition on %q must set exactly one of equals or regex", mi, cond.Attribute)}
			}
			if hasRe {
				re, err := regexp.Compile(cond.Regex)
				if err != nil {
					return &ConfigError{Msg: fmt.Sprintf("mapping %d condition on %q has a malformed regex", mi, cond.Attribute), Err: err}
				}
				cond.re = re
			}
		}
	}
	return nil
}

// AssignRoles computes the role and entitlement sets for one user.
// Mapping rules are tested in table order; a rule contributes its roles
// iff every condition pair matches. Role names a mapping assigns that
// are absent from the role table contribute no entitlements, which is
// documented behavior rather than an error. The returned Assignment is
// a fresh value with sorted, deduplicated sets.
func AssignRoles(user *User, cfg *RoleConfig) *Assignment {
	roleSet := make(map[string]struct{})
	for i := range cfg.Mappings {
		rule := &cfg.Mappings[i]
		if !ruleMatches(user, rule) {
			continue
		}
		for _, role := range rule.AssignRoles {
			roleSet[role] = struct{}{}
		}
	}

	entSet := make(map[string]struct{})
	for role := range roleSet {
		def, ok := cfg.Roles[role]
		if !ok {
			continue
		}
		for _, ent := range def.Entitlements {
			entSet[ent] = struct{}{}
		}
	}

	return &Assignment{
		UserID:       user.ID,
		Roles:        sortedKeys(roleSet),
		Entitlements: sortedKeys(entSet),
	}
}

func ruleMatches(user *User, rule *MappingRule) bool {
	for i := range rule.When {
		cond := &rule.When[i]
		val := attrAsString(user, cond.Attribute)
		if cond.re != nil {
			if !cond.re.MatchString(val) {
				return false
			}
			continue
		}
		if val != cond.Equals {
			return false
		}
	}
	return true
}

// attrAsString renders a user attribute for pattern matching. Absent
// attributes match as the empty string.
func attrAsString(user *User, name string) string {
	v, ok := user.Attr(name)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
