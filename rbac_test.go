package policyengine

import (
	"reflect"
	"testing"
)

func salesRoleConfig(t *testing.T) *RoleConfig {
	t.Helper()
	rc := &RoleConfig{
		Roles: map[string]RoleDefinition{
			"Sales.Rep":     {Entitlements: []string{"app:salesforce:standard", "group:sales:all"}},
			"Sales.Manager": {Entitlements: []string{"app:salesforce:admin", "group:sales:all"}},
			"Staff":         {Entitlements: []string{"app:intranet:read"}},
		},
		Mappings: []MappingRule{
			{
				When: []MatchCondition{
					{Attribute: "department", Equals: "Sales"},
					{Attribute: "job_title", Equals: "Sales Representative"},
				},
				AssignRoles: []string{"Sales.Rep"},
			},
			{
				When: []MatchCondition{
					{Attribute: "department", Equals: "Sales"},
					{Attribute: "job_title", Regex: "Manager"},
				},
				AssignRoles: []string{"Sales.Manager"},
			},
			{
				When:        []MatchCondition{{Attribute: "employment_type", Equals: "fulltime"}},
				AssignRoles: []string{"Staff"},
			},
		},
	}
	if err := rc.Compile(); err != nil {
		t.Fatalf("compile role config: %v", err)
	}
	return rc
}

func TestAssignRolesSalesRep(t *testing.T) {
	rc := salesRoleConfig(t)
	u := &User{ID: "u-1", Attrs: Attributes{
		"department":      "Sales",
		"job_title":       "Sales Representative",
		"employment_type": "fulltime",
	}}
	a := AssignRoles(u, rc)
	if a.UserID != "u-1" {
		t.Fatalf("user id = %q", a.UserID)
	}
	wantRoles := []string{"Sales.Rep", "Staff"}
	if !reflect.DeepEqual(a.Roles, wantRoles) {
		t.Fatalf("roles = %v, want %v", a.Roles, wantRoles)
	}
	wantEnts := []string{"app:intranet:read", "app:salesforce:standard", "group:sales:all"}
	if !reflect.DeepEqual(a.Entitlements, wantEnts) {
		t.Fatalf("entitlements = %v, want %v", a.Entitlements, wantEnts)
	}
}

func TestAssignRolesRegexCondition(t *testing.T) {
	rc := salesRoleConfig(t)
	u := &User{ID: "u-2", Attrs: Attributes{
		"department": "Sales",
		"job_title":  "Regional Sales Manager",
	}}
	a := AssignRoles(u, rc)
	if !reflect.DeepEqual(a.Roles, []string{"Sales.Manager"}) {
		t.Fatalf("roles = %v, want [Sales.Manager]", a.Roles)
	}
}

func TestAssignRolesNoMatch(t *testing.T) {
	rc := salesRoleConfig(t)
	u := &User{ID: "u-3", Attrs: Attributes{"department": "Finance"}}
	a := AssignRoles(u, rc)
	if len(a.Roles) != 0 || len(a.Entitlements) != 0 {
		t.Fatalf("expected empty assignment, got %+v", a)
	}
	if a.Roles == nil || a.Entitlements == nil {
		t.Fatal("assignment sets must be empty slices, not nil")
	}
}

func TestAssignRolesEntitlementUnionDedup(t *testing.T) {
	// Both matched roles grant group:sales:all; the union holds it once.
	rc := &RoleConfig{
		Roles: map[string]RoleDefinition{
			"Sales.Rep":  {Entitlements: []string{"app:salesforce:standard", "group:sales:all"}},
			"Sales.EMEA": {Entitlements: []string{"group:sales:emea", "group:sales:all"}},
		},
		Mappings: []MappingRule{
			{When: []MatchCondition{{Attribute: "department", Equals: "Sales"}}, AssignRoles: []string{"Sales.Rep"}},
			{When: []MatchCondition{{Attribute: "region", Equals: "EMEA"}}, AssignRoles: []string{"Sales.EMEA"}},
		},
	}
	if err := rc.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	u := &User{ID: "u-4", Attrs: Attributes{"department": "Sales", "region": "EMEA"}}
	a := AssignRoles(u, rc)
	seen := map[string]int{}
	for _, e := range a.Entitlements {
		seen[e]++
	}
	if seen["group:sales:all"] != 1 {
		t.Fatalf("group:sales:all appears %d times in %v", seen["group:sales:all"], a.Entitlements)
	}
	if len(a.Entitlements) != 3 {
		t.Fatalf("entitlements = %v, want 3 distinct", a.Entitlements)
	}
}

func TestAssignRolesUnknownRoleContributesNothing(t *testing.T) {
	rc := &RoleConfig{
		Roles: map[string]RoleDefinition{},
		Mappings: []MappingRule{{
			When:        []MatchCondition{{Attribute: "department", Equals: "Sales"}},
			AssignRoles: []string{"Ghost.Role"},
		}},
	}
	if err := rc.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	a := AssignRoles(&User{ID: "u-5", Attrs: Attributes{"department": "Sales"}}, rc)
	if !reflect.DeepEqual(a.Roles, []string{"Ghost.Role"}) {
		t.Fatalf("roles = %v", a.Roles)
	}
	if len(a.Entitlements) != 0 {
		t.Fatalf("unknown role produced entitlements: %v", a.Entitlements)
	}
}

func TestAssignRolesMissingAttributeMatchesEmptyString(t *testing.T) {
	rc := &RoleConfig{
		Roles: map[string]RoleDefinition{"Empty": {Entitlements: []string{"e"}}},
		Mappings: []MappingRule{{
			When:        []MatchCondition{{Attribute: "nickname", Regex: "^$"}},
			AssignRoles: []string{"Empty"},
		}},
	}
	if err := rc.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	a := AssignRoles(&User{ID: "u-6", Attrs: Attributes{}}, rc)
	if !reflect.DeepEqual(a.Roles, []string{"Empty"}) {
		t.Fatalf("absent attribute did not match empty-string pattern: %v", a.Roles)
	}
}

func TestAssignRolesNonStringAttributes(t *testing.T) {
	rc := &RoleConfig{
		Roles: map[string]RoleDefinition{"Cleared": {Entitlements: []string{"e"}}},
		Mappings: []MappingRule{{
			When: []MatchCondition{
				{Attribute: "clearance", Equals: "3"},
				{Attribute: "contractor", Equals: "false"},
			},
			AssignRoles: []string{"Cleared"},
		}},
	}
	if err := rc.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	u := &User{ID: "u-7", Attrs: Attributes{"clearance": int64(3), "contractor": false}}
	a := AssignRoles(u, rc)
	if len(a.Roles) != 1 {
		t.Fatalf("int64/bool attributes did not render for matching: %+v", a)
	}
}

func TestRoleConfigCompileErrors(t *testing.T) {
	cases := []struct {
		name string
		rc   RoleConfig
	}{
		{"no roles assigned", RoleConfig{Mappings: []MappingRule{{
			When: []MatchCondition{{Attribute: "a", Equals: "x"}},
		}}}},
		{"empty attribute", RoleConfig{Mappings: []MappingRule{{
			When:        []MatchCondition{{Equals: "x"}},
			AssignRoles: []string{"r"},
		}}}},
		{"both equals and regex", RoleConfig{Mappings: []MappingRule{{
			When:        []MatchCondition{{Attribute: "a", Equals: "x", Regex: "x"}},
			AssignRoles: []string{"r"},
		}}}},
		{"neither equals nor regex", RoleConfig{Mappings: []MappingRule{{
			When:        []MatchCondition{{Attribute: "a"}},
			AssignRoles: []string{"r"},
		}}}},
		{"malformed regex", RoleConfig{Mappings: []MappingRule{{
			When:        []MatchCondition{{Attribute: "a", Regex: "("}},
			AssignRoles: []string{"r"},
		}}}},
	}
	for _, c := range cases {
		err := c.rc.Compile()
		if err == nil {
			t.Fatalf("%s: expected a ConfigError", c.name)
		}
		if _, ok := err.(*ConfigError); !ok {
			t.Fatalf("%s: expected ConfigError, got %T: %v", c.name, err, err)
		}
	}
}

func TestAssignRolesOrderIndependentResult(t *testing.T) {
	// Mapping order affects nothing in the final sets: the result is a
	// union, sorted.
	rc1 := salesRoleConfig(t)
	rc2 := salesRoleConfig(t)
	rc2.Mappings[0], rc2.Mappings[2] = rc2.Mappings[2], rc2.Mappings[0]
	u := &User{ID: "u-8", Attrs: Attributes{
		"department":      "Sales",
		"job_title":       "Sales Representative",
		"employment_type": "fulltime",
	}}
	a1 := AssignRoles(u, rc1)
	a2 := AssignRoles(u, rc2)
	if !reflect.DeepEqual(a1, a2) {
		t.Fatalf("mapping order changed the result: %+v vs %+v", a1, a2)
	}
}
