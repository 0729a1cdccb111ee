package policyengine

// ============================================================================
// ABAC DECISION ENGINE
// ============================================================================

// Decide evaluates policies in declared order against the given user,
// resource and context and returns the first match. A policy whose
// condition is rejected by the sandbox or fails during evaluation (for
// example a missing attribute) is skipped, never fatal: the unit of
// failure isolation is a single rule. When nothing matches, including
// the empty policy list, the default is deny with no matched policy.
//
// The function is pure: it never mutates its inputs and fixed inputs
// always produce the same decision, so it is safe to call concurrently
// against a shared policy table as long as the table is not mutated
// mid-call.
func Decide(user *User, resource *Resource, rctx Context, policies []*PolicyRule) *PolicyDecision {
	env := &Env{User: user, Resource: resource, Ctx: rctx}
	for _, p := range policies {
		matched, err := evalPolicy(p, env)
		if err != nil || !matched {
			continue
		}
		return &PolicyDecision{
			UserID:        user.ID,
			App:           resource.App,
			Permission:    resource.Permission,
			Effect:        p.Effect,
			MatchedPolicy: p.Name,
		}
	}
	return &PolicyDecision{
		UserID:     user.ID,
		App:        resource.App,
		Permission: resource.Permission,
		Effect:     EffectDeny,
	}
}

// evalPolicy uses the precompiled expression when the rule has one and
// falls back to a one-shot parse otherwise, so ad-hoc policy lists work
// without a compile pass. The fallback never writes to the rule; loaded
// tables stay read-only during evaluation.
func evalPolicy(p *PolicyRule, env *Env) (bool, error) {
	if p.expr != nil {
		return p.expr.Evaluate(env)
	}
	return Evaluate(p.When, env)
}
