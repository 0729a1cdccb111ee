package policyengine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/mraaron360/RBAC-AND-ABAC/logger"
)

// ============================================================================
// ENGINE SHELL
// ============================================================================
//
// The shell wraps the pure AssignRoles/Decide functions with the
// collaborator concerns: a decision cache, an audit store and logging.
// The configuration snapshot it holds is treated as read-only; swapping
// in a new snapshot is the caller's synchronization problem.

// DecisionRecord is the persisted form of one decision, produced by the
// engine shell for audit collaborators.
type DecisionRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Decision  PolicyDecision `json:"decision"`
	Context   Context        `json:"context,omitempty"`
}

// DecisionFilter selects decision records from a store.
type DecisionFilter struct {
	UserID string
	App    string
	Effect Effect
	Start  time.Time
	End    time.Time
	Limit  int
}

// DecisionStore persists decision records.
type DecisionStore interface {
	LogDecision(ctx context.Context, rec *DecisionRecord) error
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]*DecisionRecord, error)
}

// AssignmentStore persists computed role/entitlement assignments for
// downstream export.
type AssignmentStore interface {
	SaveAssignment(ctx context.Context, a *Assignment) error
	GetAssignment(ctx context.Context, userID string) (*Assignment, error)
}

type Engine struct {
	cfg    *Config
	logger Logger
	cache  *DecisionCache
	store  DecisionStore
	idFunc TraceIDFunc
}

type EngineOption func(*Engine) error

// WithDecisionStore installs an audit store; every decision the engine
// makes is logged to it, best effort.
func WithDecisionStore(s DecisionStore) EngineOption {
	return func(e *Engine) error {
		e.store = s
		return nil
	}
}

// WithDecisionCache installs a prebuilt cache, overriding the one the
// EngineConfig would construct.
func WithDecisionCache(c *DecisionCache) EngineOption {
	return func(e *Engine) error {
		e.cache = c
		return nil
	}
}

// NewEngine compiles the configuration snapshot and wires the shell.
// Malformed mapping patterns fail construction; rejected policy
// expressions are logged and kept, matching their never-match runtime
// behavior.
func NewEngine(cfg *Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Rbac.Compile(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, idFunc: newRecordID}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.logger == nil {
		e.logger = logger.NewPhusluLogger()
	}
	if e.cache == nil && cfg.Engine.CacheNumCounters > 0 {
		c, err := NewDecisionCache(
			cfg.Engine.CacheNumCounters,
			cfg.Engine.CacheMaxCost,
			cfg.Engine.CacheBufferItems,
			time.Duration(cfg.Engine.DecisionCacheTTL)*time.Millisecond,
		)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	for _, perr := range cfg.ValidatePolicies() {
		e.logger.Error("policy condition rejected", "error", perr.Error())
	}
	return e, nil
}

// AssignRoles runs the RBAC mapper against the engine's tables.
func (e *Engine) AssignRoles(user *User) *Assignment {
	return AssignRoles(user, &e.cfg.Rbac)
}

// Decide runs the ABAC scan, consulting the cache first and logging the
// outcome to the audit store when one is configured. Audit failures are
// logged, never propagated: they must not turn an evaluated decision
// into an error.
func (e *Engine) Decide(ctx context.Context, user *User, resource *Resource, rctx Context) *PolicyDecision {
	key := DecisionKey(user, resource, rctx)
	if e.cache != nil {
		if dec, ok := e.cache.Get(key); ok {
			return dec
		}
	}
	dec := Decide(user, resource, rctx, e.cfg.Policies)
	if e.cache != nil {
		e.cache.Set(key, dec)
	}
	e.logger.Debug("decision",
		"user", dec.UserID,
		"app", dec.App,
		"permission", dec.Permission,
		"effect", string(dec.Effect),
		"matched_policy", dec.MatchedPolicy,
	)
	if e.store != nil {
		rec := &DecisionRecord{ID: e.idFunc(), Timestamp: time.Now(), Decision: *dec, Context: rctx}
		if err := e.store.LogDecision(ctx, rec); err != nil {
			e.logger.Error("decision audit failed", "id", rec.ID, "error", err.Error())
		}
	}
	return dec
}

// Policies exposes the loaded policy list (read-only by convention) so
// collaborators can report on it.
func (e *Engine) Policies() []*PolicyRule {
	return e.cfg.Policies
}

func newRecordID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
