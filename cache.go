package policyengine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// DecisionCache is a TTL-bounded ristretto cache for finished
// decisions. Entries are keyed on user, resource and context, so a
// change to a user's attributes or to the policy table is only visible
// after the TTL elapses or Clear is called.
type DecisionCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewDecisionCache(numCounters, maxCost, bufferItems int64, ttl time.Duration) (*DecisionCache, error) {
	if numCounters <= 0 {
		numCounters = 1 << 16
	}
	if maxCost <= 0 {
		maxCost = 1 << 20
	}
	if bufferItems <= 0 {
		bufferItems = 64
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &DecisionCache{c: c, ttl: ttl}, nil
}

func (dc *DecisionCache) Get(key string) (*PolicyDecision, bool) {
	v, ok := dc.c.Get(key)
	if !ok {
		return nil, false
	}
	dec, ok := v.(*PolicyDecision)
	return dec, ok
}

func (dc *DecisionCache) Set(key string, dec *PolicyDecision) {
	dc.c.SetWithTTL(key, dec, 1, dc.ttl)
}

func (dc *DecisionCache) Clear() {
	dc.c.Clear()
}

// Wait flushes pending writes; tests use it to make Set observable.
func (dc *DecisionCache) Wait() {
	dc.c.Wait()
}

// DecisionKey builds a deterministic cache key from the decision
// inputs. Context keys are sorted so equal contexts hash equally.
func DecisionKey(user *User, resource *Resource, rctx Context) string {
	keys := make([]string, 0, len(rctx))
	for k := range rctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(user.ID)
	b.WriteByte('|')
	b.WriteString(resource.App)
	b.WriteByte('|')
	b.WriteString(resource.Permission)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, rctx[k])
	}
	return b.String()
}
