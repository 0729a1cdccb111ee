package stores

import (
	"context"
	"fmt"
	"sort"

	policyengine "github.com/mraaron360/RBAC-AND-ABAC"
	"github.com/redis/go-redis/v9"
)

// RedisAssignmentStore keeps computed role and entitlement sets in
// redis sets (keys: assign:roles:{userID}, assign:ents:{userID}) so a
// downstream exporter can read them without re-running the mapper.
type RedisAssignmentStore struct {
	client *redis.Client
}

func NewRedisAssignmentStore(client *redis.Client) *RedisAssignmentStore {
	return &RedisAssignmentStore{client: client}
}

func (r *RedisAssignmentStore) roleKey(userID string) string {
	return fmt.Sprintf("assign:roles:%s", userID)
}

func (r *RedisAssignmentStore) entKey(userID string) string {
	return fmt.Sprintf("assign:ents:%s", userID)
}

// SaveAssignment replaces the user's stored sets with the assignment's.
func (r *RedisAssignmentStore) SaveAssignment(ctx context.Context, a *policyengine.Assignment) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.roleKey(a.UserID), r.entKey(a.UserID))
	if len(a.Roles) > 0 {
		pipe.SAdd(ctx, r.roleKey(a.UserID), toAnySlice(a.Roles)...)
	}
	if len(a.Entitlements) > 0 {
		pipe.SAdd(ctx, r.entKey(a.UserID), toAnySlice(a.Entitlements)...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisAssignmentStore) GetAssignment(ctx context.Context, userID string) (*policyengine.Assignment, error) {
	roles, err := r.client.SMembers(ctx, r.roleKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	ents, err := r.client.SMembers(ctx, r.entKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(roles)
	sort.Strings(ents)
	return &policyengine.Assignment{UserID: userID, Roles: roles, Entitlements: ents}, nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
