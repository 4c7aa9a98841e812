package neo4j

import (
	"context"

	"Lee_Social/internal/model"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const mutualLimit = 10

// FollowRepository FOLLOWS 有向边
type FollowRepository struct {
	c *Client
}

func NewFollowRepository(c *Client) *FollowRepository {
	return &FollowRepository{c: c}
}

// Follow MERGE 语义，重复创建不会产生多条边；缺失的节点一并补齐。
// 返回边是否由本次调用创建
func (r *FollowRepository) Follow(ctx context.Context, followerID, targetID string) (bool, error) {
	records, err := r.c.write(ctx, `
MERGE (a:User {id: $from})
MERGE (b:User {id: $to})
MERGE (a)-[f:FOLLOWS]->(b)
ON CREATE SET f.createdAt = timestamp(), f.fresh = true
WITH f, coalesce(f.fresh, false) AS created
REMOVE f.fresh
RETURN created`,
		map[string]any{"from": followerID, "to": targetID})
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	v, _ := records[0].Get("created")
	created, _ := v.(bool)
	return created, nil
}

// Unfollow 返回是否真的删除了边
func (r *FollowRepository) Unfollow(ctx context.Context, followerID, targetID string) (bool, error) {
	records, err := r.c.write(ctx, `
MATCH (:User {id: $from})-[r:FOLLOWS]->(:User {id: $to})
DELETE r
RETURN count(r) AS deleted`,
		map[string]any{"from": followerID, "to": targetID})
	if err != nil {
		return false, err
	}
	return decodeInt(records, "deleted") > 0, nil
}

func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	records, err := r.c.read(ctx, `
MATCH (:User {id: $from})-[r:FOLLOWS]->(:User {id: $to})
RETURN count(r) AS n`,
		map[string]any{"from": followerID, "to": targetID})
	if err != nil {
		return false, err
	}
	return decodeInt(records, "n") > 0, nil
}

// FollowingIDs 全量关注列表
func (r *FollowRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	records, err := r.c.read(ctx, `
MATCH (:User {id: $id})-[:FOLLOWS]->(f:User)
RETURN f.id AS id
ORDER BY id`,
		map[string]any{"id": userID})
	if err != nil {
		return nil, err
	}
	return decodeStrings(records, "id"), nil
}

func (r *FollowRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	records, err := r.c.read(ctx, `
MATCH (f:User)-[:FOLLOWS]->(:User {id: $id})
RETURN f.id AS id
ORDER BY id`,
		map[string]any{"id": userID})
	if err != nil {
		return nil, err
	}
	return decodeStrings(records, "id"), nil
}

// FollowCounts 图中真实的出度和入度，对账使用
func (r *FollowRepository) FollowCounts(ctx context.Context, userID string) (int64, int64, error) {
	records, err := r.c.read(ctx, `
MATCH (u:User {id: $id})
RETURN size([(u)-[:FOLLOWS]->(x) | x]) AS following,
       size([(u)<-[:FOLLOWS]-(x) | x]) AS followers`,
		map[string]any{"id": userID})
	if err != nil {
		return 0, 0, err
	}
	return decodeInt(records, "following"), decodeInt(records, "followers"), nil
}

// Suggestions 二度关注推荐，按共同关注数排序
func (r *FollowRepository) Suggestions(ctx context.Context, userID string, limit int) ([]model.Suggestion, error) {
	records, err := r.c.read(ctx, `
MATCH (me:User {id: $id})-[:FOLLOWS]->(friend:User)-[:FOLLOWS]->(s:User)
WHERE s.id <> $id AND NOT (me)-[:FOLLOWS]->(s)
RETURN s.id AS id, count(DISTINCT friend) AS mutualCount
ORDER BY mutualCount DESC, id ASC
LIMIT $limit`,
		map[string]any{"id": userID, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	return decodeSuggestions(records), nil
}

// MutualFollowing 两人共同关注的人
func (r *FollowRepository) MutualFollowing(ctx context.Context, a, b string) ([]string, error) {
	records, err := r.c.read(ctx, `
MATCH (:User {id: $a})-[:FOLLOWS]->(m:User)<-[:FOLLOWS]-(:User {id: $b})
RETURN m.id AS id
ORDER BY id
LIMIT $limit`,
		map[string]any{"a": a, "b": b, "limit": int64(mutualLimit)})
	if err != nil {
		return nil, err
	}
	return decodeStrings(records, "id"), nil
}

func decodeSuggestions(records []*neo4j.Record) []model.Suggestion {
	out := make([]model.Suggestion, 0, len(records))
	for _, rec := range records {
		id, _ := rec.Get("id")
		cnt, _ := rec.Get("mutualCount")
		s, ok := id.(string)
		if !ok {
			continue
		}
		n, _ := cnt.(int64)
		out = append(out, model.Suggestion{UserID: s, MutualCount: n})
	}
	return out
}
