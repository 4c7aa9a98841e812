package neo4j

import "context"

// FriendRepository FRIEND 边，成对存储两条有向边
type FriendRepository struct {
	c *Client
}

func NewFriendRepository(c *Client) *FriendRepository {
	return &FriendRepository{c: c}
}

func (r *FriendRepository) Befriend(ctx context.Context, a, b string) error {
	_, err := r.c.write(ctx, `
MERGE (x:User {id: $a})
MERGE (y:User {id: $b})
MERGE (x)-[:FRIEND]->(y)
MERGE (y)-[:FRIEND]->(x)`,
		map[string]any{"a": a, "b": b})
	return err
}

// Unfriend 删除两个方向的边
func (r *FriendRepository) Unfriend(ctx context.Context, a, b string) error {
	_, err := r.c.write(ctx, `
MATCH (:User {id: $a})-[r:FRIEND]-(:User {id: $b})
DELETE r`,
		map[string]any{"a": a, "b": b})
	return err
}

func (r *FriendRepository) IsFriend(ctx context.Context, a, b string) (bool, error) {
	records, err := r.c.read(ctx, `
MATCH (:User {id: $a})-[r:FRIEND]->(:User {id: $b})
RETURN count(r) AS n`,
		map[string]any{"a": a, "b": b})
	if err != nil {
		return false, err
	}
	return decodeInt(records, "n") > 0, nil
}

// FriendIDs 好友 id 分页，同时返回总数
func (r *FriendRepository) FriendIDs(ctx context.Context, userID string, offset, limit int) ([]string, int64, error) {
	params := map[string]any{"id": userID, "skip": int64(offset), "limit": int64(limit)}
	records, err := r.c.read(ctx, `
MATCH (:User {id: $id})-[:FRIEND]->(f:User)
RETURN f.id AS id
ORDER BY id
SKIP $skip
LIMIT $limit`, params)
	if err != nil {
		return nil, 0, err
	}
	counts, err := r.c.read(ctx, `
MATCH (:User {id: $id})-[:FRIEND]->(f:User)
RETURN count(f) AS n`, params)
	if err != nil {
		return nil, 0, err
	}
	return decodeStrings(records, "id"), decodeInt(counts, "n"), nil
}

// AllFriendIDs 快拍流使用的全量好友集合
func (r *FriendRepository) AllFriendIDs(ctx context.Context, userID string) ([]string, error) {
	records, err := r.c.read(ctx, `
MATCH (:User {id: $id})-[:FRIEND]->(f:User)
RETURN f.id AS id`,
		map[string]any{"id": userID})
	if err != nil {
		return nil, err
	}
	return decodeStrings(records, "id"), nil
}

func (r *FriendRepository) MutualFriends(ctx context.Context, a, b string) ([]string, error) {
	records, err := r.c.read(ctx, `
MATCH (:User {id: $a})-[:FRIEND]->(m:User)<-[:FRIEND]-(:User {id: $b})
RETURN m.id AS id
ORDER BY id
LIMIT $limit`,
		map[string]any{"a": a, "b": b, "limit": int64(mutualLimit)})
	if err != nil {
		return nil, err
	}
	return decodeStrings(records, "id"), nil
}
