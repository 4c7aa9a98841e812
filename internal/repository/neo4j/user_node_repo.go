package neo4j

import (
	"context"

	"Lee_Social/internal/model"
)

// UserNodeRepository 用户节点镜像
type UserNodeRepository struct {
	c *Client
}

func NewUserNodeRepository(c *Client) *UserNodeRepository {
	return &UserNodeRepository{c: c}
}

func (r *UserNodeRepository) UpsertUser(ctx context.Context, n model.UserNode) error {
	_, err := r.c.write(ctx, `
MERGE (u:User {id: $id})
SET u.username = $username, u.name = $name, u.email = $email`,
		map[string]any{"id": n.ID, "username": n.Username, "name": n.Name, "email": n.Email})
	return err
}

// DeleteUser 删除节点及其所有边
func (r *UserNodeRepository) DeleteUser(ctx context.Context, id string) error {
	_, err := r.c.write(ctx, `MATCH (u:User {id: $id}) DETACH DELETE u`, map[string]any{"id": id})
	return err
}
