package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers          = "users"
	collPosts          = "posts"
	collComments       = "comments"
	collStories        = "stories"
	collFriendRequests = "friend_requests"
)

type Config struct {
	URI      string        `koanf:"uri" validate:"required"`
	Database string        `koanf:"database" validate:"required"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Client 文档库连接，由入口创建并负责关闭
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, cfg Config) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout).
		SetTimeout(cfg.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

func (c *Client) coll(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// EnsureIndexes 建索引（幂等）
func (c *Client) EnsureIndexes(ctx context.Context) error {
	active := bson.M{"isActive": true}
	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(active)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(active)},
			{Keys: bson.D{{Key: "followersCount", Value: -1}, {Key: "createdAt", Value: -1}}},
		},
		collPosts: {
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "visibility", Value: 1}, {Key: "likesCount", Value: -1}, {Key: "createdAt", Value: -1}}},
		},
		collComments: {
			{Keys: bson.D{{Key: "post", Value: 1}, {Key: "parentComment", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		collStories: {
			{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(model.StoryTTL / time.Second))},
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		collFriendRequests: {
			{Keys: bson.D{{Key: "pair", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"open": true})},
			{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := c.coll(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// objectID 非法 id 一律视为不存在
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	return oid, nil
}

// objectIDs 跳过非法 id
func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

// translate 将驱动错误转换为仓储哨兵错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	}
	return err
}

// counterUpdate 正数直接 $inc，负数走管道更新并保底为 0
func counterUpdate(field string, delta int64) any {
	if delta >= 0 {
		return bson.M{"$inc": bson.M{field: delta}}
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			field: bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{"$" + field, delta}}}},
		}}},
	}
}

func findOptions(sort bson.D, offset, limit int) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

// findPage 查询一页并返回总数
func findPage[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D, offset, limit int) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := coll.Find(ctx, filter, findOptions(sort, offset, limit))
	if err != nil {
		return nil, 0, err
	}
	rows := make([]T, 0)
	if err = cur.All(ctx, &rows); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
