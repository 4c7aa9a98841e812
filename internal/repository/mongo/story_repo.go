package mongo

import (
	"context"
	"errors"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StoryRepository 快拍，过期由 TTL 索引清理，读取时再按 since 过滤
type StoryRepository struct {
	c *mongo.Collection
}

func NewStoryRepository(c *Client) *StoryRepository {
	return &StoryRepository{c: c.coll(collStories)}
}

func (r *StoryRepository) Create(ctx context.Context, s *model.Story) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	if s.Views == nil {
		s.Views = []model.StoryView{}
	}
	_, err := r.c.InsertOne(ctx, s)
	return translate(err)
}

func (r *StoryRepository) FindLive(ctx context.Context, id string, since time.Time) (*model.Story, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var s model.Story
	if err = r.c.FindOne(ctx, bson.M{"_id": oid, "createdAt": bson.M{"$gt": since}}).Decode(&s); err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// ListByAuthors 作者集合在 since 之后的快拍，最新在前
func (r *StoryRepository) ListByAuthors(ctx context.Context, authorIDs []string, since time.Time) ([]model.Story, error) {
	filter := bson.M{
		"author":    bson.M{"$in": objectIDs(authorIDs)},
		"createdAt": bson.M{"$gt": since},
	}
	cur, err := r.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	stories := make([]model.Story, 0)
	if err = cur.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *StoryRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddView 同一用户只记录一次浏览，返回最新浏览数
func (r *StoryRepository) AddView(ctx context.Context, storyID, userID string, at time.Time) (int64, error) {
	oid, err := objectID(storyID)
	if err != nil {
		return 0, err
	}
	uid, err := objectID(userID)
	if err != nil {
		return 0, err
	}
	var s model.Story
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "views.user": bson.M{"$ne": uid}},
		bson.M{
			"$push": bson.M{"views": model.StoryView{UserID: uid, ViewedAt: at}},
			"$inc":  bson.M{"viewsCount": 1},
		},
		opts,
	).Decode(&s)
	if err == nil {
		return s.ViewsCount, nil
	}
	if err = translate(err); !errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}
	// 已浏览过或不存在
	if err = r.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&s); err != nil {
		return 0, translate(err)
	}
	return s.ViewsCount, nil
}
