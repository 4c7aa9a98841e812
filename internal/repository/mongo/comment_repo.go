package mongo

import (
	"context"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CommentRepository struct {
	c *mongo.Collection
}

func NewCommentRepository(c *Client) *CommentRepository {
	return &CommentRepository{c: c.coll(collComments)}
}

func (r *CommentRepository) Create(ctx context.Context, cm *model.Comment) error {
	if cm.ID.IsZero() {
		cm.ID = primitive.NewObjectID()
	}
	if cm.LikedBy == nil {
		cm.LikedBy = []primitive.ObjectID{}
	}
	_, err := r.c.InsertOne(ctx, cm)
	return translate(err)
}

func (r *CommentRepository) FindActiveByID(ctx context.Context, id string) (*model.Comment, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var cm model.Comment
	if err = r.c.FindOne(ctx, bson.M{"_id": oid, "isDeleted": false}).Decode(&cm); err != nil {
		return nil, translate(err)
	}
	return &cm, nil
}

// ListTopLevel 帖子下的一级评论，最新在前
func (r *CommentRepository) ListTopLevel(ctx context.Context, postID string, offset, limit int) ([]model.Comment, int64, error) {
	oid, err := objectID(postID)
	if err != nil {
		return nil, 0, err
	}
	filter := bson.M{"post": oid, "parentComment": nil, "isDeleted": false}
	return findPage[model.Comment](ctx, r.c, filter, bson.D{{Key: "createdAt", Value: -1}}, offset, limit)
}

// ListReplies 回复按时间正序
func (r *CommentRepository) ListReplies(ctx context.Context, parentID string, offset, limit int) ([]model.Comment, int64, error) {
	oid, err := objectID(parentID)
	if err != nil {
		return nil, 0, err
	}
	filter := bson.M{"parentComment": oid, "isDeleted": false}
	return findPage[model.Comment](ctx, r.c, filter, bson.D{{Key: "createdAt", Value: 1}}, offset, limit)
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id, content string) (*model.Comment, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var cm model.Comment
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "isDeleted": false},
		bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now()}},
		opts,
	).Decode(&cm)
	if err != nil {
		return nil, translate(err)
	}
	return &cm, nil
}

func (r *CommentRepository) SoftDelete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": oid, "isDeleted": false},
		bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CommentRepository) IncrReplies(ctx context.Context, id string, delta int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	_, err = r.c.UpdateOne(ctx, bson.M{"_id": oid}, counterUpdate("repliesCount", delta))
	return err
}

func (r *CommentRepository) Like(ctx context.Context, commentID, userID string) error {
	return toggleMember(ctx, r.c, commentID, userID, true)
}

func (r *CommentRepository) Unlike(ctx context.Context, commentID, userID string) error {
	return toggleMember(ctx, r.c, commentID, userID, false)
}
