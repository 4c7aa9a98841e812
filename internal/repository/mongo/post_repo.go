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

type PostRepository struct {
	c *mongo.Collection
}

func NewPostRepository(c *Client) *PostRepository {
	return &PostRepository{c: c.coll(collPosts)}
}

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.LikedBy == nil {
		p.LikedBy = []primitive.ObjectID{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	_, err := r.c.InsertOne(ctx, p)
	return translate(err)
}

func (r *PostRepository) FindActiveByID(ctx context.Context, id string) (*model.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var p model.Post
	if err = r.c.FindOne(ctx, bson.M{"_id": oid, "isDeleted": false}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PostRepository) Update(ctx context.Context, id string, upd model.PostUpdate) (*model.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now()}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.Images != nil {
		set["images"] = *upd.Images
	}
	if upd.Visibility != nil {
		set["visibility"] = *upd.Visibility
	}
	var p model.Post
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.c.FindOneAndUpdate(ctx, bson.M{"_id": oid, "isDeleted": false}, bson.M{"$set": set}, opts).Decode(&p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// SoftDelete 软删除帖子
func (r *PostRepository) SoftDelete(ctx context.Context, id string) error {
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

// Find 按作者集合/可见性过滤的分页查询
func (r *PostRepository) Find(ctx context.Context, q model.PostQuery) ([]model.Post, int64, error) {
	filter, sort := postQuery(q)
	return findPage[model.Post](ctx, r.c, filter, sort, q.Offset, q.Limit)
}

// postQuery AuthorIDs 为 nil 不限作者，空切片则匹配不到任何帖子
func postQuery(q model.PostQuery) (bson.M, bson.D) {
	filter := bson.M{"isDeleted": false}
	if q.AuthorIDs != nil {
		filter["author"] = bson.M{"$in": objectIDs(q.AuthorIDs)}
	}
	if len(q.Visibilities) > 0 {
		filter["visibility"] = bson.M{"$in": q.Visibilities}
	}
	if len(q.Scopes) > 0 {
		or := make(bson.A, 0, len(q.Scopes))
		for _, sc := range q.Scopes {
			or = append(or, bson.M{
				"author":     bson.M{"$in": objectIDs(sc.AuthorIDs)},
				"visibility": bson.M{"$in": sc.Visibilities},
			})
		}
		filter["$or"] = or
	}
	sort := bson.D{{Key: "createdAt", Value: -1}}
	if q.Sort == model.SortTrending {
		sort = bson.D{{Key: "likesCount", Value: -1}, {Key: "createdAt", Value: -1}}
	}
	return filter, sort
}

// Like 成员集合与计数一次性原子更新
func (r *PostRepository) Like(ctx context.Context, postID, userID string) error {
	return toggleMember(ctx, r.c, postID, userID, true)
}

func (r *PostRepository) Unlike(ctx context.Context, postID, userID string) error {
	return toggleMember(ctx, r.c, postID, userID, false)
}

func (r *PostRepository) IncrComments(ctx context.Context, id string, delta int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	_, err = r.c.UpdateOne(ctx, bson.M{"_id": oid}, counterUpdate("commentsCount", delta))
	return err
}

// toggleMember likedBy/likesCount 的条件更新，帖子与评论共用
func toggleMember(ctx context.Context, c *mongo.Collection, docID, userID string, add bool) error {
	oid, err := objectID(docID)
	if err != nil {
		return err
	}
	uid, err := objectID(userID)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": oid, "isDeleted": false}
	var update bson.M
	if add {
		filter["likedBy"] = bson.M{"$ne": uid}
		update = bson.M{"$push": bson.M{"likedBy": uid}, "$inc": bson.M{"likesCount": 1}}
	} else {
		filter["likedBy"] = uid
		update = bson.M{"$pull": bson.M{"likedBy": uid}, "$inc": bson.M{"likesCount": -1}}
	}
	res, err := c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	// 区分文档不存在和状态不匹配
	n, err := c.CountDocuments(ctx, bson.M{"_id": oid, "isDeleted": false})
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	if add {
		return repository.ErrAlreadyMember
	}
	return repository.ErrNotMember
}
