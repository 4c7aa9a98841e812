package mongo

import (
	"context"
	"regexp"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository 用户文档
type UserRepository struct {
	c *mongo.Collection
}

func NewUserRepository(c *Client) *UserRepository {
	return &UserRepository{c: c.coll(collUsers)}
}

func activeFilter(extra bson.M) bson.M {
	extra["deletedAt"] = nil
	return extra
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := r.c.InsertOne(ctx, u)
	return translate(err)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	if err := r.c.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) FindActiveByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, activeFilter(bson.M{"_id": oid}))
}

func (r *UserRepository) FindActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, activeFilter(bson.M{"email": email}))
}

func (r *UserRepository) FindActiveByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, activeFilter(bson.M{"username": username}))
}

// FindDeletedByEmail 查找已软删除的账号（恢复用），取最近删除的一条
func (r *UserRepository) FindDeletedByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	opts := options.FindOne().SetSort(bson.D{{Key: "deletedAt", Value: -1}})
	err := r.c.FindOne(ctx, bson.M{"email": email, "deletedAt": bson.M{"$ne": nil}}, opts).Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindActiveByIDs 批量查询，结果顺序不保证
func (r *UserRepository) FindActiveByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []model.User{}, nil
	}
	cur, err := r.c.Find(ctx, activeFilter(bson.M{"_id": bson.M{"$in": oids}}))
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(oids))
	if err = cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Search 用户名/昵称模糊搜索
func (r *UserRepository) Search(ctx context.Context, keyword string, offset, limit int) ([]model.User, int64, error) {
	re := primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}
	filter := activeFilter(bson.M{"$or": bson.A{
		bson.M{"username": re},
		bson.M{"name": re},
	}})
	sort := bson.D{{Key: "followersCount", Value: -1}, {Key: "createdAt", Value: -1}}
	return findPage[model.User](ctx, r.c, filter, sort, offset, limit)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Username != nil {
		set["username"] = *upd.Username
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Avatar != nil {
		set["avatar"] = *upd.Avatar
	}
	var u model.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.c.FindOneAndUpdate(ctx, activeFilter(bson.M{"_id": oid}), bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) updateActive(ctx context.Context, id string, set bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set["updatedAt"] = time.Now()
	res, err := r.c.UpdateOne(ctx, activeFilter(bson.M{"_id": oid}), bson.M{"$set": set})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.updateActive(ctx, id, bson.M{"password": hash})
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.updateActive(ctx, id, bson.M{"emailVerified": true})
}

// SoftDelete 软删除：设置 deletedAt 并停用
func (r *UserRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.updateActive(ctx, id, bson.M{"deletedAt": at, "isActive": false})
}

// Restore 恢复软删除账号
func (r *UserRepository) Restore(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": oid, "deletedAt": bson.M{"$ne": nil}},
		bson.M{"$set": bson.M{"deletedAt": nil, "isActive": true, "updatedAt": time.Now()}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// IncrCounter 单文档原子计数，递减保底为 0
func (r *UserRepository) IncrCounter(ctx context.Context, id string, field model.UserCounter, delta int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.c.UpdateOne(ctx, bson.M{"_id": oid}, counterUpdate(string(field), delta))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetFollowCounts 对账修正关注/粉丝数，仅当文档仍是 prev 时写入，
// 期间有并发增减则返回 ErrStale
func (r *UserRepository) SetFollowCounts(ctx context.Context, id string, prev, next model.FollowCounts) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.c.UpdateOne(ctx, followCountsFilter(oid, prev), bson.M{"$set": bson.M{
		string(model.CounterFollowing): next.Following,
		string(model.CounterFollowers): next.Followers,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrStale
	}
	return nil
}

func followCountsFilter(oid primitive.ObjectID, prev model.FollowCounts) bson.M {
	return bson.M{
		"_id":                          oid,
		string(model.CounterFollowing): prev.Following,
		string(model.CounterFollowers): prev.Followers,
	}
}

// ListActiveAfter 按 _id 递增分批遍历活跃用户
func (r *UserRepository) ListActiveAfter(ctx context.Context, lastID string, limit int) ([]model.User, error) {
	filter := bson.M{}
	if lastID != "" {
		oid, err := objectID(lastID)
		if err != nil {
			return nil, err
		}
		filter["_id"] = bson.M{"$gt": oid}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1, "followersCount": 1, "followingCount": 1})
	cur, err := r.c.Find(ctx, activeFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, limit)
	if err = cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
