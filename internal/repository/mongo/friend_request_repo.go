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

type FriendRequestRepository struct {
	c *mongo.Collection
}

func NewFriendRequestRepository(c *Client) *FriendRequestRepository {
	return &FriendRequestRepository{c: c.coll(collFriendRequests)}
}

// Create 同一无序用户对只能有一条非终态请求，由部分唯一索引保证
func (r *FriendRequestRepository) Create(ctx context.Context, fr *model.FriendRequest) error {
	if fr.ID.IsZero() {
		fr.ID = primitive.NewObjectID()
	}
	fr.Pair = model.PairKey(fr.SenderID.Hex(), fr.ReceiverID.Hex())
	fr.Open = fr.Status.Open()
	_, err := r.c.InsertOne(ctx, fr)
	return translate(err)
}

func (r *FriendRequestRepository) FindByID(ctx context.Context, id string) (*model.FriendRequest, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var fr model.FriendRequest
	if err = r.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&fr); err != nil {
		return nil, translate(err)
	}
	return &fr, nil
}

// FindOpenBetween 查找两人之间任意方向的非终态请求
func (r *FriendRequestRepository) FindOpenBetween(ctx context.Context, a, b string) (*model.FriendRequest, error) {
	var fr model.FriendRequest
	if err := r.c.FindOne(ctx, bson.M{"pair": model.PairKey(a, b), "open": true}).Decode(&fr); err != nil {
		return nil, translate(err)
	}
	return &fr, nil
}

// Transition 仅当当前状态为 from 时迁移到 to
func (r *FriendRequestRepository) Transition(ctx context.Context, id string, from, to model.FriendRequestStatus) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": oid, "status": from},
		bson.M{"$set": bson.M{"status": to, "open": to.Open(), "updatedAt": time.Now()}},
	)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CancelAccepted 解除好友时把已接受的请求置为 cancelled
func (r *FriendRequestRepository) CancelAccepted(ctx context.Context, a, b string) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.M{"pair": model.PairKey(a, b), "status": model.FriendAccepted},
		bson.M{"$set": bson.M{"status": model.FriendCancelled, "open": false, "updatedAt": time.Now()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *FriendRequestRepository) ExistsAccepted(ctx context.Context, a, b string) (bool, error) {
	n, err := r.c.CountDocuments(ctx, bson.M{"pair": model.PairKey(a, b), "status": model.FriendAccepted})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AcceptedPeerIDs 与该用户有已接受请求的对方 id
func (r *FriendRequestRepository) AcceptedPeerIDs(ctx context.Context, userID string) ([]string, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	filter := bson.M{
		"status": model.FriendAccepted,
		"$or":    bson.A{bson.M{"sender": uid}, bson.M{"receiver": uid}},
	}
	cur, err := r.c.Find(ctx, filter, options.Find().SetProjection(bson.M{"sender": 1, "receiver": 1}))
	if err != nil {
		return nil, err
	}
	var rows []model.FriendRequest
	if err = cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].Counterpart(userID).Hex())
	}
	return ids, nil
}

// ListPending 发出或收到的待处理请求
func (r *FriendRequestRepository) ListPending(ctx context.Context, userID string, sent bool, offset, limit int) ([]model.FriendRequest, int64, error) {
	uid, err := objectID(userID)
	if err != nil {
		return nil, 0, err
	}
	field := "receiver"
	if sent {
		field = "sender"
	}
	filter := bson.M{field: uid, "status": model.FriendPending}
	return findPage[model.FriendRequest](ctx, r.c, filter, bson.D{{Key: "createdAt", Value: -1}}, offset, limit)
}
