package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FriendRequestStatus string

const (
	FriendPending   FriendRequestStatus = "pending"
	FriendAccepted  FriendRequestStatus = "accepted"
	FriendRejected  FriendRequestStatus = "rejected"
	FriendCancelled FriendRequestStatus = "cancelled"
)

// Open pending 和 accepted 为非终态
func (s FriendRequestStatus) Open() bool {
	return s == FriendPending || s == FriendAccepted
}

type FriendRequest struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SenderID   primitive.ObjectID  `bson:"sender" json:"senderId"`
	ReceiverID primitive.ObjectID  `bson:"receiver" json:"receiverId"`
	Status     FriendRequestStatus `bson:"status" json:"status"`
	// Pair 无序用户对，配合 open 上的部分唯一索引
	Pair      string    `bson:"pair" json:"-"`
	Open      bool      `bson:"open" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PairKey 生成无序用户对的键
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Involves 请求是否与该用户相关
func (r *FriendRequest) Involves(userID string) bool {
	return r.SenderID.Hex() == userID || r.ReceiverID.Hex() == userID
}

// Counterpart 返回请求中另一方
func (r *FriendRequest) Counterpart(userID string) primitive.ObjectID {
	if r.SenderID.Hex() == userID {
		return r.ReceiverID
	}
	return r.SenderID
}
