package model

import (
	"encoding/json"
	"time"
)

// Suggestion 图库推荐结果
type Suggestion struct {
	UserID      string
	MutualCount int64
}

// GraphOpKind 图库写操作类型
type GraphOpKind string

const (
	OpUpsertUser GraphOpKind = "upsert_user"
	OpDeleteUser GraphOpKind = "delete_user"
	OpFollow     GraphOpKind = "follow"
	OpUnfollow   GraphOpKind = "unfollow"
	OpBefriend   GraphOpKind = "befriend"
	OpUnfriend   GraphOpKind = "unfriend"
)

// GraphOp 一次图库写操作，失败后可进入补偿表重放
type GraphOp struct {
	Kind   GraphOpKind `json:"kind"`
	FromID string      `json:"from,omitempty"`
	ToID   string      `json:"to,omitempty"`
	Node   *UserNode   `json:"node,omitempty"`
}

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// GraphOutbox 图库补偿表
type GraphOutbox struct {
	ID        uint64 `gorm:"primaryKey"`
	Kind      string `gorm:"size:16;not null;index"`
	FromID    string `gorm:"size:24;not null;default:''"`
	ToID      string `gorm:"size:24;not null;default:''"`
	Payload   string `gorm:"type:json;not null"`
	Status    int8   `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry     int    `gorm:"not null;default:0"`
	LastError string `gorm:"size:512"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GraphOutbox) TableName() string { return "graph_outbox" }

// Op 还原记录中的图库操作
func (o *GraphOutbox) Op() (GraphOp, error) {
	var op GraphOp
	err := json.Unmarshal([]byte(o.Payload), &op)
	return op, err
}

// RelationEvent 关系变更通知
type RelationEvent struct {
	Type      string    `json:"type"`
	ActorID   string    `json:"actor"`
	TargetID  string    `json:"target"`
	RefID     string    `json:"ref,omitempty"`
	EventTime time.Time `json:"event_time"`
}

const (
	EventFollow        = "follow"
	EventFriendRequest = "friend_request"
	EventFriendAccept  = "friend_accept"
	EventPostLike      = "post_like"
)
