package service

import (
	"context"
	"time"

	"Lee_Social/internal/model"
)

// UserStore 用户文档（权威存储）
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindActiveByID(ctx context.Context, id string) (*model.User, error)
	FindActiveByEmail(ctx context.Context, email string) (*model.User, error)
	FindActiveByUsername(ctx context.Context, username string) (*model.User, error)
	FindDeletedByEmail(ctx context.Context, email string) (*model.User, error)
	FindActiveByIDs(ctx context.Context, ids []string) ([]model.User, error)
	Search(ctx context.Context, keyword string, offset, limit int) ([]model.User, int64, error)
	UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
	IncrCounter(ctx context.Context, id string, field model.UserCounter, delta int64) error
	// SetFollowCounts 条件写入，文档已不是 prev 时返回 repository.ErrStale
	SetFollowCounts(ctx context.Context, id string, prev, next model.FollowCounts) error
	ListActiveAfter(ctx context.Context, lastID string, limit int) ([]model.User, error)
}

type PostStore interface {
	Create(ctx context.Context, p *model.Post) error
	FindActiveByID(ctx context.Context, id string) (*model.Post, error)
	Update(ctx context.Context, id string, upd model.PostUpdate) (*model.Post, error)
	SoftDelete(ctx context.Context, id string) error
	Find(ctx context.Context, q model.PostQuery) ([]model.Post, int64, error)
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
	IncrComments(ctx context.Context, id string, delta int64) error
}

type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	FindActiveByID(ctx context.Context, id string) (*model.Comment, error)
	ListTopLevel(ctx context.Context, postID string, offset, limit int) ([]model.Comment, int64, error)
	ListReplies(ctx context.Context, parentID string, offset, limit int) ([]model.Comment, int64, error)
	UpdateContent(ctx context.Context, id, content string) (*model.Comment, error)
	SoftDelete(ctx context.Context, id string) error
	IncrReplies(ctx context.Context, id string, delta int64) error
	Like(ctx context.Context, commentID, userID string) error
	Unlike(ctx context.Context, commentID, userID string) error
}

type StoryStore interface {
	Create(ctx context.Context, s *model.Story) error
	FindLive(ctx context.Context, id string, since time.Time) (*model.Story, error)
	ListByAuthors(ctx context.Context, authorIDs []string, since time.Time) ([]model.Story, error)
	Delete(ctx context.Context, id string) error
	AddView(ctx context.Context, storyID, userID string, at time.Time) (int64, error)
}

type FriendRequestStore interface {
	Create(ctx context.Context, fr *model.FriendRequest) error
	FindByID(ctx context.Context, id string) (*model.FriendRequest, error)
	FindOpenBetween(ctx context.Context, a, b string) (*model.FriendRequest, error)
	Transition(ctx context.Context, id string, from, to model.FriendRequestStatus) error
	CancelAccepted(ctx context.Context, a, b string) (int64, error)
	ExistsAccepted(ctx context.Context, a, b string) (bool, error)
	AcceptedPeerIDs(ctx context.Context, userID string) ([]string, error)
	ListPending(ctx context.Context, userID string, sent bool, offset, limit int) ([]model.FriendRequest, int64, error)
}

// UserGraph 图库中的用户节点（派生索引）
type UserGraph interface {
	UpsertUser(ctx context.Context, n model.UserNode) error
	DeleteUser(ctx context.Context, id string) error
}

type FollowGraph interface {
	Follow(ctx context.Context, followerID, targetID string) (bool, error)
	Unfollow(ctx context.Context, followerID, targetID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, targetID string) (bool, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	FollowCounts(ctx context.Context, userID string) (following, followers int64, err error)
	Suggestions(ctx context.Context, userID string, limit int) ([]model.Suggestion, error)
	MutualFollowing(ctx context.Context, a, b string) ([]string, error)
}

type FriendGraph interface {
	Befriend(ctx context.Context, a, b string) error
	Unfriend(ctx context.Context, a, b string) error
	IsFriend(ctx context.Context, a, b string) (bool, error)
	FriendIDs(ctx context.Context, userID string, offset, limit int) ([]string, int64, error)
	AllFriendIDs(ctx context.Context, userID string) ([]string, error)
	MutualFriends(ctx context.Context, a, b string) ([]string, error)
}

// RepairQueue 失败的图库写入进入补偿队列
type RepairQueue interface {
	Enqueue(ctx context.Context, op model.GraphOp) error
}

// Notifier 关系变更通知
type Notifier interface {
	Notify(ctx context.Context, ev model.RelationEvent) error
}

type SessionStore interface {
	Save(ctx context.Context, userID, token string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (string, error)
	Extend(ctx context.Context, userID string, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}

type CodeStore interface {
	Save(ctx context.Context, userID, code string) error
	Consume(ctx context.Context, userID, code string) (bool, error)
	TTL() time.Duration
}

type MailSender interface {
	Send(to, subject, htmlBody string) error
}

// OutboxStore 补偿队列的读取与状态更新
type OutboxStore interface {
	ListPending(ctx context.Context, batchSize int) ([]model.GraphOutbox, error)
	MarkSent(ctx context.Context, id uint64) error
	MarkRetry(ctx context.Context, ob *model.GraphOutbox, cause error, maxRetry int) error
}
