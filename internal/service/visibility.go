package service

import (
	"context"
	"fmt"

	"Lee_Social/internal/model"

	"go.uber.org/zap"
)

// FriendsPolicy "friends" 可见性的判定口径
type FriendsPolicy string

const (
	// FriendsMeansFollower 访问者关注了作者即可见
	FriendsMeansFollower FriendsPolicy = "follower"
	// FriendsMeansMutualFriend 需要双方是已接受的好友
	FriendsMeansMutualFriend FriendsPolicy = "friend"
)

func ParseFriendsPolicy(s string) (FriendsPolicy, error) {
	switch FriendsPolicy(s) {
	case "", FriendsMeansFollower:
		return FriendsMeansFollower, nil
	case FriendsMeansMutualFriend:
		return FriendsMeansMutualFriend, nil
	}
	return "", fmt.Errorf("unknown friends visibility policy %q", s)
}

// Visibility 帖子可见性判定
type Visibility struct {
	policy   FriendsPolicy
	follows  FollowGraph
	requests FriendRequestStore
	logger   *zap.Logger
}

func NewVisibility(d Deps, policy FriendsPolicy) *Visibility {
	return &Visibility{policy: policy, follows: d.Follows, requests: d.Requests, logger: d.logger()}
}

func (v *Visibility) Policy() FriendsPolicy { return v.policy }

// FriendAuthors 好友口径下 viewerID 能看到其 friends 帖子的作者，含自己。
// 查询失败时只返回自己
func (v *Visibility) FriendAuthors(ctx context.Context, viewerID string) []string {
	peers, err := v.requests.AcceptedPeerIDs(ctx, viewerID)
	if err != nil {
		v.logger.Warn("load friends for visibility failed, denying", zap.String("viewer", viewerID), zap.Error(err))
		peers = nil
	}
	return append(peers, viewerID)
}

// CanView viewerID 为空表示未登录；关系查询失败时拒绝
func (v *Visibility) CanView(ctx context.Context, post *model.Post, viewerID string) bool {
	return v.Allows(ctx, post.Visibility, post.AuthorID.Hex(), viewerID)
}

// Allows 按可见级别判断 viewerID 能否看到 authorID 的内容
func (v *Visibility) Allows(ctx context.Context, level model.Visibility, authorID, viewerID string) bool {
	switch level {
	case model.VisibilityPublic:
		return true
	case model.VisibilityPrivate:
		return viewerID != "" && viewerID == authorID
	case model.VisibilityFriends:
		if viewerID == "" {
			return false
		}
		if viewerID == authorID {
			return true
		}
		return v.related(ctx, viewerID, authorID)
	}
	return false
}

func (v *Visibility) related(ctx context.Context, viewerID, authorID string) bool {
	var (
		ok  bool
		err error
	)
	if v.policy == FriendsMeansMutualFriend {
		ok, err = v.requests.ExistsAccepted(ctx, viewerID, authorID)
	} else {
		ok, err = v.follows.IsFollowing(ctx, viewerID, authorID)
	}
	if err != nil {
		v.logger.Warn("visibility lookup failed, denying",
			zap.String("viewer", viewerID),
			zap.String("author", authorID),
			zap.String("policy", string(v.policy)),
			zap.Error(err))
		return false
	}
	return ok
}
