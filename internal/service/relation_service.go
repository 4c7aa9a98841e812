package service

import (
	"context"
	"errors"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSuggestionLimit = 10
	MaxSuggestionLimit     = 20
)

// RelationService 关注与好友关系：图库边与文档计数/状态的协调
type RelationService struct {
	users     UserStore
	requests  FriendRequestStore
	follows   FollowGraph
	friends   FriendGraph
	secondary *Secondary
	events    *events
	logger    *zap.Logger
	now       func() time.Time
}

func NewRelationService(d Deps) *RelationService {
	return &RelationService{
		users:     d.Users,
		requests:  d.Requests,
		follows:   d.Follows,
		friends:   d.Friends,
		secondary: NewSecondary(d),
		events:    newEvents(d),
		logger:    d.logger(),
		now:       d.clock(),
	}
}

// Follow 关注：先建边，再并发调整双方计数
func (s *RelationService) Follow(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return pkg.SelfRef("cannot follow yourself")
	}
	if _, err := s.users.FindActiveByID(ctx, targetID); err != nil {
		return docErr(err, "user not found")
	}
	following, err := s.follows.IsFollowing(ctx, followerID, targetID)
	if err != nil {
		return graphErr(err)
	}
	if following {
		return pkg.Conflict("already following this user")
	}
	created, err := s.follows.Follow(ctx, followerID, targetID)
	if err != nil {
		return graphErr(err)
	}
	if !created {
		// 并发请求已经建好了边，计数由那次请求负责
		return pkg.Conflict("already following this user")
	}
	if err = s.adjustFollowCounts(ctx, followerID, targetID, 1); err != nil {
		return err
	}
	s.events.publish(ctx, model.EventFollow, followerID, targetID, "")
	return nil
}

// Unfollow 取消关注，计数递减保底为 0
func (s *RelationService) Unfollow(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return pkg.SelfRef("cannot unfollow yourself")
	}
	if _, err := s.users.FindActiveByID(ctx, targetID); err != nil {
		return docErr(err, "user not found")
	}
	following, err := s.follows.IsFollowing(ctx, followerID, targetID)
	if err != nil {
		return graphErr(err)
	}
	if !following {
		return pkg.InvalidState("not following this user")
	}
	deleted, err := s.follows.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return graphErr(err)
	}
	if !deleted {
		return pkg.InvalidState("not following this user")
	}
	return s.adjustFollowCounts(ctx, followerID, targetID, -1)
}

// adjustFollowCounts 两个文档各自原子更新，没有跨文档事务，可能只成功一侧
func (s *RelationService) adjustFollowCounts(ctx context.Context, followerID, targetID string, delta int64) error {
	var g errgroup.Group
	g.Go(func() error {
		return s.users.IncrCounter(ctx, followerID, model.CounterFollowing, delta)
	})
	g.Go(func() error {
		return s.users.IncrCounter(ctx, targetID, model.CounterFollowers, delta)
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("follow counters not fully applied",
			zap.String("follower", followerID),
			zap.String("target", targetID),
			zap.Int64("delta", delta),
			zap.Error(err))
		return pkg.Internal("update follow counters", err)
	}
	return nil
}

func (s *RelationService) FollowStatus(ctx context.Context, followerID, targetID string) (bool, error) {
	ok, err := s.follows.IsFollowing(ctx, followerID, targetID)
	if err != nil {
		return false, graphErr(err)
	}
	return ok, nil
}

// Followers 粉丝列表：id 来自图库，详情来自文档库
func (s *RelationService) Followers(ctx context.Context, userID, viewerID string, p pkg.Page) (*UserPage, error) {
	return s.listRelated(ctx, userID, viewerID, p, s.follows.FollowerIDs)
}

// Following 关注列表
func (s *RelationService) Following(ctx context.Context, userID, viewerID string, p pkg.Page) (*UserPage, error) {
	return s.listRelated(ctx, userID, viewerID, p, s.follows.FollowingIDs)
}

func (s *RelationService) listRelated(ctx context.Context, userID, viewerID string, p pkg.Page,
	idsOf func(context.Context, string) ([]string, error)) (*UserPage, error) {
	if _, err := s.users.FindActiveByID(ctx, userID); err != nil {
		return nil, docErr(err, "user not found")
	}
	ids, err := idsOf(ctx, userID)
	if err != nil {
		return nil, graphErr(err)
	}
	start, end := p.Window(len(ids))
	users, err := loadUsers(ctx, s.users, ids[start:end])
	if err != nil {
		return nil, err
	}
	return &UserPage{
		Users:      s.withFollowing(ctx, viewerID, users),
		Pagination: p.Of(int64(len(ids))),
	}, nil
}

// withFollowing 标注访问者是否关注了列表中的用户，图库失败时一律为 false
func (s *RelationService) withFollowing(ctx context.Context, viewerID string, users []model.User) []UserItem {
	var following map[string]struct{}
	if viewerID != "" {
		ids, err := s.follows.FollowingIDs(ctx, viewerID)
		if err != nil {
			s.logger.Warn("load viewer following failed", zap.String("viewer", viewerID), zap.Error(err))
		}
		following = idSet(ids)
	}
	items := make([]UserItem, 0, len(users))
	for i := range users {
		_, ok := following[users[i].ID.Hex()]
		items = append(items, UserItem{UserBrief: users[i].Brief(), IsFollowing: ok})
	}
	return items
}

type SuggestionItem struct {
	model.UserBrief
	MutualCount int64 `json:"mutualCount"`
}

// Suggestions 关注推荐，limit 限制在 1..20
func (s *RelationService) Suggestions(ctx context.Context, userID string, limit int) ([]SuggestionItem, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if limit > MaxSuggestionLimit {
		limit = MaxSuggestionLimit
	}
	suggestions, err := s.follows.Suggestions(ctx, userID, limit)
	if err != nil {
		return nil, graphErr(err)
	}
	ids := make([]string, 0, len(suggestions))
	mutual := make(map[string]int64, len(suggestions))
	for _, sg := range suggestions {
		ids = append(ids, sg.UserID)
		mutual[sg.UserID] = sg.MutualCount
	}
	users, err := loadUsers(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}
	items := make([]SuggestionItem, 0, len(users))
	for i := range users {
		items = append(items, SuggestionItem{
			UserBrief:   users[i].Brief(),
			MutualCount: mutual[users[i].ID.Hex()],
		})
	}
	return items, nil
}

// MutualFollowing 共同关注
func (s *RelationService) MutualFollowing(ctx context.Context, userID, otherID string) ([]model.UserBrief, error) {
	ids, err := s.follows.MutualFollowing(ctx, userID, otherID)
	if err != nil {
		return nil, graphErr(err)
	}
	users, err := loadUsers(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}
	return briefs(users), nil
}

// SendFriendRequest 发送好友请求，同一对用户只能有一条未结束的请求
func (s *RelationService) SendFriendRequest(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
	if senderID == receiverID {
		return nil, pkg.SelfRef("cannot send friend request to yourself")
	}
	receiver, err := s.users.FindActiveByID(ctx, receiverID)
	if err != nil {
		return nil, docErr(err, "user not found")
	}
	sender, err := s.users.FindActiveByID(ctx, senderID)
	if err != nil {
		return nil, docErr(err, "user not found")
	}
	open, err := s.requests.FindOpenBetween(ctx, senderID, receiverID)
	switch {
	case err == nil:
		if open.Status == model.FriendAccepted {
			return nil, pkg.Conflict("already friends")
		}
		return nil, pkg.Conflict("friend request already pending")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, pkg.Internal("find friend request", err)
	}
	now := s.now()
	fr := &model.FriendRequest{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Status:     model.FriendPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.requests.Create(ctx, fr); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, pkg.Conflict("friend request already pending")
		}
		return nil, pkg.Internal("create friend request", err)
	}
	s.events.publish(ctx, model.EventFriendRequest, senderID, receiverID, fr.ID.Hex())
	return fr, nil
}

// AcceptResult 接受好友请求的结果，Graph 为建边的派生写入结果
type AcceptResult struct {
	Request *model.FriendRequest
	Graph   BestEffort
}

// AcceptFriendRequest 先把请求置为 accepted（决定性写入），再尽力建立双向 FRIEND 边
func (s *RelationService) AcceptFriendRequest(ctx context.Context, requestID, receiverID string) (*AcceptResult, error) {
	fr, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, docErr(err, "friend request not found")
	}
	if fr.ReceiverID.Hex() != receiverID {
		return nil, pkg.NotFound("friend request not found")
	}
	if fr.Status != model.FriendPending {
		return nil, pkg.InvalidState("friend request is not pending")
	}
	if err = s.requests.Transition(ctx, requestID, model.FriendPending, model.FriendAccepted); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, pkg.InvalidState("friend request is not pending")
		}
		return nil, pkg.Internal("accept friend request", err)
	}
	fr.Status = model.FriendAccepted
	fr.Open = true
	fr.UpdatedAt = s.now()

	senderID := fr.SenderID.Hex()
	graph := s.secondary.Apply(ctx, model.GraphOp{Kind: model.OpBefriend, FromID: senderID, ToID: receiverID})
	s.events.publish(ctx, model.EventFriendAccept, receiverID, senderID, requestID)
	return &AcceptResult{Request: fr, Graph: graph}, nil
}

// DeleteFriendRequest 撤回（发送方）或拒绝（接收方）待处理的请求
func (s *RelationService) DeleteFriendRequest(ctx context.Context, requestID, userID string) (*model.FriendRequest, error) {
	fr, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, docErr(err, "friend request not found")
	}
	if fr.Status != model.FriendPending {
		return nil, pkg.NotFound("friend request not found")
	}
	var to model.FriendRequestStatus
	switch userID {
	case fr.SenderID.Hex():
		to = model.FriendCancelled
	case fr.ReceiverID.Hex():
		to = model.FriendRejected
	default:
		return nil, pkg.Forbidden("not authorized to delete this request")
	}
	if err = s.requests.Transition(ctx, requestID, model.FriendPending, to); err != nil {
		return nil, docErr(err, "friend request not found")
	}
	fr.Status = to
	fr.Open = false
	fr.UpdatedAt = s.now()
	return fr, nil
}

// Unfriend 解除好友：文档库状态先行，图库边与关注关系尽力清理
func (s *RelationService) Unfriend(ctx context.Context, userID, friendID string) (SyncReport, error) {
	if userID == friendID {
		return nil, pkg.SelfRef("cannot unfriend yourself")
	}
	isFriend, err := s.areFriends(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if !isFriend {
		return nil, pkg.NotFound("not friends with this user")
	}
	if _, err = s.requests.CancelAccepted(ctx, userID, friendID); err != nil {
		return nil, pkg.Internal("cancel friend request", err)
	}

	report := SyncReport{
		s.secondary.Apply(ctx, model.GraphOp{Kind: model.OpUnfriend, FromID: userID, ToID: friendID}),
	}
	report = append(report, s.cascadeUnfollow(ctx, userID, friendID)...)
	report = append(report, s.cascadeUnfollow(ctx, friendID, userID)...)
	return report, nil
}

// areFriends 图库边或文档中已接受的请求任一成立即为好友
func (s *RelationService) areFriends(ctx context.Context, a, b string) (bool, error) {
	ok, err := s.friends.IsFriend(ctx, a, b)
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		s.logger.Warn("graph friend check failed, using documents", zap.Error(err))
	}
	ok, err = s.requests.ExistsAccepted(ctx, a, b)
	if err != nil {
		return false, pkg.Internal("check friendship", err)
	}
	return ok, nil
}

// cascadeUnfollow 移除 from->to 的关注及其计数，各步骤独立失败
func (s *RelationService) cascadeUnfollow(ctx context.Context, from, to string) SyncReport {
	ctx = detach(ctx)
	op := model.GraphOp{Kind: model.OpUnfollow, FromID: from, ToID: to}
	following, err := s.follows.IsFollowing(ctx, from, to)
	if err != nil {
		return SyncReport{s.secondary.Record(ctx, op, err)}
	}
	if !following {
		return nil
	}
	deleted, err := s.follows.Unfollow(ctx, from, to)
	if err != nil {
		return SyncReport{s.secondary.Record(ctx, op, err)}
	}
	if deleted {
		if cerr := s.adjustFollowCounts(ctx, from, to, -1); cerr != nil {
			s.logger.Warn("cascade unfollow counters failed", zap.String("from", from), zap.String("to", to), zap.Error(cerr))
		}
	}
	return SyncReport{{Op: op}}
}

type FriendStatus struct {
	IsFriend bool                 `json:"isFriend"`
	Pending  *model.FriendRequest `json:"pendingRequest,omitempty"`
}

// FriendStatus 好友状态以文档库为准
func (s *RelationService) FriendStatus(ctx context.Context, userID, otherID string) (*FriendStatus, error) {
	open, err := s.requests.FindOpenBetween(ctx, userID, otherID)
	if errors.Is(err, repository.ErrNotFound) {
		return &FriendStatus{}, nil
	}
	if err != nil {
		return nil, pkg.Internal("check friendship", err)
	}
	if open.Status == model.FriendAccepted {
		return &FriendStatus{IsFriend: true}, nil
	}
	return &FriendStatus{Pending: open}, nil
}

// Friends 好友列表，按图库 id 顺序分页
func (s *RelationService) Friends(ctx context.Context, userID, viewerID string, p pkg.Page) (*UserPage, error) {
	if _, err := s.users.FindActiveByID(ctx, userID); err != nil {
		return nil, docErr(err, "user not found")
	}
	ids, total, err := s.friends.FriendIDs(ctx, userID, p.Offset(), p.Limit)
	if err != nil {
		return nil, graphErr(err)
	}
	users, err := loadUsers(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: s.withFollowing(ctx, viewerID, users), Pagination: p.Of(total)}, nil
}

type FriendRequestItem struct {
	*model.FriendRequest
	User model.UserBrief `json:"user"`
}

type FriendRequestPage struct {
	Requests   []FriendRequestItem `json:"requests"`
	Pagination pkg.Pagination      `json:"pagination"`
}

// FriendRequests 发出或收到的待处理请求，附带对方信息
func (s *RelationService) FriendRequests(ctx context.Context, userID string, sent bool, p pkg.Page) (*FriendRequestPage, error) {
	rows, total, err := s.requests.ListPending(ctx, userID, sent, p.Offset(), p.Limit)
	if err != nil {
		return nil, docErr(err, "user not found")
	}
	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].Counterpart(userID).Hex())
	}
	users, err := loadUsers(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	items := make([]FriendRequestItem, 0, len(rows))
	for i := range rows {
		u, ok := byID[rows[i].Counterpart(userID)]
		if !ok {
			continue
		}
		items = append(items, FriendRequestItem{FriendRequest: &rows[i], User: u.Brief()})
	}
	return &FriendRequestPage{Requests: items, Pagination: p.Of(total)}, nil
}

// MutualFriends 共同好友
func (s *RelationService) MutualFriends(ctx context.Context, userID, otherID string) ([]model.UserBrief, error) {
	ids, err := s.friends.MutualFriends(ctx, userID, otherID)
	if err != nil {
		return nil, graphErr(err)
	}
	users, err := loadUsers(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}
	return briefs(users), nil
}
