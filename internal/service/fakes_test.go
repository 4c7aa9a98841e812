package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errGraphDown = errors.New("neo4j: connection refused")

// memStore 内存中的文档库与图库，测试共用一把锁
type memStore struct {
	mu sync.Mutex

	users    map[string]*model.User
	posts    map[string]*model.Post
	comments map[string]*model.Comment
	stories  map[string]*model.Story
	requests map[string]*model.FriendRequest

	nodes   map[string]model.UserNode
	follows map[[2]string]bool
	friends map[[2]string]bool

	// graphErr 非空时所有图库调用失败
	graphErr error
	// failCounter 非空时用户计数更新失败
	failCounter error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*model.User{},
		posts:    map[string]*model.Post{},
		comments: map[string]*model.Comment{},
		stories:  map[string]*model.Story{},
		requests: map[string]*model.FriendRequest{},
		nodes:    map[string]model.UserNode{},
		follows:  map[[2]string]bool{},
		friends:  map[[2]string]bool{},
	}
}

func window[T any](rows []T, offset, limit int) []T {
	if offset > len(rows) {
		offset = len(rows)
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return rows[offset:end]
}

func oid(id string) primitive.ObjectID {
	v, _ := primitive.ObjectIDFromHex(id)
	return v
}

func addFloor(v, delta int64) int64 {
	v += delta
	if v < 0 {
		return 0
	}
	return v
}

func toggle(ids []primitive.ObjectID, userID string, add bool) ([]primitive.ObjectID, error) {
	has := false
	for _, id := range ids {
		if id.Hex() == userID {
			has = true
		}
	}
	if add {
		if has {
			return nil, repository.ErrAlreadyMember
		}
		return append(ids, oid(userID)), nil
	}
	if !has {
		return nil, repository.ErrNotMember
	}
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.Hex() != userID {
			out = append(out, id)
		}
	}
	return out, nil
}

// ---- users ----

type fakeUsers struct{ *memStore }

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.users {
		if x.DeletedAt == nil && (x.Email == u.Email || x.Username == u.Username) {
			return repository.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	f.users[u.ID.Hex()] = &cp
	return nil
}

func (f fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeUsers) FindActiveByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID.Hex() == id && u.DeletedAt == nil })
}

func (f fakeUsers) FindActiveByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email && u.DeletedAt == nil })
}

func (f fakeUsers) FindActiveByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username && u.DeletedAt == nil })
}

func (f fakeUsers) FindDeletedByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email && u.DeletedAt != nil })
}

func (f fakeUsers) FindActiveByIDs(_ context.Context, ids []string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok && u.DeletedAt == nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f fakeUsers) Search(_ context.Context, keyword string, offset, limit int) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kw := strings.ToLower(keyword)
	var out []model.User
	for _, u := range f.users {
		if u.DeletedAt != nil {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), kw) || strings.Contains(strings.ToLower(u.Name), kw) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FollowersCount != out[j].FollowersCount {
			return out[i].FollowersCount > out[j].FollowersCount
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, offset, limit), int64(len(out)), nil
}

func (f fakeUsers) active(id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f fakeUsers) UpdateProfile(_ context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.active(id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.active(id)
	if err != nil {
		return err
	}
	u.Password = hash
	return nil
}

func (f fakeUsers) MarkEmailVerified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.active(id)
	if err != nil {
		return err
	}
	u.EmailVerified = true
	return nil
}

func (f fakeUsers) SoftDelete(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.active(id)
	if err != nil {
		return err
	}
	u.DeletedAt = &at
	u.IsActive = false
	return nil
}

func (f fakeUsers) Restore(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.DeletedAt == nil {
		return repository.ErrNotFound
	}
	u.DeletedAt = nil
	u.IsActive = true
	return nil
}

func (f fakeUsers) IncrCounter(_ context.Context, id string, field model.UserCounter, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCounter != nil {
		return f.failCounter
	}
	u, err := f.active(id)
	if err != nil {
		return err
	}
	switch field {
	case model.CounterFollowers:
		u.FollowersCount = addFloor(u.FollowersCount, delta)
	case model.CounterFollowing:
		u.FollowingCount = addFloor(u.FollowingCount, delta)
	case model.CounterPosts:
		u.PostsCount = addFloor(u.PostsCount, delta)
	}
	return nil
}

func (f fakeUsers) SetFollowCounts(_ context.Context, id string, prev, next model.FollowCounts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.FollowCounts() != prev {
		return repository.ErrStale
	}
	u.FollowingCount = next.Following
	u.FollowersCount = next.Followers
	return nil
}

func (f fakeUsers) ListActiveAfter(_ context.Context, lastID string, limit int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for id, u := range f.users {
		if u.DeletedAt == nil && id > lastID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return window(out, 0, limit), nil
}

// ---- posts ----

type fakePosts struct{ *memStore }

func (f fakePosts) Create(_ context.Context, p *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	cp := *p
	f.posts[p.ID.Hex()] = &cp
	return nil
}

func (f fakePosts) live(id string) (*model.Post, error) {
	p, ok := f.posts[id]
	if !ok || p.IsDeleted {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f fakePosts) FindActiveByID(_ context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.live(id)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (f fakePosts) Update(_ context.Context, id string, upd model.PostUpdate) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.live(id)
	if err != nil {
		return nil, err
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	if upd.Images != nil {
		p.Images = *upd.Images
	}
	if upd.Visibility != nil {
		p.Visibility = *upd.Visibility
	}
	cp := *p
	return &cp, nil
}

func (f fakePosts) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.live(id)
	if err != nil {
		return err
	}
	p.IsDeleted = true
	return nil
}

func (f fakePosts) Find(_ context.Context, q model.PostQuery) ([]model.Post, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var authors, levels map[string]struct{}
	if q.AuthorIDs != nil {
		authors = idSet(q.AuthorIDs)
	}
	if q.Visibilities != nil {
		levels = map[string]struct{}{}
		for _, v := range q.Visibilities {
			levels[string(v)] = struct{}{}
		}
	}
	var out []model.Post
	for _, p := range f.posts {
		if p.IsDeleted {
			continue
		}
		if _, ok := authors[p.AuthorID.Hex()]; authors != nil && !ok {
			continue
		}
		if _, ok := levels[string(p.Visibility)]; levels != nil && !ok {
			continue
		}
		if len(q.Scopes) > 0 && !inScope(q.Scopes, p) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.Sort == model.SortTrending && out[i].LikesCount != out[j].LikesCount {
			return out[i].LikesCount > out[j].LikesCount
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return window(out, q.Offset, q.Limit), int64(len(out)), nil
}

func inScope(scopes []model.PostScope, p *model.Post) bool {
	for _, sc := range scopes {
		if _, ok := idSet(sc.AuthorIDs)[p.AuthorID.Hex()]; !ok {
			continue
		}
		for _, v := range sc.Visibilities {
			if v == p.Visibility {
				return true
			}
		}
	}
	return false
}

func (f fakePosts) Like(_ context.Context, postID, userID string) error {
	return f.toggle(postID, userID, true)
}

func (f fakePosts) Unlike(_ context.Context, postID, userID string) error {
	return f.toggle(postID, userID, false)
}

func (f fakePosts) toggle(postID, userID string, add bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.live(postID)
	if err != nil {
		return err
	}
	ids, err := toggle(p.LikedBy, userID, add)
	if err != nil {
		return err
	}
	p.LikedBy = ids
	p.LikesCount = int64(len(ids))
	return nil
}

func (f fakePosts) IncrComments(_ context.Context, id string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.CommentsCount = addFloor(p.CommentsCount, delta)
	return nil
}

// ---- comments ----

type fakeComments struct{ *memStore }

func (f fakeComments) Create(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	cp := *c
	f.comments[c.ID.Hex()] = &cp
	return nil
}

func (f fakeComments) live(id string) (*model.Comment, error) {
	c, ok := f.comments[id]
	if !ok || c.IsDeleted {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (f fakeComments) FindActiveByID(_ context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.live(id)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (f fakeComments) list(match func(*model.Comment) bool, newestFirst bool, offset, limit int) ([]model.Comment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Comment
	for _, c := range f.comments {
		if !c.IsDeleted && match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return window(out, offset, limit), int64(len(out)), nil
}

func (f fakeComments) ListTopLevel(_ context.Context, postID string, offset, limit int) ([]model.Comment, int64, error) {
	return f.list(func(c *model.Comment) bool {
		return c.PostID.Hex() == postID && c.ParentID == nil
	}, true, offset, limit)
}

func (f fakeComments) ListReplies(_ context.Context, parentID string, offset, limit int) ([]model.Comment, int64, error) {
	return f.list(func(c *model.Comment) bool {
		return c.ParentID != nil && c.ParentID.Hex() == parentID
	}, false, offset, limit)
}

func (f fakeComments) UpdateContent(_ context.Context, id, content string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.live(id)
	if err != nil {
		return nil, err
	}
	c.Content = content
	cp := *c
	return &cp, nil
}

func (f fakeComments) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.live(id)
	if err != nil {
		return err
	}
	c.IsDeleted = true
	return nil
}

func (f fakeComments) IncrReplies(_ context.Context, id string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.RepliesCount = addFloor(c.RepliesCount, delta)
	return nil
}

func (f fakeComments) Like(_ context.Context, commentID, userID string) error {
	return f.toggle(commentID, userID, true)
}

func (f fakeComments) Unlike(_ context.Context, commentID, userID string) error {
	return f.toggle(commentID, userID, false)
}

func (f fakeComments) toggle(commentID, userID string, add bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.live(commentID)
	if err != nil {
		return err
	}
	ids, err := toggle(c.LikedBy, userID, add)
	if err != nil {
		return err
	}
	c.LikedBy = ids
	c.LikesCount = int64(len(ids))
	return nil
}

// ---- stories ----

type fakeStories struct{ *memStore }

func (f fakeStories) Create(_ context.Context, s *model.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	cp := *s
	f.stories[s.ID.Hex()] = &cp
	return nil
}

func (f fakeStories) FindLive(_ context.Context, id string, since time.Time) (*model.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[id]
	if !ok || !s.CreatedAt.After(since) {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f fakeStories) ListByAuthors(_ context.Context, authorIDs []string, since time.Time) ([]model.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	authors := idSet(authorIDs)
	out := []model.Story{}
	for _, s := range f.stories {
		if _, ok := authors[s.AuthorID.Hex()]; ok && s.CreatedAt.After(since) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f fakeStories) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.stories[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.stories, id)
	return nil
}

func (f fakeStories) AddView(_ context.Context, storyID, userID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[storyID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if !s.HasViewed(userID) {
		s.Views = append(s.Views, model.StoryView{UserID: oid(userID), ViewedAt: at})
		s.ViewsCount++
	}
	return s.ViewsCount, nil
}

// ---- friend requests ----

type fakeRequests struct{ *memStore }

func (f fakeRequests) Create(_ context.Context, fr *model.FriendRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr.Pair = model.PairKey(fr.SenderID.Hex(), fr.ReceiverID.Hex())
	fr.Open = fr.Status.Open()
	for _, x := range f.requests {
		if x.Open && x.Pair == fr.Pair {
			return repository.ErrDuplicate
		}
	}
	if fr.ID.IsZero() {
		fr.ID = primitive.NewObjectID()
	}
	cp := *fr
	f.requests[fr.ID.Hex()] = &cp
	return nil
}

func (f fakeRequests) FindByID(_ context.Context, id string) (*model.FriendRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr, ok := f.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *fr
	return &cp, nil
}

func (f fakeRequests) FindOpenBetween(_ context.Context, a, b string) (*model.FriendRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair := model.PairKey(a, b)
	for _, fr := range f.requests {
		if fr.Open && fr.Pair == pair {
			cp := *fr
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeRequests) Transition(_ context.Context, id string, from, to model.FriendRequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr, ok := f.requests[id]
	if !ok || fr.Status != from {
		return repository.ErrNotFound
	}
	fr.Status = to
	fr.Open = to.Open()
	return nil
}

func (f fakeRequests) CancelAccepted(_ context.Context, a, b string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair := model.PairKey(a, b)
	var n int64
	for _, fr := range f.requests {
		if fr.Pair == pair && fr.Status == model.FriendAccepted {
			fr.Status = model.FriendCancelled
			fr.Open = false
			n++
		}
	}
	return n, nil
}

func (f fakeRequests) ExistsAccepted(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair := model.PairKey(a, b)
	for _, fr := range f.requests {
		if fr.Pair == pair && fr.Status == model.FriendAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeRequests) AcceptedPeerIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, fr := range f.requests {
		if fr.Status == model.FriendAccepted && fr.Involves(userID) {
			out = append(out, fr.Counterpart(userID).Hex())
		}
	}
	return out, nil
}

func (f fakeRequests) ListPending(_ context.Context, userID string, sent bool, offset, limit int) ([]model.FriendRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.FriendRequest
	for _, fr := range f.requests {
		if fr.Status != model.FriendPending {
			continue
		}
		if (sent && fr.SenderID.Hex() == userID) || (!sent && fr.ReceiverID.Hex() == userID) {
			out = append(out, *fr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return window(out, offset, limit), int64(len(out)), nil
}

// ---- graph ----

type fakeGraph struct{ *memStore }

func (f fakeGraph) down() error {
	return f.graphErr
}

func (f fakeGraph) UpsertUser(_ context.Context, n model.UserNode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	f.nodes[n.ID] = n
	return nil
}

func (f fakeGraph) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	delete(f.nodes, id)
	for k := range f.follows {
		if k[0] == id || k[1] == id {
			delete(f.follows, k)
		}
	}
	for k := range f.friends {
		if k[0] == id || k[1] == id {
			delete(f.friends, k)
		}
	}
	return nil
}

func (f fakeGraph) Follow(_ context.Context, followerID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return false, err
	}
	k := [2]string{followerID, targetID}
	if f.follows[k] {
		return false, nil
	}
	f.follows[k] = true
	return true, nil
}

func (f fakeGraph) Unfollow(_ context.Context, followerID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return false, err
	}
	k := [2]string{followerID, targetID}
	if !f.follows[k] {
		return false, nil
	}
	delete(f.follows, k)
	return true, nil
}

func (f fakeGraph) IsFollowing(_ context.Context, followerID, targetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return false, err
	}
	return f.follows[[2]string{followerID, targetID}], nil
}

// edges 返回 side 端为 id 的另一端，按 id 排序
func edges(set map[[2]string]bool, id string, side int) []string {
	out := []string{}
	for k := range set {
		if k[side] == id {
			out = append(out, k[1-side])
		}
	}
	sort.Strings(out)
	return out
}

func (f fakeGraph) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return edges(f.follows, userID, 0), nil
}

func (f fakeGraph) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return edges(f.follows, userID, 1), nil
}

func (f fakeGraph) FollowCounts(_ context.Context, userID string) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return 0, 0, err
	}
	return int64(len(edges(f.follows, userID, 0))), int64(len(edges(f.follows, userID, 1))), nil
}

func (f fakeGraph) Suggestions(_ context.Context, userID string, limit int) ([]model.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	direct := edges(f.follows, userID, 0)
	followed := idSet(direct)
	mutual := map[string]int64{}
	for _, mid := range direct {
		for _, c := range edges(f.follows, mid, 0) {
			if _, ok := followed[c]; ok || c == userID {
				continue
			}
			mutual[c]++
		}
	}
	out := make([]model.Suggestion, 0, len(mutual))
	for id, n := range mutual {
		out = append(out, model.Suggestion{UserID: id, MutualCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MutualCount != out[j].MutualCount {
			return out[i].MutualCount > out[j].MutualCount
		}
		return out[i].UserID < out[j].UserID
	})
	return window(out, 0, limit), nil
}

func intersect(a, b []string, limit int) []string {
	set := idSet(b)
	out := []string{}
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return window(out, 0, limit)
}

func (f fakeGraph) MutualFollowing(_ context.Context, a, b string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return intersect(edges(f.follows, a, 0), edges(f.follows, b, 0), 10), nil
}

func (f fakeGraph) Befriend(_ context.Context, a, b string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	f.friends[[2]string{a, b}] = true
	f.friends[[2]string{b, a}] = true
	return nil
}

func (f fakeGraph) Unfriend(_ context.Context, a, b string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	delete(f.friends, [2]string{a, b})
	delete(f.friends, [2]string{b, a})
	return nil
}

func (f fakeGraph) IsFriend(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return false, err
	}
	return f.friends[[2]string{a, b}], nil
}

func (f fakeGraph) FriendIDs(_ context.Context, userID string, offset, limit int) ([]string, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, 0, err
	}
	all := edges(f.friends, userID, 0)
	return window(all, offset, limit), int64(len(all)), nil
}

func (f fakeGraph) AllFriendIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return edges(f.friends, userID, 0), nil
}

func (f fakeGraph) MutualFriends(_ context.Context, a, b string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	return intersect(edges(f.friends, a, 0), edges(f.friends, b, 0), 10), nil
}

// ---- side channels ----

type fakeRepair struct {
	mu  sync.Mutex
	ops []model.GraphOp
}

func (f *fakeRepair) Enqueue(_ context.Context, op model.GraphOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	return nil
}

func (f *fakeRepair) kinds() []model.GraphOpKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.GraphOpKind, 0, len(f.ops))
	for _, op := range f.ops {
		out = append(out, op.Kind)
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []model.RelationEvent
}

func (f *fakeNotifier) Notify(_ context.Context, ev model.RelationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeNotifier) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (f *fakeSessions) Save(_ context.Context, userID, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[userID] = token
	return nil
}

func (f *fakeSessions) Get(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[userID]
	if !ok {
		return "", errors.New("token not found")
	}
	return t, nil
}

func (f *fakeSessions) Extend(context.Context, string, time.Duration) error { return nil }

func (f *fakeSessions) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, userID)
	return nil
}

type fakeCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (f *fakeCodes) Save(_ context.Context, userID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[userID] = code
	return nil
}

func (f *fakeCodes) Consume(_ context.Context, userID, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.codes[userID]; ok && c == code {
		delete(f.codes, userID)
		return true, nil
	}
	return false, nil
}

func (f *fakeCodes) TTL() time.Duration { return 10 * time.Minute }

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeMailer) Send(to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

// ---- world ----

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type world struct {
	*memStore
	now      time.Time
	repair   *fakeRepair
	notifier *fakeNotifier
	sessions *fakeSessions
	codes    *fakeCodes
	mailer   *fakeMailer
	tokens   *pkg.TokenIssuer
}

func newWorld(t *testing.T) *world {
	t.Helper()
	return &world{
		memStore: newMemStore(),
		now:      t0,
		repair:   &fakeRepair{},
		notifier: &fakeNotifier{},
		sessions: &fakeSessions{tokens: map[string]string{}},
		codes:    &fakeCodes{codes: map[string]string{}},
		mailer:   &fakeMailer{},
		tokens: pkg.NewTokenIssuer(pkg.JWTConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			AccessTTL:     time.Hour,
			RefreshTTL:    24 * time.Hour,
		}),
	}
}

func (w *world) deps() Deps {
	return Deps{
		Users:     fakeUsers{w.memStore},
		Posts:     fakePosts{w.memStore},
		Comments:  fakeComments{w.memStore},
		Stories:   fakeStories{w.memStore},
		Requests:  fakeRequests{w.memStore},
		UserGraph: fakeGraph{w.memStore},
		Follows:   fakeGraph{w.memStore},
		Friends:   fakeGraph{w.memStore},
		Repair:    w.repair,
		Notifier:  w.notifier,
		Sessions:  w.sessions,
		Codes:     w.codes,
		Mailer:    w.mailer,
		Tokens:    w.tokens,
		Logger:    zap.NewNop(),
		Now:       func() time.Time { return w.now },
	}
}

func (w *world) advance(d time.Duration) {
	w.now = w.now.Add(d)
}

func (w *world) breakGraph() {
	w.mu.Lock()
	w.graphErr = errGraphDown
	w.mu.Unlock()
}

func (w *world) healGraph() {
	w.mu.Lock()
	w.graphErr = nil
	w.mu.Unlock()
}

// addUser 直接写入一个活跃用户及其图库节点
func (w *world) addUser(username string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := &model.User{
		ID:        primitive.NewObjectID(),
		Name:      strings.ToUpper(username[:1]) + username[1:],
		Username:  username,
		Email:     username + "@example.com",
		IsActive:  true,
		CreatedAt: w.now,
		UpdatedAt: w.now,
	}
	w.users[u.ID.Hex()] = u
	w.nodes[u.ID.Hex()] = u.Node()
	return u.ID.Hex()
}

// setFollowCounts 直接改写文档计数，制造漂移
func (w *world) setFollowCounts(id string, following, followers int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users[id].FollowingCount = following
	w.users[id].FollowersCount = followers
}

func (w *world) user(id string) model.User {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.users[id]
}

func (w *world) post(id string) model.Post {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.posts[id]
}

func (w *world) request(id string) model.FriendRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.requests[id]
}

func (w *world) hasFollow(a, b string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.follows[[2]string{a, b}]
}

func (w *world) hasFriend(a, b string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.friends[[2]string{a, b}]
}

func kindOf(err error) pkg.Kind {
	return pkg.KindOf(err)
}
