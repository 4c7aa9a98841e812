package service

import (
	"context"
	"sort"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"

	"go.uber.org/zap"
)

// PostItem 帖子及其作者、当前访问者点赞状态
type PostItem struct {
	*model.Post
	Author  *model.UserBrief `json:"author,omitempty"`
	IsLiked bool             `json:"isLiked"`
}

type PostPage struct {
	Posts      []PostItem     `json:"posts"`
	Pagination pkg.Pagination `json:"pagination"`
}

// FeedService 动态流、热门与快拍流
type FeedService struct {
	users      UserStore
	posts      PostStore
	stories    StoryStore
	follows    FollowGraph
	friends    FriendGraph
	visibility *Visibility
	logger     *zap.Logger
	now        func() time.Time
}

func NewFeedService(d Deps, visibility *Visibility) *FeedService {
	return &FeedService{
		users:      d.Users,
		posts:      d.Posts,
		stories:    d.Stories,
		follows:    d.Follows,
		friends:    d.Friends,
		visibility: visibility,
		logger:     d.logger(),
		now:        d.clock(),
	}
}

// Feed 关注的人加自己的 public/friends 帖子，按时间倒序。
// friends 帖子的作者范围随可见性口径变化，与单帖判定一致
func (s *FeedService) Feed(ctx context.Context, userID string, p pkg.Page) (*PostPage, error) {
	ids, err := s.follows.FollowingIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("load following for feed failed, showing own posts only", zap.String("user", userID), zap.Error(err))
		ids = nil
	}
	authors := append(ids, userID)
	q := model.PostQuery{Sort: model.SortNewest, Offset: p.Offset(), Limit: p.Limit}
	if s.visibility.Policy() == FriendsMeansMutualFriend {
		q.Scopes = []model.PostScope{
			{AuthorIDs: authors, Visibilities: []model.Visibility{model.VisibilityPublic}},
			{AuthorIDs: s.visibility.FriendAuthors(ctx, userID), Visibilities: []model.Visibility{model.VisibilityFriends}},
		}
	} else {
		q.AuthorIDs = authors
		q.Visibilities = []model.Visibility{model.VisibilityPublic, model.VisibilityFriends}
	}
	posts, total, err := s.posts.Find(ctx, q)
	if err != nil {
		return nil, pkg.Internal("load feed", err)
	}
	return s.page(ctx, posts, total, userID, p)
}

// Trending 公开帖子按点赞数、时间排序
func (s *FeedService) Trending(ctx context.Context, viewerID string, p pkg.Page) (*PostPage, error) {
	posts, total, err := s.posts.Find(ctx, model.PostQuery{
		Visibilities: []model.Visibility{model.VisibilityPublic},
		Sort:         model.SortTrending,
		Offset:       p.Offset(),
		Limit:        p.Limit,
	})
	if err != nil {
		return nil, pkg.Internal("load trending", err)
	}
	return s.page(ctx, posts, total, viewerID, p)
}

// UserPosts 某个作者对访问者可见的帖子
func (s *FeedService) UserPosts(ctx context.Context, authorID, viewerID string, p pkg.Page) (*PostPage, error) {
	if _, err := s.users.FindActiveByID(ctx, authorID); err != nil {
		return nil, docErr(err, "user not found")
	}
	q := model.PostQuery{AuthorIDs: []string{authorID}, Sort: model.SortNewest, Offset: p.Offset(), Limit: p.Limit}
	if authorID != viewerID {
		q.Visibilities = []model.Visibility{model.VisibilityPublic}
		if s.visibility.Allows(ctx, model.VisibilityFriends, authorID, viewerID) {
			q.Visibilities = append(q.Visibilities, model.VisibilityFriends)
		}
	}
	posts, total, err := s.posts.Find(ctx, q)
	if err != nil {
		return nil, pkg.Internal("load user posts", err)
	}
	return s.page(ctx, posts, total, viewerID, p)
}

func (s *FeedService) page(ctx context.Context, posts []model.Post, total int64, viewerID string, p pkg.Page) (*PostPage, error) {
	items, err := postItems(ctx, s.users, posts, viewerID)
	if err != nil {
		return nil, err
	}
	return &PostPage{Posts: items, Pagination: p.Of(total)}, nil
}

// postItems 填充作者信息和点赞状态
func postItems(ctx context.Context, users UserStore, posts []model.Post, viewerID string) ([]PostItem, error) {
	ids := make([]string, 0, len(posts))
	seen := make(map[string]struct{}, len(posts))
	for i := range posts {
		id := posts[i].AuthorID.Hex()
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	authors, err := loadUsers(ctx, users, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.UserBrief, len(authors))
	for i := range authors {
		byID[authors[i].ID.Hex()] = authors[i].Brief()
	}
	items := make([]PostItem, 0, len(posts))
	for i := range posts {
		item := PostItem{Post: &posts[i], IsLiked: viewerID != "" && posts[i].IsLikedBy(viewerID)}
		if a, ok := byID[posts[i].AuthorID.Hex()]; ok {
			item.Author = &a
		}
		items = append(items, item)
	}
	return items, nil
}

// StoryItem 快拍及访问者是否看过
type StoryItem struct {
	*model.Story
	HasViewed bool `json:"hasViewed"`
}

// StoryGroup 同一作者的快拍
type StoryGroup struct {
	Author      model.UserBrief `json:"author"`
	Stories     []StoryItem     `json:"stories"`
	HasUnviewed bool            `json:"hasUnviewed"`
}

// StoryFeed 好友、关注的人以及自己 24 小时内的快拍，按作者分组
func (s *FeedService) StoryFeed(ctx context.Context, userID string) ([]StoryGroup, error) {
	authors := []string{userID}
	if ids, err := s.follows.FollowingIDs(ctx, userID); err != nil {
		s.logger.Warn("load following for story feed failed", zap.String("user", userID), zap.Error(err))
	} else {
		authors = append(authors, ids...)
	}
	if ids, err := s.friends.AllFriendIDs(ctx, userID); err != nil {
		s.logger.Warn("load friends for story feed failed", zap.String("user", userID), zap.Error(err))
	} else {
		authors = append(authors, ids...)
	}
	authors = dedupe(authors)

	stories, err := s.stories.ListByAuthors(ctx, authors, s.now().Add(-model.StoryTTL))
	if err != nil {
		return nil, pkg.Internal("load stories", err)
	}
	return groupStories(ctx, s.users, stories, userID)
}

// groupStories stories 已按时间倒序，分组顺序为各作者最新一条的先后
func groupStories(ctx context.Context, users UserStore, stories []model.Story, viewerID string) ([]StoryGroup, error) {
	order := make([]string, 0)
	grouped := make(map[string][]StoryItem)
	for i := range stories {
		id := stories[i].AuthorID.Hex()
		if _, ok := grouped[id]; !ok {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], StoryItem{Story: &stories[i], HasViewed: stories[i].HasViewed(viewerID)})
	}
	authors, err := loadUsers(ctx, users, order)
	if err != nil {
		return nil, err
	}
	groups := make([]StoryGroup, 0, len(authors))
	for i := range authors {
		items := grouped[authors[i].ID.Hex()]
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].CreatedAt.After(items[b].CreatedAt)
		})
		g := StoryGroup{Author: authors[i].Brief(), Stories: items}
		for _, it := range items {
			if !it.HasViewed {
				g.HasUnviewed = true
				break
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
