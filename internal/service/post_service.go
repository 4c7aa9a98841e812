package service

import (
	"context"
	"strings"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"

	"go.uber.org/zap"
)

type PostService struct {
	users      UserStore
	posts      PostStore
	visibility *Visibility
	events     *events
	logger     *zap.Logger
	now        func() time.Time
}

func NewPostService(d Deps, visibility *Visibility) *PostService {
	return &PostService{
		users:      d.Users,
		posts:      d.Posts,
		visibility: visibility,
		events:     newEvents(d),
		logger:     d.logger(),
		now:        d.clock(),
	}
}

type CreatePostInput struct {
	Content    string
	Images     []string
	Visibility model.Visibility
}

// Create 发帖并增加作者的帖子数
func (s *PostService) Create(ctx context.Context, authorID string, in CreatePostInput) (*PostItem, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Images) == 0 {
		return nil, pkg.Invalid("post content or images required")
	}
	if len(in.Images) > model.MaxImagesPerPost {
		return nil, pkg.Invalid("too many images")
	}
	if in.Visibility == "" {
		in.Visibility = model.VisibilityPublic
	}
	if !in.Visibility.Valid() {
		return nil, pkg.Invalid("invalid visibility")
	}
	author, err := s.users.FindActiveByID(ctx, authorID)
	if err != nil {
		return nil, docErr(err, "user not found")
	}
	now := s.now()
	post := &model.Post{
		AuthorID:   author.ID,
		Content:    content,
		Images:     in.Images,
		Visibility: in.Visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err = s.posts.Create(ctx, post); err != nil {
		return nil, pkg.Internal("create post", err)
	}
	if err = s.users.IncrCounter(ctx, authorID, model.CounterPosts, 1); err != nil {
		s.logger.Error("increase posts count failed", zap.String("user", authorID), zap.Error(err))
		return nil, pkg.Internal("update posts count", err)
	}
	brief := author.Brief()
	return &PostItem{Post: post, Author: &brief}, nil
}

// Get 单个帖子，按可见性校验
func (s *PostService) Get(ctx context.Context, postID, viewerID string) (*PostItem, error) {
	post, err := s.posts.FindActiveByID(ctx, postID)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	if !s.visibility.CanView(ctx, post, viewerID) {
		return nil, pkg.Forbidden("you cannot view this post")
	}
	items, err := postItems(ctx, s.users, []model.Post{*post}, viewerID)
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// owned 取帖子并校验作者
func (s *PostService) owned(ctx context.Context, postID, userID string) (*model.Post, error) {
	post, err := s.posts.FindActiveByID(ctx, postID)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	if !post.IsAuthor(userID) {
		return nil, pkg.Forbidden("not the author of this post")
	}
	return post, nil
}

func (s *PostService) Update(ctx context.Context, postID, userID string, upd model.PostUpdate) (*model.Post, error) {
	if _, err := s.owned(ctx, postID, userID); err != nil {
		return nil, err
	}
	if upd.Images != nil && len(*upd.Images) > model.MaxImagesPerPost {
		return nil, pkg.Invalid("too many images")
	}
	if upd.Visibility != nil && !upd.Visibility.Valid() {
		return nil, pkg.Invalid("invalid visibility")
	}
	if upd.Content != nil {
		c := strings.TrimSpace(*upd.Content)
		upd.Content = &c
	}
	post, err := s.posts.Update(ctx, postID, upd)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	return post, nil
}

// Delete 软删除并减少作者的帖子数
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	if _, err := s.owned(ctx, postID, userID); err != nil {
		return err
	}
	if err := s.posts.SoftDelete(ctx, postID); err != nil {
		return docErr(err, "post not found")
	}
	if err := s.users.IncrCounter(ctx, userID, model.CounterPosts, -1); err != nil {
		s.logger.Error("decrease posts count failed", zap.String("user", userID), zap.Error(err))
		return pkg.Internal("update posts count", err)
	}
	return nil
}
