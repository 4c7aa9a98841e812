package service

import (
	"context"
	"errors"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository"
)

// LikeState 点赞后的计数
type LikeState struct {
	LikesCount int64 `json:"likesCount"`
	IsLiked    bool  `json:"isLiked"`
}

// Like 点赞，只能从未点赞状态进入；重复点赞返回 AlreadyExists
func (s *PostService) Like(ctx context.Context, postID, userID string) (*LikeState, error) {
	post, err := s.posts.FindActiveByID(ctx, postID)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	if !s.visibility.CanView(ctx, post, userID) {
		return nil, pkg.Forbidden("you cannot view this post")
	}
	if err = s.posts.Like(ctx, postID, userID); err != nil {
		return nil, likeErr(err, "post")
	}
	if !post.IsAuthor(userID) {
		s.events.publish(ctx, model.EventPostLike, userID, post.AuthorID.Hex(), postID)
	}
	return s.likeState(ctx, postID, userID)
}

// Unlike 取消点赞，未点赞时返回 InvalidState
func (s *PostService) Unlike(ctx context.Context, postID, userID string) (*LikeState, error) {
	if err := s.posts.Unlike(ctx, postID, userID); err != nil {
		return nil, likeErr(err, "post")
	}
	return s.likeState(ctx, postID, userID)
}

func (s *PostService) likeState(ctx context.Context, postID, userID string) (*LikeState, error) {
	post, err := s.posts.FindActiveByID(ctx, postID)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	return &LikeState{LikesCount: post.LikesCount, IsLiked: post.IsLikedBy(userID)}, nil
}

// Likes 点赞用户列表
func (s *PostService) Likes(ctx context.Context, postID, viewerID string, p pkg.Page) (*UserPage, error) {
	post, err := s.posts.FindActiveByID(ctx, postID)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	if !s.visibility.CanView(ctx, post, viewerID) {
		return nil, pkg.Forbidden("you cannot view this post")
	}
	start, end := p.Window(len(post.LikedBy))
	ids := make([]string, 0, end-start)
	for _, id := range post.LikedBy[start:end] {
		ids = append(ids, id.Hex())
	}
	users, err := loadUsers(ctx, s.users, ids)
	if err != nil {
		return nil, err
	}
	items := make([]UserItem, 0, len(users))
	for i := range users {
		items = append(items, UserItem{UserBrief: users[i].Brief()})
	}
	return &UserPage{Users: items, Pagination: p.Of(int64(len(post.LikedBy)))}, nil
}

// likeErr 点赞状态迁移错误映射
func likeErr(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return pkg.NotFound(what + " not found")
	case errors.Is(err, repository.ErrAlreadyMember):
		return pkg.Conflict(what + " already liked")
	case errors.Is(err, repository.ErrNotMember):
		return pkg.InvalidState(what + " not liked yet")
	}
	return pkg.Internal("update likes", err)
}
