package service

import (
	"context"
	"strings"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxCommentLen = 1000

type CommentService struct {
	users      UserStore
	posts      PostStore
	comments   CommentStore
	visibility *Visibility
	logger     *zap.Logger
	now        func() time.Time
}

func NewCommentService(d Deps, visibility *Visibility) *CommentService {
	return &CommentService{
		users:      d.Users,
		posts:      d.Posts,
		comments:   d.Comments,
		visibility: visibility,
		logger:     d.logger(),
		now:        d.clock(),
	}
}

type CommentItem struct {
	*model.Comment
	Author  *model.UserBrief `json:"author,omitempty"`
	IsLiked bool             `json:"isLiked"`
}

type CommentPage struct {
	Comments   []CommentItem  `json:"comments"`
	Pagination pkg.Pagination `json:"pagination"`
}

func cleanComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", pkg.Invalid("comment content required")
	}
	if len([]rune(content)) > maxCommentLen {
		return "", pkg.Invalid("comment too long")
	}
	return content, nil
}

// visiblePost 帖子存在且对 viewerID 可见
func (s *CommentService) visiblePost(ctx context.Context, postID, viewerID string) (*model.Post, error) {
	post, err := s.posts.FindActiveByID(ctx, postID)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	if !s.visibility.CanView(ctx, post, viewerID) {
		return nil, pkg.Forbidden("you cannot view this post")
	}
	return post, nil
}

// Create 发表评论或回复，回复的父评论必须属于同一帖子
func (s *CommentService) Create(ctx context.Context, postID, authorID, content, parentID string) (*CommentItem, error) {
	content, err := cleanComment(content)
	if err != nil {
		return nil, err
	}
	post, err := s.visiblePost(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}
	author, err := s.users.FindActiveByID(ctx, authorID)
	if err != nil {
		return nil, docErr(err, "user not found")
	}
	var parent *model.Comment
	if parentID != "" {
		parent, err = s.comments.FindActiveByID(ctx, parentID)
		if err != nil {
			return nil, docErr(err, "parent comment not found")
		}
		if parent.PostID != post.ID {
			return nil, pkg.NotFound("parent comment not found")
		}
	}
	now := s.now()
	cm := &model.Comment{
		AuthorID:  author.ID,
		PostID:    post.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if parent != nil {
		pid := parent.ID
		cm.ParentID = &pid
	}
	if err = s.comments.Create(ctx, cm); err != nil {
		return nil, pkg.Internal("create comment", err)
	}
	if err = s.posts.IncrComments(ctx, postID, 1); err != nil {
		return nil, pkg.Internal("update comments count", err)
	}
	if parent != nil {
		if err = s.comments.IncrReplies(ctx, parentID, 1); err != nil {
			return nil, pkg.Internal("update replies count", err)
		}
	}
	brief := author.Brief()
	return &CommentItem{Comment: cm, Author: &brief}, nil
}

// List 帖子下的一级评论
func (s *CommentService) List(ctx context.Context, postID, viewerID string, p pkg.Page) (*CommentPage, error) {
	if _, err := s.visiblePost(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	rows, total, err := s.comments.ListTopLevel(ctx, postID, p.Offset(), p.Limit)
	if err != nil {
		return nil, docErr(err, "post not found")
	}
	return s.page(ctx, rows, total, viewerID, p)
}

// Replies 评论的回复，按时间正序
func (s *CommentService) Replies(ctx context.Context, commentID, viewerID string, p pkg.Page) (*CommentPage, error) {
	parent, err := s.comments.FindActiveByID(ctx, commentID)
	if err != nil {
		return nil, docErr(err, "comment not found")
	}
	if _, err = s.visiblePost(ctx, parent.PostID.Hex(), viewerID); err != nil {
		return nil, err
	}
	rows, total, err := s.comments.ListReplies(ctx, commentID, p.Offset(), p.Limit)
	if err != nil {
		return nil, docErr(err, "comment not found")
	}
	return s.page(ctx, rows, total, viewerID, p)
}

func (s *CommentService) page(ctx context.Context, rows []model.Comment, total int64, viewerID string, p pkg.Page) (*CommentPage, error) {
	ids := make([]string, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].AuthorID.Hex())
	}
	authors, err := loadUsers(ctx, s.users, dedupe(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]model.UserBrief, len(authors))
	for i := range authors {
		byID[authors[i].ID] = authors[i].Brief()
	}
	items := make([]CommentItem, 0, len(rows))
	for i := range rows {
		item := CommentItem{Comment: &rows[i], IsLiked: viewerID != "" && rows[i].IsLikedBy(viewerID)}
		if a, ok := byID[rows[i].AuthorID]; ok {
			item.Author = &a
		}
		items = append(items, item)
	}
	return &CommentPage{Comments: items, Pagination: p.Of(total)}, nil
}

func (s *CommentService) owned(ctx context.Context, commentID, userID string) (*model.Comment, error) {
	cm, err := s.comments.FindActiveByID(ctx, commentID)
	if err != nil {
		return nil, docErr(err, "comment not found")
	}
	if !cm.IsAuthor(userID) {
		return nil, pkg.Forbidden("not the author of this comment")
	}
	return cm, nil
}

func (s *CommentService) Update(ctx context.Context, commentID, userID, content string) (*model.Comment, error) {
	content, err := cleanComment(content)
	if err != nil {
		return nil, err
	}
	if _, err = s.owned(ctx, commentID, userID); err != nil {
		return nil, err
	}
	cm, err := s.comments.UpdateContent(ctx, commentID, content)
	if err != nil {
		return nil, docErr(err, "comment not found")
	}
	return cm, nil
}

// Delete 软删除评论，帖子评论数和父评论回复数各减一
func (s *CommentService) Delete(ctx context.Context, commentID, userID string) error {
	cm, err := s.owned(ctx, commentID, userID)
	if err != nil {
		return err
	}
	if err = s.comments.SoftDelete(ctx, commentID); err != nil {
		return docErr(err, "comment not found")
	}
	if err = s.posts.IncrComments(ctx, cm.PostID.Hex(), -1); err != nil {
		s.logger.Error("decrease comments count failed", zap.String("post", cm.PostID.Hex()), zap.Error(err))
		return pkg.Internal("update comments count", err)
	}
	if cm.ParentID != nil {
		if err = s.comments.IncrReplies(ctx, cm.ParentID.Hex(), -1); err != nil {
			s.logger.Error("decrease replies count failed", zap.String("comment", cm.ParentID.Hex()), zap.Error(err))
			return pkg.Internal("update replies count", err)
		}
	}
	return nil
}

func (s *CommentService) Like(ctx context.Context, commentID, userID string) (*LikeState, error) {
	if err := s.comments.Like(ctx, commentID, userID); err != nil {
		return nil, likeErr(err, "comment")
	}
	return s.likeState(ctx, commentID, userID)
}

func (s *CommentService) Unlike(ctx context.Context, commentID, userID string) (*LikeState, error) {
	if err := s.comments.Unlike(ctx, commentID, userID); err != nil {
		return nil, likeErr(err, "comment")
	}
	return s.likeState(ctx, commentID, userID)
}

func (s *CommentService) likeState(ctx context.Context, commentID, userID string) (*LikeState, error) {
	cm, err := s.comments.FindActiveByID(ctx, commentID)
	if err != nil {
		return nil, docErr(err, "comment not found")
	}
	return &LikeState{LikesCount: cm.LikesCount, IsLiked: cm.IsLikedBy(userID)}, nil
}
