package handler

import (
	"net/http"

	"Lee_Social/internal/model"
	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	svc  *service.PostService
	feed *service.FeedService
}

type CreatePostReq struct {
	Content    string           `json:"content"`
	Images     []string         `json:"images"`
	Visibility model.Visibility `json:"visibility"`
}

type UpdatePostReq struct {
	Content    *string           `json:"content"`
	Images     *[]string         `json:"images"`
	Visibility *model.Visibility `json:"visibility"`
}

func NewPostHandler(svc *service.PostService, feed *service.FeedService) *PostHandler {
	return &PostHandler{svc: svc, feed: feed}
}

// CreatePost 创建帖子接口
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req CreatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	item, err := h.svc.Create(c.Request.Context(), uid(c), service.CreatePostInput{
		Content:    req.Content,
		Images:     req.Images,
		Visibility: req.Visibility,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": item})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": item})
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	var req UpdatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	post, err := h.svc.Update(c.Request.Context(), c.Param("id"), uid(c), model.PostUpdate{
		Content:    req.Content,
		Images:     req.Images,
		Visibility: req.Visibility,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// DeletePost 删除帖子接口
func (h *PostHandler) DeletePost(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), uid(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "post deleted"})
}

// Feed 自己和关注的人的帖子
func (h *PostHandler) Feed(c *gin.Context) {
	res, err := h.feed.Feed(c.Request.Context(), uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PostHandler) Trending(c *gin.Context) {
	res, err := h.feed.Trending(c.Request.Context(), uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
