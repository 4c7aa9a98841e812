package handler

import (
	"net/http"

	"Lee_Social/internal/model"
	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type StoryHandler struct {
	svc  *service.StoryService
	feed *service.FeedService
}

type CreateStoryReq struct {
	Media     string          `json:"media" binding:"required"`
	MediaType model.MediaType `json:"mediaType" binding:"required"`
	Caption   string          `json:"caption"`
}

func NewStoryHandler(svc *service.StoryService, feed *service.FeedService) *StoryHandler {
	return &StoryHandler{svc: svc, feed: feed}
}

func (h *StoryHandler) Create(c *gin.Context) {
	var req CreateStoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	s, err := h.svc.Create(c.Request.Context(), uid(c), req.Media, req.MediaType, req.Caption)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"story": s})
}

// Feed 按作者分组的快拍
func (h *StoryHandler) Feed(c *gin.Context) {
	groups, err := h.feed.StoryFeed(c.Request.Context(), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": groups})
}

func (h *StoryHandler) UserStories(c *gin.Context) {
	items, err := h.svc.UserStories(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": items})
}

func (h *StoryHandler) View(c *gin.Context) {
	n, err := h.svc.View(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewsCount": n})
}

func (h *StoryHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), uid(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "story deleted"})
}
