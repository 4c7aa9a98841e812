package handler

import (
	"net/http"
	"strconv"

	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type FollowHandler struct {
	svc *service.RelationService
}

func NewFollowHandler(svc *service.RelationService) *FollowHandler {
	return &FollowHandler{svc: svc}
}

// Follow 关注接口
func (h *FollowHandler) Follow(c *gin.Context) {
	if err := h.svc.Follow(c.Request.Context(), uid(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "followed", "isFollowing": true})
}

// Unfollow 取消关注接口
func (h *FollowHandler) Unfollow(c *gin.Context) {
	if err := h.svc.Unfollow(c.Request.Context(), uid(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "unfollowed", "isFollowing": false})
}

// Status 获取用户间关系
func (h *FollowHandler) Status(c *gin.Context) {
	ok, err := h.svc.FollowStatus(c.Request.Context(), uid(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isFollowing": ok})
}

// Followers 获取粉丝列表
func (h *FollowHandler) Followers(c *gin.Context) {
	res, err := h.svc.Followers(c.Request.Context(), c.Param("id"), uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Following 获取关注列表
func (h *FollowHandler) Following(c *gin.Context) {
	res, err := h.svc.Following(c.Request.Context(), c.Param("id"), uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *FollowHandler) Suggestions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	res, err := h.svc.Suggestions(c.Request.Context(), uid(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": res})
}

func (h *FollowHandler) Mutual(c *gin.Context) {
	res, err := h.svc.MutualFollowing(c.Request.Context(), uid(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": res, "count": len(res)})
}
