package handler

import (
	"net/http"

	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type FriendHandler struct {
	svc *service.RelationService
}

func NewFriendHandler(svc *service.RelationService) *FriendHandler {
	return &FriendHandler{svc: svc}
}

// SendRequest 发送好友请求
func (h *FriendHandler) SendRequest(c *gin.Context) {
	fr, err := h.svc.SendFriendRequest(c.Request.Context(), uid(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": fr})
}

// Accept 接受好友请求，图库同步失败不影响结果
func (h *FriendHandler) Accept(c *gin.Context) {
	res, err := h.svc.AcceptFriendRequest(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": res.Request})
}

// DeleteRequest 撤回或拒绝
func (h *FriendHandler) DeleteRequest(c *gin.Context) {
	fr, err := h.svc.DeleteFriendRequest(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": fr})
}

func (h *FriendHandler) Unfriend(c *gin.Context) {
	if _, err := h.svc.Unfriend(c.Request.Context(), uid(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "unfriended"})
}

// List 好友列表，不传 id 时查看自己的
func (h *FriendHandler) List(c *gin.Context) {
	target := c.Param("id")
	if target == "" {
		target = uid(c)
	}
	res, err := h.svc.Friends(c.Request.Context(), target, uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Requests ?type=sent 查看发出的请求，默认查看收到的
func (h *FriendHandler) Requests(c *gin.Context) {
	res, err := h.svc.FriendRequests(c.Request.Context(), uid(c), c.Query("type") == "sent", page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *FriendHandler) Status(c *gin.Context) {
	st, err := h.svc.FriendStatus(c.Request.Context(), uid(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *FriendHandler) Mutual(c *gin.Context) {
	res, err := h.svc.MutualFriends(c.Request.Context(), uid(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": res, "count": len(res)})
}
