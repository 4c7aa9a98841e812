package handler

import (
	"net/http"

	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	svc *service.CommentService
}

type CommentReq struct {
	Content  string `json:"content" binding:"required"`
	ParentID string `json:"parentId"`
}

func NewCommentHandler(svc *service.CommentService) *CommentHandler {
	return &CommentHandler{svc: svc}
}

// Create 评论或回复，parentId 为空时是顶层评论
func (h *CommentHandler) Create(c *gin.Context) {
	var req CommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	item, err := h.svc.Create(c.Request.Context(), c.Param("id"), uid(c), req.Content, req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": item})
}

func (h *CommentHandler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), c.Param("id"), uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CommentHandler) Replies(c *gin.Context) {
	res, err := h.svc.Replies(c.Request.Context(), c.Param("id"), uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CommentHandler) Update(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	cm, err := h.svc.Update(c.Request.Context(), c.Param("id"), uid(c), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": cm})
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), uid(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "comment deleted"})
}

func (h *CommentHandler) Like(c *gin.Context) {
	state, err := h.svc.Like(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *CommentHandler) Unlike(c *gin.Context) {
	state, err := h.svc.Unlike(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
