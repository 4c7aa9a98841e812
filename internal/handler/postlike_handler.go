package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Like 点赞，重复点赞返回 409
func (h *PostHandler) Like(c *gin.Context) {
	state, err := h.svc.Like(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Unlike 取消点赞，未点赞时返回 400
func (h *PostHandler) Unlike(c *gin.Context) {
	state, err := h.svc.Unlike(c.Request.Context(), c.Param("id"), uid(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Likes 点赞用户列表
func (h *PostHandler) Likes(c *gin.Context) {
	res, err := h.svc.Likes(c.Request.Context(), c.Param("id"), uid(c), page(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

