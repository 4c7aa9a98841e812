package handler

import (
	"net/http"

	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	svc *service.UserService
}

type VerifyReq struct {
	Code string `json:"code" binding:"required,len=6"`
}

func NewEmailHandler(svc *service.UserService) *EmailHandler {
	return &EmailHandler{svc: svc}
}

// Resend 重新发送邮箱验证码
func (h *EmailHandler) Resend(c *gin.Context) {
	if err := h.svc.ResendVerification(c.Request.Context(), uid(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Send code successfully"})
}

// Verify 校验邮箱验证码
func (h *EmailHandler) Verify(c *gin.Context) {
	var req VerifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badParams(c)
		return
	}
	if err := h.svc.VerifyEmail(c.Request.Context(), uid(c), req.Code); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Verify successfully"})
}
