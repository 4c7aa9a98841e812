package handler

import (
	"net/http"
	"strconv"

	"Lee_Social/internal/middleware"
	"Lee_Social/internal/pkg"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[pkg.Kind]int{
	pkg.KindNotFound:         http.StatusNotFound,
	pkg.KindAlreadyExists:    http.StatusConflict,
	pkg.KindSelfReference:    http.StatusBadRequest,
	pkg.KindForbidden:        http.StatusForbidden,
	pkg.KindInvalidState:     http.StatusBadRequest,
	pkg.KindStoreUnavailable: http.StatusServiceUnavailable,
	pkg.KindInvalid:          http.StatusBadRequest,
	pkg.KindUnauthorized:     http.StatusUnauthorized,
	pkg.KindInternal:         http.StatusInternalServerError,
}

// StatusOf 业务错误类型到状态码
func StatusOf(err error) int {
	if s, ok := kindStatus[pkg.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError 写错误响应，内部错误不向客户端暴露细节
func writeError(c *gin.Context, err error) {
	status := StatusOf(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	if status == http.StatusServiceUnavailable {
		msg = "service temporarily unavailable"
	}
	c.JSON(status, gin.H{"msg": msg, "kind": pkg.KindOf(err).String()})
}

func badParams(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
}

func page(c *gin.Context) pkg.Page {
	p, _ := strconv.Atoi(c.Query("page"))
	l, _ := strconv.Atoi(c.Query("limit"))
	return pkg.NewPage(p, l)
}

func uid(c *gin.Context) string {
	return middleware.UserID(c)
}
