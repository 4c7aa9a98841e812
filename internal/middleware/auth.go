package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"Lee_Social/internal/pkg"

	"github.com/gin-gonic/gin"
)

const ContextUserIDKey = "user_id"

// Sessions 每个用户当前有效的 access token
type Sessions interface {
	Get(ctx context.Context, userID string) (string, error)
	Extend(ctx context.Context, userID string, ttl time.Duration) error
}

// Auth 校验 access token 并确认是该用户最近一次登录签发的
type Auth struct {
	tokens   *pkg.TokenIssuer
	sessions Sessions
}

func NewAuth(tokens *pkg.TokenIssuer, sessions Sessions) *Auth {
	return &Auth{tokens: tokens, sessions: sessions}
}

func bearer(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func (a *Auth) check(c *gin.Context, tokenStr string) (string, int, string) {
	claims, err := a.tokens.ParseAccess(tokenStr)
	if err != nil {
		return "", http.StatusUnauthorized, "invalid or expired token"
	}
	ctx := c.Request.Context()
	// redis校验是否是正确的token
	current, err := a.sessions.Get(ctx, claims.UserID)
	if err != nil || current != tokenStr {
		return "", http.StatusUnauthorized, "account has been logged in elsewhere"
	}
	// 校验通过后更新过期时间
	if err = a.sessions.Extend(ctx, claims.UserID, a.tokens.AccessTTL); err != nil {
		return "", http.StatusInternalServerError, err.Error()
	}
	return claims.UserID, http.StatusOK, ""
}

// Required 必须登录
func (a *Auth) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing or invalid authorization header"})
			return
		}
		userID, status, msg := a.check(c, tokenStr)
		if status != http.StatusOK {
			c.AbortWithStatusJSON(status, gin.H{"msg": msg})
			return
		}
		// 注入 user_id
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// Optional 游客可访问，带了合法令牌则注入 user_id
func (a *Auth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearer(c); ok {
			if userID, status, _ := a.check(c, tokenStr); status == http.StatusOK {
				c.Set(ContextUserIDKey, userID)
			}
		}
		c.Next()
	}
}

// UserID 当前登录用户，游客为空串
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
