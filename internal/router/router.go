package router

import (
	"context"
	"net/http"
	"time"

	"Lee_Social/internal/handler"
	"Lee_Social/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers 由入口装配
type Handlers struct {
	User    *handler.UserHandler
	Email   *handler.EmailHandler
	Follow  *handler.FollowHandler
	Friend  *handler.FriendHandler
	Post    *handler.PostHandler
	Comment *handler.CommentHandler
	Story   *handler.StoryHandler
}

// HealthCheck 存储健康检查，key 为存储名
type HealthCheck map[string]func(ctx context.Context) error

func InitRouter(h Handlers, auth *middleware.Auth, checks HealthCheck, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(logger), middleware.Recovery(logger))

	r.GET("/healthz", health(checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	required := auth.Required()
	optional := auth.Optional()
	api := r.Group("/api")

	// 注册登录相关接口
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.User.Register)
		authGroup.POST("/login", h.User.Login)
		authGroup.POST("/refresh", h.User.TokenRefresh)
		authGroup.POST("/restore", h.User.RestoreAccount)
		authGroup.POST("/logout", required, h.User.Logout)
		authGroup.GET("/me", required, h.User.Me)
		authGroup.DELETE("/account", required, h.User.DeleteAccount)
		authGroup.POST("/verify-email", required, h.Email.Verify)
		authGroup.POST("/resend-verification", required, h.Email.Resend)
	}

	// 用户相关接口
	userGroup := api.Group("/users")
	{
		userGroup.GET("/search", optional, h.User.Search)
		userGroup.PUT("/me", required, h.User.UpdateProfile)
		userGroup.PUT("/me/password", required, h.User.ChangePassword)
		userGroup.GET("/:id", optional, h.User.Profile)
		userGroup.GET("/:id/posts", optional, h.User.Posts)
	}

	// 用户关注相关接口
	followGroup := api.Group("/follow")
	followGroup.Use(required)
	{
		followGroup.GET("/suggestions", h.Follow.Suggestions)
		followGroup.POST("/:id", h.Follow.Follow)
		followGroup.DELETE("/:id", h.Follow.Unfollow)
		followGroup.GET("/:id/status", h.Follow.Status)
		followGroup.GET("/:id/followers", h.Follow.Followers)
		followGroup.GET("/:id/following", h.Follow.Following)
		followGroup.GET("/:id/mutual", h.Follow.Mutual)
	}

	// 好友相关接口
	friendGroup := api.Group("/friends")
	friendGroup.Use(required)
	{
		friendGroup.GET("", h.Friend.List)
		friendGroup.GET("/requests", h.Friend.Requests)
		friendGroup.POST("/requests/:id/accept", h.Friend.Accept)
		friendGroup.DELETE("/requests/:id", h.Friend.DeleteRequest)
		friendGroup.POST("/:id/request", h.Friend.SendRequest)
		friendGroup.DELETE("/:id", h.Friend.Unfriend)
		friendGroup.GET("/:id/list", h.Friend.List)
		friendGroup.GET("/:id/status", h.Friend.Status)
		friendGroup.GET("/:id/mutual", h.Friend.Mutual)
	}

	// 帖子相关接口
	postGroup := api.Group("/posts")
	{
		postGroup.POST("", required, h.Post.CreatePost)
		postGroup.GET("/feed", required, h.Post.Feed)
		postGroup.GET("/trending", optional, h.Post.Trending)
		postGroup.GET("/:id", optional, h.Post.GetPost)
		postGroup.PUT("/:id", required, h.Post.UpdatePost)
		postGroup.DELETE("/:id", required, h.Post.DeletePost)
		postGroup.POST("/:id/like", required, h.Post.Like)
		postGroup.DELETE("/:id/like", required, h.Post.Unlike)
		postGroup.GET("/:id/likes", optional, h.Post.Likes)
		postGroup.POST("/:id/comments", required, h.Comment.Create)
		postGroup.GET("/:id/comments", optional, h.Comment.List)
	}

	// 评论相关接口
	commentGroup := api.Group("/comments")
	{
		commentGroup.GET("/:id/replies", optional, h.Comment.Replies)
		commentGroup.PUT("/:id", required, h.Comment.Update)
		commentGroup.DELETE("/:id", required, h.Comment.Delete)
		commentGroup.POST("/:id/like", required, h.Comment.Like)
		commentGroup.DELETE("/:id/like", required, h.Comment.Unlike)
	}

	// 快拍相关接口
	storyGroup := api.Group("/stories")
	storyGroup.Use(required)
	{
		storyGroup.POST("", h.Story.Create)
		storyGroup.GET("/feed", h.Story.Feed)
		storyGroup.GET("/user/:id", h.Story.UserStories)
		storyGroup.POST("/:id/view", h.Story.View)
		storyGroup.DELETE("/:id", h.Story.Delete)
	}

	return r
}

// health 任一存储不可用时返回 503
func health(checks HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		stores := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				stores[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			stores[name] = "ok"
		}
		c.JSON(status, gin.H{"stores": stores})
	}
}
