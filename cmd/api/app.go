package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"Lee_Social/internal/config"
	"Lee_Social/internal/handler"
	"Lee_Social/internal/middleware"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository/mongo"
	"Lee_Social/internal/repository/mysql"
	"Lee_Social/internal/repository/neo4j"
	"Lee_Social/internal/repository/redis"
	"Lee_Social/internal/router"
	"Lee_Social/internal/service"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// app 持有所有连接，close 负责释放
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	mongo *mongo.Client
	graph *neo4j.Client
	redis *goredis.Client
	db    *gorm.DB
	kafka *pkg.KafkaProducer

	outbox *mysql.OutboxRepository
	deps   service.Deps
}

func setup(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := pkg.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	if err = a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.wire()
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	var err error
	if a.mongo, err = mongo.Connect(ctx, a.cfg.Mongo); err != nil {
		return err
	}
	if a.graph, err = neo4j.Connect(ctx, a.cfg.Neo4j, a.logger); err != nil {
		return err
	}
	if a.redis, err = redis.NewClient(ctx, a.cfg.Redis); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if a.cfg.MySQL.Enabled() {
		if a.db, err = mysql.Open(a.cfg.MySQL); err != nil {
			return err
		}
		a.outbox = mysql.NewOutboxRepository(a.db)
	} else {
		a.logger.Warn("mysql dsn not configured, graph repair queue disabled")
	}
	if a.cfg.Kafka.Enabled() {
		a.kafka = pkg.NewKafkaProducer(a.cfg.Kafka)
	}
	return nil
}

// wire 仓储 -> 服务依赖
func (a *app) wire() {
	d := service.Deps{
		Users:     mongo.NewUserRepository(a.mongo),
		Posts:     mongo.NewPostRepository(a.mongo),
		Comments:  mongo.NewCommentRepository(a.mongo),
		Stories:   mongo.NewStoryRepository(a.mongo),
		Requests:  mongo.NewFriendRequestRepository(a.mongo),
		UserGraph: neo4j.NewUserNodeRepository(a.graph),
		Follows:   neo4j.NewFollowRepository(a.graph),
		Friends:   neo4j.NewFriendRepository(a.graph),
		Sessions:  redis.NewSessionRepository(a.redis),
		Codes:     redis.NewEmailCodeRepository(a.redis),
		Tokens:    pkg.NewTokenIssuer(a.cfg.JWT),
		Logger:    a.logger,

		NotifyTimeout: a.cfg.Kafka.WriteTimeout,
	}
	if a.outbox != nil {
		d.Repair = a.outbox
	}
	if a.kafka != nil {
		d.Notifier = service.NewKafkaNotifier(a.kafka)
	} else {
		d.Notifier = service.NewLogNotifier(a.logger)
	}
	if a.cfg.SMTP.Enabled() {
		d.Mailer = pkg.NewMailer(a.cfg.SMTP)
	} else {
		a.logger.Warn("smtp not configured, verification emails disabled")
	}
	a.deps = d
}

func (a *app) engine() (*gin.Engine, error) {
	policy, err := service.ParseFriendsPolicy(a.cfg.Social.FriendsVisibility)
	if err != nil {
		return nil, err
	}
	gin.SetMode(a.cfg.Server.Mode)

	d := a.deps
	visibility := service.NewVisibility(d, policy)
	users := service.NewUserService(d)
	relation := service.NewRelationService(d)
	posts := service.NewPostService(d, visibility)
	feed := service.NewFeedService(d, visibility)
	comments := service.NewCommentService(d, visibility)
	stories := service.NewStoryService(d)

	h := router.Handlers{
		User:    handler.NewUserHandler(users, feed),
		Email:   handler.NewEmailHandler(users),
		Follow:  handler.NewFollowHandler(relation),
		Friend:  handler.NewFriendHandler(relation),
		Post:    handler.NewPostHandler(posts, feed),
		Comment: handler.NewCommentHandler(comments),
		Story:   handler.NewStoryHandler(stories, feed),
	}
	checks := router.HealthCheck{
		"mongo": a.mongo.Ping,
		"neo4j": a.graph.Ping,
		"redis": func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
	}
	auth := middleware.NewAuth(d.Tokens, d.Sessions)
	return router.InitRouter(h, auth, checks, a.logger), nil
}

func (a *app) relayer() *service.OutboxRelayer {
	if a.outbox == nil {
		return nil
	}
	return service.NewOutboxRelayer(a.deps, a.outbox, service.RelayerConfig{
		BatchSize: a.cfg.Social.OutboxBatch,
		Interval:  a.cfg.Social.OutboxInterval,
		MaxRetry:  a.cfg.Social.OutboxMaxRetry,
	})
}

func (a *app) reconciler() *service.CountReconciler {
	return service.NewCountReconciler(a.deps, service.ReconcilerConfig{
		BatchSize: a.cfg.Social.ReconcileBatch,
		Interval:  a.cfg.Social.ReconcileInterval,
	})
}

// serve 直到 ctx 取消，然后优雅关闭 http 服务并等待后台任务退出
func (a *app) serve(ctx context.Context, workers bool) error {
	r, err := a.engine()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if workers {
		if rl := a.relayer(); rl != nil {
			g.Go(func() error {
				rl.Run(ctx)
				return nil
			})
		}
		rc := a.reconciler()
		g.Go(func() error {
			rc.Run(ctx)
			return nil
		})
	}
	err = g.Wait()
	a.logger.Info("server stopped")
	return err
}

func (a *app) reconcileOnce(ctx context.Context) error {
	if rl := a.relayer(); rl != nil {
		sent, err := rl.DrainOnce(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("graph repair replayed", zap.Int("sent", sent))
	}
	stats, err := a.reconciler().ReconcileOnce(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("follow counters reconciled",
		zap.Int("checked", stats.Checked),
		zap.Int("fixed", stats.Fixed),
		zap.Int("skipped", stats.Skipped))
	return nil
}

func (a *app) migrate(ctx context.Context) error {
	if err := a.mongo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	if err := a.graph.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("neo4j schema: %w", err)
	}
	// mysql.Open 已自动建表
	a.logger.Info("migration finished", zap.Bool("mysql", a.db != nil))
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.kafka.Close(); err != nil {
		a.logger.Warn("close kafka", zap.Error(err))
	}
	if err := mysql.Close(a.db); err != nil {
		a.logger.Warn("close mysql", zap.Error(err))
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.graph.Close(ctx); err != nil {
		a.logger.Warn("close neo4j", zap.Error(err))
	}
	if err := a.mongo.Close(ctx); err != nil {
		a.logger.Warn("close mongo", zap.Error(err))
	}
	_ = a.logger.Sync()
}
