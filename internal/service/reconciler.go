package service

import (
	"context"
	"errors"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository"

	"go.uber.org/zap"
)

type ReconcilerConfig struct {
	BatchSize int
	Interval  time.Duration
}

// CountReconciler 以图库边为准修正用户文档上的关注/粉丝计数
type CountReconciler struct {
	users   UserStore
	follows FollowGraph
	cfg     ReconcilerConfig
	logger  *zap.Logger
}

// ReconcileStats 一轮对账的结果
type ReconcileStats struct {
	Checked int
	Fixed   int
	Skipped int
}

func NewCountReconciler(d Deps, cfg ReconcilerConfig) *CountReconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	return &CountReconciler{users: d.Users, follows: d.Follows, cfg: cfg, logger: d.logger()}
}

// Run 对账定时任务启动器
func (r *CountReconciler) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			stats, err := r.ReconcileOnce(ctx)
			if err != nil {
				r.logger.Error("reconcile failed", zap.Error(err))
				continue
			}
			r.logger.Info("reconcile done",
				zap.Int("checked", stats.Checked),
				zap.Int("fixed", stats.Fixed),
				zap.Int("skipped", stats.Skipped))
		}
	}
}

// ReconcileOnce 按 _id 分批走完所有活跃用户
func (r *CountReconciler) ReconcileOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	lastID := ""
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		users, err := r.users.ListActiveAfter(ctx, lastID, r.cfg.BatchSize)
		if err != nil {
			return stats, err
		}
		for i := range users {
			r.reconcileUser(ctx, &users[i], &stats)
		}
		if len(users) < r.cfg.BatchSize {
			return stats, nil
		}
		lastID = users[len(users)-1].ID.Hex()
	}
}

func (r *CountReconciler) reconcileUser(ctx context.Context, u *model.User, stats *ReconcileStats) {
	stats.Checked++
	id := u.ID.Hex()
	following, followers, err := r.follows.FollowCounts(ctx, id)
	if err != nil {
		// 图库读不到就不动计数
		stats.Skipped++
		r.logger.Warn("read follow degree failed", zap.String("user", id), zap.Error(err))
		return
	}
	if following == u.FollowingCount && followers == u.FollowersCount {
		return
	}
	next := model.FollowCounts{Following: following, Followers: followers}
	if err = r.users.SetFollowCounts(ctx, id, u.FollowCounts(), next); err != nil {
		stats.Skipped++
		if errors.Is(err, repository.ErrStale) {
			// 读取后计数有变动，留给下一轮
			r.logger.Info("follow counters changed during reconcile, skipped", zap.String("user", id))
			return
		}
		r.logger.Error("fix follow counters failed", zap.String("user", id), zap.Error(err))
		return
	}
	stats.Fixed++
	if following != u.FollowingCount {
		pkg.CounterDriftFixed.WithLabelValues(string(model.CounterFollowing)).Inc()
	}
	if followers != u.FollowersCount {
		pkg.CounterDriftFixed.WithLabelValues(string(model.CounterFollowers)).Inc()
	}
	r.logger.Info("follow counters corrected",
		zap.String("user", id),
		zap.Int64("following", following),
		zap.Int64("followers", followers))
}
