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

type RelayerConfig struct {
	BatchSize int
	Interval  time.Duration
	MaxRetry  int
}

// OutboxRelayer 定时重放补偿表中失败的图库写入
type OutboxRelayer struct {
	repo     OutboxStore
	applier  *GraphApplier
	users    UserStore
	requests FriendRequestStore
	cfg     RelayerConfig
	logger  *zap.Logger
}

func NewOutboxRelayer(d Deps, repo OutboxStore, cfg RelayerConfig) *OutboxRelayer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 10
	}
	return &OutboxRelayer{
		repo:     repo,
		applier:  NewGraphApplier(d),
		users:    d.Users,
		requests: d.Requests,
		cfg:      cfg,
		logger:   d.logger(),
	}
}

// Run outbox 启动器
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.DrainOnce(ctx); err != nil {
				r.logger.Error("outbox query failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce 重放一批，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) (int, error) {
	rows, err := r.repo.ListPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range rows {
		ob := &rows[i]
		applied, err := r.replay(ctx, ob)
		if err != nil {
			pkg.OutboxReplayed.WithLabelValues("retry").Inc()
			r.logger.Warn("graph repair replay failed",
				zap.Uint64("id", ob.ID),
				zap.String("kind", ob.Kind),
				zap.Int("retry", ob.Retry+1),
				zap.Error(err))
			if uerr := r.repo.MarkRetry(ctx, ob, err, r.cfg.MaxRetry); uerr != nil {
				r.logger.Error("outbox mark retry failed", zap.Uint64("id", ob.ID), zap.Error(uerr))
			}
			continue
		}
		if uerr := r.repo.MarkSent(ctx, ob.ID); uerr != nil {
			r.logger.Error("outbox mark sent failed", zap.Uint64("id", ob.ID), zap.Error(uerr))
			continue
		}
		if !applied {
			pkg.OutboxReplayed.WithLabelValues("stale").Inc()
			r.logger.Info("graph repair row superseded, skipped",
				zap.Uint64("id", ob.ID),
				zap.String("kind", ob.Kind))
			continue
		}
		pkg.OutboxReplayed.WithLabelValues("sent").Inc()
		sent++
	}
	return sent, nil
}

// replay 只重放与文档库当前状态一致的操作，返回是否执行
func (r *OutboxRelayer) replay(ctx context.Context, ob *model.GraphOutbox) (bool, error) {
	op, err := ob.Op()
	if err != nil {
		return false, err
	}
	op, live, err := r.current(ctx, op)
	if err != nil || !live {
		return false, err
	}
	return true, r.applier.Apply(ctx, op)
}

// current 对照文档库判断操作是否仍然成立，用户节点取最新资料
func (r *OutboxRelayer) current(ctx context.Context, op model.GraphOp) (model.GraphOp, bool, error) {
	switch op.Kind {
	case model.OpBefriend, model.OpUnfriend:
		accepted, err := r.requests.ExistsAccepted(ctx, op.FromID, op.ToID)
		if err != nil {
			return op, false, err
		}
		return op, accepted == (op.Kind == model.OpBefriend), nil
	case model.OpUpsertUser:
		u, err := r.users.FindActiveByID(ctx, op.FromID)
		if errors.Is(err, repository.ErrNotFound) {
			return op, false, nil
		}
		if err != nil {
			return op, false, err
		}
		node := u.Node()
		op.Node = &node
		return op, true, nil
	case model.OpDeleteUser:
		_, err := r.users.FindActiveByID(ctx, op.FromID)
		switch {
		case err == nil:
			return op, false, nil
		case errors.Is(err, repository.ErrNotFound):
			return op, true, nil
		}
		return op, false, err
	}
	return op, true, nil
}
