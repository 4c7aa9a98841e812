package service

import (
	"context"
	"fmt"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"

	"go.uber.org/zap"
)

// BestEffort 一次派生存储写入的结果，调用方可以检查也可以丢弃
type BestEffort struct {
	Op  model.GraphOp
	Err error
}

func (b BestEffort) OK() bool { return b.Err == nil }

// SyncReport 一个请求中所有派生写入的结果
type SyncReport []BestEffort

// Failed 失败的派生写入
func (r SyncReport) Failed() []BestEffort {
	var out []BestEffort
	for _, b := range r {
		if !b.OK() {
			out = append(out, b)
		}
	}
	return out
}

// GraphApplier 按操作类型执行图库写入，内联调用和补偿重放共用
type GraphApplier struct {
	users   UserGraph
	follows FollowGraph
	friends FriendGraph
}

func NewGraphApplier(d Deps) *GraphApplier {
	return &GraphApplier{users: d.UserGraph, follows: d.Follows, friends: d.Friends}
}

func (g *GraphApplier) Apply(ctx context.Context, op model.GraphOp) error {
	switch op.Kind {
	case model.OpUpsertUser:
		if op.Node == nil {
			return fmt.Errorf("upsert_user without node")
		}
		return g.users.UpsertUser(ctx, *op.Node)
	case model.OpDeleteUser:
		return g.users.DeleteUser(ctx, op.FromID)
	case model.OpFollow:
		_, err := g.follows.Follow(ctx, op.FromID, op.ToID)
		return err
	case model.OpUnfollow:
		_, err := g.follows.Unfollow(ctx, op.FromID, op.ToID)
		return err
	case model.OpBefriend:
		return g.friends.Befriend(ctx, op.FromID, op.ToID)
	case model.OpUnfriend:
		return g.friends.Unfriend(ctx, op.FromID, op.ToID)
	}
	return fmt.Errorf("unknown graph op %q", op.Kind)
}

// Secondary 派生存储写入：不重试、不阻塞主流程。
// 失败时记录日志和指标，并写入补偿队列
type Secondary struct {
	applier *GraphApplier
	repair  RepairQueue
	logger  *zap.Logger
}

func NewSecondary(d Deps) *Secondary {
	return &Secondary{applier: NewGraphApplier(d), repair: d.Repair, logger: d.logger()}
}

// Apply 执行一次派生写入
func (s *Secondary) Apply(ctx context.Context, op model.GraphOp) BestEffort {
	ctx = detach(ctx)
	return s.Record(ctx, op, s.applier.Apply(ctx, op))
}

// Record 登记一次已执行的派生写入结果
func (s *Secondary) Record(ctx context.Context, op model.GraphOp, err error) BestEffort {
	if err == nil {
		return BestEffort{Op: op}
	}
	s.logger.Warn("graph write failed, continuing",
		zap.String("op", string(op.Kind)),
		zap.String("from", op.FromID),
		zap.String("to", op.ToID),
		zap.Error(err))
	pkg.BestEffortFailures.WithLabelValues(string(op.Kind)).Inc()
	if s.repair != nil {
		if qerr := s.repair.Enqueue(detach(ctx), op); qerr != nil {
			s.logger.Error("enqueue graph repair failed", zap.String("op", string(op.Kind)), zap.Error(qerr))
		}
	}
	return BestEffort{Op: op, Err: err}
}
