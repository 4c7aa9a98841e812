package service

import (
	"context"
	"time"

	"Lee_Social/internal/model"

	"go.uber.org/zap"
)

// EventPublisher 消息发送方，由 kafka producer 实现
type EventPublisher interface {
	SendJSON(ctx context.Context, key string, v any) error
}

// KafkaNotifier 以发起人 id 为 key 投递，同一用户的事件有序
type KafkaNotifier struct {
	pub EventPublisher
}

func NewKafkaNotifier(pub EventPublisher) *KafkaNotifier {
	return &KafkaNotifier{pub: pub}
}

func (n *KafkaNotifier) Notify(ctx context.Context, ev model.RelationEvent) error {
	return n.pub.SendJSON(ctx, ev.ActorID, ev)
}

// LogNotifier 未配置 kafka 时的默认实现
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev model.RelationEvent) error {
	n.logger.Info("relation event",
		zap.String("type", ev.Type),
		zap.String("actor", ev.ActorID),
		zap.String("target", ev.TargetID),
		zap.String("ref", ev.RefID))
	return nil
}

const defaultNotifyTimeout = time.Second

// events 通知是尽力而为的，失败只记日志；请求最多等待 timeout
type events struct {
	n       Notifier
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func newEvents(d Deps) *events {
	n := d.Notifier
	if n == nil {
		n = NewLogNotifier(d.logger())
	}
	timeout := d.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &events{n: n, timeout: timeout, logger: d.logger(), now: d.clock()}
}

func (e *events) publish(ctx context.Context, typ, actor, target, ref string) {
	ev := model.RelationEvent{Type: typ, ActorID: actor, TargetID: target, RefID: ref, EventTime: e.now().UTC()}
	ctx, cancel := context.WithTimeout(detach(ctx), e.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.n.Notify(ctx, ev) }()
	select {
	case err := <-done:
		if err != nil {
			e.logger.Warn("publish relation event failed", zap.String("type", typ), zap.Error(err))
		}
	case <-ctx.Done():
		// 投递协程随 ctx 取消自行退出
		e.logger.Warn("publish relation event timed out",
			zap.String("type", typ),
			zap.Duration("timeout", e.timeout))
	}
}
