package mysql

import (
	"context"
	"encoding/json"

	"Lee_Social/internal/model"

	"gorm.io/gorm"
)

const maxErrorLen = 512

// OutboxRepository 图库补偿表
type OutboxRepository struct {
	DB *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

// Enqueue 写入一条待重放的图库操作
func (r *OutboxRepository) Enqueue(ctx context.Context, op model.GraphOp) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return err
	}
	ob := &model.GraphOutbox{
		Kind:    string(op.Kind),
		FromID:  op.FromID,
		ToID:    op.ToID,
		Payload: string(payload),
		Status:  model.OutboxPending,
	}
	return r.DB.WithContext(ctx).Create(ob).Error
}

// ListPending 按写入顺序取待重放记录
func (r *OutboxRepository) ListPending(ctx context.Context, batchSize int) ([]model.GraphOutbox, error) {
	var list []model.GraphOutbox
	if err := r.DB.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// MarkRetry 重放失败，次数达到上限后置为 failed
func (r *OutboxRepository) MarkRetry(ctx context.Context, ob *model.GraphOutbox, cause error, maxRetry int) error {
	msg := cause.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	status := model.OutboxPending
	if ob.Retry+1 >= maxRetry {
		status = model.OutboxFailed
	}
	return r.DB.WithContext(ctx).Model(&model.GraphOutbox{}).Where("id = ?", ob.ID).
		Updates(map[string]any{
			"retry":      ob.Retry + 1,
			"last_error": msg,
			"status":     status,
		}).Error
}

// MarkSent 重放成功
func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.GraphOutbox{}).Where("id = ?", id).
		Update("status", model.OutboxSent).Error
}
