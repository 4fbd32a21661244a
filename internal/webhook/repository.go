package webhook

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/pkg/common"
)

// DeliveryRepository handles database operations for the webhook
// outbox.
type DeliveryRepository interface {
	// Enqueue inserts a new pending delivery row
	Enqueue(ctx context.Context, d *domain.WebhookDelivery) error

	// GetDue retrieves pending rows plus failed rows whose retry time
	// has arrived, oldest first
	GetDue(ctx context.Context, maxRetries, limit int) ([]*domain.WebhookDelivery, error)

	// MarkSent marks a delivery as completed
	MarkSent(ctx context.Context, id int64) error

	// MarkFailed records a failed attempt and schedules the next try
	MarkFailed(ctx context.Context, id int64, lastError string, nextTry time.Time) error

	// PurgeOlderThan removes finished rows older than cutoff
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormDeliveryRepository struct {
	db *gorm.DB
}

func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

var _ DeliveryRepository = (*GormDeliveryRepository)(nil)

func (r *GormDeliveryRepository) Enqueue(ctx context.Context, d *domain.WebhookDelivery) error {
	if d.ID == 0 {
		d.ID = common.UUIDint64()
	}
	if d.Status == "" {
		d.Status = domain.DeliveryPending
	}
	if d.NextTryAt.IsZero() {
		d.NextTryAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *GormDeliveryRepository) GetDue(ctx context.Context, maxRetries, limit int) ([]*domain.WebhookDelivery, error) {
	var rows []*domain.WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("(status = ? OR (status = ? AND retries < ?)) AND next_try_at <= ?",
			domain.DeliveryPending, domain.DeliveryFailed, maxRetries, time.Now()).
		Order("id ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *GormDeliveryRepository) MarkSent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&domain.WebhookDelivery{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     domain.DeliverySent,
			"last_error": "",
			"updated_at": time.Now(),
		}).Error
}

func (r *GormDeliveryRepository) MarkFailed(ctx context.Context, id int64, lastError string, nextTry time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.WebhookDelivery{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      domain.DeliveryFailed,
			"retries":     gorm.Expr("retries + 1"),
			"last_error":  lastError,
			"next_try_at": nextTry,
			"updated_at":  time.Now(),
		}).Error
}

func (r *GormDeliveryRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]string{domain.DeliverySent, domain.DeliveryFailed}, cutoff).
		Delete(&domain.WebhookDelivery{})
	return res.RowsAffected, res.Error
}
