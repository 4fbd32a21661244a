package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/pkg/common"
)

// ErrInstanceNotFound reports a lookup miss. Callers test with
// errors.Is and never depend on the driver's own error values.
var ErrInstanceNotFound = errors.New("instance not found")

// InstanceRepository is the persistence surface the session manager
// depends on. Status and identity updates are idempotent upserts; the
// manager logs failures and keeps its in-memory state authoritative.
type InstanceRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.WaInstance, error)
	GetByToken(ctx context.Context, token string) (*domain.WaInstance, error)
	List(ctx context.Context) ([]domain.WaInstance, error)
	Create(ctx context.Context, inst *domain.WaInstance) error
	Delete(ctx context.Context, id int64) error

	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdateAccountIdentity(ctx context.Context, id int64, number, name, picture string) error
	ClearAccountIdentity(ctx context.Context, id int64) error
	UpdateWebhook(ctx context.Context, id int64, url string, events string) error

	SaveMessage(ctx context.Context, msg *domain.WaMessageLog) error
}

// GormInstanceRepository is the gorm-backed adapter.
type GormInstanceRepository struct {
	db *gorm.DB
}

func NewGormInstanceRepository(db *gorm.DB) *GormInstanceRepository {
	return &GormInstanceRepository{db: db}
}

var _ InstanceRepository = (*GormInstanceRepository)(nil)

func (r *GormInstanceRepository) GetByID(ctx context.Context, id int64) (*domain.WaInstance, error) {
	var inst domain.WaInstance
	if err := r.db.WithContext(ctx).First(&inst, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *GormInstanceRepository) GetByToken(ctx context.Context, token string) (*domain.WaInstance, error) {
	var inst domain.WaInstance
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return &inst, nil
}

func (r *GormInstanceRepository) List(ctx context.Context) ([]domain.WaInstance, error) {
	var insts []domain.WaInstance
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&insts).Error; err != nil {
		return nil, err
	}
	return insts, nil
}

func (r *GormInstanceRepository) Create(ctx context.Context, inst *domain.WaInstance) error {
	if inst.ID == 0 {
		inst.ID = common.UUIDint64()
	}
	if inst.Token == "" {
		inst.Token = common.RandomToken(24)
	}
	if inst.Status == "" {
		inst.Status = domain.InstanceDisconnected
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(inst).Error, "create instance")
}

func (r *GormInstanceRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.WaInstance{}, id).Error
}

func (r *GormInstanceRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&domain.WaInstance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

func (r *GormInstanceRepository) UpdateAccountIdentity(ctx context.Context, id int64, number, name, picture string) error {
	return r.db.WithContext(ctx).Model(&domain.WaInstance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"account_number":  number,
			"account_name":    name,
			"account_picture": picture,
			"updated_at":      time.Now(),
		}).Error
}

func (r *GormInstanceRepository) ClearAccountIdentity(ctx context.Context, id int64) error {
	return r.UpdateAccountIdentity(ctx, id, "", "", "")
}

func (r *GormInstanceRepository) UpdateWebhook(ctx context.Context, id int64, url string, events string) error {
	return r.db.WithContext(ctx).Model(&domain.WaInstance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"webhook_url": url, "events": events, "updated_at": time.Now()}).Error
}

func (r *GormInstanceRepository) SaveMessage(ctx context.Context, msg *domain.WaMessageLog) error {
	if msg.ID == 0 {
		msg.ID = common.UUIDint64()
	}
	return r.db.WithContext(ctx).Create(msg).Error
}
