package store

import (
	"context"

	"signalserver/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeviceStore struct{ db *gorm.DB }

func (s *Store) Devices() *DeviceStore { return &DeviceStore{db: s.DB} }

// Create inserts the device row. The unique index on user_id makes concurrent
// registration attempts for one user collide here; callers translate
// gorm.ErrDuplicatedKey into the device-exists conflict.
func (d *DeviceStore) Create(ctx context.Context, device *domain.Device) error {
	return d.db.WithContext(ctx).Create(device).Error
}

func (d *DeviceStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Device, error) {
	var device domain.Device
	if err := d.db.WithContext(ctx).First(&device, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (d *DeviceStore) GetByAddress(ctx context.Context, address string) (*domain.Device, error) {
	var device domain.Device
	if err := d.db.WithContext(ctx).First(&device, "address = ?", address).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (d *DeviceStore) Delete(ctx context.Context, id uint) error {
	return d.db.WithContext(ctx).Delete(&domain.Device{}, "id = ?", id).Error
}

// IncrementSignatureCount advances the replay counter from a known value.
// Returns false without error when the row has moved on, i.e. a concurrent
// request already consumed this counter value.
func (d *DeviceStore) IncrementSignatureCount(ctx context.Context, id uint, from uint64) (bool, error) {
	tx := d.db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("id = ? AND signature_count = ?", id, from).
		Update("signature_count", from+1)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}
