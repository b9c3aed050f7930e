package store

import (
	"context"

	"signalserver/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreKeyStore struct{ db *gorm.DB }

func (s *Store) PreKeys() *PreKeyStore { return &PreKeyStore{db: s.DB} }

// AddBatch inserts all keys or none. The composite unique index on
// (device_id, key_id) surfaces duplicate ids as gorm.ErrDuplicatedKey.
func (p *PreKeyStore) AddBatch(ctx context.Context, keys []domain.PreKey) error {
	if len(keys) == 0 {
		return nil
	}
	return p.db.WithContext(ctx).Create(&keys).Error
}

func (p *PreKeyStore) CountForDevice(ctx context.Context, deviceID uint) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&domain.PreKey{}).
		Where("device_id = ?", deviceID).
		Count(&count).Error
	return count, err
}

// ConsumeOne selects the lowest key_id for the device, deletes it and returns
// it. Run inside a transaction: the row lock (SKIP LOCKED on postgres)
// partitions concurrent consumers so no two callers get the same key. Returns
// nil when the pool is empty.
func (p *PreKeyStore) ConsumeOne(ctx context.Context, deviceID uint) (*domain.PreKey, error) {
	var key domain.PreKey
	err := p.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("device_id = ?", deviceID).
		Order("key_id ASC").
		First(&key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	if err := p.db.WithContext(ctx).Delete(&domain.PreKey{}, "id = ?", key.ID).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

func (p *PreKeyStore) DeleteForDevice(ctx context.Context, deviceID uint) error {
	return p.db.WithContext(ctx).Delete(&domain.PreKey{}, "device_id = ?", deviceID).Error
}
