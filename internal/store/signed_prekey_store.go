package store

import (
	"context"

	"signalserver/internal/domain"

	"gorm.io/gorm"
)

type SignedPreKeyStore struct{ db *gorm.DB }

func (s *Store) SignedPreKeys() *SignedPreKeyStore { return &SignedPreKeyStore{db: s.DB} }

func (s *SignedPreKeyStore) Create(ctx context.Context, key *domain.SignedPreKey) error {
	return s.db.WithContext(ctx).Create(key).Error
}

// Replace swaps the device's signed prekey. Callers run this inside WithTx so
// no reader ever observes zero or two rows for the device.
func (s *SignedPreKeyStore) Replace(ctx context.Context, key *domain.SignedPreKey) error {
	if err := s.db.WithContext(ctx).Delete(&domain.SignedPreKey{}, "device_id = ?", key.DeviceID).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(key).Error
}

func (s *SignedPreKeyStore) GetByDevice(ctx context.Context, deviceID uint) (*domain.SignedPreKey, error) {
	var key domain.SignedPreKey
	if err := s.db.WithContext(ctx).First(&key, "device_id = ?", deviceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (s *SignedPreKeyStore) DeleteForDevice(ctx context.Context, deviceID uint) error {
	return s.db.WithContext(ctx).Delete(&domain.SignedPreKey{}, "device_id = ?", deviceID).Error
}
