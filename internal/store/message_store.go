package store

import (
	"context"

	"signalserver/internal/domain"

	"gorm.io/gorm"
)

type MessageStore struct{ db *gorm.DB }

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB} }

func (m *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	return m.db.WithContext(ctx).Create(msg).Error
}

func (m *MessageStore) ListForDevice(ctx context.Context, deviceID uint) ([]domain.Message, error) {
	var msgs []domain.Message
	err := m.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (m *MessageStore) Get(ctx context.Context, id uint) (*domain.Message, error) {
	var msg domain.Message
	if err := m.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (m *MessageStore) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Delete(&domain.Message{}, "id = ?", id).Error
}

func (m *MessageStore) DeleteForDevice(ctx context.Context, deviceID uint) error {
	return m.db.WithContext(ctx).Delete(&domain.Message{}, "device_id = ?", deviceID).Error
}
