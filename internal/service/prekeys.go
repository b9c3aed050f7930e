package service

import (
	"context"
	"errors"
	"fmt"

	"signalserver/internal/domain"
	"signalserver/internal/dto"
	"signalserver/internal/store"

	"gorm.io/gorm"
)

// PreKeyService manages a device's one-time prekey pool and its signed prekey.
type PreKeyService struct {
	store *store.Store
}

func NewPreKeyService(st *store.Store) *PreKeyService {
	return &PreKeyService{store: st}
}

// AddPreKeys stores a batch of one-time prekeys. The whole batch is validated
// first and applied all-or-nothing: a duplicate key id or a pool overflow
// rejects the entire call with nothing persisted.
func (p *PreKeyService) AddPreKeys(ctx context.Context, device *domain.Device, entries []dto.PreKey) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: prekey list must not be empty", domain.ErrIncorrectArguments)
	}
	seen := make(map[uint32]struct{}, len(entries))
	for _, e := range entries {
		if err := ValidateKeyID(e.KeyID); err != nil {
			return err
		}
		if err := ValidatePublicKey("publicKey", e.PublicKey); err != nil {
			return err
		}
		if _, dup := seen[e.KeyID]; dup {
			return domain.ErrPreKeyIDExists
		}
		seen[e.KeyID] = struct{}{}
	}

	return p.store.WithTx(ctx, func(tx *store.Store) error {
		count, err := tx.PreKeys().CountForDevice(ctx, device.ID)
		if err != nil {
			return err
		}
		if count+int64(len(entries)) > domain.MaxPreKeysPerDevice {
			return domain.ErrMaxPreKeys
		}
		keys := make([]domain.PreKey, 0, len(entries))
		for _, e := range entries {
			keys = append(keys, domain.PreKey{DeviceID: device.ID, KeyID: e.KeyID, PublicKey: e.PublicKey})
		}
		if err := tx.PreKeys().AddBatch(ctx, keys); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrPreKeyIDExists
			}
			return err
		}
		return nil
	})
}

// ReplaceSignedPreKey swaps in a new signed prekey. Delete and create share a
// transaction so the device always has exactly one signed prekey to readers.
func (p *PreKeyService) ReplaceSignedPreKey(ctx context.Context, device *domain.Device, req dto.SignedPreKey) error {
	if err := validateSignedPreKey(req); err != nil {
		return err
	}
	return p.store.WithTx(ctx, func(tx *store.Store) error {
		return tx.SignedPreKeys().Replace(ctx, &domain.SignedPreKey{
			DeviceID:  device.ID,
			KeyID:     req.KeyID,
			PublicKey: req.PublicKey,
			Signature: req.Signature,
		})
	})
}
