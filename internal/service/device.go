package service

import (
	"context"
	"errors"
	"fmt"

	"signalserver/internal/domain"
	"signalserver/internal/dto"
	"signalserver/internal/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceRegistry owns device records and the one-device-per-user rule.
type DeviceRegistry struct {
	store *store.Store
}

func NewDeviceRegistry(st *store.Store) *DeviceRegistry {
	return &DeviceRegistry{store: st}
}

// Register validates all key material up front, then persists the device, its
// signed prekey and the initial one-time prekeys as one transaction. A second
// device for the same user fails on the user_id unique index, never on a
// read-then-write race.
func (r *DeviceRegistry) Register(ctx context.Context, userID uuid.UUID, req dto.RegisterDeviceRequest) (*domain.Device, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	device := &domain.Device{
		UserID:         userID,
		IdentityKey:    req.IdentityKey,
		SigningKey:     req.SigningKey,
		Address:        req.Address,
		RegistrationID: req.RegistrationID,
	}

	err := r.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Users().Ensure(ctx, userID); err != nil {
			return err
		}
		// Pre-check both unique columns so each collision gets its own error.
		// The indexes stay the backstop for a true write race, where the
		// user_id index is the one that matters.
		if _, err := tx.Devices().GetByUserID(ctx, userID); err == nil {
			return domain.ErrDeviceExists
		} else if !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}
		if _, err := tx.Devices().GetByAddress(ctx, device.Address); err == nil {
			return fmt.Errorf("%w: a device with this address already exists", domain.ErrInvalidData)
		} else if !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}
		if err := tx.Devices().Create(ctx, device); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrDeviceExists
			}
			return err
		}
		signed := &domain.SignedPreKey{
			DeviceID:  device.ID,
			KeyID:     req.SignedPreKey.KeyID,
			PublicKey: req.SignedPreKey.PublicKey,
			Signature: req.SignedPreKey.Signature,
		}
		if err := tx.SignedPreKeys().Create(ctx, signed); err != nil {
			return err
		}
		keys := make([]domain.PreKey, 0, len(req.PreKeys))
		for _, k := range req.PreKeys {
			keys = append(keys, domain.PreKey{DeviceID: device.ID, KeyID: k.KeyID, PublicKey: k.PublicKey})
		}
		return tx.PreKeys().AddBatch(ctx, keys)
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// Delete removes the user's device and everything hanging off it: prekeys,
// signed prekey and queued messages.
func (r *DeviceRegistry) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.store.WithTx(ctx, func(tx *store.Store) error {
		device, err := tx.Devices().GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrNoDevice
			}
			return err
		}
		if err := tx.PreKeys().DeleteForDevice(ctx, device.ID); err != nil {
			return err
		}
		if err := tx.SignedPreKeys().DeleteForDevice(ctx, device.ID); err != nil {
			return err
		}
		if err := tx.Messages().DeleteForDevice(ctx, device.ID); err != nil {
			return err
		}
		return tx.Devices().Delete(ctx, device.ID)
	})
}

func (r *DeviceRegistry) Get(ctx context.Context, userID uuid.UUID) (*domain.Device, error) {
	device, err := r.store.Devices().GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrNoDevice
		}
		return nil, err
	}
	return device, nil
}

// VerifyRegistrationID reports whether the client's claimed registration id
// still matches the device. A mismatch means the caller's cached identity for
// this device generation is stale.
func (r *DeviceRegistry) VerifyRegistrationID(device *domain.Device, claimed uint32) bool {
	return device.RegistrationID == claimed
}

func validateRegistration(req dto.RegisterDeviceRequest) error {
	if err := ValidateAddress(req.Address); err != nil {
		return err
	}
	if err := ValidatePublicKey("identityKey", req.IdentityKey); err != nil {
		return err
	}
	if err := ValidatePublicKey("signingKey", req.SigningKey); err != nil {
		return err
	}
	if err := ValidateRegistrationID(req.RegistrationID); err != nil {
		return err
	}
	if err := validateSignedPreKey(req.SignedPreKey); err != nil {
		return err
	}
	seen := make(map[uint32]struct{}, len(req.PreKeys))
	for _, k := range req.PreKeys {
		if err := ValidateKeyID(k.KeyID); err != nil {
			return err
		}
		if err := ValidatePublicKey("preKey publicKey", k.PublicKey); err != nil {
			return err
		}
		if _, dup := seen[k.KeyID]; dup {
			return fmt.Errorf("%w: duplicate keyId %d in batch", domain.ErrInvalidData, k.KeyID)
		}
		seen[k.KeyID] = struct{}{}
	}
	if len(req.PreKeys) > domain.MaxPreKeysPerDevice {
		return domain.ErrMaxPreKeys
	}
	return nil
}

func validateSignedPreKey(key dto.SignedPreKey) error {
	if err := ValidateKeyID(key.KeyID); err != nil {
		return err
	}
	if err := ValidatePublicKey("signedPreKey publicKey", key.PublicKey); err != nil {
		return err
	}
	return ValidateSignature("signedPreKey signature", key.Signature)
}
