package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"signalserver/internal/domain"
	"signalserver/internal/dto"
	"signalserver/internal/store"
)

// BundleIssuer composes prekey bundles for session initiation. Consuming the
// one-time prekey and reading the rest of the bundle share a transaction, so
// two concurrent fetches against the same target never receive the same key.
type BundleIssuer struct {
	store   *store.Store
	devices *DeviceRegistry
}

func NewBundleIssuer(st *store.Store, devices *DeviceRegistry) *BundleIssuer {
	return &BundleIssuer{store: st, devices: devices}
}

// IssueBundle resolves the hex-encoded target address and returns the target's
// public material. The preKey field is left out when the pool is exhausted;
// that is a valid bundle, not an error.
func (b *BundleIssuer) IssueBundle(ctx context.Context, requester *domain.Device, claimedRegistrationID uint32, hexAddress string) (*dto.PreKeyBundle, error) {
	if !b.devices.VerifyRegistrationID(requester, claimedRegistrationID) {
		return nil, domain.ErrDeviceChanged
	}

	rawAddress, err := hex.DecodeString(hexAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient address must be hex encoded", domain.ErrIncorrectArguments)
	}
	address := string(rawAddress)

	var bundle *dto.PreKeyBundle
	err = b.store.WithTx(ctx, func(tx *store.Store) error {
		target, err := tx.Devices().GetByAddress(ctx, address)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrNoRecipientDevice
			}
			return err
		}
		signed, err := tx.SignedPreKeys().GetByDevice(ctx, target.ID)
		if err != nil {
			return err
		}
		oneTime, err := tx.PreKeys().ConsumeOne(ctx, target.ID)
		if err != nil {
			return err
		}
		bundle = &dto.PreKeyBundle{
			Address:        target.Address,
			IdentityKey:    target.IdentityKey,
			RegistrationID: target.RegistrationID,
			SignedPreKey: dto.SignedPreKey{
				KeyID:     signed.KeyID,
				PublicKey: signed.PublicKey,
				Signature: signed.Signature,
			},
		}
		if oneTime != nil {
			bundle.PreKey = &dto.PreKey{KeyID: oneTime.KeyID, PublicKey: oneTime.PublicKey}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}
