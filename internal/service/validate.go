package service

import (
	"encoding/base64"
	"fmt"

	"signalserver/internal/domain"
)

// Key material travels as standard base64. A 32-byte public key encodes to 44
// characters, a 64-byte signature to 88.
const (
	publicKeyRawLen = 32
	signatureRawLen = 64
)

func ValidatePublicKey(field, encoded string) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %s is not valid base64", domain.ErrInvalidData, field)
	}
	if len(raw) != publicKeyRawLen {
		return fmt.Errorf("%w: %s must decode to %d bytes", domain.ErrInvalidData, field, publicKeyRawLen)
	}
	return nil
}

func ValidateSignature(field, encoded string) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %s is not valid base64", domain.ErrInvalidData, field)
	}
	if len(raw) != signatureRawLen {
		return fmt.Errorf("%w: %s must decode to %d bytes", domain.ErrInvalidData, field, signatureRawLen)
	}
	return nil
}

func ValidateRegistrationID(id uint32) error {
	if id > domain.MaxRegistrationID {
		return fmt.Errorf("%w: registrationId must be between 0 and %d", domain.ErrInvalidData, domain.MaxRegistrationID)
	}
	return nil
}

func ValidateKeyID(id uint32) error {
	if id > domain.MaxRegistrationID {
		return fmt.Errorf("%w: keyId must be between 0 and %d", domain.ErrInvalidData, domain.MaxRegistrationID)
	}
	return nil
}

func ValidateAddress(address string) error {
	if address == "" || len(address) > 100 {
		return fmt.Errorf("%w: address must be between 1 and 100 characters", domain.ErrInvalidData)
	}
	return nil
}
