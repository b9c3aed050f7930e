package domain

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the account system's user identity. Rows are ensured lazily on
// first device registration so foreign keys have an anchor; account lifecycle
// itself lives elsewhere.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

// Device is a user's single registered messaging device. The unique index on
// user_id enforces the one-device-per-user rule at commit time.
type Device struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	IdentityKey    string    `gorm:"size:44;not null"`
	SigningKey     string    `gorm:"size:44;not null"`
	Address        string    `gorm:"size:100;not null;uniqueIndex"`
	RegistrationID uint32    `gorm:"not null"`
	SignatureCount uint64    `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
}

// PreKey is a single-use public key. key_id is unique per device; the pool is
// capped at MaxPreKeysPerDevice.
type PreKey struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  uint   `gorm:"not null;uniqueIndex:idx_prekey_device_key"`
	KeyID     uint32 `gorm:"not null;uniqueIndex:idx_prekey_device_key"`
	PublicKey string `gorm:"size:44;not null"`
}

// SignedPreKey is the device's medium-term prekey. Exactly one row per device
// at all times after registration.
type SignedPreKey struct {
	DeviceID  uint      `gorm:"primaryKey"`
	KeyID     uint32    `gorm:"not null"`
	PublicKey string    `gorm:"size:44;not null"`
	Signature string    `gorm:"size:88;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

// Message is an undelivered envelope queued for a recipient device. Content is
// opaque ciphertext; sender fields are stamped from the authenticated sender
// device, never from the request body.
type Message struct {
	ID                   uint      `gorm:"primaryKey"`
	DeviceID             uint      `gorm:"not null;index"`
	Content              string    `gorm:"size:1000;not null"`
	SenderAddress        string    `gorm:"size:100;not null"`
	SenderRegistrationID uint32    `gorm:"not null"`
	CreatedAt            time.Time `gorm:"not null;autoCreateTime"`
}

const (
	// MaxPreKeysPerDevice caps the stored one-time prekey pool.
	MaxPreKeysPerDevice = 100

	// MaxRegistrationID bounds registration ids and prekey ids.
	MaxRegistrationID = 999999
)
