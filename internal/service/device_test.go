package service_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"signalserver/internal/domain"
	"signalserver/internal/dto"
	"signalserver/internal/service"
	"signalserver/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// A single connection serializes transactions, which keeps the
	// concurrency tests deterministic on sqlite.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.User{}, &domain.Device{}, &domain.PreKey{}, &domain.SignedPreKey{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func randomKey(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func randomSignature(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func registerRequest(t *testing.T, address string, registrationID uint32, prekeyIDs ...uint32) dto.RegisterDeviceRequest {
	t.Helper()
	req := dto.RegisterDeviceRequest{
		Address:        address,
		IdentityKey:    randomKey(t),
		SigningKey:     randomKey(t),
		RegistrationID: registrationID,
		SignedPreKey: dto.SignedPreKey{
			KeyID:     1,
			PublicKey: randomKey(t),
			Signature: randomSignature(t),
		},
	}
	for _, id := range prekeyIDs {
		req.PreKeys = append(req.PreKeys, dto.PreKey{KeyID: id, PublicKey: randomKey(t)})
	}
	return req
}

func TestRegisterAndGetDevice(t *testing.T) {
	db := openTestDB(t)
	registry := service.NewDeviceRegistry(store.New(db))

	userID := uuid.New()
	req := registerRequest(t, "alice", 4711, 1, 2, 3)

	device, err := registry.Register(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if device.Address != "alice" || device.RegistrationID != 4711 {
		t.Fatalf("unexpected device: %+v", device)
	}
	if device.SignatureCount != 0 {
		t.Fatalf("expected fresh signature count, got %d", device.SignatureCount)
	}

	got, err := registry.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != device.ID {
		t.Fatalf("expected device %d, got %d", device.ID, got.ID)
	}

	var prekeyCount, signedCount int64
	if err := db.Model(&domain.PreKey{}).Where("device_id = ?", device.ID).Count(&prekeyCount).Error; err != nil {
		t.Fatalf("count prekeys: %v", err)
	}
	if prekeyCount != 3 {
		t.Fatalf("expected 3 prekeys, got %d", prekeyCount)
	}
	if err := db.Model(&domain.SignedPreKey{}).Where("device_id = ?", device.ID).Count(&signedCount).Error; err != nil {
		t.Fatalf("count signed prekeys: %v", err)
	}
	if signedCount != 1 {
		t.Fatalf("expected 1 signed prekey, got %d", signedCount)
	}
}

func TestRegisterSecondDeviceRejected(t *testing.T) {
	db := openTestDB(t)
	registry := service.NewDeviceRegistry(store.New(db))

	userID := uuid.New()
	if _, err := registry.Register(context.Background(), userID, registerRequest(t, "first", 1)); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := registry.Register(context.Background(), userID, registerRequest(t, "second", 2))
	if !errors.Is(err, domain.ErrDeviceExists) {
		t.Fatalf("expected ErrDeviceExists, got %v", err)
	}

	var count int64
	if err := db.Model(&domain.Device{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count devices: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 device, got %d", count)
	}
}

func TestConcurrentRegistrationSingleWinner(t *testing.T) {
	db := openTestDB(t)
	registry := service.NewDeviceRegistry(store.New(db))

	userID := uuid.New()
	const attempts = 8

	var wg sync.WaitGroup
	var succeeded, conflicted atomic.Int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := registry.Register(context.Background(), userID, registerRequest(t, fmt.Sprintf("addr-%d", n), uint32(n+1)))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrDeviceExists):
				conflicted.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Fatalf("expected exactly 1 successful registration, got %d", succeeded.Load())
	}
	if conflicted.Load() != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicted.Load())
	}
}

func TestRegisterValidation(t *testing.T) {
	db := openTestDB(t)
	registry := service.NewDeviceRegistry(store.New(db))
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*dto.RegisterDeviceRequest)
	}{
		{"short identity key", func(r *dto.RegisterDeviceRequest) {
			r.IdentityKey = base64.StdEncoding.EncodeToString([]byte("short"))
		}},
		{"bad base64 signing key", func(r *dto.RegisterDeviceRequest) {
			r.SigningKey = "not base64!!!"
		}},
		{"registration id out of range", func(r *dto.RegisterDeviceRequest) {
			r.RegistrationID = domain.MaxRegistrationID + 1
		}},
		{"short signed prekey signature", func(r *dto.RegisterDeviceRequest) {
			r.SignedPreKey.Signature = randomKey(t)
		}},
		{"empty address", func(r *dto.RegisterDeviceRequest) {
			r.Address = ""
		}},
		{"duplicate prekey id in batch", func(r *dto.RegisterDeviceRequest) {
			r.PreKeys = append(r.PreKeys, dto.PreKey{KeyID: 1, PublicKey: randomKey(t)})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := registerRequest(t, "any", 1, 1)
			tc.mutate(&req)
			_, err := registry.Register(ctx, uuid.New(), req)
			if !errors.Is(err, domain.ErrInvalidData) {
				t.Fatalf("expected ErrInvalidData, got %v", err)
			}
		})
	}

	var count int64
	if err := db.Model(&domain.Device{}).Count(&count).Error; err != nil {
		t.Fatalf("count devices: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no devices persisted, got %d", count)
	}
}

func TestDeleteDeviceCascades(t *testing.T) {
	db := openTestDB(t)
	st := store.New(db)
	registry := service.NewDeviceRegistry(st)
	ctx := context.Background()

	userID := uuid.New()
	device, err := registry.Register(ctx, userID, registerRequest(t, "cascade", 9, 1, 2))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	msg := &domain.Message{DeviceID: device.ID, Content: "x", SenderAddress: "peer", SenderRegistrationID: 1}
	if err := st.Messages().Create(ctx, msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	if err := registry.Delete(ctx, userID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, model := range []any{&domain.Device{}, &domain.PreKey{}, &domain.SignedPreKey{}, &domain.Message{}} {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		if count != 0 {
			t.Fatalf("expected %T fully removed, found %d rows", model, count)
		}
	}

	if err := registry.Delete(ctx, userID); !errors.Is(err, domain.ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
}

func TestVerifyRegistrationID(t *testing.T) {
	registry := service.NewDeviceRegistry(nil)
	device := &domain.Device{RegistrationID: 42}
	if !registry.VerifyRegistrationID(device, 42) {
		t.Fatal("expected matching registration id to verify")
	}
	if registry.VerifyRegistrationID(device, 43) {
		t.Fatal("expected mismatched registration id to fail")
	}
}

func TestRegisterAddressTakenByOtherUser(t *testing.T) {
	db := openTestDB(t)
	registry := service.NewDeviceRegistry(store.New(db))
	ctx := context.Background()

	if _, err := registry.Register(ctx, uuid.New(), registerRequest(t, "shared", 1)); err != nil {
		t.Fatalf("register first: %v", err)
	}

	// A different user claiming the same address is a bad request, not a
	// duplicate-device conflict.
	_, err := registry.Register(ctx, uuid.New(), registerRequest(t, "shared", 2))
	if !errors.Is(err, domain.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
	if errors.Is(err, domain.ErrDeviceExists) {
		t.Fatalf("address collision must not report device_exists: %v", err)
	}
}
