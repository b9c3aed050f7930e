package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
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

func setupAuthenticator(t *testing.T) (*SignatureAuthenticator, *service.DeviceRegistry, *store.Store) {
	t.Helper()

	dsn := fmt.Sprintf("file:auth_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.User{}, &domain.Device{}, &domain.PreKey{}, &domain.SignedPreKey{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	st := store.New(db)
	devices := service.NewDeviceRegistry(st)
	return NewSignatureAuthenticator(st, devices), devices, st
}

func randomB64(t *testing.T, n int) string {
	t.Helper()
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func registerSigningDevice(t *testing.T, devices *service.DeviceRegistry, userID uuid.UUID) ed25519.PrivateKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate signing key: %v", err)
	}
	req := dto.RegisterDeviceRequest{
		Address:        userID.String()[:8],
		IdentityKey:    randomB64(t, 32),
		SigningKey:     base64.StdEncoding.EncodeToString(pub),
		RegistrationID: 1,
		SignedPreKey: dto.SignedPreKey{
			KeyID:     1,
			PublicKey: randomB64(t, 32),
			Signature: randomB64(t, 64),
		},
	}
	if _, err := devices.Register(context.Background(), userID, req); err != nil {
		t.Fatalf("register device: %v", err)
	}
	return priv
}

func signRequest(priv ed25519.PrivateKey, nextCount uint64, method, path string, body []byte) string {
	message := SigningString(nextCount, method, path, body)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, []byte(message)))
}

func TestAuthenticateAdvancesCounter(t *testing.T) {
	authn, devices, _ := setupAuthenticator(t)
	ctx := context.Background()

	userID := uuid.New()
	priv := registerSigningDevice(t, devices, userID)

	path := "/1/prekeys/"
	body := []byte(`[{"keyId":5,"publicKey":"x"}]`)

	header := signRequest(priv, 1, http.MethodPost, path, body)
	device, err := authn.Authenticate(ctx, userID, header, http.MethodPost, path, body)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if device.SignatureCount != 1 {
		t.Fatalf("expected counter at 1, got %d", device.SignatureCount)
	}

	header = signRequest(priv, 2, http.MethodPost, path, body)
	device, err = authn.Authenticate(ctx, userID, header, http.MethodPost, path, body)
	if err != nil {
		t.Fatalf("second authenticate: %v", err)
	}
	if device.SignatureCount != 2 {
		t.Fatalf("expected counter at 2, got %d", device.SignatureCount)
	}
}

func TestAuthenticateRejectsReplay(t *testing.T) {
	authn, devices, _ := setupAuthenticator(t)
	ctx := context.Background()

	userID := uuid.New()
	priv := registerSigningDevice(t, devices, userID)

	path := "/1/messages/"
	body := []byte(`{"recipient":"r","message":"m"}`)
	header := signRequest(priv, 1, http.MethodPost, path, body)

	if _, err := authn.Authenticate(ctx, userID, header, http.MethodPost, path, body); err != nil {
		t.Fatalf("first use: %v", err)
	}

	// Counter has advanced; the very same signature must now fail, with no
	// hint which check rejected it.
	if _, err := authn.Authenticate(ctx, userID, header, http.MethodPost, path, body); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated on replay, got %v", err)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	authn, devices, _ := setupAuthenticator(t)
	ctx := context.Background()

	userID := uuid.New()
	priv := registerSigningDevice(t, devices, userID)
	path := "/devices/"

	t.Run("no device", func(t *testing.T) {
		_, err := authn.Authenticate(ctx, uuid.New(), "anything", http.MethodDelete, path, nil)
		if !errors.Is(err, domain.ErrNoDevice) {
			t.Fatalf("expected ErrNoDevice, got %v", err)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := authn.Authenticate(ctx, userID, "", http.MethodDelete, path, nil)
		if !errors.Is(err, domain.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		_, err := authn.Authenticate(ctx, userID, "!!not-base64!!", http.MethodDelete, path, nil)
		if !errors.Is(err, domain.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate other key: %v", err)
		}
		header := signRequest(otherPriv, 1, http.MethodDelete, path, nil)
		_, aerr := authn.Authenticate(ctx, userID, header, http.MethodDelete, path, nil)
		if !errors.Is(aerr, domain.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", aerr)
		}
	})

	t.Run("signature over wrong body", func(t *testing.T) {
		header := signRequest(priv, 1, http.MethodDelete, path, []byte(`[1,2]`))
		_, err := authn.Authenticate(ctx, userID, header, http.MethodDelete, path, []byte(`[1,3]`))
		if !errors.Is(err, domain.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestIncrementSignatureCountIsCompareAndSwap(t *testing.T) {
	_, devices, st := setupAuthenticator(t)
	ctx := context.Background()

	userID := uuid.New()
	registerSigningDevice(t, devices, userID)
	device, err := devices.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}

	ok, err := st.Devices().IncrementSignatureCount(ctx, device.ID, 0)
	if err != nil || !ok {
		t.Fatalf("expected first increment from 0 to succeed, ok=%v err=%v", ok, err)
	}

	// Same pre-image again: the row moved on, the swap must lose.
	ok, err = st.Devices().IncrementSignatureCount(ctx, device.ID, 0)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if ok {
		t.Fatal("expected stale increment to fail")
	}

	fresh, err := devices.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if fresh.SignatureCount != 1 {
		t.Fatalf("expected counter 1, got %d", fresh.SignatureCount)
	}
}
