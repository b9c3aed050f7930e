package service_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"signalserver/internal/domain"
	"signalserver/internal/service"
)

func TestValidatePublicKey(t *testing.T) {
	cases := []struct {
		name    string
		encoded string
		wantErr bool
	}{
		{"valid 32 bytes", base64.StdEncoding.EncodeToString(make([]byte, 32)), false},
		{"too short", base64.StdEncoding.EncodeToString(make([]byte, 31)), true},
		{"too long", base64.StdEncoding.EncodeToString(make([]byte, 33)), true},
		{"empty", "", true},
		{"not base64", strings.Repeat("*", 44), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidatePublicKey("key", tc.encoded)
			if tc.wantErr && !errors.Is(err, domain.ErrInvalidData) {
				t.Fatalf("expected ErrInvalidData, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateSignature(t *testing.T) {
	if err := service.ValidateSignature("sig", base64.StdEncoding.EncodeToString(make([]byte, 64))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.ValidateSignature("sig", base64.StdEncoding.EncodeToString(make([]byte, 32))); !errors.Is(err, domain.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for 32-byte signature, got %v", err)
	}
}

func TestValidateRegistrationID(t *testing.T) {
	if err := service.ValidateRegistrationID(0); err != nil {
		t.Fatalf("0 must be valid: %v", err)
	}
	if err := service.ValidateRegistrationID(domain.MaxRegistrationID); err != nil {
		t.Fatalf("%d must be valid: %v", domain.MaxRegistrationID, err)
	}
	if err := service.ValidateRegistrationID(domain.MaxRegistrationID + 1); !errors.Is(err, domain.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData above the cap, got %v", err)
	}
}

func TestValidateAddress(t *testing.T) {
	if err := service.ValidateAddress("b"); err != nil {
		t.Fatalf("single char address must be valid: %v", err)
	}
	if err := service.ValidateAddress(""); !errors.Is(err, domain.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for empty address, got %v", err)
	}
	if err := service.ValidateAddress(strings.Repeat("x", 101)); !errors.Is(err, domain.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData for oversized address, got %v", err)
	}
}
