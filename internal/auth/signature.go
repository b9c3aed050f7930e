package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"strconv"

	"signalserver/internal/domain"
	"signalserver/internal/service"
	"signalserver/internal/store"

	"github.com/google/uuid"
)

// bodySafe matches the quoting the reference clients apply to the request
// body before signing.
const bodySafe = "()!*'"

// SignatureAuthenticator upgrades a bearer-authenticated user to a fully
// authenticated (user, device) pair by checking a per-request Ed25519
// signature bound to the device's monotonic counter. A verified signature is
// only accepted once: the counter advance is a compare-and-swap, so a replay
// or a concurrent request built on the same counter value loses.
type SignatureAuthenticator struct {
	store   *store.Store
	devices *service.DeviceRegistry
}

func NewSignatureAuthenticator(st *store.Store, devices *service.DeviceRegistry) *SignatureAuthenticator {
	return &SignatureAuthenticator{store: st, devices: devices}
}

// SigningString builds the canonical string a client signs for the request:
// the next counter value, the percent-encoded path, and for body-carrying
// methods the percent-encoded body exactly as transmitted. The server never
// re-serializes the body; the client's own byte sequence is the canonical
// form.
func SigningString(nextCount uint64, method, path string, body []byte) string {
	s := strconv.FormatUint(nextCount, 10) + percentEncode(path, "")
	if (method == http.MethodPost || method == http.MethodDelete) && len(body) > 0 {
		s += percentEncode(string(body), bodySafe)
	}
	return s
}

// Authenticate verifies the Signature header for a request already attributed
// to userID. Every verification failure collapses into ErrNotAuthenticated so
// callers cannot probe which sub-check failed; the only distinct outcomes are
// ErrNoDevice and ErrIncrementingCounter.
func (a *SignatureAuthenticator) Authenticate(ctx context.Context, userID uuid.UUID, signatureHeader, method, path string, body []byte) (*domain.Device, error) {
	device, err := a.devices.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if signatureHeader == "" {
		return nil, domain.ErrNotAuthenticated
	}
	signature, err := base64.StdEncoding.DecodeString(signatureHeader)
	if err != nil || len(signature) != ed25519.SignatureSize {
		return nil, domain.ErrNotAuthenticated
	}
	signingKey, err := base64.StdEncoding.DecodeString(device.SigningKey)
	if err != nil || len(signingKey) != ed25519.PublicKeySize {
		return nil, domain.ErrNotAuthenticated
	}

	message := SigningString(device.SignatureCount+1, method, path, body)
	if !ed25519.Verify(ed25519.PublicKey(signingKey), []byte(message), signature) {
		return nil, domain.ErrNotAuthenticated
	}

	advanced, err := a.store.Devices().IncrementSignatureCount(ctx, device.ID, device.SignatureCount)
	if err != nil {
		return nil, err
	}
	if !advanced {
		return nil, domain.ErrIncrementingCounter
	}
	device.SignatureCount++
	return device, nil
}
