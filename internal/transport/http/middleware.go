package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"signalserver/internal/domain"
	obsmw "signalserver/internal/observability/middleware"
	"signalserver/internal/observability/metrics"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "auth_user_id"
	ctxKeyDevice ctxKey = "auth_device"
)

func userIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(ctxKeyUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func deviceFromContext(ctx context.Context) *domain.Device {
	if v, ok := ctx.Value(ctxKeyDevice).(*domain.Device); ok {
		return v
	}
	return nil
}

// requireUser resolves the bearer token into a user id. The token itself is
// minted by the account service; here it only attributes the request.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.tokens.Resolve(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, domain.ErrNotAuthenticated)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUserID, userID)))
	}
}

// requireSignedRequest verifies the per-request device signature and replay
// counter for mutating endpoints. The body is buffered so the signature is
// checked over the exact bytes the handler will decode.
func (h *Handler) requireSignedRequest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userIDFromContext(r.Context())

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeIncorrectArguments(w, "The request body could not be read")
			return
		}
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		device, err := h.signatures.Authenticate(r.Context(), userID, r.Header.Get("Signature"), r.Method, r.URL.Path, body)
		if err != nil {
			metrics.SignedRequestChecksTotal.WithLabelValues("failure").Inc()
			slog.Warn("signed request rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", obsmw.RequestIDFromContext(r.Context()),
				"trace_id", obsmw.TraceIDFromContext(r.Context()),
			)
			writeError(w, err)
			return
		}
		metrics.SignedRequestChecksTotal.WithLabelValues("success").Inc()
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyDevice, device)))
	}
}
