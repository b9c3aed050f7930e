package http

import (
	"net/http"

	"signalserver/internal/auth"
	obsmw "signalserver/internal/observability/middleware"
	"signalserver/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	devices    *service.DeviceRegistry
	prekeys    *service.PreKeyService
	bundles    *service.BundleIssuer
	mailbox    *service.Mailbox
	tokens     *auth.TokenVerifier
	signatures *auth.SignatureAuthenticator
}

func NewRouter(
	devices *service.DeviceRegistry,
	prekeys *service.PreKeyService,
	bundles *service.BundleIssuer,
	mailbox *service.Mailbox,
	tokens *auth.TokenVerifier,
	signatures *auth.SignatureAuthenticator,
) http.Handler {
	h := &Handler{
		devices:    devices,
		prekeys:    prekeys,
		bundles:    bundles,
		mailbox:    mailbox,
		tokens:     tokens,
		signatures: signatures,
	}

	r := chi.NewRouter()
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(obsmw.WithMetrics)
	r.Use(obsmw.WithRobotsTag)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Registration establishes the signing key, so it is the one mutating
	// endpoint authenticated by bearer token alone.
	r.Post("/devices/", h.requireUser(h.handleRegisterDevice))
	r.Delete("/devices/", h.requireUser(h.requireSignedRequest(h.handleDeleteDevice)))

	r.Get("/prekeybundles/{recipientAddress}/{ownRegistrationId}/", h.requireUser(h.handleFetchBundle))

	r.Post("/{registrationId}/prekeys/", h.requireUser(h.requireSignedRequest(h.handleUploadPreKeys)))
	r.Post("/{registrationId}/signedprekeys/", h.requireUser(h.requireSignedRequest(h.handleReplaceSignedPreKey)))

	r.Get("/{registrationId}/messages/", h.requireUser(h.handleListMessages))
	r.Post("/{registrationId}/messages/", h.requireUser(h.requireSignedRequest(h.handleSendMessage)))
	r.Delete("/{registrationId}/messages/", h.requireUser(h.requireSignedRequest(h.handleDeleteMessages)))

	return r
}
