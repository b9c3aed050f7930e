package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"signalserver/internal/domain"
	"signalserver/internal/dto"
	"signalserver/internal/observability/metrics"
	obsmw "signalserver/internal/observability/middleware"

	"github.com/go-chi/chi/v5"
)

func registrationIDParam(r *http.Request, name string) (uint32, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id > domain.MaxRegistrationID {
		return 0, false
	}
	return uint32(id), true
}

// signedDevice returns the device resolved by the signature middleware after
// checking the registration id in the URL against it.
func (h *Handler) signedDevice(w http.ResponseWriter, r *http.Request) (*domain.Device, bool) {
	device := deviceFromContext(r.Context())
	if device == nil {
		writeError(w, domain.ErrNotAuthenticated)
		return nil, false
	}
	claimed, ok := registrationIDParam(r, "registrationId")
	if !ok {
		writeIncorrectArguments(w, "The request URL must include the user's own registration ID")
		return nil, false
	}
	if !h.devices.VerifyRegistrationID(device, claimed) {
		writeError(w, domain.ErrDeviceChanged)
		return nil, false
	}
	return device, true
}

// ownDevice resolves the caller's device for read-only endpoints, which carry
// no signature.
func (h *Handler) ownDevice(w http.ResponseWriter, r *http.Request, claimed uint32) (*domain.Device, bool) {
	device, err := h.devices.Get(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if !h.devices.VerifyRegistrationID(device, claimed) {
		writeError(w, domain.ErrDeviceChanged)
		return nil, false
	}
	return device, true
}

func (h *Handler) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.DeviceRegistrationsTotal.WithLabelValues("failure").Inc()
		writeIncorrectArguments(w, "The request body must include the device details in JSON object format")
		return
	}
	device, err := h.devices.Register(r.Context(), userIDFromContext(r.Context()), req)
	if err != nil {
		metrics.DeviceRegistrationsTotal.WithLabelValues("failure").Inc()
		slog.Warn("device registration failed",
			"error", err,
			"request_id", obsmw.RequestIDFromContext(r.Context()),
			"trace_id", obsmw.TraceIDFromContext(r.Context()),
		)
		writeError(w, err)
		return
	}
	metrics.DeviceRegistrationsTotal.WithLabelValues("success").Inc()
	slog.Info("device registered",
		"address", device.Address,
		"registration_id", device.RegistrationID,
		"prekeys", len(req.PreKeys),
		"request_id", obsmw.RequestIDFromContext(r.Context()),
	)
	writeJSON(w, http.StatusCreated, dto.StatusResponse{Code: "device_created", Message: "Device successfully created"})
}

func (h *Handler) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.devices.Delete(r.Context(), userIDFromContext(r.Context())); err != nil {
		metrics.DeviceDeletionsTotal.WithLabelValues("failure").Inc()
		writeError(w, err)
		return
	}
	metrics.DeviceDeletionsTotal.WithLabelValues("success").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUploadPreKeys(w http.ResponseWriter, r *http.Request) {
	device, ok := h.signedDevice(w, r)
	if !ok {
		metrics.PreKeyUploadsTotal.WithLabelValues("failure").Inc()
		return
	}
	var entries []dto.PreKey
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		metrics.PreKeyUploadsTotal.WithLabelValues("failure").Inc()
		writeIncorrectArguments(w, "The request body must be in list format and have a length of at least one")
		return
	}
	if err := h.prekeys.AddPreKeys(r.Context(), device, entries); err != nil {
		metrics.PreKeyUploadsTotal.WithLabelValues("failure").Inc()
		slog.Warn("prekey upload failed",
			"error", err,
			"request_id", obsmw.RequestIDFromContext(r.Context()),
		)
		writeError(w, err)
		return
	}
	metrics.PreKeyUploadsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, dto.StatusResponse{Code: "prekeys_stored", Message: "Prekeys successfully stored"})
}

func (h *Handler) handleReplaceSignedPreKey(w http.ResponseWriter, r *http.Request) {
	device, ok := h.signedDevice(w, r)
	if !ok {
		metrics.SignedPreKeyRotationsTotal.WithLabelValues("failure").Inc()
		return
	}
	var req dto.SignedPreKey
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.SignedPreKeyRotationsTotal.WithLabelValues("failure").Inc()
		writeIncorrectArguments(w, "The request body must include the signed prekey in JSON object format")
		return
	}
	if err := h.prekeys.ReplaceSignedPreKey(r.Context(), device, req); err != nil {
		metrics.SignedPreKeyRotationsTotal.WithLabelValues("failure").Inc()
		writeError(w, err)
		return
	}
	metrics.SignedPreKeyRotationsTotal.WithLabelValues("success").Inc()
	slog.Info("signed prekey replaced",
		"address", device.Address,
		"request_id", obsmw.RequestIDFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, dto.StatusResponse{Code: "signed_prekey_stored", Message: "Signed prekey successfully stored"})
}

func (h *Handler) handleFetchBundle(w http.ResponseWriter, r *http.Request) {
	claimed, ok := registrationIDParam(r, "ownRegistrationId")
	if !ok {
		metrics.PreKeyBundlesIssuedTotal.WithLabelValues("failure").Inc()
		writeIncorrectArguments(w, "The request URL must include the recipient's address and the sender's registration ID")
		return
	}
	device, err := h.devices.Get(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		metrics.PreKeyBundlesIssuedTotal.WithLabelValues("failure").Inc()
		writeError(w, err)
		return
	}
	bundle, err := h.bundles.IssueBundle(r.Context(), device, claimed, chi.URLParam(r, "recipientAddress"))
	if err != nil {
		metrics.PreKeyBundlesIssuedTotal.WithLabelValues("failure").Inc()
		slog.Warn("prekey bundle fetch failed",
			"error", err,
			"request_id", obsmw.RequestIDFromContext(r.Context()),
		)
		writeError(w, err)
		return
	}
	metrics.PreKeyBundlesIssuedTotal.WithLabelValues("success").Inc()
	slog.Info("prekey bundle issued",
		"address", bundle.Address,
		"has_one_time", bundle.PreKey != nil,
		"request_id", obsmw.RequestIDFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, bundle)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	claimed, ok := registrationIDParam(r, "registrationId")
	if !ok {
		writeIncorrectArguments(w, "The request URL must include the user's own registration ID")
		return
	}
	device, ok := h.ownDevice(w, r, claimed)
	if !ok {
		return
	}
	msgs, err := h.mailbox.List(r.Context(), device)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	device, ok := h.signedDevice(w, r)
	if !ok {
		metrics.MessagesSentTotal.WithLabelValues("failure").Inc()
		return
	}
	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.MessagesSentTotal.WithLabelValues("failure").Inc()
		writeIncorrectArguments(w, "The request body must include the message in JSON object format")
		return
	}
	msg, err := h.mailbox.Send(r.Context(), device, req)
	if err != nil {
		metrics.MessagesSentTotal.WithLabelValues("failure").Inc()
		slog.Warn("message send failed",
			"error", err,
			"request_id", obsmw.RequestIDFromContext(r.Context()),
		)
		writeError(w, err)
		return
	}
	metrics.MessagesSentTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleDeleteMessages(w http.ResponseWriter, r *http.Request) {
	device, ok := h.signedDevice(w, r)
	if !ok {
		metrics.MessagesDeletedTotal.WithLabelValues("failure").Inc()
		return
	}
	var ids []uint
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil || len(ids) == 0 {
		metrics.MessagesDeletedTotal.WithLabelValues("failure").Inc()
		writeIncorrectArguments(w, "The request body must include the message IDs to be deleted in list format")
		return
	}
	outcomes, err := h.mailbox.Delete(r.Context(), device, ids)
	if err != nil {
		metrics.MessagesDeletedTotal.WithLabelValues("failure").Inc()
		writeError(w, err)
		return
	}
	metrics.MessagesDeletedTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, outcomes)
}
