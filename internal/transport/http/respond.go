package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"signalserver/internal/domain"
)

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Explanation string `json:"explanation,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeError maps domain errors onto the wire envelope. Anything unmapped is
// an internal fault and stays opaque to the client.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDeviceExists):
		writeCode(w, http.StatusForbidden, "device_exists", "A device has already been created for this user")
	case errors.Is(err, domain.ErrNoDevice):
		writeCode(w, http.StatusNotFound, "no_device", "User has not yet registered a device")
	case errors.Is(err, domain.ErrDeviceChanged):
		writeCode(w, http.StatusForbidden, "device_changed", "Own device has changed")
	case errors.Is(err, domain.ErrNoRecipient):
		writeCode(w, http.StatusNotFound, "no_recipient", "The recipient for your message does not exist")
	case errors.Is(err, domain.ErrNoRecipientDevice):
		writeCode(w, http.StatusNotFound, "no_recipient_device", "Recipient has not yet registered a device")
	case errors.Is(err, domain.ErrRecipientIdentityChanged):
		writeCode(w, http.StatusForbidden, "recipient_identity_changed", "Recipients device has changed")
	case errors.Is(err, domain.ErrInvalidRecipient):
		writeCode(w, http.StatusBadRequest, "invalid_recipient", "The recipient identifier is incorrectly formatted")
	case errors.Is(err, domain.ErrMaxPreKeys):
		writeCode(w, http.StatusBadRequest, "reached_max_prekeys", "User has reached the maximum number of prekeys allowed")
	case errors.Is(err, domain.ErrPreKeyIDExists):
		writeCode(w, http.StatusBadRequest, "prekey_id_exists", "A prekey with that keyId already exists")
	case errors.Is(err, domain.ErrIncrementingCounter):
		writeCode(w, http.StatusBadRequest, "error_incrementing", "There was an error incrementing the signing counter")
	case errors.Is(err, domain.ErrNotAuthenticated):
		writeCode(w, http.StatusUnauthorized, "not_authenticated", "Not authenticated")
	case errors.Is(err, domain.ErrInvalidData):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:        "invalid_data",
			Message:     "Invalid data was provided in the request",
			Explanation: err.Error(),
		})
	case errors.Is(err, domain.ErrIncorrectArguments):
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:        "incorrect_arguments",
			Message:     "Incorrect arguments were provided in the request",
			Explanation: err.Error(),
		})
	default:
		writeCode(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}

func writeIncorrectArguments(w http.ResponseWriter, explanation string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Code:        "incorrect_arguments",
		Message:     "Incorrect arguments were provided in the request",
		Explanation: explanation,
	})
}
