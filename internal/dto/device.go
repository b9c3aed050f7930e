package dto

type PreKey struct {
	KeyID     uint32 `json:"keyId"`
	PublicKey string `json:"publicKey"`
}

type SignedPreKey struct {
	KeyID     uint32 `json:"keyId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type RegisterDeviceRequest struct {
	Address        string       `json:"address"`
	IdentityKey    string       `json:"identityKey"`
	SigningKey     string       `json:"signingKey"`
	RegistrationID uint32       `json:"registrationId"`
	PreKeys        []PreKey     `json:"preKeys"`
	SignedPreKey   SignedPreKey `json:"signedPreKey"`
}

// StatusResponse is the {code, message} body used by create/delete/store
// confirmations.
type StatusResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
