package dto

// PreKeyBundle is the public material a peer needs to open an asynchronous
// session. PreKey is omitted when the target's one-time pool is exhausted;
// the bundle stays valid with only the signed prekey.
type PreKeyBundle struct {
	Address        string       `json:"address"`
	IdentityKey    string       `json:"identityKey"`
	RegistrationID uint32       `json:"registrationId"`
	SignedPreKey   SignedPreKey `json:"signedPreKey"`
	PreKey         *PreKey      `json:"preKey,omitempty"`
}
