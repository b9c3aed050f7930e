package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"signalserver/internal/auth"
	"signalserver/internal/dto"

	"github.com/google/uuid"
	"golang.org/x/crypto/curve25519"
)

// serverctl is a smoke-test client: it registers a device with freshly
// generated key material, fetches bundles and sends messages, signing every
// mutating request with the device counter the way a real client would.

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = runRegister(args)
	case "bundle":
		err = runBundle(args)
	case "send":
		err = runSend(args)
	case "messages":
		err = runMessages(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  register   Register a device with generated key material")
	fmt.Fprintln(os.Stderr, "  bundle     Fetch a prekey bundle for a device address")
	fmt.Fprintln(os.Stderr, "  send       Send a message to a recipient user")
	fmt.Fprintln(os.Stderr, "  messages   List queued messages for the registered device")
	os.Exit(2)
}

// state carries the device identity between invocations, including the signing
// counter the server tracks for replay protection.
type state struct {
	BaseURL        string    `json:"baseUrl"`
	UserID         string    `json:"userId"`
	Address        string    `json:"address"`
	RegistrationID uint32    `json:"registrationId"`
	SigningPriv    string    `json:"signingPriv"`
	SignatureCount uint64    `json:"signatureCount"`
	Token          string    `json:"token"`
	TokenExpiry    time.Time `json:"tokenExpiry"`
}

func commonFlags(fs *flag.FlagSet) (*string, *string, *string) {
	baseURL := fs.String("base-url", "http://localhost:8080", "server base URL")
	statePath := fs.String("state", "serverctl.json", "state file path")
	secret := fs.String("token-secret", "dev-secret-change-me", "bearer token HMAC secret (dev only)")
	return baseURL, statePath, secret
}

func loadState(path string) (*state, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func saveState(path string, st *state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (st *state) bearer(secret string) (string, error) {
	if st.Token != "" && time.Until(st.TokenExpiry) > time.Minute {
		return st.Token, nil
	}
	userID, err := uuid.Parse(st.UserID)
	if err != nil {
		return "", fmt.Errorf("state has no valid userId")
	}
	verifier := auth.NewTokenVerifier(secret, "signalserver")
	token, err := verifier.Mint(userID, time.Hour)
	if err != nil {
		return "", err
	}
	st.Token = token
	st.TokenExpiry = time.Now().Add(time.Hour)
	return token, nil
}

func newX25519Public() (string, error) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return "", err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	baseURL, statePath, secret := commonFlags(fs)
	address := fs.String("address", "", "device address (default: random)")
	registrationID := fs.Uint("registration-id", 0, "registration id (default: random)")
	userID := fs.String("user-id", "", "user id (default: random)")
	prekeyCount := fs.Int("prekeys", 10, "number of one-time prekeys to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st := &state{BaseURL: *baseURL}
	if *userID == "" {
		st.UserID = uuid.New().String()
	} else {
		st.UserID = *userID
	}
	if *address == "" {
		st.Address = uuid.New().String()[:8]
	} else {
		st.Address = *address
	}
	if *registrationID == 0 {
		st.RegistrationID = uint32(time.Now().UnixNano() % 1000000)
	} else {
		st.RegistrationID = uint32(*registrationID)
	}

	signingPub, signingPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	st.SigningPriv = base64.StdEncoding.EncodeToString(signingPriv)

	identityKey, err := newX25519Public()
	if err != nil {
		return err
	}
	signedPub, err := newX25519Public()
	if err != nil {
		return err
	}
	// Signature over the signed prekey is verified peer-side; the signing key
	// stands in for the identity signing key in this tool.
	signedRaw, _ := base64.StdEncoding.DecodeString(signedPub)
	signedSig := ed25519.Sign(signingPriv, signedRaw)

	req := dto.RegisterDeviceRequest{
		Address:        st.Address,
		IdentityKey:    identityKey,
		SigningKey:     base64.StdEncoding.EncodeToString(signingPub),
		RegistrationID: st.RegistrationID,
		SignedPreKey: dto.SignedPreKey{
			KeyID:     1,
			PublicKey: signedPub,
			Signature: base64.StdEncoding.EncodeToString(signedSig),
		},
	}
	for i := 0; i < *prekeyCount; i++ {
		pub, err := newX25519Public()
		if err != nil {
			return err
		}
		req.PreKeys = append(req.PreKeys, dto.PreKey{KeyID: uint32(i + 1), PublicKey: pub})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	token, err := st.bearer(*secret)
	if err != nil {
		return err
	}
	resp, err := doRequest(http.MethodPost, st.BaseURL+"/devices/", token, "", body)
	if err != nil {
		return err
	}
	if err := saveState(*statePath, st); err != nil {
		return err
	}
	return printJSON(resp)
}

func runBundle(args []string) error {
	fs := flag.NewFlagSet("bundle", flag.ExitOnError)
	_, statePath, secret := commonFlags(fs)
	recipient := fs.String("recipient", "", "recipient device address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *recipient == "" {
		return fmt.Errorf("-recipient is required")
	}

	st, err := loadState(*statePath)
	if err != nil {
		return fmt.Errorf("load state (run register first): %w", err)
	}
	token, err := st.bearer(*secret)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/prekeybundles/%s/%d/", hex.EncodeToString([]byte(*recipient)), st.RegistrationID)
	resp, err := doRequest(http.MethodGet, st.BaseURL+path, token, "", nil)
	if err != nil {
		return err
	}
	if err := saveState(*statePath, st); err != nil {
		return err
	}
	return printJSON(resp)
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	_, statePath, secret := commonFlags(fs)
	recipient := fs.String("recipient", "", "recipient user id")
	recipientRegID := fs.Uint("recipient-registration-id", 0, "recipient device registration id (from bundle)")
	text := fs.String("text", "", "opaque message payload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *recipient == "" || *text == "" {
		return fmt.Errorf("-recipient and -text are required")
	}

	st, err := loadState(*statePath)
	if err != nil {
		return fmt.Errorf("load state (run register first): %w", err)
	}
	token, err := st.bearer(*secret)
	if err != nil {
		return err
	}

	envelope, err := json.Marshal(map[string]any{
		"registrationId": *recipientRegID,
		"ciphertext":     *text,
	})
	if err != nil {
		return err
	}
	body, err := json.Marshal(dto.SendMessageRequest{Recipient: *recipient, Message: string(envelope)})
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/%d/messages/", st.RegistrationID)
	signature, err := st.sign(http.MethodPost, path, body)
	if err != nil {
		return err
	}
	resp, err := doRequest(http.MethodPost, st.BaseURL+path, token, signature, body)
	if err != nil {
		return err
	}
	st.SignatureCount++
	if err := saveState(*statePath, st); err != nil {
		return err
	}
	return printJSON(resp)
}

func runMessages(args []string) error {
	fs := flag.NewFlagSet("messages", flag.ExitOnError)
	_, statePath, secret := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := loadState(*statePath)
	if err != nil {
		return fmt.Errorf("load state (run register first): %w", err)
	}
	token, err := st.bearer(*secret)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/%d/messages/", st.RegistrationID)
	resp, err := doRequest(http.MethodGet, st.BaseURL+path, token, "", nil)
	if err != nil {
		return err
	}
	if err := saveState(*statePath, st); err != nil {
		return err
	}
	return printJSON(resp)
}

func (st *state) sign(method, path string, body []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(st.SigningPriv)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("state has no valid signing key")
	}
	message := auth.SigningString(st.SignatureCount+1, method, path, body)
	sig := ed25519.Sign(ed25519.PrivateKey(raw), []byte(message))
	return base64.StdEncoding.EncodeToString(sig), nil
}

func doRequest(method, url, token, signature string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signature != "" {
		req.Header.Set("Signature", signature)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		if len(data) == 0 {
			data = []byte(resp.Status)
		}
		return nil, fmt.Errorf("request failed: %s", strings.TrimSpace(string(data)))
	}
	return data, nil
}

func printJSON(data []byte) error {
	if len(data) == 0 {
		fmt.Println("ok")
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(out.String())
	return nil
}
