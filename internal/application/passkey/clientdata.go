package passkey

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// WebAuthn ceremony types carried in clientDataJSON.
const (
	ceremonyCreate = "webauthn.create"
	ceremonyGet    = "webauthn.get"
)

// clientData is the subset of the WebAuthn clientDataJSON payload the server
// binds against: the ceremony type and the challenge it issued.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// parseClientData decodes a base64url clientDataJSON blob. Browsers emit
// unpadded base64url; padded input is tolerated.
func parseClientData(encoded string) (*clientData, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("decode client data: %w", err)
	}
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, fmt.Errorf("parse client data: %w", err)
	}
	return &cd, nil
}
