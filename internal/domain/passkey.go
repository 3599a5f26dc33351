package domain

import "time"

// Passkey is a WebAuthn public-key credential registered by a user.
// Counter is monotonic anti-replay bookkeeping, incremented atomically on
// every successful assertion.
type Passkey struct {
	PasskeyID    string    `json:"id" dynamodbav:"passkey_id"`
	UserID       string    `json:"user_id" dynamodbav:"user_id"`
	CredentialID string    `json:"credential_id" dynamodbav:"credential_id"`
	PublicKey    string    `json:"-" dynamodbav:"public_key"`
	Counter      int64     `json:"counter" dynamodbav:"counter"`
	Transports   []string  `json:"transports,omitempty" dynamodbav:"transports"`
	Name         string    `json:"name" dynamodbav:"name"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}

// PasskeyChallenge is a server-issued WebAuthn challenge awaiting its
// completion call. Scope binds it to a ceremony: "register:<user_id>" for
// attestation, "assert" for login/second-factor assertions. Consumed
// atomically exactly once; ExpiresAt is the DynamoDB TTL attribute.
type PasskeyChallenge struct {
	Challenge string `dynamodbav:"challenge"` // base64url, unpadded
	Scope     string `dynamodbav:"scope"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}
