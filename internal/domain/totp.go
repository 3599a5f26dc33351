package domain

// TOTPSecret tracks a user's time-based one-time-password enrollment.
// A freshly generated secret is stored with Enabled=false ("pending") and
// only governs second-factor status once a verify-enable call proves the
// user's authenticator produces matching codes.
//
// BackupCodes is a DynamoDB string set so that consuming a code is a single
// conditional DELETE — two concurrent submissions of the same code cannot
// both succeed.
type TOTPSecret struct {
	UserID      string   `dynamodbav:"user_id"`
	Secret      string   `dynamodbav:"secret"` // base32, no padding
	Enabled     bool     `dynamodbav:"enabled"`
	BackupCodes []string `dynamodbav:"backup_codes,stringset,omitempty"`
}
