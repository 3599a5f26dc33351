package domain

// Email token types.
const (
	TokenVerifyEmail   = "verify_email"
	TokenResetPassword = "reset_password"
)

// EmailToken is a single-use token mailed to a user for address verification
// or password reset. Issuing a new token supersedes (deletes) all previous
// tokens of the same type for the same email. Consumed exactly once on
// success; ExpiresAt is a Unix timestamp used as the DynamoDB TTL.
type EmailToken struct {
	Token     string `dynamodbav:"token"`
	Email     string `dynamodbav:"email"`
	Type      string `dynamodbav:"type"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}
