package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string // "development" | "production"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// Public base URL embedded in verification / reset links.
	BaseURL string

	// Relying-party identity for passkey ceremonies.
	RPID   string
	RPName string

	TOTPIssuer string

	SessionDays         int // default full login
	RememberSessionDays int // "remember me" login
	DevSessionMinutes   int // sessions issued through the dev identity seam

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	// Development-only identity override. Only honored when AppEnv is not
	// "production"; main.go refuses to wire it otherwise.
	DevLoginEmail    string
	DevLoginPassword string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	Sessions          string
	TOTPSecrets       string
	Passkeys          string
	EmailTokens       string
	PasskeyChallenges string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:          getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			TOTPSecrets:       getEnv("DYNAMO_TABLE_TOTP_SECRETS", "totp_secrets"),
			Passkeys:          getEnv("DYNAMO_TABLE_PASSKEYS", "passkeys"),
			EmailTokens:       getEnv("DYNAMO_TABLE_EMAIL_TOKENS", "email_tokens"),
			PasskeyChallenges: getEnv("DYNAMO_TABLE_PASSKEY_CHALLENGES", "passkey_challenges"),
		},

		BaseURL: getEnv("BASE_URL", "http://localhost:3000"),

		RPID:   getEnv("RP_ID", "localhost"),
		RPName: getEnv("RP_NAME", "Ruinabla"),

		TOTPIssuer: getEnv("TOTP_ISSUER", "Ruinabla"),

		SessionDays:         getEnvInt("SESSION_DAYS", 14),
		RememberSessionDays: getEnvInt("REMEMBER_SESSION_DAYS", 30),
		DevSessionMinutes:   getEnvInt("DEV_SESSION_MINUTES", 60),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		DevLoginEmail:    getEnv("DEV_LOGIN_EMAIL", ""),
		DevLoginPassword: getEnv("DEV_LOGIN_PASSWORD", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
