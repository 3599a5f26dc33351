package domain

import "time"

// Session is an opaque bearer credential. It is valid iff the row exists and
// ExpiresAt is in the future; an expired row is treated exactly like a
// missing one. ExpiresAt doubles as the DynamoDB TTL attribute.
type Session struct {
	SessionID string    `json:"id" dynamodbav:"session_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}
