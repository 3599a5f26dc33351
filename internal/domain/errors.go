package domain

import "errors"

// Sentinel errors for domain-level error discrimination. Services wrap these
// with fmt.Errorf("...: %w", ...) so the HTTP layer can map them to status
// codes without leaking storage error text on security-sensitive paths.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)
