package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionClosed    = errors.New("session closed")
	ErrSessionFull      = errors.New("session full")
	ErrSessionNotOpen   = errors.New("session not open")
	ErrSessionNotFilled = errors.New("session not filled")
	ErrInvalidWindow    = errors.New("invalid session window")
	ErrInvalidCapacity  = errors.New("invalid session capacity")
	ErrInvalidMember    = errors.New("invalid member")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrSecretReadOnly   = errors.New("secret store is read-only")

	// ErrRevisionConflict means another writer saved the session first.
	ErrRevisionConflict = errors.New("session revision conflict")
)
