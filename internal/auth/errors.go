package auth

import "errors"

var (
	// ErrMissingUserID is returned when the user_id header is absent or
	// not parseable as an integer.
	ErrMissingUserID = errors.New("auth: missing or invalid user id")

	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("auth: missing token")

	// ErrInvalidToken covers both an unknown token and a token owned by a
	// different user than the one claimed. The two cases are deliberately
	// indistinguishable so a caller cannot probe which tokens are live.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnknownToken is returned by Registry.Invalidate for a token that
	// is not in the registry. It reaches the logout path only and is never
	// sent to an unauthenticated client.
	ErrUnknownToken = errors.New("auth: unknown token")
)
