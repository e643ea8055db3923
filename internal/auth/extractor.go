package auth

import (
	"net/http"
	"strconv"
)

const (
	// AuthorizationHeader carries the opaque bearer token on protected
	// requests.
	AuthorizationHeader = "Authorization"

	// UserIDHeader carries the caller's claimed numeric identity.
	UserIDHeader = "user_id"
)

// Identity is a verified user id together with the token that proved it.
type Identity struct {
	UserID int64
	Token  string
}

// ExtractIdentity authenticates a request against the registry. Checks
// run in a fixed order: claimed user id first, then token presence, then
// token validity. A token that is unknown and a token that belongs to a
// different user than claimed both come back as ErrInvalidToken — the
// response must not reveal whether a given token is live.
//
// ExtractIdentity reads the registry but never mutates it.
func ExtractIdentity(r *http.Request, reg *Registry) (Identity, error) {
	claimed, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
	if err != nil {
		return Identity{}, ErrMissingUserID
	}

	token := r.Header.Get(AuthorizationHeader)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	owner, ok := reg.Validate(token)
	if !ok || owner != claimed {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claimed, Token: token}, nil
}
