package auth

import "crypto/rand"

const (
	// TokenLength is the length of every issued bearer token.
	TokenLength = 64

	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateToken returns a new opaque bearer token: TokenLength characters
// drawn uniformly from an alphanumeric alphabet using crypto/rand.
// A failing random source is unrecoverable and panics.
func GenerateToken() string {
	// 62 does not divide 256; bytes >= 248 are rejected so every
	// alphabet character stays equally likely.
	const limit = 4 * len(tokenAlphabet)

	out := make([]byte, 0, TokenLength)
	buf := make([]byte, 2*TokenLength)
	for len(out) < TokenLength {
		if _, err := rand.Read(buf); err != nil {
			panic("auth: random source unavailable: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out)
}
