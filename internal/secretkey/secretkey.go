// Package secretkey generates the per-snippet bearer tokens that unlock the
// real content through the ?secret= query parameter.
package secretkey

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	alphabet = "0123456789abcdef"

	// Length is the encoded key length. 64 hex characters carry 256 bits,
	// the same as 32 random bytes hex-encoded.
	Length = 64
)

// New returns a fresh key drawn from crypto/rand.
func New() (string, error) {
	key, err := gonanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("secretkey: generating key: %w", err)
	}
	return key, nil
}
