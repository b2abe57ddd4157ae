// Package pkce generates Proof Key for Code Exchange verifiers and S256 challenges
// (RFC 7636).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	dErrors "rentgate/pkg/domain-errors"
)

const (
	// DefaultVerifierLength is used when callers pass a non-positive length.
	DefaultVerifierLength = 64
	MinVerifierLength     = 43
	MaxVerifierLength     = 128

	// MethodS256 is the only challenge method this client sends.
	MethodS256 = "S256"
)

// Pair is one verifier and its derived challenge.
type Pair struct {
	Verifier  string
	Challenge string
}

// Generator draws verifiers from an entropy source. The zero value uses
// crypto/rand.
type Generator struct {
	Random io.Reader
}

// GenerateVerifier returns a verifier of exactly length characters from the
// alphabet [0-9a-v]. Each random byte is written as a zero-padded two-digit base-32
// code, so one byte covers two characters.
func (g Generator) GenerateVerifier(length int) (string, error) {
	if length <= 0 {
		length = DefaultVerifierLength
	}
	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("verifier length must be between %d and %d", MinVerifierLength, MaxVerifierLength))
	}

	random := g.Random
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, (length+1)/2)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "secure random source unavailable")
	}

	var sb strings.Builder
	sb.Grow(len(buf) * 2)
	for _, b := range buf {
		code := strconv.FormatUint(uint64(b), 32)
		if len(code) == 1 {
			sb.WriteByte('0')
		}
		sb.WriteString(code)
	}
	return sb.String()[:length], nil
}

// NewPair generates a verifier and derives its challenge.
func (g Generator) NewPair(length int) (Pair, error) {
	verifier, err := g.GenerateVerifier(length)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Verifier: verifier, Challenge: DeriveChallenge(verifier)}, nil
}

// GenerateVerifier uses crypto/rand.
func GenerateVerifier(length int) (string, error) {
	return Generator{}.GenerateVerifier(length)
}

// DeriveChallenge is base64url(SHA-256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
