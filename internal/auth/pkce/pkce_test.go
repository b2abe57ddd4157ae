package pkce

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rentgate/pkg/domain-errors"
)

var verifierAlphabet = regexp.MustCompile(`^[0-9a-v]+$`)

func TestGenerateVerifier(t *testing.T) {
	t.Run("length and alphabet hold for every allowed length", func(t *testing.T) {
		for length := MinVerifierLength; length <= MaxVerifierLength; length++ {
			v, err := GenerateVerifier(length)
			require.NoError(t, err)
			assert.Len(t, v, length)
			assert.Regexp(t, verifierAlphabet, v)
		}
	})

	t.Run("non-positive length selects the default", func(t *testing.T) {
		v, err := GenerateVerifier(0)
		require.NoError(t, err)
		assert.Len(t, v, DefaultVerifierLength)
	})

	t.Run("out of range lengths are rejected", func(t *testing.T) {
		for _, length := range []int{42, 129} {
			_, err := GenerateVerifier(length)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})

	t.Run("successive verifiers differ", func(t *testing.T) {
		a, err := GenerateVerifier(64)
		require.NoError(t, err)
		b, err := GenerateVerifier(64)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("bytes render as zero-padded base-32 pairs", func(t *testing.T) {
		src := bytes.Repeat([]byte{0x00, 0x05, 0xff, 0x20}, 16)
		v, err := Generator{Random: bytes.NewReader(src)}.GenerateVerifier(64)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("00057v10", 8), v)
	})

	t.Run("random source failure is an internal error", func(t *testing.T) {
		_, err := Generator{Random: failingReader{}}.GenerateVerifier(64)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func TestDeriveChallenge(t *testing.T) {
	t.Run("matches RFC 7636 appendix B", func(t *testing.T) {
		assert.Equal(t,
			"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
			DeriveChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
	})

	t.Run("deterministic and url safe", func(t *testing.T) {
		for range 50 {
			v, err := GenerateVerifier(64)
			require.NoError(t, err)
			c := DeriveChallenge(v)
			assert.Equal(t, c, DeriveChallenge(v))
			assert.NotContains(t, c, "+")
			assert.NotContains(t, c, "/")
			assert.NotContains(t, c, "=")
		}
	})
}

func TestNewPair(t *testing.T) {
	p, err := Generator{}.NewPair(DefaultVerifierLength)
	require.NoError(t, err)
	assert.Equal(t, DeriveChallenge(p.Verifier), p.Challenge)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}
