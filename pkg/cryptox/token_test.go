package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
		{"custom size", 24, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, a, tt.wantLen)

			b, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, a, b, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestFingerprintToken(t *testing.T) {
	fp1 := FingerprintToken("refresh-1")

	require.Equal(t, fp1, FingerprintToken("refresh-1"), "fingerprint should be deterministic")
	require.NotEqual(t, fp1, FingerprintToken("refresh-2"))
	require.Len(t, fp1, 43)
}

func TestDecodeSecret(t *testing.T) {
	raw := []byte("0123456789abcdef0123456789abcdef")

	t.Run("standard base64", func(t *testing.T) {
		require.Equal(t, raw, DecodeSecret(base64.StdEncoding.EncodeToString(raw)))
	})

	t.Run("url-safe base64 without padding", func(t *testing.T) {
		require.Equal(t, raw, DecodeSecret(base64.RawURLEncoding.EncodeToString(raw)))
	})

	t.Run("raw fallback", func(t *testing.T) {
		in := "not base64 at all!"
		require.Equal(t, []byte(in), DecodeSecret(in))
	})
}
