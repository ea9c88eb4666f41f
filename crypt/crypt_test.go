package crypt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPassword = []byte("bundle-password")
	testSalt     = []byte("saltsalt")
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"short", []byte("hello")},
		{"exact block", bytes.Repeat([]byte("a"), 16)},
		{"multi block", bytes.Repeat([]byte("bundle"), 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ct, err := Encrypt(tt.input, testPassword, testSalt)
			require.NoError(t, err)
			assert.Zero(t, len(ct)%16)
			assert.Greater(t, len(ct), len(tt.input))

			pt, err := Decrypt(ct, testPassword, testSalt)
			require.NoError(t, err)
			assert.Equal(t, len(tt.input), len(pt))
			assert.True(t, bytes.Equal(tt.input, pt))
		})
	}
}

func TestDeterministic(t *testing.T) {
	t.Parallel()

	a, err := Encrypt([]byte("payload"), testPassword, testSalt)
	require.NoError(t, err)
	b, err := Encrypt([]byte("payload"), testPassword, testSalt)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := Encrypt([]byte("payload"), testPassword, []byte("othersalt"))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestSaltTooShort(t *testing.T) {
	t.Parallel()

	_, err := New(testPassword, []byte("short"))
	assert.ErrorIs(t, err, ErrSaltTooShort)

	_, err = Encrypt([]byte("x"), testPassword, []byte("1234567"))
	assert.ErrorIs(t, err, ErrSaltTooShort)

	_, err = New(nil, testSalt)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestDecryptInvalid(t *testing.T) {
	t.Parallel()

	c, err := New(testPassword, testSalt)
	require.NoError(t, err)

	_, err = c.Decrypt([]byte("not a block"))
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = c.Decrypt(nil)
	assert.ErrorIs(t, err, ErrInvalidLength)

	// Valid ciphertext whose last plaintext byte is 0 has invalid padding.
	raw := make([]byte, 16)
	var ct [16]byte
	c.block.Encrypt(ct[:], xor(raw, c.iv))
	_, err = c.Decrypt(ct[:])
	assert.True(t, errors.Is(err, ErrInvalidPadding))
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
