package blobstore

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	large := make([]byte, 2<<20)
	_, err := rand.Read(large)
	require.NoError(t, err)

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"one byte", []byte{0x42}},
		{"text", []byte("hello document")},
		{"large", large},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, key, err := EncryptBytes(tc.data)
			require.NoError(t, err)
			require.NotEmpty(t, key)
			require.Greater(t, len(sealed), len(tc.data))

			plain, err := DecryptBytes(sealed, key)
			require.NoError(t, err)
			require.True(t, bytes.Equal(tc.data, plain))
		})
	}
}

func TestEncryptFreshKeyAndNonce(t *testing.T) {
	data := []byte("same input")
	s1, k1, err := EncryptBytes(data)
	require.NoError(t, err)
	s2, k2, err := EncryptBytes(data)
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
	require.False(t, bytes.Equal(s1, s2))
}

func TestDecryptRejectsTampering(t *testing.T) {
	sealed, key, err := EncryptBytes([]byte("sensitive"))
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = DecryptBytes(tampered, key)
	require.Error(t, err)
}

func TestDecryptRejectsBadKey(t *testing.T) {
	sealed, _, err := EncryptBytes([]byte("sensitive"))
	require.NoError(t, err)

	_, err = DecryptBytes(sealed, "not-hex")
	require.Error(t, err)

	_, err = DecryptBytes(sealed, "00ff")
	require.Error(t, err)

	_, otherKey, err := EncryptBytes([]byte("x"))
	require.NoError(t, err)
	_, err = DecryptBytes(sealed, otherKey)
	require.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	_, key, err := EncryptBytes([]byte("x"))
	require.NoError(t, err)
	_, err = DecryptBytes([]byte{0x01, 0x02}, key)
	require.Error(t, err)
}
