package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyIsDeterministic(t *testing.T) {
	k1 := DeriveKey("hunter2")
	k2 := DeriveKey("hunter2")
	assert.Equal(t, k1, k2)

	k3 := DeriveKey("hunter3")
	assert.NotEqual(t, k1, k3)
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKey("correct horse battery staple")

	messages := []string{"", "hello", "a longer message with spaces and \x00 bytes"}
	for _, m := range messages {
		sealed, err := Seal([]byte(m), key[:])
		require.NoError(t, err)

		require.Len(t, sealed, NonceSize+len(m)+TagSize)

		opened, err := Open(sealed, key[:])
		require.NoError(t, err)
		assert.Equal(t, m, string(opened))
	}
}

func TestOpenFailsWithWrongKey(t *testing.T) {
	key := DeriveKey("password-a")
	wrongKey := DeriveKey("password-b")

	sealed, err := Seal([]byte("secret"), key[:])
	require.NoError(t, err)

	opened, err := Open(sealed, wrongKey[:])
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Nil(t, opened)
}

func TestOpenRejectsTruncatedInput(t *testing.T) {
	key := DeriveKey("password")

	_, err := Open([]byte{0x01, 0x02}, key[:])
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := DeriveKey("password")
	sealed, err := Seal([]byte("hello"), key[:])
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = Open(tampered, key[:])
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestSealProducesFreshNonceEachCall(t *testing.T) {
	key := DeriveKey("password")

	a, err := Seal([]byte("hello"), key[:])
	require.NoError(t, err)
	b, err := Seal([]byte("hello"), key[:])
	require.NoError(t, err)

	assert.NotEqual(t, a[:NonceSize], b[:NonceSize])
}
