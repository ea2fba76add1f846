package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := EncryptValue("eight word paper key goes right here ok", "passphrase")
	require.NoError(t, err)
	require.Contains(t, enc, ":")

	plain, err := DecryptValue(enc, "passphrase")
	require.NoError(t, err)
	require.Equal(t, "eight word paper key goes right here ok", plain)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := EncryptValue("secret", "right")
	require.NoError(t, err)

	_, err = DecryptValue(enc, "wrong")
	require.Error(t, err)
}

func TestDecryptMalformedInput(t *testing.T) {
	for _, in := range []string{"", "nosalt", "zz:zz", "deadbeef:00"} {
		if _, err := DecryptValue(in, "p"); err == nil {
			t.Errorf("DecryptValue(%q) unexpectedly succeeded", in)
		}
	}
}

func TestEncryptProducesFreshSalt(t *testing.T) {
	a, err := EncryptValue("same", "p")
	require.NoError(t, err)
	b, err := EncryptValue("same", "p")
	require.NoError(t, err)
	require.NotEqual(t, a, b, "each encryption must use a fresh salt and nonce")
}
