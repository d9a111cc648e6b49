package accounts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	keyA = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	keyB = "2c624232cdd221771294dfbb310aca000a0df6ac8b66b696d90ef06fdefb64a3"
)

func TestCipher(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		cipher, err := NewCipher(keyA)
		require.NoError(t, err)

		sealed, err := cipher.Encrypt("mật khẩu bí mật")
		require.NoError(t, err)
		require.NotContains(t, string(sealed), "mật khẩu")

		plain, err := cipher.Decrypt(sealed)
		require.NoError(t, err)
		require.Equal(t, "mật khẩu bí mật", plain)
	})

	t.Run("each encryption uses a fresh nonce", func(t *testing.T) {
		cipher, err := NewCipher(keyA)
		require.NoError(t, err)

		first, err := cipher.Encrypt("secret")
		require.NoError(t, err)
		second, err := cipher.Encrypt("secret")
		require.NoError(t, err)
		require.NotEqual(t, first, second)
	})

	t.Run("wrong key fails to decrypt", func(t *testing.T) {
		cipherA, err := NewCipher(keyA)
		require.NoError(t, err)
		cipherB, err := NewCipher(keyB)
		require.NoError(t, err)

		sealed, err := cipherA.Encrypt("secret")
		require.NoError(t, err)

		_, err = cipherB.Decrypt(sealed)
		require.Error(t, err)
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		cipher, err := NewCipher(keyA)
		require.NoError(t, err)

		_, err = cipher.Decrypt([]byte("short"))
		require.Error(t, err)
	})

	t.Run("invalid keys", func(t *testing.T) {
		_, err := NewCipher("not-hex")
		require.Error(t, err)

		_, err = NewCipher("abcd")
		require.Error(t, err)
	})
}
