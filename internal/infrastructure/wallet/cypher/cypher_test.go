package cypher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orddefi-labs/inscribed/internal/infrastructure/wallet/cypher"
)

func TestEncryptDecrypt(t *testing.T) {
	c := cypher.New()
	ctx := context.Background()

	tests := []struct {
		name     string
		seed     []byte
		password string
	}{
		{
			name:     "simple seed",
			seed:     []byte("test seed data"),
			password: "testpassword",
		},
		{
			name:     "long seed",
			seed:     make([]byte, 1024),
			password: "very long password with special chars !@#$%^&*()",
		},
		{
			name:     "binary seed",
			seed:     []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD, 0xFC},
			password: "simple",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := c.Encrypt(ctx, tt.seed, tt.password)
			require.NoError(t, err)
			require.NotEmpty(t, encrypted)
			require.NotEqual(t, tt.seed, encrypted)

			decrypted, err := c.Decrypt(ctx, encrypted, tt.password)
			require.NoError(t, err)
			require.Equal(t, tt.seed, decrypted)
		})
	}
}

func TestEncryptIsSalted(t *testing.T) {
	c := cypher.New()
	ctx := context.Background()
	seed := []byte("same seed")

	first, err := c.Encrypt(ctx, seed, "password")
	require.NoError(t, err)
	second, err := c.Encrypt(ctx, seed, "password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestDecryptWrongPassword(t *testing.T) {
	c := cypher.New()
	ctx := context.Background()

	encrypted, err := c.Encrypt(ctx, []byte("secret seed"), "right password")
	require.NoError(t, err)

	_, err = c.Decrypt(ctx, encrypted, "wrong password")
	require.Error(t, err)
}

func TestRejectsEmptyInputs(t *testing.T) {
	c := cypher.New()
	ctx := context.Background()

	_, err := c.Encrypt(ctx, nil, "password")
	require.Error(t, err)

	_, err = c.Encrypt(ctx, []byte("seed"), "")
	require.Error(t, err)

	_, err = c.Decrypt(ctx, nil, "password")
	require.Error(t, err)

	_, err = c.Decrypt(ctx, []byte("too short"), "password")
	require.Error(t, err)
}
