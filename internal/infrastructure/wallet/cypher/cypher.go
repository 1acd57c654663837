package cypher

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize      = 32
	keySize       = 32
	kdfIterations = 10000
)

type cypher struct{}

// New returns the AES-256-GCM cypher protecting the seed at rest. The
// ciphertext layout is nonce || sealed data || salt.
func New() *cypher {
	return &cypher{}
}

func (c *cypher) Encrypt(_ context.Context, plaintext []byte, password string) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("missing plaintext seed")
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("missing encryption password")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	gcm, err := newGCM([]byte(password), salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return append(ciphertext, salt...), nil
}

func (c *cypher) Decrypt(_ context.Context, encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) <= saltSize {
		return nil, fmt.Errorf("missing encrypted seed")
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("missing decryption password")
	}

	salt := encrypted[len(encrypted)-saltSize:]
	data := encrypted[:len(encrypted)-saltSize]

	gcm, err := newGCM([]byte(password), salt)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("malformed ciphertext")
	}

	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	// #nosec G407
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid password")
	}

	return plaintext, nil
}

func newGCM(password, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(password, salt, kdfIterations, keySize, sha256.New)

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(blockCipher)
}
