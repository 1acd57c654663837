package ports

import "context"

// SeedRepository persists the wallet's encrypted seed, the only durable state
// in the system.
type SeedRepository interface {
	IsInitialized(ctx context.Context) bool
	GetEncryptedSeed(ctx context.Context) ([]byte, error)
	SetEncryptedSeed(ctx context.Context, seed []byte) error
	Close() error
}

// Cypher encrypts seed material at rest with a password-derived key.
type Cypher interface {
	Encrypt(ctx context.Context, plaintext []byte, password string) ([]byte, error)
	Decrypt(ctx context.Context, encrypted []byte, password string) ([]byte, error)
}
