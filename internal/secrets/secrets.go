package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"murmur/internal/logging"
	"murmur/internal/store"
)

const (
	// KeyRecord is the store record holding the raw symmetric key.
	KeyRecord = "secret_key"
	// CiphertextRecord is the store record holding the sealed credential.
	CiphertextRecord = "api_credential"

	keySize = 32
)

// Store encrypts and persists one sensitive string.
type Store struct {
	kv     store.KV
	logger *slog.Logger
}

// NewStore constructs a secret store over the durable key-value store.
func NewStore(kv store.KV, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logging.NewComponentLogger(logger, "secrets"),
	}
}

// Store seals the secret and persists it. The symmetric key is generated and
// persisted on first use and reused afterwards.
func (s *Store) Store(ctx context.Context, secret string) error {
	if secret == "" {
		return errors.New("secret must not be empty")
	}

	key, err := s.ensureKey(ctx)
	if err != nil {
		return err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	encoded := base64.StdEncoding.EncodeToString(sealed)
	if err := s.kv.Set(ctx, CiphertextRecord, []byte(encoded)); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// Retrieve decrypts and returns the stored secret. An unset credential returns
// "". Any decryption failure self-heals: the corrupt ciphertext is deleted and
// "" is returned, so callers always see either a valid secret or a clean
// not-configured signal.
func (s *Store) Retrieve(ctx context.Context) (string, error) {
	raw, err := s.kv.Get(ctx, CiphertextRecord)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}

	secret, err := s.decrypt(ctx, raw)
	if err != nil {
		s.logger.Warn("stored credential unreadable, purging",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'murmur credential set' to reconfigure"),
		)
		if removeErr := s.kv.Remove(ctx, CiphertextRecord); removeErr != nil {
			s.logger.Warn("failed to purge corrupt credential", logging.Error(removeErr))
		}
		return "", nil
	}
	return secret, nil
}

// Clear removes the sealed credential. The symmetric key record is retained.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, CiphertextRecord); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (s *Store) decrypt(ctx context.Context, encoded []byte) (string, error) {
	key, err := s.kv.Get(ctx, KeyRecord)
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}
	if len(key) != keySize {
		return "", fmt.Errorf("key record missing or malformed (%d bytes)", len(key))
	}

	sealed, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}

	nonce, payload := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}

func (s *Store) ensureKey(ctx context.Context) ([]byte, error) {
	existing, err := s.kv.Get(ctx, KeyRecord)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	if len(existing) == keySize {
		return existing, nil
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := s.kv.Set(ctx, KeyRecord, key); err != nil {
		return nil, fmt.Errorf("persist key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
