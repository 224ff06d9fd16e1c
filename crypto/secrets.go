package crypto

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Service seals secrets under keys derived from a master passphrase. Each
// call derives a fresh key; nothing is cached between calls.
type Service struct {
	kdf  KeyDeriver
	aead AEAD
}

// Option configures a Service.
type Option func(*Service)

// WithKeyDeriver replaces the default PBKDF2SHA256 deriver.
func WithKeyDeriver(kd KeyDeriver) Option {
	return func(s *Service) {
		s.kdf = kd
	}
}

// WithAEAD replaces the default AESGCM cipher.
func WithAEAD(a AEAD) Option {
	return func(s *Service) {
		s.aead = a
	}
}

// NewService returns a Service using PBKDF2SHA256 and AESGCM unless
// overridden.
func NewService(opts ...Option) *Service {
	s := &Service{kdf: PBKDF2SHA256{}, aead: AESGCM{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scheme identifies the deriver and cipher pair, e.g. "pbkdf2-sha256+aes256gcm".
func (s *Service) Scheme() string {
	return s.kdf.Name() + "+" + s.aead.Name()
}

// StoreSecret encrypts plaintext under a key derived from masterPassphrase
// and a fresh salt. Both the ciphertext and the salt must be persisted.
func (s *Service) StoreSecret(plaintext, masterPassphrase []byte) (ciphertext, salt []byte, err error) {
	key, salt, err := Derive(s.kdf, masterPassphrase, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving key: %w", err)
	}
	locked := memguard.NewBufferFromBytes(key)
	defer locked.Destroy()

	ciphertext, err = s.aead.Seal(plaintext, locked.Bytes())
	if err != nil {
		return nil, nil, fmt.Errorf("sealing secret: %w", err)
	}
	return ciphertext, salt, nil
}

// RevealSecret re-derives the key from masterPassphrase and salt and opens
// ciphertext. A wrong passphrase and a corrupted blob both yield
// ErrDecryptionFailed.
func (s *Service) RevealSecret(ciphertext, salt, masterPassphrase []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSaltLength, len(salt), SaltSize)
	}
	key, _, err := Derive(s.kdf, masterPassphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	locked := memguard.NewBufferFromBytes(key)
	defer locked.Destroy()

	plaintext, err := s.aead.Open(ciphertext, locked.Bytes())
	if err != nil {
		return nil, fmt.Errorf("opening secret: %w", err)
	}
	return plaintext, nil
}
