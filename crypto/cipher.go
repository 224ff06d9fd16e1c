package crypto

import (
	"fmt"

	"github.com/jmcleod/credvault/internal/util"
)

// AEAD seals and opens secrets under a KeySize-byte key. Sealed blobs are
// laid out as nonce || ciphertext || tag.
type AEAD interface {
	Seal(plaintext, key []byte) ([]byte, error)
	Open(blob, key []byte) ([]byte, error)
	Name() string
}

func checkKey(key []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(key), KeySize)
	}
	return nil
}

// AESGCM is AES-256-GCM with a random 12-byte nonce per seal.
type AESGCM struct{}

func (AESGCM) Name() string { return "aes256gcm" }

func (AESGCM) Seal(plaintext, key []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return util.EncryptAES(plaintext, key)
}

func (AESGCM) Open(blob, key []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	plaintext, err := util.DecryptAES(blob, key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// XChaCha20Poly1305 uses a random 24-byte nonce per seal.
type XChaCha20Poly1305 struct{}

func (XChaCha20Poly1305) Name() string { return "xchacha20poly1305" }

func (XChaCha20Poly1305) Seal(plaintext, key []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return util.EncryptXChaCha(plaintext, key)
}

func (XChaCha20Poly1305) Open(blob, key []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	plaintext, err := util.DecryptXChaCha(blob, key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
