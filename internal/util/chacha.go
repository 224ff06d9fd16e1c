package util

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const XChaChaNonceSize = chacha20poly1305.NonceSizeX

// EncryptXChaCha seals plainText with XChaCha20-Poly1305 and returns
// nonce || ciphertext || tag. The 24-byte nonce is drawn at random.
func EncryptXChaCha(plainText, rawKey []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plainText)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plainText, nil), nil
}

func DecryptXChaCha(cipherText, rawKey []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305: %w", err)
	}
	if len(cipherText) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrShortCiphertext
	}

	nonce, sealed := cipherText[:aead.NonceSize()], cipherText[aead.NonceSize():]
	plainText, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}
	return plainText, nil
}
