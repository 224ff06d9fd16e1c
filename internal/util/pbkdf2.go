package util

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DerivePBKDF2Key runs PBKDF2 with HMAC-SHA256 as the PRF.
func DerivePBKDF2Key(passphrase, salt []byte, iterations, keyLen int) ([]byte, error) {
	if iterations < 1 {
		return nil, fmt.Errorf("pbkdf2 iterations must be positive")
	}
	if keyLen < 1 {
		return nil, fmt.Errorf("pbkdf2 key length must be positive")
	}
	return pbkdf2.Key(passphrase, salt, iterations, keyLen, sha256.New), nil
}
