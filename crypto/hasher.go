package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultHashCost is the bcrypt work factor used for account credentials.
	DefaultHashCost = 12
	// MaxHashedPassphraseLen is the longest passphrase bcrypt accepts.
	MaxHashedPassphraseLen = 72
)

// CredentialHasher hashes and verifies account passphrases. The returned
// hash is self-describing: algorithm, cost and salt are embedded in it.
type CredentialHasher interface {
	Hash(passphrase []byte) (string, error)
	Verify(passphrase []byte, stored string) bool
}

// BcryptHasher is a CredentialHasher backed by bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher using cost, or DefaultHashCost when cost is zero.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultHashCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	return &BcryptHasher{Cost: cost}, nil
}

func (h *BcryptHasher) Hash(passphrase []byte) (string, error) {
	if len(passphrase) > MaxHashedPassphraseLen {
		return "", ErrPassphraseTooLong
	}
	out, err := bcrypt.GenerateFromPassword(passphrase, h.Cost)
	if err != nil {
		return "", fmt.Errorf("hashing passphrase: %w", err)
	}
	return string(out), nil
}

// Verify reports whether passphrase matches stored. Malformed hashes and
// over-long passphrases report false.
func (h *BcryptHasher) Verify(passphrase []byte, stored string) bool {
	if len(passphrase) > MaxHashedPassphraseLen {
		return false
	}
	if CheckCredentialHash(stored) != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), passphrase) == nil
}

// CheckCredentialHash returns ErrMalformedCredentialHash when stored is not a
// parseable bcrypt hash.
func CheckCredentialHash(stored string) error {
	if _, err := bcrypt.Cost([]byte(stored)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCredentialHash, err)
	}
	return nil
}

var defaultHasher = &BcryptHasher{Cost: DefaultHashCost}

// HashPassphrase hashes passphrase with the default bcrypt cost.
func HashPassphrase(passphrase []byte) (string, error) {
	return defaultHasher.Hash(passphrase)
}

// VerifyPassphrase checks passphrase against stored using the default hasher.
func VerifyPassphrase(passphrase []byte, stored string) bool {
	return defaultHasher.Verify(passphrase, stored)
}

