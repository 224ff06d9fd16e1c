package crypto

import (
	"fmt"

	"github.com/jmcleod/credvault/internal/util"
)

const (
	// SaltSize is the length of a per-secret derivation salt.
	SaltSize = 16
	// KeySize is the length of every derived key.
	KeySize = 32
	// PBKDF2Iterations is the fixed PBKDF2 work factor.
	PBKDF2Iterations = 100000
)

// KeyDeriver turns a passphrase and salt into a KeySize-byte key.
// Implementations must be deterministic for identical inputs.
type KeyDeriver interface {
	DeriveKey(passphrase, salt []byte) ([]byte, error)
	Name() string
}

// Derive runs kd over passphrase. A nil salt is replaced by a fresh random
// one; any other salt must be exactly SaltSize bytes. The salt that was used
// is returned with the key.
func Derive(kd KeyDeriver, passphrase, salt []byte) (key, usedSalt []byte, err error) {
	if salt == nil {
		salt, err = util.RandomBytes(SaltSize)
		if err != nil {
			return nil, nil, fmt.Errorf("generating salt: %w", err)
		}
	} else if len(salt) != SaltSize {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSaltLength, len(salt), SaltSize)
	}

	key, err = kd.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, nil, err
	}
	if len(key) != KeySize {
		util.WipeBytes(key)
		return nil, nil, fmt.Errorf("%w: deriver %s produced %d bytes", ErrInvalidKeyLength, kd.Name(), len(key))
	}
	return key, salt, nil
}

// PBKDF2SHA256 derives keys with PBKDF2-HMAC-SHA256 at PBKDF2Iterations.
type PBKDF2SHA256 struct{}

func (PBKDF2SHA256) Name() string { return "pbkdf2-sha256" }

func (PBKDF2SHA256) DeriveKey(passphrase, salt []byte) ([]byte, error) {
	return util.DerivePBKDF2Key(passphrase, salt, PBKDF2Iterations, KeySize)
}

// Argon2idParams configures Argon2id key derivation.
type Argon2idParams = util.Argon2idParams

// Named KDF profiles for different deployment scenarios.
const (
	KDFProfileInteractive = util.KDFProfileInteractive // sub-second, dev/testing
	KDFProfileModerate    = util.KDFProfileModerate    // production default
	KDFProfileSensitive   = util.KDFProfileSensitive   // high-value secrets
)

// DefaultArgon2idParams returns the default Argon2id parameters (moderate profile).
func DefaultArgon2idParams() Argon2idParams {
	return util.DefaultArgon2idParams()
}

// Argon2idProfile returns the Argon2idParams for a named profile.
func Argon2idProfile(name string) (Argon2idParams, error) {
	return util.Argon2idProfile(name)
}

// Argon2id derives keys with Argon2id. A zero Params uses DefaultArgon2idParams.
type Argon2id struct {
	Params Argon2idParams
}

// NewArgon2id returns an Argon2id deriver for the named profile.
func NewArgon2id(profile string) (*Argon2id, error) {
	p, err := util.Argon2idProfile(profile)
	if err != nil {
		return nil, err
	}
	return &Argon2id{Params: p}, nil
}

func (a *Argon2id) Name() string { return "argon2id" }

func (a *Argon2id) DeriveKey(passphrase, salt []byte) ([]byte, error) {
	p := a.Params
	if p == (Argon2idParams{}) {
		p = util.DefaultArgon2idParams()
	}
	if err := util.ValidateArgon2idParams(p); err != nil {
		return nil, err
	}
	return util.DeriveArgon2idKey(passphrase, salt, p)
}
