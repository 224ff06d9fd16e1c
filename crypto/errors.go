package crypto

import "errors"

var (
	// ErrMalformedCredentialHash is reported by CheckCredentialHash when a
	// stored hash cannot be parsed. Verify treats it as a mismatch.
	ErrMalformedCredentialHash = errors.New("malformed credential hash")
	// ErrDecryptionFailed covers every failure to open a sealed secret: wrong
	// passphrase, wrong key, truncated or tampered blob.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrInvalidSaltLength is returned when a caller-provided salt is not SaltSize bytes.
	ErrInvalidSaltLength = errors.New("invalid salt length")
	// ErrInvalidKeyLength is returned when a key is not KeySize bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")
	// ErrPassphraseTooLong is returned when a passphrase exceeds MaxHashedPassphraseLen.
	ErrPassphraseTooLong = errors.New("passphrase too long")
)
