package util

import (
	"bytes"
	"errors"
	"testing"
)

func TestAES(t *testing.T) {
	key, _ := RandomBytes(AESKeySize)
	plainText := []byte("hello world")

	t.Run("EncryptDecrypt", func(t *testing.T) {
		cipherText, err := EncryptAES(plainText, key)
		if err != nil {
			t.Fatalf("EncryptAES failed: %v", err)
		}

		decrypted, err := DecryptAES(cipherText, key)
		if err != nil {
			t.Fatalf("DecryptAES failed: %v", err)
		}

		if !bytes.Equal(plainText, decrypted) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, _ := RandomBytes(AESKeySize)
		cipherText, _ := EncryptAES(plainText, key)
		_, err := DecryptAES(cipherText, other)
		if err == nil {
			t.Error("expected error with wrong key, got nil")
		}
	})

	t.Run("TamperCipherText", func(t *testing.T) {
		cipherText, _ := EncryptAES(plainText, key)
		cipherText[len(cipherText)-1] ^= 0xFF
		_, err := DecryptAES(cipherText, key)
		if err == nil {
			t.Error("expected error with tampered ciphertext, got nil")
		}
	})

	t.Run("NonceIsFresh", func(t *testing.T) {
		c1, _ := EncryptAES(plainText, key)
		c2, _ := EncryptAES(plainText, key)
		if bytes.Equal(c1[:AESNonceSize], c2[:AESNonceSize]) {
			t.Error("expected distinct nonces")
		}
	})

	t.Run("ShortCipherText", func(t *testing.T) {
		_, err := DecryptAES(make([]byte, AESNonceSize), key)
		if !errors.Is(err, ErrShortCiphertext) {
			t.Errorf("expected ErrShortCiphertext, got %v", err)
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		_, err := EncryptAES(plainText, []byte("too short"))
		if err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})
}

func TestXChaCha(t *testing.T) {
	key, _ := RandomBytes(32)
	plainText := []byte("attack at dawn")

	cipherText, err := EncryptXChaCha(plainText, key)
	if err != nil {
		t.Fatalf("EncryptXChaCha failed: %v", err)
	}
	if len(cipherText) != XChaChaNonceSize+len(plainText)+16 {
		t.Errorf("unexpected blob length %d", len(cipherText))
	}

	decrypted, err := DecryptXChaCha(cipherText, key)
	if err != nil {
		t.Fatalf("DecryptXChaCha failed: %v", err)
	}
	if !bytes.Equal(plainText, decrypted) {
		t.Errorf("expected %s, got %s", plainText, decrypted)
	}

	cipherText[XChaChaNonceSize] ^= 0x01
	if _, err := DecryptXChaCha(cipherText, key); err == nil {
		t.Error("expected error with tampered ciphertext, got nil")
	}

	if _, err := DecryptXChaCha([]byte("short"), key); !errors.Is(err, ErrShortCiphertext) {
		t.Errorf("expected ErrShortCiphertext, got %v", err)
	}
}

func TestPBKDF2(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1, err := DerivePBKDF2Key([]byte("passphrase"), salt, 1000, 32)
	if err != nil {
		t.Fatalf("DerivePBKDF2Key failed: %v", err)
	}
	if len(k1) != 32 {
		t.Errorf("expected key length 32, got %d", len(k1))
	}

	k2, _ := DerivePBKDF2Key([]byte("passphrase"), salt, 1000, 32)
	if !bytes.Equal(k1, k2) {
		t.Error("PBKDF2 should be deterministic")
	}

	k3, _ := DerivePBKDF2Key([]byte("passphrase"), []byte("fedcba9876543210"), 1000, 32)
	if bytes.Equal(k1, k3) {
		t.Error("PBKDF2 should depend on the salt")
	}

	if _, err := DerivePBKDF2Key([]byte("p"), salt, 0, 32); err == nil {
		t.Error("expected error for zero iterations")
	}
	if _, err := DerivePBKDF2Key([]byte("p"), salt, 1, 0); err == nil {
		t.Error("expected error for zero key length")
	}
}

func TestArgon2id(t *testing.T) {
	params, _ := Argon2idProfile(KDFProfileInteractive)
	passphrase := []byte("correct horse battery staple")
	salt := []byte("random salt")

	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected key length 32, got %d", len(key))
	}

	again, _ := DeriveArgon2idKey(passphrase, salt, params)
	if !bytes.Equal(key, again) {
		t.Error("Argon2id should be deterministic")
	}

	other, _ := DeriveArgon2idKey([]byte("wrong passphrase"), salt, params)
	if bytes.Equal(key, other) {
		t.Error("Argon2id should depend on the passphrase")
	}

	params.KeyLen = 16
	if _, err := DeriveArgon2idKey(passphrase, salt, params); err == nil {
		t.Error("expected error for 16-byte key length")
	}
}

func TestArgon2idProfile_AllProfiles(t *testing.T) {
	profiles := []struct {
		name      string
		minTime   uint32
		minMemKiB uint32
	}{
		{KDFProfileInteractive, 2, 19 * 1024},
		{KDFProfileModerate, 3, 64 * 1024},
		{KDFProfileSensitive, 4, 128 * 1024},
	}

	for _, tc := range profiles {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Argon2idProfile(tc.name)
			if err != nil {
				t.Fatalf("Argon2idProfile(%q) failed: %v", tc.name, err)
			}
			if p.Time < tc.minTime {
				t.Errorf("profile %q: Time=%d, want at least %d", tc.name, p.Time, tc.minTime)
			}
			if p.MemoryKiB < tc.minMemKiB {
				t.Errorf("profile %q: MemoryKiB=%d, want at least %d", tc.name, p.MemoryKiB, tc.minMemKiB)
			}
			if err := ValidateArgon2idParams(p); err != nil {
				t.Errorf("profile %q failed validation: %v", tc.name, err)
			}
		})
	}

	if _, err := Argon2idProfile("nonexistent"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestValidateArgon2idParams(t *testing.T) {
	base := DefaultArgon2idParams()
	if err := ValidateArgon2idParams(base); err != nil {
		t.Fatalf("default params should be valid: %v", err)
	}

	bad := []func(p *Argon2idParams){
		func(p *Argon2idParams) { p.KeyLen = 16 },
		func(p *Argon2idParams) { p.Time = 0 },
		func(p *Argon2idParams) { p.MemoryKiB = 1024 },
		func(p *Argon2idParams) { p.Parallelism = 0 },
	}
	for i, mutate := range bad {
		p := base
		mutate(&p)
		if err := ValidateArgon2idParams(p); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, p)
		}
	}
}

func TestBytes(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}

	copied := CopyBytes(a)
	if !bytes.Equal(copied, a) {
		t.Error("CopyBytes failed")
	}
	copied[0] = 0xFF
	if a[0] == 0xFF {
		t.Error("CopyBytes should return a new slice")
	}
	if CopyBytes(nil) != nil {
		t.Error("CopyBytes(nil) should stay nil")
	}

	WipeBytes(copied)
	if !bytes.Equal(copied, []byte{0, 0, 0}) {
		t.Errorf("WipeBytes left %v", copied)
	}
}

func TestEncoding(t *testing.T) {
	composed := []byte("caf\u00e9")
	decomposed := "cafe\u0301"
	if got := string(NormalizeBytes(composed)); got != decomposed {
		t.Errorf("NormalizeBytes should decompose, got %q", got)
	}
	if got := string(NormalizeBytes([]byte(decomposed))); got != decomposed {
		t.Error("NormalizeBytes should be idempotent")
	}
}

func TestRandomBytes(t *testing.T) {
	b1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	b2, _ := RandomBytes(32)
	if len(b1) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(b1))
	}
	if bytes.Equal(b1, b2) {
		t.Error("RandomBytes should produce different outputs")
	}
}
