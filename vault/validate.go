package vault

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeEmail is the canonical form accounts are stored and looked up by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return validationErrorf("email must not be empty")
	}
	if len(email) > MaxEmailLength {
		return validationErrorf("email exceeds maximum length of %d", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationErrorf("email %q is not a valid address", email)
	}
	return nil
}

func validateLoginPassphrase(passphrase []byte) error {
	if len(passphrase) < MinLoginPassphraseLen {
		return validationErrorf("password must be at least %d bytes", MinLoginPassphraseLen)
	}
	if len(passphrase) > MaxLoginPassphraseLen {
		return validationErrorf("password exceeds maximum length of %d bytes", MaxLoginPassphraseLen)
	}
	return nil
}

func validateMasterPassphrase(passphrase []byte) error {
	if len(passphrase) == 0 {
		return validationErrorf("master password must not be empty")
	}
	if len(passphrase) > MaxMasterPassphraseLen {
		return validationErrorf("master password exceeds maximum length of %d bytes", MaxMasterPassphraseLen)
	}
	return nil
}

func validateText(value, label string, maxLen int, required bool) error {
	if value == "" {
		if required {
			return validationErrorf("%s must not be empty", label)
		}
		return nil
	}
	if len(value) > maxLen {
		return validationErrorf("%s exceeds maximum length of %d", label, maxLen)
	}
	if !utf8.ValidString(value) {
		return validationErrorf("%s contains invalid UTF-8", label)
	}
	return nil
}

// validateSingleLine rejects control characters in fields that render on
// one line (titles, usernames, URLs).
func validateSingleLine(value, label string) error {
	for _, r := range value {
		if unicode.IsControl(r) {
			return validationErrorf("%s contains control character", label)
		}
	}
	return nil
}

func validateNewEntry(e NewEntry) error {
	if err := validateText(e.Title, "title", MaxTitleLength, true); err != nil {
		return err
	}
	if err := validateSingleLine(e.Title, "title"); err != nil {
		return err
	}
	if err := validateText(e.Username, "username", MaxUsernameLength, false); err != nil {
		return err
	}
	if err := validateSingleLine(e.Username, "username"); err != nil {
		return err
	}
	if err := validateText(e.Website, "website", MaxWebsiteLength, false); err != nil {
		return err
	}
	if err := validateSingleLine(e.Website, "website"); err != nil {
		return err
	}
	if err := validateText(e.Notes, "notes", MaxNotesSize, false); err != nil {
		return err
	}
	if e.Secret == "" {
		return validationErrorf("password must not be empty")
	}
	if len(e.Secret) > MaxSecretSize {
		return validationErrorf("password exceeds maximum size of %d bytes", MaxSecretSize)
	}
	return nil
}
