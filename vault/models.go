package vault

import "time"

// Account is a registered user. CredentialHash is a self-describing bcrypt
// string; the login passphrase itself is never stored.
type Account struct {
	ID             uint64    `json:"id"`
	Email          string    `json:"email"`
	CredentialHash string    `json:"credential_hash"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// SecretEntry is one stored credential. Ciphertext is only readable with
// Salt and the owner's master passphrase.
type SecretEntry struct {
	ID         uint64    `json:"id"`
	OwnerID    uint64    `json:"owner_id"`
	Title      string    `json:"title"`
	Username   string    `json:"username"`
	Website    string    `json:"website,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Ciphertext []byte    `json:"ciphertext"`
	Salt       []byte    `json:"salt"`
	Scheme     string    `json:"scheme"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEntry is the caller input for Entries.Create.
type NewEntry struct {
	Title    string
	Username string
	Secret   string
	Website  string
	Notes    string
}

// Validation constants.
const (
	MaxEmailLength          = 254
	MinLoginPassphraseLen   = 8
	MaxLoginPassphraseLen   = 72
	MaxMasterPassphraseLen  = 1024
	MaxTitleLength          = 256
	MaxUsernameLength       = 256
	MaxWebsiteLength        = 2048
	MaxNotesSize            = 64 << 10
	MaxSecretSize           = 64 << 10
	DefaultMaxConcurrentKDF = 8
)

// Record types and namespaces for storage.
const (
	recordTypeAccount = "ACCOUNT"
	recordTypeEmail   = "EMAIL"
	recordTypeEntry   = "ENTRY"

	accountsNamespace = "accounts"
)
