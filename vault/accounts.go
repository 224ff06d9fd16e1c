package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmcleod/credvault/crypto"
	"github.com/jmcleod/credvault/internal/util"
	"github.com/jmcleod/credvault/storage"
)

// dummyPassphrase is hashed once and verified against when a login names an
// unknown email, so both paths pay the same bcrypt cost.
const dummyPassphrase = "credvault-timing-equaliser"

// fallbackDummyHash stands in when hashing dummyPassphrase fails.
const fallbackDummyHash = "$2a$10$XajjQvNhvvRt5GSeFk1xFeyqRrsxkhBkUiQeg0dt.wU1qD4aFDcga"

// Accounts registers and authenticates users.
type Accounts struct {
	repo      storage.Repository
	hasher    crypto.CredentialHasher
	now       func() time.Time
	dummyHash func() string
}

// NewAccounts returns an account service storing records in repo.
func NewAccounts(repo storage.Repository, hasher crypto.CredentialHasher, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.dummyHash = sync.OnceValue(func() string {
		h, err := a.hasher.Hash([]byte(dummyPassphrase))
		if err != nil {
			return fallbackDummyHash
		}
		return h
	})
	return a
}

// Register creates an active account. Emails are compared case-insensitively.
func (a *Accounts) Register(ctx context.Context, email, passphrase string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	pass := util.NormalizeBytes([]byte(passphrase))
	defer util.WipeBytes(pass)
	if err := validateLoginPassphrase(pass); err != nil {
		return nil, err
	}

	hash, err := a.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	acct := Account{
		Email:          email,
		CredentialHash: hash,
		Active:         true,
		CreatedAt:      a.now().UTC(),
	}
	err = a.repo.Batch(accountsNamespace, func(tx storage.BatchTx) error {
		if _, err := tx.Get(recordTypeEmail, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		id, err := storage.NextID(tx, recordTypeAccount)
		if err != nil {
			return err
		}
		acct.ID = id
		if err := tx.Create(recordTypeEmail, email, []byte(storage.FormatID(id))); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		data, err := json.Marshal(acct)
		if err != nil {
			return err
		}
		return tx.Create(recordTypeAccount, storage.FormatID(id), data)
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Authenticate checks passphrase against the account registered for email.
// An unknown email and a wrong passphrase both return ErrInvalidCredentials.
// A correct passphrase on a disabled account returns ErrAccountDisabled.
func (a *Accounts) Authenticate(ctx context.Context, email, passphrase string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pass := util.NormalizeBytes([]byte(passphrase))
	defer util.WipeBytes(pass)

	acct, err := a.GetByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		a.hasher.Verify(pass, a.dummyHash())
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !a.hasher.Verify(pass, acct.CredentialHash) {
		return nil, ErrInvalidCredentials
	}
	if !acct.Active {
		return nil, ErrAccountDisabled
	}
	return acct, nil
}

// Get loads an account by ID.
func (a *Accounts) Get(ctx context.Context, id uint64) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := a.repo.Get(accountsNamespace, recordTypeAccount, storage.FormatID(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeAccount(data)
}

// GetByEmail loads an account by its (case-insensitive) email.
func (a *Accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := a.repo.Get(accountsNamespace, recordTypeEmail, NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	id, err := storage.ParseID(string(raw))
	if err != nil {
		return nil, fmt.Errorf("corrupt email index for %q: %w", email, err)
	}
	return a.Get(ctx, id)
}

// SetActive enables or disables an account. Disabled accounts cannot log in
// and their outstanding tokens are rejected.
func (a *Accounts) SetActive(ctx context.Context, id uint64, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.repo.Batch(accountsNamespace, func(tx storage.BatchTx) error {
		data, err := tx.Get(recordTypeAccount, storage.FormatID(id))
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
		}
		if err != nil {
			return err
		}
		acct, err := decodeAccount(data)
		if err != nil {
			return err
		}
		acct.Active = active
		out, err := json.Marshal(acct)
		if err != nil {
			return err
		}
		return tx.Put(recordTypeAccount, storage.FormatID(id), out)
	})
}

func decodeAccount(data []byte) (*Account, error) {
	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("decoding account: %w", err)
	}
	return &acct, nil
}
