package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jmcleod/credvault/crypto"
	"github.com/jmcleod/credvault/internal/util"
	"github.com/jmcleod/credvault/storage"
)

// Entries stores and reveals secret entries. Every operation is scoped to an
// owner: another owner's entry ID behaves exactly like a missing one.
type Entries struct {
	repo    storage.Repository
	secrets *crypto.Service
	now     func() time.Time
	maxKDF  int64
	sem     *semaphore.Weighted
}

// NewEntries returns an entry service sealing secrets with svc.
func NewEntries(repo storage.Repository, svc *crypto.Service, opts ...EntriesOption) *Entries {
	e := &Entries{
		repo:    repo,
		secrets: svc,
		now:     time.Now,
		maxKDF:  DefaultMaxConcurrentKDF,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sem = semaphore.NewWeighted(e.maxKDF)
	return e
}

// Scheme reports the KDF and cipher pair new entries are sealed with.
func (e *Entries) Scheme() string {
	return e.secrets.Scheme()
}

func ownerNamespace(ownerID uint64) string {
	return "owner-" + storage.FormatID(ownerID)
}

// withDerivationSlot runs fn once a key-derivation slot is free.
func (e *Entries) withDerivationSlot(ctx context.Context, fn func() error) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return fn()
}

// Create seals in.Secret under masterPassphrase and stores the entry.
func (e *Entries) Create(ctx context.Context, ownerID uint64, in NewEntry, masterPassphrase string) (*SecretEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateNewEntry(in); err != nil {
		return nil, err
	}
	master := util.NormalizeBytes([]byte(masterPassphrase))
	defer util.WipeBytes(master)
	if err := validateMasterPassphrase(master); err != nil {
		return nil, err
	}

	secret := []byte(in.Secret)
	defer util.WipeBytes(secret)

	var ciphertext, salt []byte
	err := e.withDerivationSlot(ctx, func() error {
		var err error
		ciphertext, salt, err = e.secrets.StoreSecret(secret, master)
		return err
	})
	if err != nil {
		return nil, err
	}

	entry := SecretEntry{
		OwnerID:    ownerID,
		Title:      in.Title,
		Username:   in.Username,
		Website:    in.Website,
		Notes:      in.Notes,
		Ciphertext: ciphertext,
		Salt:       salt,
		Scheme:     e.secrets.Scheme(),
		CreatedAt:  e.now().UTC(),
	}
	err = e.repo.Batch(ownerNamespace(ownerID), func(tx storage.BatchTx) error {
		id, err := storage.NextID(tx, recordTypeEntry)
		if err != nil {
			return err
		}
		entry.ID = id
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return tx.Create(recordTypeEntry, storage.FormatID(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("storing entry: %w", err)
	}
	return &entry, nil
}

// List returns the owner's entries in creation order.
func (e *Entries) List(ctx context.Context, ownerID uint64) ([]SecretEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ns := ownerNamespace(ownerID)
	ids, err := e.repo.List(ns, recordTypeEntry)
	if err != nil {
		return nil, err
	}

	entries := make([]SecretEntry, 0, len(ids))
	for _, rid := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := e.repo.Get(ns, recordTypeEntry, rid)
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted between List and Get.
			continue
		}
		if err != nil {
			return nil, err
		}
		entry, err := decodeEntry(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Get loads one of the owner's entries.
func (e *Entries) Get(ctx context.Context, ownerID, entryID uint64) (*SecretEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := e.repo.Get(ownerNamespace(ownerID), recordTypeEntry, storage.FormatID(entryID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("entry %d: %w", entryID, ErrEntryNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(data)
}

// Reveal decrypts an entry's secret. A wrong master passphrase yields
// crypto.ErrDecryptionFailed.
func (e *Entries) Reveal(ctx context.Context, ownerID, entryID uint64, masterPassphrase string) ([]byte, error) {
	entry, err := e.Get(ctx, ownerID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Scheme != e.secrets.Scheme() {
		return nil, fmt.Errorf("entry %d sealed with %q: %w", entryID, entry.Scheme, ErrUnsupportedScheme)
	}
	master := util.NormalizeBytes([]byte(masterPassphrase))
	defer util.WipeBytes(master)
	if err := validateMasterPassphrase(master); err != nil {
		return nil, err
	}

	var plaintext []byte
	err = e.withDerivationSlot(ctx, func() error {
		var err error
		plaintext, err = e.secrets.RevealSecret(entry.Ciphertext, entry.Salt, master)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// Delete removes one of the owner's entries.
func (e *Entries) Delete(ctx context.Context, ownerID, entryID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := e.repo.Delete(ownerNamespace(ownerID), recordTypeEntry, storage.FormatID(entryID))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("entry %d: %w", entryID, ErrEntryNotFound)
	}
	return err
}

func decodeEntry(data []byte) (*SecretEntry, error) {
	var entry SecretEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	return &entry, nil
}
