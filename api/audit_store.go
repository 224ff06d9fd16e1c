package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmcleod/credvault/internal/uuid"
	"github.com/jmcleod/credvault/storage"
)

const (
	activityRecordType = "ACTIVITY"
	// maxActivityEntries bounds the per-account activity log; the oldest
	// entry is dropped once the limit is reached.
	maxActivityEntries = 500
)

// ActivityEntry is one audit event as shown to the account owner.
type ActivityEntry struct {
	ID        string            `json:"id"`
	Event     string            `json:"event"`
	EntryID   uint64            `json:"entry_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// activityStore keeps a bounded per-account activity log in the repository.
type activityStore struct {
	repo storage.Repository
}

func newActivityStore(repo storage.Repository) *activityStore {
	return &activityStore{repo: repo}
}

func activityNamespace(accountID uint64) string {
	return "activity-" + storage.FormatID(accountID)
}

func (s *activityStore) append(accountID uint64, event AuditEvent, at time.Time, attrs []slog.Attr) error {
	entry := ActivityEntry{
		ID:        uuid.New(),
		Event:     string(event),
		CreatedAt: at,
	}
	for _, a := range attrs {
		if a.Key == "entry_id" && a.Value.Kind() == slog.KindUint64 {
			entry.EntryID = a.Value.Uint64()
			continue
		}
		if entry.Detail == nil {
			entry.Detail = make(map[string]string)
		}
		entry.Detail[a.Key] = a.Value.String()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.repo.Batch(activityNamespace(accountID), func(tx storage.BatchTx) error {
		seq, err := storage.NextID(tx, activityRecordType)
		if err != nil {
			return err
		}
		if err := tx.Put(activityRecordType, storage.FormatID(seq), data); err != nil {
			return err
		}
		if seq > maxActivityEntries {
			err := tx.Delete(activityRecordType, storage.FormatID(seq-maxActivityEntries))
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}
		return nil
	})
}

// list returns the account's activity, newest first.
func (s *activityStore) list(accountID uint64) ([]ActivityEntry, error) {
	ns := activityNamespace(accountID)
	ids, err := s.repo.List(ns, activityRecordType)
	if err != nil {
		return nil, err
	}
	entries := make([]ActivityEntry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		data, err := s.repo.Get(ns, activityRecordType, ids[i])
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var entry ActivityEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("decoding activity %s: %w", ids[i], err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
