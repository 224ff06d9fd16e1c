// Package storagetest holds the behavioural checks every storage.Repository
// backend must pass.
package storagetest

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/jmcleod/credvault/storage"
)

// Run exercises repo. The repository must start empty.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()
	ns := "ns1"

	t.Run("PutGet", func(t *testing.T) {
		if err := repo.Put(ns, "ITEM", "a", []byte("alpha")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := repo.Get(ns, "ITEM", "a")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "alpha" {
			t.Errorf("expected alpha, got %q", got)
		}

		got[0] = 'X'
		again, _ := repo.Get(ns, "ITEM", "a")
		if again[0] == 'X' {
			t.Error("Get should return a copy of the stored value")
		}

		if err := repo.Put(ns, "ITEM", "a", []byte("alpha2")); err != nil {
			t.Fatalf("overwrite failed: %v", err)
		}
		got, _ = repo.Get(ns, "ITEM", "a")
		if string(got) != "alpha2" {
			t.Errorf("expected overwrite, got %q", got)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		if _, err := repo.Get("nonexistent", "ITEM", "a"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown namespace, got %v", err)
		}
		if _, err := repo.Get(ns, "ITEM", "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown record, got %v", err)
		}
	})

	t.Run("ListSortedAndScoped", func(t *testing.T) {
		for _, id := range []string{"c", "b"} {
			if err := repo.Put(ns, "ITEM", id, []byte(id)); err != nil {
				t.Fatalf("Put %s failed: %v", id, err)
			}
		}
		repo.Put(ns, "OTHER", "z", []byte("z"))    //nolint:errcheck
		repo.Put("ns2", "ITEM", "q", []byte("q")) //nolint:errcheck

		ids, err := repo.List(ns, "ITEM")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if !slices.Equal(ids, []string{"a", "b", "c"}) {
			t.Errorf("expected [a b c], got %v", ids)
		}

		ids, err = repo.List("nonexistent", "ITEM")
		if err != nil {
			t.Errorf("List on unknown namespace should not fail: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected no ids, got %v", ids)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ns, "ITEM", "c"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(ns, "ITEM", "c"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete(ns, "ITEM", "c"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
		if err := repo.Delete("nonexistent", "ITEM", "c"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound in unknown namespace, got %v", err)
		}
	})

	t.Run("BatchCommit", func(t *testing.T) {
		err := repo.Batch("batch", func(tx storage.BatchTx) error {
			if err := tx.Put("ITEM", "1", []byte("one")); err != nil {
				return err
			}
			got, err := tx.Get("ITEM", "1")
			if err != nil {
				return err
			}
			if string(got) != "one" {
				return fmt.Errorf("read-your-writes: got %q", got)
			}
			return tx.Create("ITEM", "2", []byte("two"))
		})
		if err != nil {
			t.Fatalf("Batch failed: %v", err)
		}
		ids, _ := repo.List("batch", "ITEM")
		if !slices.Equal(ids, []string{"1", "2"}) {
			t.Errorf("expected [1 2], got %v", ids)
		}
	})

	t.Run("BatchRollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.Batch("batch", func(tx storage.BatchTx) error {
			if err := tx.Put("ITEM", "3", []byte("three")); err != nil {
				return err
			}
			if err := tx.Delete("ITEM", "1"); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := repo.Get("batch", "ITEM", "3"); !errors.Is(err, storage.ErrNotFound) {
			t.Error("rolled back Put should not be visible")
		}
		if _, err := repo.Get("batch", "ITEM", "1"); err != nil {
			t.Errorf("rolled back Delete should keep the record: %v", err)
		}
	})

	t.Run("BatchCreateConflict", func(t *testing.T) {
		err := repo.Batch("batch", func(tx storage.BatchTx) error {
			return tx.Create("ITEM", "1", []byte("dup"))
		})
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
		got, _ := repo.Get("batch", "ITEM", "1")
		if !bytes.Equal(got, []byte("one")) {
			t.Errorf("conflicting Create should not overwrite, got %q", got)
		}
	})

	t.Run("BatchDeleteMissing", func(t *testing.T) {
		err := repo.Batch("batch", func(tx storage.BatchTx) error {
			return tx.Delete("ITEM", "missing")
		})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NextID", func(t *testing.T) {
		var ids []uint64
		for range 3 {
			err := repo.Batch("seq", func(tx storage.BatchTx) error {
				id, err := storage.NextID(tx, "ITEM")
				ids = append(ids, id)
				return err
			})
			if err != nil {
				t.Fatalf("NextID failed: %v", err)
			}
		}
		if !slices.Equal(ids, []uint64{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", ids)
		}

		repo.Batch("seq", func(tx storage.BatchTx) error { //nolint:errcheck
			storage.NextID(tx, "ITEM") //nolint:errcheck
			return errors.New("abort")
		})
		repo.Batch("seq", func(tx storage.BatchTx) error { //nolint:errcheck
			id, _ := storage.NextID(tx, "ITEM")
			ids = append(ids, id)
			return nil
		})
		if ids[3] != 4 {
			t.Errorf("aborted batch should not consume an ID, got %d", ids[3])
		}

		var other uint64
		repo.Batch("seq2", func(tx storage.BatchTx) error { //nolint:errcheck
			other, _ = storage.NextID(tx, "ITEM")
			return nil
		})
		if other != 1 {
			t.Errorf("sequences should be per namespace, got %d", other)
		}
	})

	t.Run("ConcurrentNextID", func(t *testing.T) {
		const n = 20
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[uint64]bool)
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Batch("concurrent", func(tx storage.BatchTx) error {
					id, err := storage.NextID(tx, "ITEM")
					if err != nil {
						return err
					}
					mu.Lock()
					seen[id] = true
					mu.Unlock()
					return nil
				})
				if err != nil {
					t.Errorf("Batch failed: %v", err)
				}
			}()
		}
		wg.Wait()
		if len(seen) != n {
			t.Errorf("expected %d distinct IDs, got %d", n, len(seen))
		}
	})
}
