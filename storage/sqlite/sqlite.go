// Package sqlite implements storage.Repository on SQLite through GORM and
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/jmcleod/credvault/storage"
)

// record is the single table backing every namespace.
type record struct {
	Namespace  string `gorm:"primaryKey"`
	RecordType string `gorm:"primaryKey"`
	RecordID   string `gorm:"primaryKey"`
	Value      []byte `gorm:"not null"`
	UpdatedAt  time.Time
}

func (record) TableName() string { return "records" }

// Store implements storage.Repository backed by SQLite.
type Store struct {
	db *gorm.DB
	// SQLite allows one writer; batches are serialised here rather than
	// surfacing SQLITE_BUSY to callers.
	mu sync.Mutex
}

var _ storage.Repository = (*Store)(nil)

// NewRepository wraps an existing GORM handle and migrates the records table.
func NewRepository(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrating records table: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: path}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and writes ordered.
	sqlDB.SetMaxOpenConns(1)
	return NewRepository(db)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Put(namespace, recordType, recordID string, value []byte) error {
	return put(s.db, namespace, recordType, recordID, value)
}

func (s *Store) Get(namespace, recordType, recordID string) ([]byte, error) {
	return get(s.db, namespace, recordType, recordID)
}

func (s *Store) List(namespace, recordType string) ([]string, error) {
	var ids []string
	err := s.db.Model(&record{}).
		Where("namespace = ? AND record_type = ?", namespace, recordType).
		Order("record_id").
		Pluck("record_id", &ids).Error
	return ids, err
}

func (s *Store) Delete(namespace, recordType, recordID string) error {
	return del(s.db, namespace, recordType, recordID)
}

func (s *Store) Batch(namespace string, fn func(tx storage.BatchTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&batchTx{db: tx, namespace: namespace})
	})
}

type batchTx struct {
	db        *gorm.DB
	namespace string
}

func (tx *batchTx) Get(recordType, recordID string) ([]byte, error) {
	return get(tx.db, tx.namespace, recordType, recordID)
}

func (tx *batchTx) Put(recordType, recordID string, value []byte) error {
	return put(tx.db, tx.namespace, recordType, recordID, value)
}

func (tx *batchTx) Create(recordType, recordID string, value []byte) error {
	res := tx.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record{Namespace: tx.namespace, RecordType: recordType, RecordID: recordID, Value: nonNil(value)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrAlreadyExists)
	}
	return nil
}

func (tx *batchTx) Delete(recordType, recordID string) error {
	return del(tx.db, tx.namespace, recordType, recordID)
}

func put(db *gorm.DB, namespace, recordType, recordID string, value []byte) error {
	rec := record{Namespace: namespace, RecordType: recordType, RecordID: recordID, Value: nonNil(value)}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func get(db *gorm.DB, namespace, recordType, recordID string) ([]byte, error) {
	var rec record
	err := db.Where("namespace = ? AND record_type = ? AND record_id = ?", namespace, recordType, recordID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func del(db *gorm.DB, namespace, recordType, recordID string) error {
	res := db.Where("namespace = ? AND record_type = ? AND record_id = ?", namespace, recordType, recordID).
		Delete(&record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", recordType, recordID, storage.ErrNotFound)
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
