package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// RecordTypeSequence holds the per-namespace ID counters used by NextID.
const RecordTypeSequence = "SEQ"

// NextID increments and returns the counter for recordType. The first ID
// handed out is 1. Counters never go backwards, even after deletes.
func NextID(tx BatchTx, recordType string) (uint64, error) {
	var current uint64
	raw, err := tx.Get(RecordTypeSequence, recordType)
	switch {
	case err == nil:
		if len(raw) != 8 {
			return 0, fmt.Errorf("corrupt sequence %q: %d bytes", recordType, len(raw))
		}
		current = binary.BigEndian.Uint64(raw)
	case errors.Is(err, ErrNotFound):
	default:
		return 0, err
	}

	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := tx.Put(RecordTypeSequence, recordType, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// FormatID renders a numeric ID as a fixed-width record ID so that key order
// matches numeric order.
func FormatID(id uint64) string {
	return fmt.Sprintf("%020d", id)
}

// ParseID is the inverse of FormatID.
func ParseID(recordID string) (uint64, error) {
	return strconv.ParseUint(recordID, 10, 64)
}
