package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound signals a collection name that is not configured.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidInput signals a request rejected before any mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistFailed signals a ledger mutation that was not durably committed.
	ErrPersistFailed = errors.New("persist failed")
	// ErrLedgerCorrupt signals a ledger file that cannot be decoded or fails its schema.
	ErrLedgerCorrupt = errors.New("ledger corrupt")
)

// PersistError wraps ErrPersistFailed with the last durably known like count.
type PersistError struct {
	ItemID    string
	LastKnown int
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: item %q (last known likes %d): %v",
		ErrPersistFailed.Error(), e.ItemID, e.LastKnown, e.Err)
}

func (e *PersistError) Unwrap() []error { return []error{ErrPersistFailed, e.Err} }

// NewPersistError creates a persist failure for itemID.
func NewPersistError(itemID string, lastKnown int, cause error) error {
	return &PersistError{ItemID: itemID, LastKnown: lastKnown, Err: cause}
}
