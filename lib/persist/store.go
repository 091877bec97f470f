package persist

import (
	"fmt"
	"strings"
)

// ISnapshotStore publishes and retrieves snapshot blobs.
//
// Write must be atomic: after a crash at any point during Write, Read returns either
// the previously published snapshot or the new one, never a mix. Read returns
// ErrNoSnapshot if nothing was published yet.
type ISnapshotStore interface {
	// Write atomically replaces the published snapshot
	Write(data []byte) error

	// Read returns the most recently published snapshot
	Read() ([]byte, error)

	// Path returns where the store keeps its data, for log messages
	Path() string

	// Close releases the store
	Close() error
}

// Backend names a store implementation
type Backend string

const (
	BackendFile Backend = "file"
	BackendBolt Backend = "bolt"
)

// ParseBackend parses a backend name
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case BackendFile, BackendBolt:
		return b, nil
	}
	return "", fmt.Errorf("unknown snapshot backend %q (supported: %s, %s)", s, BackendFile, BackendBolt)
}

// OpenStore opens the store for the given backend inside dir
func OpenStore(backend Backend, dir string, keep int) (ISnapshotStore, error) {
	switch backend {
	case BackendFile:
		return NewFileStore(dir)
	case BackendBolt:
		return NewBoltStore(dir, keep)
	}
	return nil, fmt.Errorf("unknown snapshot backend %q", backend)
}
