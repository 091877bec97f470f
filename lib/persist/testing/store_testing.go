// Package testing provides a conformance suite for persist.ISnapshotStore
// implementations. Every store runs the same tests through RunSnapshotStoreTests.
package testing

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/sKV/lib/persist"
)

// StoreFactory opens a store in dir. Opening the same dir twice must see the same data.
type StoreFactory func(dir string) (persist.ISnapshotStore, error)

// RunSnapshotStoreTests runs the conformance suite against a store implementation
func RunSnapshotStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("EmptyRead", func(t *testing.T) {
			testEmptyRead(t, factory)
		})

		t.Run("WriteRead", func(t *testing.T) {
			testWriteRead(t, factory)
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory)
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})

		t.Run("LargeSnapshot", func(t *testing.T) {
			testLargeSnapshot(t, factory)
		})

		t.Run("ConcurrentReaders", func(t *testing.T) {
			testConcurrentReaders(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func open(t *testing.T, factory StoreFactory, dir string) persist.ISnapshotStore {
	t.Helper()
	store, err := factory(dir)
	if err != nil {
		t.Fatalf("Failed to open store in %s: %v", dir, err)
	}
	return store
}

func mustRead(t *testing.T, store persist.ISnapshotStore) []byte {
	t.Helper()
	data, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return data
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testEmptyRead(t *testing.T, factory StoreFactory) {
	store := open(t, factory, t.TempDir())
	defer store.Close()

	if _, err := store.Read(); !errors.Is(err, persist.ErrNoSnapshot) {
		t.Errorf("Expected ErrNoSnapshot from an empty store, got %v", err)
	}
}

func testWriteRead(t *testing.T, factory StoreFactory) {
	store := open(t, factory, t.TempDir())
	defer store.Close()

	want := []byte("snapshot-1")
	if err := store.Write(want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got := mustRead(t, store)
	if !bytes.Equal(got, want) {
		t.Errorf("Expected %q, got %q", want, got)
	}

	// the returned slice must not alias store memory
	got[0] = 'X'
	if again := mustRead(t, store); !bytes.Equal(again, want) {
		t.Errorf("Modifying a read result changed the store: %q", again)
	}
}

func testOverwrite(t *testing.T, factory StoreFactory) {
	store := open(t, factory, t.TempDir())
	defer store.Close()

	for i := 0; i < 5; i++ {
		data := []byte{byte(i), byte(i), byte(i)}
		if err := store.Write(data); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
		if got := mustRead(t, store); !bytes.Equal(got, data) {
			t.Errorf("Write %d: expected %v, got %v", i, data, got)
		}
	}
}

func testReopen(t *testing.T, factory StoreFactory) {
	dir := t.TempDir()
	store := open(t, factory, dir)
	want := []byte("durable")
	if err := store.Write(want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := open(t, factory, dir)
	defer reopened.Close()
	if got := mustRead(t, reopened); !bytes.Equal(got, want) {
		t.Errorf("Expected %q after reopen, got %q", want, got)
	}
}

func testLargeSnapshot(t *testing.T, factory StoreFactory) {
	store := open(t, factory, t.TempDir())
	defer store.Close()

	want := bytes.Repeat([]byte("0123456789abcdef"), 1<<16) // 1 MiB
	if err := store.Write(want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := mustRead(t, store); !bytes.Equal(got, want) {
		t.Errorf("Large snapshot differs after read (len %d vs %d)", len(got), len(want))
	}
}

// testConcurrentReaders checks that readers always observe a complete snapshot
// while a writer replaces it
func testConcurrentReaders(t *testing.T, factory StoreFactory) {
	store := open(t, factory, t.TempDir())
	defer store.Close()

	a := bytes.Repeat([]byte{'a'}, 4096)
	b := bytes.Repeat([]byte{'b'}, 4096)
	if err := store.Write(a); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			data := a
			if i%2 == 0 {
				data = b
			}
			if err := store.Write(data); err != nil {
				t.Errorf("Write failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		got, err := store.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !bytes.Equal(got, a) && !bytes.Equal(got, b) {
			t.Fatalf("Read returned a mixed snapshot")
		}
	}
	wg.Wait()
}
