package persist_test

import (
	"testing"

	"github.com/ValentinKolb/sKV/lib/persist"
	persisttesting "github.com/ValentinKolb/sKV/lib/persist/testing"
)

func TestStores(t *testing.T) {
	persisttesting.RunSnapshotStoreTests(t, "FileStore", func(dir string) (persist.ISnapshotStore, error) {
		return persist.NewFileStore(dir)
	})

	persisttesting.RunSnapshotStoreTests(t, "BoltStore", func(dir string) (persist.ISnapshotStore, error) {
		return persist.NewBoltStore(dir, 3)
	})
}
