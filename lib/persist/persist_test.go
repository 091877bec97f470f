package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *db.Engine {
	t.Helper()
	e := db.New(db.Options{})
	require.NoError(t, e.CreateKeyspace("ks1"))
	require.NoError(t, e.CreateTable("ks1", "t1", db.MustParseModel("keymap(str,str)")))
	require.NoError(t, e.CreateTable("ks1", "nums", db.MustParseModel("keymap(binstr,list<int>)")))
	require.NoError(t, e.Set("ks1", "t1", value.String("a"), value.String("1")))
	require.NoError(t, e.Set("ks1", "t1", value.String("b"), value.String("2")))
	require.NoError(t, e.Set("ks1", "nums", value.Binary([]byte{0xff}), value.List(value.Int8(1), value.Int64(-2))))
	require.NoError(t, e.Set(db.DefaultKeyspace, db.DefaultTable, value.String("k"), value.Binary([]byte("v"))))
	return e
}

// requireSameContents compares two engines through their public view
func requireSameContents(t *testing.T, want, got *db.Engine) {
	t.Helper()
	require.Equal(t, want.Keyspaces(), got.Keyspaces())
	for _, ks := range want.Keyspaces() {
		wantTables, err := want.Tables(ks)
		require.NoError(t, err)
		gotTables, err := got.Tables(ks)
		require.NoError(t, err)
		require.Equal(t, wantTables, gotTables, "tables of %s", ks)

		for _, tbl := range wantTables {
			wm, _ := want.TableModel(ks, tbl)
			gm, _ := got.TableModel(ks, tbl)
			require.Equal(t, wm, gm)

			keys, err := want.Keys(ks, tbl, 0)
			require.NoError(t, err)
			n, _ := got.Count(ks, tbl)
			require.Equal(t, len(keys), n, "entries of %s:%s", ks, tbl)
			for _, k := range keys {
				wv, _, _ := want.Get(ks, tbl, k)
				gv, ok, err := got.Get(ks, tbl, k)
				require.NoError(t, err)
				require.True(t, ok, "key %s missing in %s:%s", k, ks, tbl)
				require.True(t, wv.Equal(gv), "key %s: want %s got %s", k, wv, gv)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Format
// --------------------------------------------------------------------------

func TestSaveLoad(t *testing.T) {
	e := newEngine(t)
	data, err := Save(e)
	require.NoError(t, err)

	restored, err := Load(data)
	require.NoError(t, err)
	requireSameContents(t, e, restored)

	// encoding is deterministic for equal contents
	again, err := Save(restored)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestLoadEmptyEngine(t *testing.T) {
	data, err := Save(db.New(db.Options{}))
	require.NoError(t, err)
	restored, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, []string{db.DefaultKeyspace, db.SystemKeyspace}, restored.Keyspaces())
}

// TestSnapshotDurability checks that writes after Save are not part of the snapshot
func TestSnapshotDurability(t *testing.T) {
	e := newEngine(t)
	data, err := Save(e)
	require.NoError(t, err)

	require.NoError(t, e.Set("ks1", "t1", value.String("late"), value.String("x")))
	require.NoError(t, e.Delete("ks1", "t1", value.String("a")))

	restored, err := Load(data)
	require.NoError(t, err)
	_, ok, _ := restored.Get("ks1", "t1", value.String("late"))
	assert.False(t, ok)
	_, ok, _ = restored.Get("ks1", "t1", value.String("a"))
	assert.True(t, ok)
}

func TestCorruptSnapshot(t *testing.T) {
	data, err := Save(newEngine(t))
	require.NoError(t, err)

	mutate := func(fn func(b []byte) []byte) []byte {
		return fn(append([]byte(nil), data...))
	}
	cases := map[string][]byte{
		"empty":        {},
		"bad tag":      mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"bad version":  mutate(func(b []byte) []byte { b[len(magic)] = 99; return b }),
		"flipped byte": mutate(func(b []byte) []byte { b[len(b)/2] ^= 0x01; return b }),
		"bad checksum": mutate(func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }),
		"truncated":    mutate(func(b []byte) []byte { return b[:len(b)-3] }),
		"half":         mutate(func(b []byte) []byte { return b[:len(b)/2] }),
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(corrupt)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

// --------------------------------------------------------------------------
// File store crash safety
// --------------------------------------------------------------------------

// TestAtomicPublish simulates a crash in the middle of writing a snapshot: the
// canonical file keeps the previous snapshot and the temp file does not survive.
func TestAtomicPublish(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	e := newEngine(t)
	old, err := Save(e)
	require.NoError(t, err)
	require.NoError(t, store.Write(old))

	require.NoError(t, e.Set("ks1", "t1", value.String("c"), value.String("3")))
	next, err := Save(e)
	require.NoError(t, err)

	fs := store.(*fileStore)
	fs.writeFn = func(f *os.File, data []byte) error {
		if _, err := f.Write(data[:len(data)/2]); err != nil {
			return err
		}
		return errors.New("simulated crash")
	}
	require.Error(t, store.Write(next))

	data, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, old, data)
	restored, err := Load(data)
	require.NoError(t, err)
	_, ok, _ := restored.Get("ks1", "t1", value.String("c"))
	assert.False(t, ok)

	matches, _ := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	assert.Empty(t, matches, "failed write must not leave temp files")
}

// TestCrashBeforeFirstSnapshot checks that a half written temp file from a killed
// process is ignored and cleaned up, leaving the fresh boot state
func TestCrashBeforeFirstSnapshot(t *testing.T) {
	dir := t.TempDir()
	data, err := Save(newEngine(t))
	require.NoError(t, err)
	stale := filepath.Join(dir, tempPrefix+"12345")
	require.NoError(t, os.WriteFile(stale, data[:len(data)/2], 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale temp file must be removed")

	e, err := Recover(store, RecoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{db.DefaultKeyspace, db.SystemKeyspace}, e.Keyspaces())
}

func TestBoltHistory(t *testing.T) {
	store, err := NewBoltStore(t.TempDir(), 2)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Write([]byte(fmt.Sprint(i))))
	}
	hist, err := store.(*boltStore).History()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("3"), []byte("4")}, hist)

	latest, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("4"), latest)
}

// --------------------------------------------------------------------------
// Recovery and manager
// --------------------------------------------------------------------------

func TestRecover(t *testing.T) {
	t.Run("fresh install", func(t *testing.T) {
		store, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		e, err := Recover(store, RecoverOptions{DefaultKeyspace: "app"})
		require.NoError(t, err)
		assert.Equal(t, "app", e.DefaultKeyspace())
		tables, err := e.Tables("app")
		require.NoError(t, err)
		assert.Equal(t, []string{db.DefaultTable}, tables)
	})

	t.Run("corrupt is fatal", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte("garbage-garbage-garbage"), 0o644))
		store, err := NewFileStore(dir)
		require.NoError(t, err)
		_, err = Recover(store, RecoverOptions{})
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("corrupt with bootstrap fresh", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte("garbage-garbage-garbage"), 0o644))
		store, err := NewFileStore(dir)
		require.NoError(t, err)
		e, err := Recover(store, RecoverOptions{BootstrapFresh: true})
		require.NoError(t, err)
		assert.True(t, e.HasKeyspace(db.DefaultKeyspace))
	})

	t.Run("restart", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(dir)
		require.NoError(t, err)
		e := newEngine(t)
		require.NoError(t, NewManager(store, e, 0).Close(context.Background()))

		reopened, err := NewFileStore(dir)
		require.NoError(t, err)
		restored, err := Recover(reopened, RecoverOptions{})
		require.NoError(t, err)
		requireSameContents(t, e, restored)
	})
}

// blockingStore blocks every Write until release is closed
type blockingStore struct {
	ISnapshotStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) Write(data []byte) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.ISnapshotStore.Write(data)
}

func TestManagerFlushBusy(t *testing.T) {
	inner, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := &blockingStore{ISnapshotStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(store, newEngine(t), 0)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Flush(context.Background()) }()
	<-store.entered

	assert.ErrorIs(t, m.Flush(context.Background()), ErrSnapshotBusy)
	close(store.release)
	require.NoError(t, <-errCh)
	require.NoError(t, m.Flush(context.Background()))
}

func TestManagerRun(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	e := newEngine(t)
	m := NewManager(store, e, 10*time.Millisecond)

	var (
		mu      sync.Mutex
		results []Result
	)
	m.OnSnapshot = func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(results)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	// without writes the following ticks are skipped
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, count())

	require.NoError(t, e.Set("ks1", "t1", value.String("z"), value.String("26")))
	require.Eventually(t, func() bool { return count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	data, err := store.Read()
	require.NoError(t, err)
	restored, err := Load(data)
	require.NoError(t, err)
	_, ok, _ := restored.Get("ks1", "t1", value.String("z"))
	assert.True(t, ok)
}
