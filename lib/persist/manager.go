package persist

import (
	"context"
	"sync"
	"time"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger("persist")

var (
	// ErrSnapshotBusy is returned by Flush while another snapshot is being written
	ErrSnapshotBusy = errors.New("snapshot already in progress")

	// ErrSnapshotDisabled is returned when a snapshot is requested without persistence
	ErrSnapshotDisabled = errors.New("persistence is disabled")
)

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// RecoverOptions controls startup recovery
type RecoverOptions struct {
	// DefaultKeyspace overrides the default keyspace recorded in the snapshot
	DefaultKeyspace string

	// BootstrapFresh starts with an empty engine instead of failing when the
	// snapshot cannot be read
	BootstrapFresh bool
}

// Recover rebuilds the engine from the store's latest snapshot. Without a snapshot a
// fresh engine in its boot state is returned. An unreadable snapshot is an error that
// wraps ErrCorruptSnapshot unless BootstrapFresh is set.
func Recover(store ISnapshotStore, opts RecoverOptions) (*db.Engine, error) {
	fresh := func() *db.Engine { return db.New(db.Options{DefaultKeyspace: opts.DefaultKeyspace}) }

	data, err := store.Read()
	if errors.Is(err, ErrNoSnapshot) {
		Logger.Infof("no snapshot at %s, starting with an empty engine", store.Path())
		return fresh(), nil
	}
	if err != nil {
		return nil, err
	}

	img, err := Decode(data)
	var engine *db.Engine
	if err == nil {
		if opts.DefaultKeyspace != "" {
			img.DefaultKeyspace = opts.DefaultKeyspace
		}
		engine, err = db.NewFromImage(img)
		if err != nil {
			err = errors.Wrapf(ErrCorruptSnapshot, "rebuild engine: %v", err)
		}
	}
	if err != nil {
		if opts.BootstrapFresh {
			Logger.Warningf("discarding unreadable snapshot %s: %v", store.Path(), err)
			return fresh(), nil
		}
		return nil, err
	}

	Logger.Infof("recovered %d entries in %d keyspaces from %s (%d bytes)", img.Entries(), len(img.Keyspaces), store.Path(), len(data))
	return engine, nil
}

// --------------------------------------------------------------------------
// Manager
// --------------------------------------------------------------------------

// Result describes one finished snapshot attempt, reported through Manager.OnSnapshot
type Result struct {
	Duration time.Duration
	Size     int
	Err      error
}

// Manager triggers snapshots of one engine into one store: periodically from Run,
// on demand from Flush and a final time from Close.
//
// Thread-safety: all methods are safe for concurrent use. At most one snapshot is
// written at a time.
type Manager struct {
	store    ISnapshotStore
	engine   *db.Engine
	interval time.Duration

	mu      sync.Mutex // held while a snapshot is written
	lastMod uint64     // engine ModCount at the last successful snapshot, guarded by mu
	saved   bool       // guarded by mu

	// OnSnapshot is called after every attempt, it must be set before Run
	OnSnapshot func(Result)
}

// NewManager creates a manager. An interval <= 0 disables periodic snapshots.
func NewManager(store ISnapshotStore, engine *db.Engine, interval time.Duration) *Manager {
	return &Manager{store: store, engine: engine, interval: interval}
}

// Flush writes a snapshot now. It fails with ErrSnapshotBusy instead of waiting if
// another snapshot is in progress.
func (m *Manager) Flush(ctx context.Context) error {
	if !m.mu.TryLock() {
		return ErrSnapshotBusy
	}
	defer m.mu.Unlock()
	return m.snapshot(ctx)
}

// Run writes a snapshot every interval until ctx is cancelled. Ticks without any
// mutation since the last snapshot are skipped, failures are logged and retried on
// the next tick.
func (m *Manager) Run(ctx context.Context) error {
	if m.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !m.mu.TryLock() {
				Logger.Debugf("skipping periodic snapshot, another one is running")
				continue
			}
			if m.saved && m.lastMod == m.engine.ModCount() {
				m.mu.Unlock()
				continue
			}
			if err := m.snapshot(ctx); err != nil {
				Logger.Errorf("periodic snapshot failed: %v", err)
			}
			m.mu.Unlock()
		}
	}
}

// Close waits for a running snapshot, writes the final one and closes the store.
// A failure here means writes since the last snapshot are lost and is returned.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.snapshot(ctx)
	if cerr := m.store.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "close snapshot store")
	}
	return err
}

// Discard closes the store without writing a snapshot. It is used when startup
// fails before the engine served any query.
func (m *Manager) Discard() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Close()
}

// snapshot must be called with mu held
func (m *Manager) snapshot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	mod := m.engine.ModCount()

	data, err := Save(m.engine)
	if err == nil {
		err = m.store.Write(data)
	}

	res := Result{Duration: time.Since(start), Size: len(data), Err: err}
	if m.OnSnapshot != nil {
		m.OnSnapshot(res)
	}
	if err != nil {
		return errors.Wrapf(err, "snapshot to %s", m.store.Path())
	}

	m.lastMod, m.saved = mod, true
	Logger.Infof("wrote snapshot to %s (%d bytes, %v)", m.store.Path(), res.Size, res.Duration)
	return nil
}
