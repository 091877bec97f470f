package db

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/sKV/lib/db/util"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Core structures
// --------------------------------------------------------------------------

// Engine is the root of the keyspace tree. It exclusively owns its keyspaces, which
// exclusively own their tables. All access goes through methods on the Engine, callers
// never hold references into the tree.
//
// Locking:
//   - world is held shared by every mutation and exclusively by Snapshot, which gives
//     persistence a brief consistent read section
//   - ddlMu serializes keyspace create/drop, Keyspace.mu serializes table create/drop
//     within one keyspace (lock order: ddlMu before Keyspace.mu)
//   - per key atomicity comes from xsync.MapOf.Compute inside each table
type Engine struct {
	world sync.RWMutex
	ddlMu sync.Mutex

	seed            uint64
	defaultKeyspace string
	keyspaces       *xsync.MapOf[string, *keyspace]

	// incremented on every successful mutation, read by the snapshot scheduler
	modCount atomic.Uint64
}

type keyspace struct {
	mu        sync.Mutex
	name      string
	protected bool
	system    bool
	dropped   bool // guarded by mu
	tables    *xsync.MapOf[string, *table]
}

type table struct {
	name  string
	model Model
	data  *xsync.MapOf[string, value.Value]
}

// Options configures a new Engine
type Options struct {
	DefaultKeyspace string // name of the protected default keyspace ("" = DefaultKeyspace)
}

// New creates an engine in its boot state: the protected default keyspace with the
// default table and the protected system keyspace.
func New(opts Options) *Engine {
	if opts.DefaultKeyspace == "" {
		opts.DefaultKeyspace = DefaultKeyspace
	}
	e := &Engine{
		seed:            util.GenerateSeed(),
		defaultKeyspace: opts.DefaultKeyspace,
		keyspaces:       xsync.NewMapOf[string, *keyspace](),
	}
	e.bootstrap()
	return e
}

// bootstrap makes sure the mandatory objects exist. It is idempotent.
func (e *Engine) bootstrap() {
	sys, _ := e.keyspaces.LoadOrStore(SystemKeyspace, e.newKeyspace(SystemKeyspace))
	sys.protected, sys.system = true, true

	def, _ := e.keyspaces.LoadOrStore(e.defaultKeyspace, e.newKeyspace(e.defaultKeyspace))
	def.protected = true
	def.tables.LoadOrStore(DefaultTable, e.newTable(DefaultTable, MustParseModel(DefaultModel)))
}

func (e *Engine) newKeyspace(name string) *keyspace {
	return &keyspace{name: name, tables: xsync.NewMapOf[string, *table]()}
}

func (e *Engine) newTable(name string, m Model) *table {
	return &table{
		name:  name,
		model: m,
		data:  xsync.NewMapOfWithHasher[string, value.Value](util.NewKeyHasher(e.seed)),
	}
}

// DefaultKeyspace returns the name of the protected default keyspace
func (e *Engine) DefaultKeyspace() string { return e.defaultKeyspace }

// ModCount returns a counter that changes whenever the engine is mutated
func (e *Engine) ModCount() uint64 { return e.modCount.Load() }

// --------------------------------------------------------------------------
// Lookup helpers
// --------------------------------------------------------------------------

func (e *Engine) keyspace(name string) (*keyspace, error) {
	ks, ok := e.keyspaces.Load(name)
	if !ok {
		return nil, NewError(CodeNotFound, "keyspace %q does not exist", name)
	}
	return ks, nil
}

func (e *Engine) table(ks, tbl string) (*table, error) {
	k, err := e.keyspace(ks)
	if err != nil {
		return nil, err
	}
	t, ok := k.tables.Load(tbl)
	if !ok {
		return nil, NewError(CodeNotFound, "table %q does not exist in keyspace %q", tbl, ks)
	}
	return t, nil
}

// --------------------------------------------------------------------------
// Structural operations
// --------------------------------------------------------------------------

// CreateKeyspace creates an empty keyspace.
//
// Thread-safety: serialized against other keyspace create/drop calls only.
func (e *Engine) CreateKeyspace(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	e.world.RLock()
	defer e.world.RUnlock()
	e.ddlMu.Lock()
	defer e.ddlMu.Unlock()

	if _, loaded := e.keyspaces.LoadOrStore(name, e.newKeyspace(name)); loaded {
		return NewError(CodeAlreadyExists, "keyspace %q already exists", name)
	}
	e.modCount.Add(1)
	Logger.Debugf("created keyspace %s", name)
	return nil
}

// DropKeyspace removes a keyspace. A keyspace that still holds tables is only removed
// when force is set, in which case its tables and their entries are dropped with it.
//
// Thread-safety: serialized against keyspace create/drop and table create/drop in the
// same keyspace.
func (e *Engine) DropKeyspace(name string, force bool) error {
	e.world.RLock()
	defer e.world.RUnlock()
	e.ddlMu.Lock()
	defer e.ddlMu.Unlock()

	ks, err := e.keyspace(name)
	if err != nil {
		return err
	}
	if ks.protected || name == e.defaultKeyspace {
		return NewError(CodeProtectedObject, "keyspace %q is protected", name)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.tables.Size() > 0 && !force {
		return NewError(CodeNotEmpty, "keyspace %q still has %d tables", name, ks.tables.Size())
	}
	ks.dropped = true
	e.keyspaces.Delete(name)
	e.modCount.Add(1)
	Logger.Debugf("dropped keyspace %s", name)
	return nil
}

// CreateTable creates an empty table with the given model
//
// Thread-safety: serialized against table create/drop in the same keyspace only.
func (e *Engine) CreateTable(ks, tbl string, m Model) error {
	if err := ValidateName(tbl); err != nil {
		return err
	}

	e.world.RLock()
	defer e.world.RUnlock()

	k, err := e.keyspace(ks)
	if err != nil {
		return err
	}
	if k.system {
		return NewError(CodeProtectedObject, "keyspace %q is protected", ks)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.dropped {
		return NewError(CodeNotFound, "keyspace %q does not exist", ks)
	}
	if _, loaded := k.tables.LoadOrStore(tbl, e.newTable(tbl, m)); loaded {
		return NewError(CodeAlreadyExists, "table %q already exists in keyspace %q", tbl, ks)
	}
	e.modCount.Add(1)
	Logger.Debugf("created table %s:%s %s", ks, tbl, m)
	return nil
}

// DropTable removes a table together with all of its entries
//
// Thread-safety: serialized against table create/drop in the same keyspace only.
func (e *Engine) DropTable(ks, tbl string) error {
	e.world.RLock()
	defer e.world.RUnlock()

	k, err := e.keyspace(ks)
	if err != nil {
		return err
	}
	if k.system || (ks == e.defaultKeyspace && tbl == DefaultTable) {
		return NewError(CodeProtectedObject, "table %s:%s is protected", ks, tbl)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.tables.LoadAndDelete(tbl); !ok {
		return NewError(CodeNotFound, "table %q does not exist in keyspace %q", tbl, ks)
	}
	e.modCount.Add(1)
	Logger.Debugf("dropped table %s:%s", ks, tbl)
	return nil
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// Keyspaces returns all keyspace names in sorted order
func (e *Engine) Keyspaces() []string {
	names := make([]string, 0, e.keyspaces.Size())
	e.keyspaces.Range(func(name string, _ *keyspace) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Tables returns the table names of a keyspace in sorted order
func (e *Engine) Tables(ks string) ([]string, error) {
	k, err := e.keyspace(ks)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, k.tables.Size())
	k.tables.Range(func(name string, _ *table) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names, nil
}

// HasKeyspace reports whether a keyspace exists
func (e *Engine) HasKeyspace(ks string) bool {
	_, ok := e.keyspaces.Load(ks)
	return ok
}

// TableModel returns the model a table was created with
func (e *Engine) TableModel(ks, tbl string) (Model, error) {
	t, err := e.table(ks, tbl)
	if err != nil {
		return Model{}, err
	}
	return t.model, nil
}
