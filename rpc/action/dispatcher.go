// Package action maps decoded queries to operations on the keyspace engine.
//
// The set of actions is closed: every name resolves through a fixed table to an Action
// kind and a handler. Arity is checked from the table before the handler runs and every
// handler validates its argument types before touching the engine, so a rejected query
// never mutates anything. Handlers are synchronous and never block on I/O, with the
// single exception of MKSNAP which waits for the snapshot it triggers.
package action

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("action")

// --------------------------------------------------------------------------
// Action table
// --------------------------------------------------------------------------

// Action identifies one entry of the dispatch table
type Action uint8

const (
	ActHeya Action = iota
	ActGet
	ActSet
	ActUpdate
	ActDel
	ActExists
	ActLsKeys
	ActDBSize
	ActFlushDB
	ActCreate
	ActDrop
	ActUse
	ActInspect
	ActWhereAmI
	ActMkSnap
	ActSys

	actionCount
)

// names maps the case-sensitive action token to its kind
var names = map[string]Action{
	"HEYA":     ActHeya,
	"GET":      ActGet,
	"SET":      ActSet,
	"UPDATE":   ActUpdate,
	"DEL":      ActDel,
	"EXISTS":   ActExists,
	"LSKEYS":   ActLsKeys,
	"DBSIZE":   ActDBSize,
	"FLUSHDB":  ActFlushDB,
	"CREATE":   ActCreate,
	"DROP":     ActDrop,
	"USE":      ActUse,
	"INSPECT":  ActInspect,
	"WHEREAMI": ActWhereAmI,
	"MKSNAP":   ActMkSnap,
	"SYS":      ActSys,
}

type handlerFunc func(s *Session, args []value.Value) (protocol.Response, error)

type actionDef struct {
	name    string
	minArgs int
	maxArgs int
	fn      handlerFunc
}

var table [actionCount]actionDef

func init() {
	table = [actionCount]actionDef{
		ActHeya:     {"HEYA", 0, 1, (*Session).heya},
		ActGet:      {"GET", 1, 1, (*Session).get},
		ActSet:      {"SET", 2, 2, (*Session).set},
		ActUpdate:   {"UPDATE", 2, 2, (*Session).update},
		ActDel:      {"DEL", 1, 1, (*Session).del},
		ActExists:   {"EXISTS", 1, 1, (*Session).exists},
		ActLsKeys:   {"LSKEYS", 0, 2, (*Session).lskeys},
		ActDBSize:   {"DBSIZE", 0, 1, (*Session).dbsize},
		ActFlushDB:  {"FLUSHDB", 0, 1, (*Session).flushdb},
		ActCreate:   {"CREATE", 2, 3, (*Session).create},
		ActDrop:     {"DROP", 2, 3, (*Session).drop},
		ActUse:      {"USE", 1, 1, (*Session).use},
		ActInspect:  {"INSPECT", 1, 2, (*Session).inspect},
		ActWhereAmI: {"WHEREAMI", 0, 0, (*Session).whereami},
		ActMkSnap:   {"MKSNAP", 0, 0, (*Session).mksnap},
		ActSys:      {"SYS", 2, 2, (*Session).sys},
	}
}

// Lookup resolves an action name
func Lookup(name string) (Action, bool) {
	a, ok := names[name]
	return a, ok
}

func (a Action) String() string {
	if a < actionCount {
		return table[a].name
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// --------------------------------------------------------------------------
// Dispatcher and sessions
// --------------------------------------------------------------------------

// Snapshotter triggers a synchronous snapshot, implemented by persist.Manager
type Snapshotter interface {
	Flush(ctx context.Context) error
}

// Dispatcher holds what every session shares: the engine, the snapshotter and the
// server version reported by HEYA and SYS INFO.
type Dispatcher struct {
	engine  *db.Engine
	snap    Snapshotter
	version string
}

// NewDispatcher creates a dispatcher. snap may be nil when persistence is disabled.
func NewDispatcher(engine *db.Engine, snap Snapshotter, version string) *Dispatcher {
	return &Dispatcher{engine: engine, snap: snap, version: version}
}

// Session is the per connection dispatch state: the currently selected entity.
//
// Thread-safety: a Session belongs to one connection and is not safe for concurrent use.
type Session struct {
	*Dispatcher
	keyspace string
	table    string // empty means no table selected
}

// NewSession creates a session positioned at the default table of the default keyspace
func (d *Dispatcher) NewSession() *Session {
	return &Session{Dispatcher: d, keyspace: d.engine.DefaultKeyspace(), table: db.DefaultTable}
}

// Handle runs one query and returns its response. Every failure is translated into an
// error response, nothing escapes to the connection.
func (s *Session) Handle(q protocol.Query) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("panic while handling %s: %v", q.Action, r)
			resp = protocol.Errorf(protocol.CodeServerError, "internal server error")
		}
	}()

	a, ok := names[q.Action]
	if !ok {
		return ErrorResponse(newError(UnknownAction, "unknown action %q", q.Action))
	}
	def := table[a]
	if n := len(q.Args); n < def.minArgs || n > def.maxArgs {
		return ErrorResponse(newError(WrongArity, "%s takes %s arguments, got %d", def.name, arity(def), n))
	}

	resp, err := def.fn(s, q.Args)
	if err != nil {
		return ErrorResponse(err)
	}
	return resp
}

func arity(def actionDef) string {
	if def.minArgs == def.maxArgs {
		return fmt.Sprint(def.minArgs)
	}
	return fmt.Sprintf("%d to %d", def.minArgs, def.maxArgs)
}
