package action

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/persist"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/rpc/protocol"
)

var okResponse = protocol.Single(value.Bool(true))

// --------------------------------------------------------------------------
// Argument helpers
// --------------------------------------------------------------------------

// str extracts a str argument
func str(args []value.Value, i int, what string) (string, error) {
	s, ok := args[i].AsString()
	if !ok {
		return "", newError(TypeMismatch, "%s must be str, got %s", what, args[i].Kind())
	}
	return s, nil
}

// current returns the selected table or DefaultUnset
func (s *Session) current() (string, string, error) {
	if s.table == "" {
		return "", "", newError(DefaultUnset, "no table selected in keyspace %q, run USE ks:table", s.keyspace)
	}
	return s.keyspace, s.table, nil
}

// entity resolves an optional entity argument against the session
func (s *Session) entity(args []value.Value, i int) (string, string, error) {
	if i >= len(args) {
		return s.current()
	}
	raw, err := str(args, i, "entity")
	if err != nil {
		return "", "", err
	}
	e, err := db.ParseEntity(raw)
	if err != nil {
		return "", "", err
	}
	e = e.Resolve(s.keyspace)
	return e.Keyspace, e.Table, nil
}

// --------------------------------------------------------------------------
// Data actions
// --------------------------------------------------------------------------

func (s *Session) heya(args []value.Value) (protocol.Response, error) {
	if len(args) == 1 {
		if _, ok := args[0].AsBytes(); !ok {
			return protocol.Response{}, newError(TypeMismatch, "echo must be str or binstr")
		}
		return protocol.Single(args[0]), nil
	}
	return protocol.Single(value.String("HEY!")), nil
}

func (s *Session) get(args []value.Value) (protocol.Response, error) {
	ks, tbl, err := s.current()
	if err != nil {
		return protocol.Response{}, err
	}
	v, ok, err := s.engine.Get(ks, tbl, args[0])
	if err != nil {
		return protocol.Response{}, err
	}
	if !ok {
		return protocol.Single(value.Null()), nil
	}
	return protocol.Single(v), nil
}

func (s *Session) set(args []value.Value) (protocol.Response, error) {
	ks, tbl, err := s.current()
	if err != nil {
		return protocol.Response{}, err
	}
	if err := s.engine.Set(ks, tbl, args[0], args[1]); err != nil {
		return protocol.Response{}, err
	}
	return okResponse, nil
}

func (s *Session) update(args []value.Value) (protocol.Response, error) {
	ks, tbl, err := s.current()
	if err != nil {
		return protocol.Response{}, err
	}
	if err := s.engine.Update(ks, tbl, args[0], args[1]); err != nil {
		return protocol.Response{}, err
	}
	return okResponse, nil
}

func (s *Session) del(args []value.Value) (protocol.Response, error) {
	ks, tbl, err := s.current()
	if err != nil {
		return protocol.Response{}, err
	}
	if err := s.engine.Delete(ks, tbl, args[0]); err != nil {
		return protocol.Response{}, err
	}
	return okResponse, nil
}

func (s *Session) exists(args []value.Value) (protocol.Response, error) {
	ks, tbl, err := s.current()
	if err != nil {
		return protocol.Response{}, err
	}
	ok, err := s.engine.Exists(ks, tbl, args[0])
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Single(value.Bool(ok)), nil
}

// lskeys accepts [entity] [limit] where a single argument is a limit if it is an
// unsigned integer and an entity otherwise.
func (s *Session) lskeys(args []value.Value) (protocol.Response, error) {
	limit := 0
	if n := len(args); n > 0 {
		if l, ok := args[n-1].AsUint(); ok {
			limit = int(l)
			args = args[:n-1]
		} else if n == 2 {
			return protocol.Response{}, newError(TypeMismatch, "limit must be an unsigned integer, got %s", args[1].Kind())
		}
	}
	if limit < 0 {
		return protocol.Response{}, newError(BadExpression, "limit out of range")
	}
	ks, tbl, err := s.entity(args, 0)
	if err != nil {
		return protocol.Response{}, err
	}
	keys, err := s.engine.Keys(ks, tbl, limit)
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.ListOf(keys), nil
}

func (s *Session) dbsize(args []value.Value) (protocol.Response, error) {
	ks, tbl, err := s.entity(args, 0)
	if err != nil {
		return protocol.Response{}, err
	}
	n, err := s.engine.Count(ks, tbl)
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Single(value.Uint64(uint64(n))), nil
}

func (s *Session) flushdb(args []value.Value) (protocol.Response, error) {
	ks, tbl, err := s.entity(args, 0)
	if err != nil {
		return protocol.Response{}, err
	}
	if err := s.engine.Clear(ks, tbl); err != nil {
		return protocol.Response{}, err
	}
	return okResponse, nil
}

// --------------------------------------------------------------------------
// Structural actions
// --------------------------------------------------------------------------

// create handles CREATE KEYSPACE <ks> and CREATE TABLE <entity> <model>
func (s *Session) create(args []value.Value) (protocol.Response, error) {
	what, err := str(args, 0, "object kind")
	if err != nil {
		return protocol.Response{}, err
	}
	switch what {
	case "KEYSPACE":
		if len(args) != 2 {
			return protocol.Response{}, newError(WrongArity, "CREATE KEYSPACE takes a name")
		}
		name, err := str(args, 1, "keyspace")
		if err != nil {
			return protocol.Response{}, err
		}
		return okResponse, s.engine.CreateKeyspace(name)
	case "TABLE":
		if len(args) != 3 {
			return protocol.Response{}, newError(WrongArity, "CREATE TABLE takes an entity and a model")
		}
		expr, err := str(args, 2, "model")
		if err != nil {
			return protocol.Response{}, err
		}
		model, err := db.ParseModel(expr)
		if err != nil {
			return protocol.Response{}, err
		}
		ks, tbl, err := s.entity(args, 1)
		if err != nil {
			return protocol.Response{}, err
		}
		return okResponse, s.engine.CreateTable(ks, tbl, model)
	}
	return protocol.Response{}, newError(BadExpression, "CREATE expects KEYSPACE or TABLE, got %q", what)
}

// drop handles DROP KEYSPACE <ks> [FORCE] and DROP TABLE <entity>
func (s *Session) drop(args []value.Value) (protocol.Response, error) {
	what, err := str(args, 0, "object kind")
	if err != nil {
		return protocol.Response{}, err
	}
	switch what {
	case "KEYSPACE":
		name, err := str(args, 1, "keyspace")
		if err != nil {
			return protocol.Response{}, err
		}
		force := false
		if len(args) == 3 {
			opt, err := str(args, 2, "option")
			if err != nil {
				return protocol.Response{}, err
			}
			if opt != "FORCE" {
				return protocol.Response{}, newError(BadExpression, "unknown option %q", opt)
			}
			force = true
		}
		if err := s.engine.DropKeyspace(name, force); err != nil {
			return protocol.Response{}, err
		}
		if s.keyspace == name {
			s.keyspace, s.table = s.engine.DefaultKeyspace(), db.DefaultTable
		}
		return okResponse, nil
	case "TABLE":
		if len(args) != 2 {
			return protocol.Response{}, newError(WrongArity, "DROP TABLE takes an entity")
		}
		ks, tbl, err := s.entity(args, 1)
		if err != nil {
			return protocol.Response{}, err
		}
		if err := s.engine.DropTable(ks, tbl); err != nil {
			return protocol.Response{}, err
		}
		if s.keyspace == ks && s.table == tbl {
			s.table = ""
		}
		return okResponse, nil
	}
	return protocol.Response{}, newError(BadExpression, "DROP expects KEYSPACE or TABLE, got %q", what)
}

// --------------------------------------------------------------------------
// Session and introspection actions
// --------------------------------------------------------------------------

// use selects `ks:tbl`, or `ks` together with its default table if it has one
func (s *Session) use(args []value.Value) (protocol.Response, error) {
	raw, err := str(args, 0, "entity")
	if err != nil {
		return protocol.Response{}, err
	}
	e, err := db.ParseEntity(raw)
	if err != nil {
		return protocol.Response{}, err
	}

	if e.Keyspace == "" {
		// a bare name selects a keyspace
		if !s.engine.HasKeyspace(e.Table) {
			return protocol.Response{}, db.NewError(db.CodeNotFound, "keyspace %q does not exist", e.Table)
		}
		s.keyspace, s.table = e.Table, ""
		if _, err := s.engine.TableModel(e.Table, db.DefaultTable); err == nil {
			s.table = db.DefaultTable
		}
		return okResponse, nil
	}

	if _, err := s.engine.TableModel(e.Keyspace, e.Table); err != nil {
		return protocol.Response{}, err
	}
	s.keyspace, s.table = e.Keyspace, e.Table
	return okResponse, nil
}

func (s *Session) whereami([]value.Value) (protocol.Response, error) {
	out := []value.Value{value.String(s.keyspace)}
	if s.table != "" {
		out = append(out, value.String(s.table))
	}
	return protocol.ListOf(out), nil
}

// inspect handles INSPECT KEYSPACES, INSPECT KEYSPACE [ks] and INSPECT TABLE [entity]
func (s *Session) inspect(args []value.Value) (protocol.Response, error) {
	what, err := str(args, 0, "object kind")
	if err != nil {
		return protocol.Response{}, err
	}
	switch what {
	case "KEYSPACES":
		if len(args) != 1 {
			return protocol.Response{}, newError(WrongArity, "INSPECT KEYSPACES takes no arguments")
		}
		return protocol.ListOf(strValues(s.engine.Keyspaces())), nil
	case "KEYSPACE":
		ks := s.keyspace
		if len(args) == 2 {
			if ks, err = str(args, 1, "keyspace"); err != nil {
				return protocol.Response{}, err
			}
		}
		tables, err := s.engine.Tables(ks)
		if err != nil {
			return protocol.Response{}, err
		}
		return protocol.ListOf(strValues(tables)), nil
	case "TABLE":
		ks, tbl, err := s.entity(args, 1)
		if err != nil {
			return protocol.Response{}, err
		}
		m, err := s.engine.TableModel(ks, tbl)
		if err != nil {
			return protocol.Response{}, err
		}
		return protocol.Single(value.String(m.String())), nil
	}
	return protocol.Response{}, newError(BadExpression, "INSPECT expects KEYSPACES, KEYSPACE or TABLE, got %q", what)
}

func (s *Session) mksnap([]value.Value) (protocol.Response, error) {
	if s.snap == nil {
		return protocol.Response{}, persist.ErrSnapshotDisabled
	}
	if err := s.snap.Flush(context.Background()); err != nil {
		return protocol.Response{}, err
	}
	return okResponse, nil
}

// sys handles SYS INFO <version|keyspaces|tables|entries|size>
func (s *Session) sys(args []value.Value) (protocol.Response, error) {
	what, err := str(args, 0, "object kind")
	if err != nil {
		return protocol.Response{}, err
	}
	if what != "INFO" {
		return protocol.Response{}, newError(BadExpression, "SYS expects INFO, got %q", what)
	}
	prop, err := str(args, 1, "property")
	if err != nil {
		return protocol.Response{}, err
	}

	if prop == "version" {
		return protocol.Single(value.String(s.version)), nil
	}
	info := s.engine.Info()
	switch prop {
	case "keyspaces":
		return protocol.Single(value.Uint64(uint64(info.Keyspaces))), nil
	case "tables":
		return protocol.Single(value.Uint64(uint64(info.Tables))), nil
	case "entries":
		return protocol.Single(value.Uint64(uint64(info.Entries))), nil
	case "size":
		return protocol.Single(value.Uint64(uint64(info.SizeBytes))), nil
	case "distribution":
		d := info.TableDistribution
		return protocol.Single(value.String(fmt.Sprintf("quality=%.3f mean=%.1f min=%.0f max=%.0f stddev=%.1f",
			d.DistributionQuality, d.Mean, d.Min, d.Max, d.StdDeviation))), nil
	}
	return protocol.Response{}, newError(BadExpression, "unknown property %q", prop)
}

func strValues(names []string) []value.Value {
	out := make([]value.Value, len(names))
	for i, n := range names {
		out[i] = value.String(n)
	}
	return out
}
