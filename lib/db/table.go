package db

import (
	"sort"

	"github.com/ValentinKolb/sKV/lib/value"
)

// --------------------------------------------------------------------------
// Data operations
// --------------------------------------------------------------------------

// Get returns the value stored for key. ok is false if the key is absent; a missing
// keyspace or table is an error.
//
// Thread-safety: lock free, may run concurrently with everything including Snapshot.
func (e *Engine) Get(ks, tbl string, key value.Value) (v value.Value, ok bool, err error) {
	t, err := e.table(ks, tbl)
	if err != nil {
		return value.Value{}, false, err
	}
	raw, err := t.model.CheckKey(key)
	if err != nil {
		return value.Value{}, false, err
	}
	v, ok = t.data.Load(raw)
	return v, ok, nil
}

// Exists reports whether key is present
func (e *Engine) Exists(ks, tbl string, key value.Value) (bool, error) {
	_, ok, err := e.Get(ks, tbl, key)
	return ok, err
}

// Set inserts or overwrites the value of key
//
// Thread-safety: writes to the same key are serialized, writes to different keys run
// in parallel.
func (e *Engine) Set(ks, tbl string, key, v value.Value) error {
	return e.write(ks, tbl, key, v, false)
}

// Update overwrites the value of an existing key and fails with NotFound if the key is
// absent, leaving the table unchanged.
func (e *Engine) Update(ks, tbl string, key, v value.Value) error {
	return e.write(ks, tbl, key, v, true)
}

func (e *Engine) write(ks, tbl string, key, v value.Value, mustExist bool) error {
	e.world.RLock()
	defer e.world.RUnlock()

	t, err := e.table(ks, tbl)
	if err != nil {
		return err
	}
	raw, err := t.model.CheckKey(key)
	if err != nil {
		return err
	}
	stored, err := t.model.CheckValue(v)
	if err != nil {
		return err
	}

	missing := false
	t.data.Compute(raw, func(old value.Value, loaded bool) (value.Value, bool) {
		if mustExist && !loaded {
			missing = true
			return old, true // delete on an absent key is a no-op
		}
		return stored, false
	})
	if missing {
		return NewError(CodeNotFound, "key does not exist")
	}
	e.modCount.Add(1)
	return nil
}

// Delete removes key and fails with NotFound if it is absent
func (e *Engine) Delete(ks, tbl string, key value.Value) error {
	e.world.RLock()
	defer e.world.RUnlock()

	t, err := e.table(ks, tbl)
	if err != nil {
		return err
	}
	raw, err := t.model.CheckKey(key)
	if err != nil {
		return err
	}
	if _, ok := t.data.LoadAndDelete(raw); !ok {
		return NewError(CodeNotFound, "key does not exist")
	}
	e.modCount.Add(1)
	return nil
}

// Keys returns the first limit keys of a table in sorted order (limit <= 0 means
// all), so a limited listing is a stable prefix of the full one. The result is not a
// consistent snapshot when writers are active.
func (e *Engine) Keys(ks, tbl string, limit int) ([]value.Value, error) {
	t, err := e.table(ks, tbl)
	if err != nil {
		return nil, err
	}
	raws := make([]string, 0, t.data.Size())
	t.data.Range(func(k string, _ value.Value) bool {
		raws = append(raws, k)
		return true
	})
	sort.Strings(raws)
	if limit > 0 && len(raws) > limit {
		raws = raws[:limit]
	}

	keys := make([]value.Value, len(raws))
	for i, k := range raws {
		keys[i] = t.model.KeyValue(k)
	}
	return keys, nil
}

// Count returns the number of entries in a table
func (e *Engine) Count(ks, tbl string) (int, error) {
	t, err := e.table(ks, tbl)
	if err != nil {
		return 0, err
	}
	return t.data.Size(), nil
}

// Clear removes every entry of a table
func (e *Engine) Clear(ks, tbl string) error {
	e.world.RLock()
	defer e.world.RUnlock()

	t, err := e.table(ks, tbl)
	if err != nil {
		return err
	}
	t.data.Clear()
	e.modCount.Add(1)
	return nil
}
