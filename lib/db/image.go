package db

import (
	"sort"

	"github.com/ValentinKolb/sKV/lib/value"
)

// --------------------------------------------------------------------------
// Point in time images
// --------------------------------------------------------------------------

// Image is a detached, point in time copy of the whole keyspace tree. It shares no
// mutable state with the engine, values are immutable and safe to share.
type Image struct {
	DefaultKeyspace string
	Keyspaces       []KeyspaceImage
}

// KeyspaceImage is one keyspace of an Image
type KeyspaceImage struct {
	Name   string
	Tables []TableImage
}

// TableImage is one table of an Image. Keys holds raw key bytes, Values[i] belongs
// to Keys[i]. Entries are sorted by key.
type TableImage struct {
	Name   string
	Model  Model
	Keys   []string
	Values []value.Value
}

// Len returns the number of entries
func (t *TableImage) Len() int           { return len(t.Keys) }
func (t *TableImage) Less(i, j int) bool { return t.Keys[i] < t.Keys[j] }
func (t *TableImage) Swap(i, j int) {
	t.Keys[i], t.Keys[j] = t.Keys[j], t.Keys[i]
	t.Values[i], t.Values[j] = t.Values[j], t.Values[i]
}

// Entries returns the total entry count of the image
func (img *Image) Entries() int {
	n := 0
	for _, ks := range img.Keyspaces {
		for _, t := range ks.Tables {
			n += t.Len()
		}
	}
	return n
}

// Snapshot copies the whole tree while holding the engine wide write lock, so the
// image reflects one linearization point: every mutation either happened entirely
// before it or entirely after it. Only the copy runs under the lock, sorting happens
// afterwards.
//
// Thread-safety: blocks mutations for the duration of the copy, reads are not blocked.
func (e *Engine) Snapshot() *Image {
	img := &Image{DefaultKeyspace: e.defaultKeyspace}

	e.world.Lock()
	e.keyspaces.Range(func(name string, ks *keyspace) bool {
		ki := KeyspaceImage{Name: name}
		ks.tables.Range(func(tname string, t *table) bool {
			n := t.data.Size()
			ti := TableImage{
				Name:   tname,
				Model:  t.model,
				Keys:   make([]string, 0, n),
				Values: make([]value.Value, 0, n),
			}
			t.data.Range(func(k string, v value.Value) bool {
				ti.Keys = append(ti.Keys, k)
				ti.Values = append(ti.Values, v)
				return true
			})
			ki.Tables = append(ki.Tables, ti)
			return true
		})
		img.Keyspaces = append(img.Keyspaces, ki)
		return true
	})
	e.world.Unlock()

	sort.Slice(img.Keyspaces, func(i, j int) bool { return img.Keyspaces[i].Name < img.Keyspaces[j].Name })
	for i := range img.Keyspaces {
		tables := img.Keyspaces[i].Tables
		sort.Slice(tables, func(a, b int) bool { return tables[a].Name < tables[b].Name })
		for j := range tables {
			sort.Sort(&tables[j])
		}
	}
	return img
}

// NewFromImage rebuilds an engine from an image. Names and models are validated again
// and the mandatory default objects are restored if the image lacks them.
func NewFromImage(img *Image) (*Engine, error) {
	if img.DefaultKeyspace != "" {
		if err := ValidateDefaultKeyspace(img.DefaultKeyspace); err != nil {
			return nil, err
		}
	}
	e := New(Options{DefaultKeyspace: img.DefaultKeyspace})

	for _, ki := range img.Keyspaces {
		if ki.Name != SystemKeyspace && ki.Name != e.defaultKeyspace {
			if err := e.CreateKeyspace(ki.Name); err != nil {
				return nil, err
			}
		}
		ks, _ := e.keyspaces.Load(ki.Name)

		for _, ti := range ki.Tables {
			if err := ValidateName(ti.Name); err != nil {
				return nil, err
			}
			if len(ti.Keys) != len(ti.Values) {
				return nil, NewError(CodeTypeMismatch, "table %s:%s has %d keys but %d values", ki.Name, ti.Name, len(ti.Keys), len(ti.Values))
			}
			t, loaded := ks.tables.LoadOrStore(ti.Name, e.newTable(ti.Name, ti.Model))
			if loaded && t.model != ti.Model {
				return nil, NewError(CodeTypeMismatch, "table %s:%s model %s does not match %s", ki.Name, ti.Name, ti.Model, t.model)
			}
			for i, raw := range ti.Keys {
				v, err := t.model.CheckValue(ti.Values[i])
				if err != nil {
					return nil, err
				}
				t.data.Store(raw, v)
			}
		}
	}
	e.modCount.Store(0)
	return e, nil
}
