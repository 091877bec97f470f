// Package persist writes and reads full engine snapshots.
//
// A snapshot is a single self describing blob:
//
//	magic "SKVSNAP\x00" | version uint8 | manifest length uint32 | manifest (msgpack)
//	entries: (key value, stored value) per table in manifest order, value encoding
//	xxhash64 of everything above, 8 bytes little endian
//
// The manifest lists keyspaces, tables, their models and entry counts, so the entry
// section carries no framing of its own. Only the entries use the value encoding of
// lib/value; the keyspace tree itself lives in the msgpack manifest, not in a nested
// Value. Snapshot bytes are published through an
// ISnapshotStore, which guarantees that a partially written snapshot never replaces a
// complete one.
package persist

import (
	"bytes"
	"encoding/binary"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	magic         = "SKVSNAP\x00"
	formatVersion = 1
	checksumSize  = 8
	headerSize    = len(magic) + 1 + 4
)

var (
	// ErrCorruptSnapshot is returned for snapshots with a wrong tag, version or
	// checksum and for snapshots whose content cannot be rebuilt into an engine
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrNoSnapshot is returned by stores that hold no snapshot yet
	ErrNoSnapshot = errors.New("no snapshot")
)

type manifest struct {
	DefaultKeyspace string             `msgpack:"default_keyspace"`
	Keyspaces       []manifestKeyspace `msgpack:"keyspaces"`
}

type manifestKeyspace struct {
	Name   string          `msgpack:"name"`
	Tables []manifestTable `msgpack:"tables"`
}

type manifestTable struct {
	Name    string `msgpack:"name"`
	Model   string `msgpack:"model"`
	Entries uint64 `msgpack:"entries"`
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Save takes a consistent image of the engine and serializes it
func Save(e *db.Engine) ([]byte, error) {
	return Encode(e.Snapshot())
}

// Encode serializes an image
func Encode(img *db.Image) ([]byte, error) {
	m := manifest{DefaultKeyspace: img.DefaultKeyspace}
	for _, ks := range img.Keyspaces {
		mk := manifestKeyspace{Name: ks.Name}
		for _, t := range ks.Tables {
			mk.Tables = append(mk.Tables, manifestTable{Name: t.Name, Model: t.Model.String(), Entries: uint64(t.Len())})
		}
		m.Keyspaces = append(m.Keyspaces, mk)
	}
	meta, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot manifest")
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(meta)+checksumSize))
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(meta)))
	buf.Write(meta)

	scratch := make([]byte, 0, 256)
	for _, ks := range img.Keyspaces {
		for _, t := range ks.Tables {
			for i, k := range t.Keys {
				scratch = value.AppendEncode(scratch[:0], value.BinaryString(k))
				scratch = value.AppendEncode(scratch, t.Values[i])
				buf.Write(scratch)
			}
		}
	}

	out := buf.Bytes()
	return binary.LittleEndian.AppendUint64(out, xxhash.Sum64(out)), nil
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// Load verifies and decodes a snapshot and rebuilds the engine it describes
func Load(data []byte) (*db.Engine, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	e, err := db.NewFromImage(img)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "rebuild engine: %v", err)
	}
	return e, nil
}

// Decode verifies the tag, version and checksum of a snapshot and decodes its image.
// Every failure wraps ErrCorruptSnapshot.
func Decode(data []byte) (*db.Image, error) {
	if len(data) < headerSize+checksumSize {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "snapshot too short (%d bytes)", len(data))
	}
	if string(data[:len(magic)]) != magic {
		return nil, errors.Wrap(ErrCorruptSnapshot, "missing snapshot tag")
	}
	if v := data[len(magic)]; v != formatVersion {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "unsupported snapshot version %d", v)
	}

	body := data[:len(data)-checksumSize]
	if want := binary.LittleEndian.Uint64(data[len(body):]); xxhash.Sum64(body) != want {
		return nil, errors.Wrap(ErrCorruptSnapshot, "checksum mismatch")
	}

	metaLen := int(binary.BigEndian.Uint32(data[len(magic)+1:]))
	if metaLen > len(body)-headerSize {
		return nil, errors.Wrap(ErrCorruptSnapshot, "manifest length exceeds snapshot")
	}
	var m manifest
	if err := msgpack.Unmarshal(body[headerSize:headerSize+metaLen], &m); err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "decode manifest: %v", err)
	}

	img := &db.Image{DefaultKeyspace: m.DefaultKeyspace}
	rest := body[headerSize+metaLen:]
	for _, mk := range m.Keyspaces {
		ki := db.KeyspaceImage{Name: mk.Name}
		for _, mt := range mk.Tables {
			model, err := db.ParseModel(mt.Model)
			if err != nil {
				return nil, errors.Wrapf(ErrCorruptSnapshot, "table %s:%s: %v", mk.Name, mt.Name, err)
			}
			// every entry needs at least two bytes, bound the allocation by the input
			if mt.Entries > uint64(len(rest)/2) {
				return nil, errors.Wrapf(ErrCorruptSnapshot, "table %s:%s declares %d entries", mk.Name, mt.Name, mt.Entries)
			}
			ti := db.TableImage{
				Name:   mt.Name,
				Model:  model,
				Keys:   make([]string, mt.Entries),
				Values: make([]value.Value, mt.Entries),
			}
			for i := range ti.Keys {
				k, n, err := value.DecodePrefix(rest)
				if err != nil {
					return nil, errors.Wrapf(ErrCorruptSnapshot, "table %s:%s key %d: %v", mk.Name, mt.Name, i, err)
				}
				rest = rest[n:]
				v, n, err := value.DecodePrefix(rest)
				if err != nil {
					return nil, errors.Wrapf(ErrCorruptSnapshot, "table %s:%s value %d: %v", mk.Name, mt.Name, i, err)
				}
				rest = rest[n:]

				raw, ok := k.AsBytes()
				if !ok {
					return nil, errors.Wrapf(ErrCorruptSnapshot, "table %s:%s key %d is %s", mk.Name, mt.Name, i, k.Kind())
				}
				ti.Keys[i], ti.Values[i] = raw, v
			}
			ki.Tables = append(ki.Tables, ti)
		}
		img.Keyspaces = append(img.Keyspaces, ki)
	}
	if len(rest) != 0 {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "%d trailing bytes after entries", len(rest))
	}
	return img, nil
}
