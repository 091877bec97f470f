package persist

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const boltFile = "snapshots.bolt"

var (
	snapshotsBucket = []byte("snapshots")
	historyBucket   = []byte("history")
	latestKey       = []byte("latest")
)

// boltStore keeps snapshots in a bbolt database. Every Write is one bbolt
// transaction, which provides the atomic replace. Besides the latest snapshot the
// store retains the last `keep` snapshots under increasing sequence numbers.
type boltStore struct {
	bdb  *bbolt.DB
	path string
	keep int
}

// NewBoltStore opens (or creates) the bolt store in dir
func NewBoltStore(dir string, keep int) (ISnapshotStore, error) {
	path := filepath.Join(dir, boltFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create snapshot directory %s", dir)
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType

	bdb, err := bbolt.Open(path, 0o600, &bopt)
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot store %s", path)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(snapshotsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errors.Wrap(err, "initialize snapshot store")
	}
	return &boltStore{bdb: bdb, path: path, keep: keep}, nil
}

func (s *boltStore) Path() string { return s.path }

func (s *boltStore) Close() error { return s.bdb.Close() }

// Write stores data as the latest snapshot and appends it to the history
func (s *boltStore) Write(data []byte) error {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(snapshotsBucket).Put(latestKey, data); err != nil {
			return err
		}
		if s.keep <= 0 {
			return nil
		}

		hist := tx.Bucket(historyBucket)
		seq, err := hist.NextSequence()
		if err != nil {
			return err
		}
		if err := hist.Put(binary.BigEndian.AppendUint64(nil, seq), data); err != nil {
			return err
		}

		// trim the oldest entries, keys sort by sequence
		var keys [][]byte
		_ = hist.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		for i := 0; i < len(keys)-s.keep; i++ {
			if err := hist.Delete(keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "write snapshot")
}

// Read returns a copy of the latest snapshot
func (s *boltStore) Read() ([]byte, error) {
	var data []byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(snapshotsBucket).Get(latestKey)
		if v == nil {
			return ErrNoSnapshot
		}
		// bbolt memory is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// History returns the retained snapshots, oldest first
func (s *boltStore) History() ([][]byte, error) {
	var out [][]byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(historyBucket).ForEach(func(_, v []byte) error {
			out = append(out, append([]byte(nil), v...))
			return nil
		})
	})
	return out, err
}
