package persist

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	snapshotFile = "data.snap"
	tempPrefix   = snapshotFile + ".tmp-"
)

// fileStore keeps the snapshot in a single canonical file. New snapshots are written
// to a temp file in the same directory, synced and renamed over the canonical path,
// then the directory is synced so the rename itself is durable.
type fileStore struct {
	dir  string
	path string

	// writeFn writes the snapshot into the temp file, replaced in tests to simulate
	// a crash in the middle of a write
	writeFn func(f *os.File, data []byte) error
}

// NewFileStore opens a file store in dir, creating the directory if needed. Temp
// files left behind by an interrupted write are removed.
func NewFileStore(dir string) (ISnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create snapshot directory %s", dir)
	}
	s := &fileStore{
		dir:     dir,
		path:    filepath.Join(dir, snapshotFile),
		writeFn: writeAll,
	}
	if err := s.removeStaleTemps(); err != nil {
		return nil, err
	}
	return s, nil
}

func writeAll(f *os.File, data []byte) error {
	_, err := f.Write(data)
	return err
}

func (s *fileStore) Path() string { return s.path }

func (s *fileStore) Close() error { return nil }

// Read returns the canonical snapshot
func (s *fileStore) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", s.path)
	}
	return data, nil
}

// Write publishes data atomically
func (s *fileStore) Write(data []byte) (err error) {
	f, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}
	ok := false
	defer closeAndDeleteUnlessOK(f, &ok)

	if err := s.writeFn(f, data); err != nil {
		return errors.Wrap(err, "write temp snapshot")
	}
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "sync temp snapshot")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close temp snapshot")
	}
	if err := os.Rename(f.Name(), s.path); err != nil {
		return errors.Wrap(err, "publish snapshot")
	}
	ok = true
	return syncDir(s.dir)
}

// closeAndDeleteUnlessOK removes the temp file unless it was published
func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	_ = f.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		Logger.Warningf("failed to remove temp snapshot %s: %v", f.Name(), err)
	}
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "open snapshot directory")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "sync snapshot directory")
	}
	return nil
}

func (s *fileStore) removeStaleTemps() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrapf(err, "list snapshot directory %s", s.dir)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), tempPrefix) {
			p := filepath.Join(s.dir, e.Name())
			Logger.Infof("removing stale temp snapshot %s", p)
			if err := os.Remove(p); err != nil {
				return errors.Wrapf(err, "remove stale temp snapshot %s", p)
			}
		}
	}
	return nil
}
