package state

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	logx "jobwrk/pkg/logx"
)

// fileStore keeps the blob as one JSON document in a single file.
//
// Writes go to <path>.tmp and are renamed over <path>, so a save always
// replaces the whole file and a crash mid-write never leaves half a document.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

// NewFile returns a file-backed store. Nothing touches the disk until Load.
func NewFile(path string, log logx.Logger) Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &fileStore{log: log, path: path}
}

func (s *fileStore) Location() string { return s.path }

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) (any, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fsErr("mkdir", filepath.Dir(s.path), err)
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.writeLocked([]byte("{}")); err != nil {
			return nil, err
		}
		s.log.Debug("state initialized", logx.String("path", s.path))
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fsErr("read", s.path, err)
	}

	v, err := decodeValue(b)
	if err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	s.log.Debug("state loaded", logx.String("path", s.path), logx.String("type", kindOf(v)))
	return v, nil
}

func (s *fileStore) Save(ctx context.Context, b *Blob) error {
	_ = ctx
	if b == nil {
		b = NewBlob(nil)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fsErr("encode", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(data)
}

func (s *fileStore) writeLocked(data []byte) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fsErr("write", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fsErr("write", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fsErr("write", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fsErr("rename", s.path, err)
	}
	return nil
}
