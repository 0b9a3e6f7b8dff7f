package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

const maxFileBytes = 1 << 20

var _ KV = (*File)(nil)

// File keeps all keys in one JSON document, replaced atomically on every write.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *File) Set(entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	for k, v := range entries {
		values[k] = v
	}
	return f.save(values)
}

func (f *File) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	return f.save(values)
}

func (f *File) load() (map[string]string, error) {
	values := make(map[string]string)
	fd, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = fd.Close() }()

	data, err := io.ReadAll(io.LimitReader(fd, maxFileBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		// A corrupt file is treated as empty; the next write replaces it.
		return make(map[string]string), nil
	}
	return values, nil
}

func (f *File) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(f.path, 0o600)
}
