package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const fileExt = ".sav.zst"

// FileStore writes one zstd-compressed file per slot under a directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: empty save dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(slot string) string {
	return filepath.Join(f.dir, slot+fileExt)
}

// Put compresses data into a temp file and renames it over the slot, so a
// crash never leaves a half-written save.
func (f *FileStore) Put(_ context.Context, slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, slot+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		tmp.Close()
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		tmp.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(slot))
}

func (f *FileStore) Get(_ context.Context, slot string) ([]byte, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("storage: decompress %s: %w", slot, err)
	}
	return data, nil
}

func (f *FileStore) Delete(_ context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	err := os.Remove(f.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileStore) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(out)
	return out, nil
}

func (f *FileStore) Close() error { return nil }
