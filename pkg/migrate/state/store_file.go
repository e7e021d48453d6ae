package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// FileStore : one json document per scope under Dir. writes go to a temp file that is
// renamed over the old one so a crash never leaves half a checkpoint behind
type FileStore struct {
	fs  afero.Fs
	Dir string
	now func() time.Time
}

func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state : create %s : %w", dir, err)
	}
	return &FileStore{fs: fs, Dir: dir, now: time.Now}, nil
}

func (f *FileStore) path(scope Scope) string {
	return filepath.Join(f.Dir, "checkpoint-"+scope.Key()+".json")
}

func (f *FileStore) Get(_ context.Context, scope Scope) (*Checkpoint, error) {
	b, err := afero.ReadFile(f.fs, f.path(scope))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state : read checkpoint : %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("state : corrupt checkpoint %s : %w", f.path(scope), err)
	}
	return &cp, nil
}

func (f *FileStore) Set(_ context.Context, cp *Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = f.now().UTC()
	}
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	dst := f.path(cp.Scope)
	tmp := dst + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, b, 0o644); err != nil {
		return fmt.Errorf("state : write checkpoint : %w", err)
	}
	if err := f.fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("state : commit checkpoint : %w", err)
	}
	return nil
}

func (f *FileStore) Reset(_ context.Context, scope Scope) error {
	err := f.fs.Remove(f.path(scope))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state : reset checkpoint : %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
