// Package settings owns the current prayer settings and the calculator built
// from them, and persists every accepted change through a Repository.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("settings not found")

type Repository interface {
	Load(ctx context.Context) (model.PrayerSettings, error)
	Save(ctx context.Context, s model.PrayerSettings) error
}

// FileRepository stores the settings as a JSON document.
type FileRepository struct {
	fs   afero.Fs
	path string
}

func NewFileRepository(fsys afero.Fs, path string) *FileRepository {
	return &FileRepository{fs: fsys, path: path}
}

func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) Load(context.Context) (model.PrayerSettings, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.PrayerSettings{}, ErrNotFound
	}
	if err != nil {
		return model.PrayerSettings{}, fmt.Errorf("reading %s: %w", r.path, err)
	}
	return model.DecodeSettings(data)
}

func (r *FileRepository) Save(_ context.Context, s model.PrayerSettings) error {
	data, err := model.EncodeSettings(s)
	if err != nil {
		return err
	}
	if err := r.fs.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing %s: %w", r.path, err)
	}
	return nil
}

// MemoryRepository keeps the settings in process, for one-shot commands and tests.
type MemoryRepository struct {
	mu     sync.Mutex
	stored *model.PrayerSettings
	saves  int
}

func (r *MemoryRepository) Load(context.Context) (model.PrayerSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stored == nil {
		return model.PrayerSettings{}, ErrNotFound
	}
	return r.stored.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, s model.PrayerSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := s.Clone()
	r.stored = &c
	r.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
