package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// FileStore keeps settings in a TOML file. Reads and writes take a lock on
// a sibling ".lock" file so several processes can share one file; writes go
// through a temporary file and a rename.
type FileStore struct {
	path string
	lock *flock.Flock

	// Defaults fill keys absent from the file. NewFileStore sets Default().
	Defaults Settings
}

// fileDoc distinguishes absent keys from false ones.
type fileDoc struct {
	Enabled       *bool `toml:"enabled"`
	SmartRounding *bool `toml:"smartRounding"`
}

// NewFileStore returns a store for path. The file need not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("settings file path is empty")
	}
	return &FileStore{path: path, lock: flock.New(path + ".lock"), Defaults: Default()}, nil
}

// Path returns the settings file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the file. A missing file or missing keys yield defaults.
func (f *FileStore) Load(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return Settings{}, fmt.Errorf("ensure settings dir: %w", err)
	}
	if err := f.lock.RLock(); err != nil {
		return Settings{}, fmt.Errorf("lock settings: %w", err)
	}
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return f.Defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return decodeFile(data, f.Defaults)
}

func decodeFile(data []byte, defaults Settings) (Settings, error) {
	var doc fileDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return Patch{Enabled: doc.Enabled, SmartRounding: doc.SmartRounding}.Apply(defaults), nil
}

// Save writes s atomically.
func (f *FileStore) Save(ctx context.Context, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure settings dir: %w", err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock settings: %w", err)
	}
	defer f.lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Close releases the lock handle.
func (f *FileStore) Close() error {
	return f.lock.Close()
}
