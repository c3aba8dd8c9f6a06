// Package sessionfile manages the on-disk active session records.
package sessionfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// FileExtension is the constant suffix of every record.
	FileExtension = ".session"

	// TimestampLayout is the fixed-width creation timestamp encoded in the
	// record name: year, day of year, wall time, microseconds.
	TimestampLayout = "2006-002T15:04:05.000000"

	tempPattern = ".session-*.tmp"

	DefaultFileMode = 0600
	DefaultDirMode  = 0700
)

var (
	ErrNoRecords = errors.New("sessionfile: no records")
	ErrBadName   = errors.New("sessionfile: name does not encode a timestamp")
)

// Config configures the record manager.
type Config struct {
	Dir string

	FileMode os.FileMode
	DirMode  os.FileMode
}

// DefaultConfig returns a Config for dir with owner-only permissions.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:      dir,
		FileMode: DefaultFileMode,
		DirMode:  DefaultDirMode,
	}
}

// Manager lists, writes and prunes session records in one directory.
// It knows nothing about record contents.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sessionfile: dir is required")
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultFileMode
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = DefaultDirMode
	}
	if err := os.MkdirAll(cfg.Dir, cfg.DirMode); err != nil {
		return nil, fmt.Errorf("sessionfile: create dir: %w", err)
	}
	return &Manager{cfg: cfg}, nil
}

// Dir returns the managed directory.
func (m *Manager) Dir() string {
	return m.cfg.Dir
}

// Info describes one record on disk.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`

	// Valid is false when the name does not parse; such records sort last.
	Valid bool `json:"valid"`
}

// FormatName returns the record name for a creation time.
func FormatName(t time.Time) string {
	return t.UTC().Format(TimestampLayout) + FileExtension
}

// ParseName extracts the creation time from a record name.
func ParseName(name string) (time.Time, error) {
	ts, ok := strings.CutSuffix(name, FileExtension)
	if !ok {
		return time.Time{}, ErrBadName
	}
	t, err := time.ParseInLocation(TimestampLayout, ts, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadName, err)
	}
	return t, nil
}

// Create writes data as a new record stamped with createdAt. The record is
// written to a temp file and renamed into place.
func (m *Manager) Create(createdAt time.Time, data []byte) (*Info, error) {
	if err := os.MkdirAll(m.cfg.Dir, m.cfg.DirMode); err != nil {
		return nil, fmt.Errorf("sessionfile: create dir: %w", err)
	}

	file, err := os.CreateTemp(m.cfg.Dir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("sessionfile: create temp file: %w", err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath)

	if err := file.Chmod(m.cfg.FileMode); err != nil {
		file.Close()
		return nil, fmt.Errorf("sessionfile: chmod: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return nil, fmt.Errorf("sessionfile: write: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("sessionfile: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("sessionfile: close: %w", err)
	}

	name := FormatName(createdAt)
	finalPath := filepath.Join(m.cfg.Dir, name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("sessionfile: rename: %w", err)
	}

	return &Info{
		Name:      name,
		Path:      finalPath,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
		Size:      int64(len(data)),
		Valid:     true,
	}, nil
}

// Read returns the contents of a record.
func (m *Manager) Read(info *Info) ([]byte, error) {
	data, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, fmt.Errorf("sessionfile: read %s: %w", info.Name, err)
	}
	return data, nil
}

// List returns all records, newest first. Records with equal timestamps are
// ordered by name, descending.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionfile: read dir: %w", err)
	}

	var infos []*Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, FileExtension) || strings.HasPrefix(name, ".") {
			continue
		}
		info := &Info{Name: name, Path: filepath.Join(m.cfg.Dir, name)}
		if t, err := ParseName(name); err == nil {
			info.CreatedAt = t
			info.Valid = true
		}
		if st, err := e.Info(); err == nil {
			info.Size = st.Size()
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.Valid != b.Valid {
			return a.Valid
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Name > b.Name
	})
	return infos, nil
}

// Prune deletes every record except the newest and returns the newest.
// It returns ErrNoRecords when the directory holds none.
func (m *Manager) Prune() (*Info, []*Info, error) {
	infos, err := m.List()
	if err != nil {
		return nil, nil, err
	}
	if len(infos) == 0 {
		return nil, nil, ErrNoRecords
	}

	var removed []*Info
	for _, info := range infos[1:] {
		if err := m.Remove(info); err != nil {
			return nil, removed, err
		}
		removed = append(removed, info)
	}
	return infos[0], removed, nil
}

// Remove deletes one record. A record that is already gone is not an error.
func (m *Manager) Remove(info *Info) error {
	if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sessionfile: remove %s: %w", info.Name, err)
	}
	return nil
}

// RemoveAll deletes every record and returns how many were removed.
func (m *Manager) RemoveAll() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, info := range infos {
		if err := m.Remove(info); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
