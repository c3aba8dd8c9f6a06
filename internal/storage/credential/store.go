// Package credential provides the durable store of host configurations.
package credential

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
)

const (
	fileMode = 0600
	dirMode  = 0700
)

// Store is an ordered list of host configurations backed by one JSON file.
// The file is read on first access and cached for the life of the process.
// Every mutation rewrites the whole file; concurrent writers are last-wins.
type Store struct {
	path string

	mu      sync.Mutex
	loaded  bool
	configs []domain.HostConfiguration
}

// NewStore creates a Store backed by path. Nothing is read until first use.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// List returns all configurations in insertion order.
func (s *Store) List() ([]domain.HostConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]domain.HostConfiguration, len(s.configs))
	for i, c := range s.configs {
		out[i] = c.Clone()
	}
	return out, nil
}

// Names returns the configuration names in insertion order.
func (s *Store) Names() ([]string, error) {
	configs, err := s.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(configs))
	for i, c := range configs {
		names[i] = c.Name
	}
	return names, nil
}

// Get returns the configuration with the given name.
func (s *Store) Get(name string) (domain.HostConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return domain.HostConfiguration{}, err
	}
	i := s.index(name)
	if i < 0 {
		return domain.HostConfiguration{}, domain.ErrConfigurationNotFound.WithDetails(name)
	}
	return s.configs[i].Clone(), nil
}

// Create appends cfg. It fails without touching the file when the name is
// already taken.
func (s *Store) Create(cfg domain.HostConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if s.index(cfg.Name) >= 0 {
		return domain.ErrConfigurationConflict.WithDetails(cfg.Name)
	}

	next := append(slices.Clone(s.configs), cfg.Clone())
	return s.commit(next)
}

// Update replaces the configuration with the same name, keeping its position.
func (s *Store) Update(cfg domain.HostConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	i := s.index(cfg.Name)
	if i < 0 {
		return domain.ErrConfigurationNotFound.WithDetails(cfg.Name)
	}

	next := slices.Clone(s.configs)
	next[i] = cfg.Clone()
	return s.commit(next)
}

// Delete removes the configuration with the given name.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	i := s.index(name)
	if i < 0 {
		return domain.ErrConfigurationNotFound.WithDetails(name)
	}

	next := slices.Delete(slices.Clone(s.configs), i, i+1)
	return s.commit(next)
}

// Clear removes every configuration and returns how many there were.
func (s *Store) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}
	n := len(s.configs)
	if err := s.commit([]domain.HostConfiguration{}); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) index(name string) int {
	return slices.IndexFunc(s.configs, func(c domain.HostConfiguration) bool {
		return c.Name == name
	})
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	configs, err := ReadFile(s.path)
	if err != nil {
		return err
	}
	s.configs = configs
	s.loaded = true
	return nil
}

// commit persists next and only then makes it the cached state.
func (s *Store) commit(next []domain.HostConfiguration) error {
	if err := writeFile(s.path, next); err != nil {
		return err
	}
	s.configs = next
	return nil
}

// ReadFile decodes a configuration array from path. Comments and trailing
// commas are tolerated. A missing file is an empty list.
func ReadFile(path string) ([]domain.HostConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.HostConfiguration{}, nil
		}
		return nil, domain.ErrConfigurationStorage.WithDetails(path).WithCause(err)
	}
	return Decode(data)
}

// Decode parses a JSON or JSONC array of configurations.
func Decode(data []byte) ([]domain.HostConfiguration, error) {
	data = jsonc.ToJSON(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.HostConfiguration{}, nil
	}

	var configs []domain.HostConfiguration
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, domain.ErrConfigurationInvalid.WithDetails("decode configuration list").WithCause(err)
	}
	if configs == nil {
		configs = []domain.HostConfiguration{}
	}
	return configs, nil
}

// DecodeOne parses a single configuration object, or a one-element array.
func DecodeOne(data []byte) (domain.HostConfiguration, error) {
	data = jsonc.ToJSON(data)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		configs, err := Decode(trimmed)
		if err != nil {
			return domain.HostConfiguration{}, err
		}
		if len(configs) != 1 {
			return domain.HostConfiguration{}, domain.ErrConfigurationInvalid.WithDetails(
				fmt.Sprintf("expected one configuration, found %d", len(configs)))
		}
		return configs[0], configs[0].Validate()
	}

	var cfg domain.HostConfiguration
	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		return domain.HostConfiguration{}, domain.ErrConfigurationInvalid.WithDetails("decode configuration").WithCause(err)
	}
	return cfg, cfg.Validate()
}

func writeFile(path string, configs []domain.HostConfiguration) error {
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return domain.ErrConfigurationStorage.WithDetails("marshal").WithCause(err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return domain.ErrConfigurationStorage.WithDetails(dir).WithCause(err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return domain.ErrConfigurationStorage.WithDetails(path).WithCause(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return domain.ErrConfigurationStorage.WithDetails(path).WithCause(err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return domain.ErrConfigurationStorage.WithDetails(path).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return domain.ErrConfigurationStorage.WithDetails(path).WithCause(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return domain.ErrConfigurationStorage.WithDetails(path).WithCause(err)
	}
	return nil
}
