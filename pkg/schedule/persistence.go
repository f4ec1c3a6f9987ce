package schedule

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/racebase/harvester/pkg/errors"
)

// Store persists cycle progress as a YAML file. Writes go through a
// temp file and rename so a crash mid-write never leaves a truncated
// progress file behind.
type Store struct {
	path string
}

// NewStore creates a progress store at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted progress. A missing file is not an error; it
// yields a fresh cycle state.
func (s *Store) Load() (*Progress, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewProgress(), nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", s.path, err)
	}

	p := NewProgress()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.WrapIO("decode", s.path, err)
	}
	if p.Completed == nil {
		p.Completed = make(map[string][]string)
	}
	return p, nil
}

// Save writes the progress atomically.
func (s *Store) Save(p *Progress) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return errors.WrapIO("encode", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.yaml")
	if err != nil {
		return errors.WrapIO("create", s.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WrapIO("write", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("close", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.WrapIO("rename", s.path, err)
	}
	return nil
}
