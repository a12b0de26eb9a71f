// Package storage keeps the auto gain configuration and the last loop state
// in a data directory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/goccy/go-json"

	"armor-exposure/pkg/config"
	"armor-exposure/pkg/storage/consts"
)

type Storage struct {
	dir string

	lock sync.Mutex
}

// New prepares dir and writes the default config when none exists yet.
func New(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage path can not be empty")
	}
	if err := mkdirAll(dir); err != nil {
		return nil, err
	}
	s := &Storage{dir: dir}
	if err := s.checkInitInfo(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return nil
}

// LoadConfig reads the stored config. Fields missing from the file keep
// their default values.
func (s *Storage) LoadConfig() (config.Config, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.configPath())
	if err != nil {
		return config.Config{}, err
	}
	cfg := config.Default()
	if err = json.Unmarshal(data, &cfg); err != nil {
		return config.Config{}, fmt.Errorf("parse %s: %w", s.configPath(), err)
	}
	if err = cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("stored config: %w", err)
	}

	return cfg, nil
}

func (s *Storage) SaveConfig(cfg config.Config) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return dumpJSON(s.configPath(), cfg)
}

// DumpLastRunning records v as the state the loop was in when it stopped.
func (s *Storage) DumpLastRunning(v any) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return dumpJSON(s.lastRunningPath(), v)
}

// LoadLastRunning decodes the last recorded state into v. It reports false
// when nothing has been recorded.
func (s *Storage) LoadLastRunning(v any) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.lastRunningPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, json.Unmarshal(data, v)
}

func (s *Storage) configPath() string {
	return path.Join(s.dir, consts.DefaultConfigFile)
}

func (s *Storage) lastRunningPath() string {
	return path.Join(s.dir, consts.DefaultLastRunningFile)
}

func (s *Storage) checkInitInfo() error {
	_, err := os.Stat(s.configPath())
	if os.IsNotExist(err) {
		return dumpJSON(s.configPath(), config.Default())
	}

	return err
}

// dumpJSON writes through a temp file so a crash never leaves half a file.
func dumpJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err = os.WriteFile(tmp, data, consts.DefaultFilePerm); err != nil {
		return err
	}

	return os.Rename(tmp, name)
}

func mkdirAll(dirs ...string) error {
	for _, d := range dirs {
		err := os.MkdirAll(d, consts.DefaultDirPerm)
		if err != nil {
			return err
		}
	}
	return nil
}
