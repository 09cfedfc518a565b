package asfactl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const configFileName = ".deployment_config"

// Store persists the DeploymentConfig for one application directory.
type Store struct {
	Path string
}

func NewStore(appDir string) *Store {
	return &Store{Path: filepath.Join(appDir, configFileName)}
}

func (s *Store) Load() (DeploymentConfig, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return DeploymentConfig{}, ErrNotFound
	}
	if err != nil {
		return DeploymentConfig{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	m, err := godotenv.UnmarshalBytes(b)
	if err != nil {
		return DeploymentConfig{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, s.Path, err)
	}
	return configFromMap(m)
}

// LoadOptional returns nil when nothing has been persisted yet.
func (s *Store) LoadOptional() (*DeploymentConfig, error) {
	cfg, err := s.Load()
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) Save(cfg DeploymentConfig) error {
	content, err := godotenv.Marshal(cfg.toMap())
	if err != nil {
		return fmt.Errorf("%w: encode config: %v", ErrPersistence, err)
	}
	if err := ensureDir(filepath.Dir(s.Path), 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(s.Path, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPersistence, s.Path, err)
	}
	return nil
}
