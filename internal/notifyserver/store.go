package notifyserver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ShayCichocki/taskflow/pkg/models"
)

const (
	settingsBucket = "notify"
	configKey      = "config"
)

// ConfigStore persists the single NotificationConfig record.
type ConfigStore interface {
	// Load returns the stored config, or nil if none was ever saved.
	Load() (*models.NotificationConfig, error)
	// Save replaces the stored config.
	Save(cfg models.NotificationConfig) error
	Close() error
}

// BoltStore implements ConfigStore using BoltDB.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the settings database at dbPath.
func NewBoltStore(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create settings directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		if strings.Contains(err.Error(), "timeout") {
			return nil, fmt.Errorf("settings file %s is in use by another taskflow process: %w", dbPath, err)
		}
		return nil, fmt.Errorf("open settings db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(settingsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Load returns the stored config, or nil if none was ever saved.
func (s *BoltStore) Load() (*models.NotificationConfig, error) {
	var cfg *models.NotificationConfig

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(settingsBucket)).Get([]byte(configKey))
		if data == nil {
			return nil
		}
		cfg = &models.NotificationConfig{}
		return json.Unmarshal(data, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("load notification config: %w", err)
	}
	return cfg, nil
}

// Save replaces the stored config.
func (s *BoltStore) Save(cfg models.NotificationConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal notification config: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(settingsBucket)).Put([]byte(configKey), data); err != nil {
			return fmt.Errorf("store notification config: %w", err)
		}
		return nil
	})
}

// Close closes the BoltDB connection.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a ConfigStore that keeps the config in memory only.
type MemoryStore struct {
	mu  sync.Mutex
	cfg *models.NotificationConfig
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored config, or nil if none was saved.
func (s *MemoryStore) Load() (*models.NotificationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, nil
	}
	cp := *s.cfg
	return &cp, nil
}

// Save replaces the stored config.
func (s *MemoryStore) Save(cfg models.NotificationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &cfg
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

var (
	_ ConfigStore = (*BoltStore)(nil)
	_ ConfigStore = (*MemoryStore)(nil)
)
