package store

import (
	"fmt"

	"filmcat/internal/catalog"
	"filmcat/internal/config"
)

// NewStoreFromConfig creates a Backend based on the storage config type.
// enc seals JSON backups and may be nil.
func NewStoreFromConfig(cfg config.StorageConfig, enc catalog.Encryptor, clock catalog.Clock, logger catalog.Logger) (Backend, error) {
	switch cfg.Type {
	case "", "json":
		s, err := NewJSONFileStore(cfg.UsersPath, cfg.FilmsPath, cfg.SkipSaves, enc, clock, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.DBPath, cfg.AutoMigrate, cfg.SkipSaves, clock, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
