package storage

import (
	"fmt"

	"github.com/Kalantar81/window-counter/pkg/config"
)

// NewStore returns a concrete Store based on database configuration.
// The sqlite backend is the default when no type is set.
func NewStore(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path)
	case "mysql":
		return NewMySQLStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
