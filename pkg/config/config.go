package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address  string         `yaml:"address"`
	TLS      TLSConfig      `yaml:"tls"`
	Routing  RoutingConfig  `yaml:"routing"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// RoutingConfig controls location routing target selection
type RoutingConfig struct {
	// TargetTab is the tab location a client must be viewing to be
	// eligible for routed location payloads.
	TargetTab string `yaml:"target_tab"`
	// RequireVisible restricts candidates to visible clients.
	RequireVisible bool `yaml:"require_visible"`
}

// DatabaseConfig represents event history database settings
type DatabaseConfig struct {
	// Enabled toggles the event history store. The presence registry
	// itself is always in-memory.
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // sqlite | mysql
	Path    string `yaml:"path"` // file path for sqlite, DSN for mysql
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":3000",
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		Routing: RoutingConfig{
			TargetTab:      "map",
			RequireVisible: true,
		},
		Database: DatabaseConfig{
			Enabled: true,
			Type:    "sqlite",
			Path:    "./events.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Address = addr
	}

	if tab := os.Getenv("ROUTING_TARGET_TAB"); tab != "" {
		config.Routing.TargetTab = tab
	}

	if dbEnabled := os.Getenv("DB_ENABLED"); dbEnabled != "" {
		if val, err := strconv.ParseBool(dbEnabled); err == nil {
			config.Database.Enabled = val
		}
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		config.TLS.Enabled = tlsEnabled == "true"
	}

	if certFile := os.Getenv("TLS_CERT_FILE"); certFile != "" {
		config.TLS.CertFile = certFile
	}

	if keyFile := os.Getenv("TLS_KEY_FILE"); keyFile != "" {
		config.TLS.KeyFile = keyFile
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	if c.Routing.TargetTab == "" {
		return fmt.Errorf("routing target tab cannot be empty")
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite", "mysql", "":
		default:
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty when history is enabled")
		}
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// String returns a string representation of the configuration (for logging)
func (c *ServerConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, TargetTab: %s, DB: %s, TLS: %v, LogLevel: %s}",
		c.Address, c.Routing.TargetTab, c.Database.Path, c.TLS.Enabled, c.Logging.Level)
}
