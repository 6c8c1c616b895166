package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for filmcat.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Storage     StorageConfig     `toml:"storage"`
	Credentials CredentialsConfig `toml:"credentials"`
	Encryption  EncryptionConfig  `toml:"encryption"`
}

// StorageConfig represents configuration for the persistence layer.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type"` // "json" (default), "sqlite", or "memory"

	// JSON-specific fields (only used when Type == "json")
	UsersPath string `toml:"users_path,omitempty"`
	FilmsPath string `toml:"films_path,omitempty"`
	// SkipSaves lists store names ("users", "films") whose saves are
	// suppressed for dry runs. A SKIP_SAVE line is logged instead.
	SkipSaves []string `toml:"skip_saves,omitempty"`

	// SQLite-specific fields (only used when Type == "sqlite")
	DBPath      string `toml:"db_path,omitempty"`
	AutoMigrate bool   `toml:"auto_migrate,omitempty"`
}

// CredentialsConfig selects the password hashing scheme.
type CredentialsConfig struct {
	Hasher     string `toml:"hasher"`                // "bcrypt" (default) or "sha256"
	BcryptCost int    `toml:"bcrypt_cost,omitempty"` // 0 means bcrypt.DefaultCost
}

// EncryptionConfig controls encryption of backup copies.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age", or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// NewConfig creates a new Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	dataDir := filepath.Join(baseDir, "data")
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Storage: StorageConfig{
			Type:      "json",
			UsersPath: filepath.Join(dataDir, "users.json"),
			FilmsPath: filepath.Join(dataDir, "films.json"),
		},
		Credentials: CredentialsConfig{Hasher: "bcrypt"},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "filmcat.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "filmcat.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
