package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for draftmark.
type Config struct {
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Database DatabaseConfig `toml:"database"`
	Archive  ArchiveConfig  `toml:"archive"`
	Lock     LockConfig     `toml:"lock"`
	Feedback FeedbackConfig `toml:"feedback"`
}

// DatabaseConfig represents configuration for the review database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "postgres" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
	URL     string `toml:"url,omitempty"`      // only used for type=postgres
}

// ArchiveConfig represents configuration for the round archive backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible stores such as MinIO

	// Static credentials. When empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	Encryption EncryptionConfig `toml:"encryption"`
}

// EncryptionConfig holds paths to the age key pair used for archive encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// LockConfig represents configuration for per-version locking.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LockConfig struct {
	Type       string `toml:"type"`                  // "local" or "redis"
	RedisURL   string `toml:"redis_url,omitempty"`   // only used for type=redis
	TTLSeconds int    `toml:"ttl_seconds,omitempty"` // lease length for type=redis, defaults to 30
}

// FeedbackConfig holds feedback workflow settings.
type FeedbackConfig struct {
	EnforceTransitions bool `toml:"enforce_transitions"`
}

// NewConfig creates a new Config rooted at baseDir with local defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Archive: ArchiveConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "archive"),
			Encryption: EncryptionConfig{
				Type:           "none",
				PublicKeyPath:  filepath.Join(baseDir, "keys", "draftmark.pub"),
				PrivateKeyPath: filepath.Join(baseDir, "keys", "draftmark.key"),
			},
		},
		Lock: LockConfig{Type: "local"},
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
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
