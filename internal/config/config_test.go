package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/draftmark",
		LogDir:  "/home/user/.local/share/draftmark/log",
		Database: DatabaseConfig{
			Type: "postgres",
			URL:  "postgres://draftmark@localhost/draftmark",
		},
		Archive: ArchiveConfig{
			Type:     "s3",
			S3Bucket: "review-archive",
			S3Prefix: "rounds",
			S3Region: "eu-west-1",
			Encryption: EncryptionConfig{
				Type:           "age",
				PublicKeyPath:  "/keys/draftmark.pub",
				PrivateKeyPath: "/keys/draftmark.key",
			},
		},
		Lock:     LockConfig{Type: "redis", RedisURL: "redis://localhost:6379/0", TTLSeconds: 10},
		Feedback: FeedbackConfig{EnforceTransitions: true},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Archive != original.Archive {
		t.Errorf("Archive = %+v, want %+v", got.Archive, original.Archive)
	}
	if got.Lock != original.Lock {
		t.Errorf("Lock = %+v, want %+v", got.Lock, original.Lock)
	}
	if !got.Feedback.EnforceTransitions {
		t.Error("Feedback.EnforceTransitions = false, want true")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/draftmark")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", cfg.BaseDir, "/data/draftmark"},
		{"LogDir", cfg.LogDir, "/data/draftmark/log"},
		{"Database.Type", cfg.Database.Type, "sqlite"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/draftmark/db"},
		{"Archive.Type", cfg.Archive.Type, "filesystem"},
		{"Archive.Root", cfg.Archive.Root, "/data/draftmark/archive"},
		{"Archive.Encryption.Type", cfg.Archive.Encryption.Type, "none"},
		{"Archive.Encryption.PublicKeyPath", cfg.Archive.Encryption.PublicKeyPath, "/data/draftmark/keys/draftmark.pub"},
		{"Archive.Encryption.PrivateKeyPath", cfg.Archive.Encryption.PrivateKeyPath, "/data/draftmark/keys/draftmark.key"},
		{"Lock.Type", cfg.Lock.Type, "local"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Feedback.EnforceTransitions {
		t.Error("Feedback.EnforceTransitions = true, want false")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "draftmark.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "draftmark.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "draftmark.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/draftmark.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
