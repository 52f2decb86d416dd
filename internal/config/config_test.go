package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elajah-datadog/dogflare/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := config.NewConfig("/var/lib/dogflare")

	if cfg.DownloadsRoot != filepath.Join("/var/lib/dogflare", "downloads") {
		t.Errorf("DownloadsRoot = %s", cfg.DownloadsRoot)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %s, want sqlite", cfg.Database.Type)
	}
	if cfg.Mirror.Type != "none" {
		t.Errorf("Mirror.Type = %s, want none", cfg.Mirror.Type)
	}
	if cfg.Encryption.PublicKeyPath == "" || cfg.Encryption.PrivateKeyPath == "" {
		t.Error("encryption key paths not defaulted")
	}
}

func TestManager_RoundTrip(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Zendesk = config.ZendeskConfig{
		Subdomain: "acme",
		Email:     "agent@example.com",
		APIToken:  "secret",
	}
	cfg.Mirror = config.MirrorConfig{
		Type:     "s3",
		Name:     "offsite",
		Encrypt:  true,
		S3Bucket: "dogflare-mirror",
		S3Region: "us-east-1",
	}

	m := &config.Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if *got != *cfg {
		t.Errorf("round-trip mismatch:\n got  %+v\n want %+v", got, cfg)
	}
}

func TestRead_PartialConfig(t *testing.T) {
	m := &config.Manager{}
	cfg, err := m.Read(strings.NewReader(`
downloads_root = "/srv/downloads"

[zendesk]
subdomain = "acme"
`))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.DownloadsRoot != "/srv/downloads" {
		t.Errorf("DownloadsRoot = %s", cfg.DownloadsRoot)
	}
	if cfg.Zendesk.Subdomain != "acme" {
		t.Errorf("Zendesk.Subdomain = %s", cfg.Zendesk.Subdomain)
	}
	if cfg.Database.Type != "" {
		t.Errorf("Database.Type = %s, want unset", cfg.Database.Type)
	}
}

func TestRead_InvalidTOML(t *testing.T) {
	m := &config.Manager{}
	if _, err := m.Read(strings.NewReader("not [valid toml")); err == nil {
		t.Error("Read() = nil error for invalid input")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates the file and parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dogflare.toml")
		cfg := config.NewConfig(t.TempDir())

		if err := config.Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := config.ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DownloadsRoot != cfg.DownloadsRoot {
			t.Errorf("DownloadsRoot = %s, want %s", got.DownloadsRoot, cfg.DownloadsRoot)
		}
	})

	t.Run("refuses to overwrite an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dogflare.toml")
		if err := os.WriteFile(path, []byte("downloads_root = \"/keep\"\n"), 0644); err != nil {
			t.Fatalf("seeding config file: %v", err)
		}

		if err := config.Init(path, config.NewConfig(t.TempDir())); err == nil {
			t.Fatal("Init() = nil error for an existing file")
		}

		got, err := config.ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.DownloadsRoot != "/keep" {
			t.Error("existing config was overwritten")
		}
	})
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := config.ReadFromFile(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("ReadFromFile() = nil error for a missing file")
	}
}
