package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("RABBITMQ", "redis://localhost:6379/1")

	_, err := Load("")
	if err == nil {
		t.Fatalf("expected an error when DATABASE_URL is unset")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foxeye")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("RABBITMQ", "redis://localhost:6379/1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.SitesFile != "sites.json" {
		t.Errorf("expected default sites file sites.json, got %q", cfg.SitesFile)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foxeye")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("RABBITMQ", "redis://localhost:6379/1")
	t.Setenv("PORT", "9000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected PORT override to take effect, got %d", cfg.Port)
	}
}

func TestLoad_ConfigFileOverridesDefaultsButNotEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foxeye")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("RABBITMQ", "redis://localhost:6379/1")
	t.Setenv("PORT", "9000")

	cfgFile := filepath.Join(t.TempDir(), "foxeye.yaml")
	contents := "port: 8888\nsites_file: custom-sites.json\n"
	if err := os.WriteFile(cfgFile, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SitesFile != "custom-sites.json" {
		t.Errorf("expected sites_file from config file, got %q", cfg.SitesFile)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected env PORT to take precedence over the config file, got %d", cfg.Port)
	}
}

func TestLoad_MissingConfigFileErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/foxeye")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("RABBITMQ", "redis://localhost:6379/1")

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
