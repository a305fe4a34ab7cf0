package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("Expected non-nil config")
	}

	if !config.Incremental {
		t.Error("Expected incremental updates to be enabled by default")
	}

	if config.AttributeName != "data-tracking-id" {
		t.Errorf("Expected attribute name 'data-tracking-id', got '%s'", config.AttributeName)
	}

	if config.Debounce != 50*time.Millisecond {
		t.Errorf("Expected debounce 50ms, got %v", config.Debounce)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), ConfigFileName))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Addr != DefaultAddr {
		t.Errorf("Expected default addr, got '%s'", config.Addr)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := "incremental: false\ndebounce: 200ms\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Incremental {
		t.Error("Expected incremental to be disabled")
	}

	if config.Debounce != 200*time.Millisecond {
		t.Errorf("Expected debounce 200ms, got %v", config.Debounce)
	}

	if config.AttributeName != DefaultAttributeName {
		t.Errorf("Expected missing keys to keep defaults, got attribute '%s'", config.AttributeName)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("incremental: [oops"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	config := DefaultConfig()
	config.AttributeName = "data-sync-id"
	config.Debug = true

	if err := config.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if *loaded != *config {
		t.Errorf("Round trip mismatch: got %+v, want %+v", loaded, config)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"attribute without data prefix", func(c *Config) { c.AttributeName = "tracking-id" }, "attributename"},
		{"empty attribute", func(c *Config) { c.AttributeName = "" }, "attributename"},
		{"bad addr", func(c *Config) { c.Addr = "not an address" }, "addr"},
		{"negative debounce", func(c *Config) { c.Debounce = -time.Second }, "debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			err := config.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}

			var multi MultiError
			if !errors.As(err, &multi) {
				t.Fatalf("Expected MultiError, got %T", err)
			}

			if len(multi) != 1 || multi[0].Field != tt.field {
				t.Errorf("Expected one error for %s, got %v", tt.field, multi)
			}
		})
	}
}
