package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettingsDisablesSchemaWhenDefaultPathMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	prev := cfgFile
	cfgFile = "config.yaml"
	t.Cleanup(func() { cfgFile = prev })

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if settings.SchemaPath != "" {
		t.Errorf("SchemaPath = %q, want empty when the default schema file is absent", settings.SchemaPath)
	}
}

func TestLoadSettingsKeepsConfiguredSchemaPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfg, []byte("schema_path: ./custom/schema.xsd\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	prev := cfgFile
	cfgFile = cfg
	t.Cleanup(func() { cfgFile = prev })

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if settings.SchemaPath != "./custom/schema.xsd" {
		t.Errorf("SchemaPath = %q, want the configured path untouched", settings.SchemaPath)
	}
}

func TestLoadSettingsRejectsMissingNamedConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	prev := cfgFile
	cfgFile = "nonexistent.yaml"
	t.Cleanup(func() { cfgFile = prev })

	if _, err := loadSettings(); err == nil {
		t.Fatal("expected an error for an explicitly named missing config file")
	}
}
