package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rupor-github/gencfg"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
editor:
  min_image_width: 50
  min_table_width: 200
  local_prefixes: ["/uploads/", "/media/"]
ingest:
  upload_dir: ` + filepath.Join(tmpDir, "uploads") + `
  jpeg_quality: 90
  rasterize_svg: true
server:
  listen: 127.0.0.1:9000
  admin_token: hunter2
logging:
  console:
    level: normal
  file:
    level: debug
    destination: ` + filepath.Join(tmpDir, "test.log") + `
    mode: append
reporting:
  destination: ` + filepath.Join(tmpDir, "test-report.zip") + `
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}

	if cfg.Editor.MinImageWidth != 50 {
		t.Errorf("MinImageWidth = %d, want 50", cfg.Editor.MinImageWidth)
	}

	if cfg.Editor.MinTableWidth != 200 {
		t.Errorf("MinTableWidth = %d, want 200", cfg.Editor.MinTableWidth)
	}

	if len(cfg.Editor.LocalPrefixes) != 2 {
		t.Errorf("LocalPrefixes length = %d, want 2", len(cfg.Editor.LocalPrefixes))
	}

	if cfg.Ingest.JPEGQuality != 90 {
		t.Errorf("JPEGQuality = %d, want 90", cfg.Ingest.JPEGQuality)
	}

	if !cfg.Ingest.RasterizeSVG {
		t.Error("Expected RasterizeSVG to be true")
	}

	if cfg.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %s, want 127.0.0.1:9000", cfg.Server.Listen)
	}

	if string(cfg.Server.AdminToken) != "hunter2" {
		t.Error("AdminToken did not survive loading")
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `version: 1
editor:
  min_image_width: 40
  invalid indent
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadConfiguration_UnknownFields(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "unknown.yaml")

	configWithUnknown := `version: 1
unknown_field: value
editor:
  min_image_width: 40
`

	if err := os.WriteFile(configPath, []byte(configWithUnknown), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected error for unknown fields")
	}
}

func TestLoadConfiguration_ValidationError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_values.yaml")

	// Invalid version number
	configWithInvalidVersion := `version: 2
editor:
  min_image_width: 40
`

	if err := os.WriteFile(configPath, []byte(configWithInvalidVersion), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected validation error for invalid version")
	}
}

func TestLoadConfiguration_RejectsBadBounds(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bounds.yaml")

	// max_font_size below min_font_size must not validate
	badBounds := `version: 1
editor:
  min_font_size: 20
  max_font_size: 12
`

	if err := os.WriteFile(configPath, []byte(badBounds), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadConfiguration(configPath)
	if err == nil {
		t.Error("Expected validation error for inverted font bounds")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}

	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	cfg := &Config{}
	_, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Editor: EditorConfig{
			MinImageWidth:  40,
			MinImageHeight: 30,
			MinTableWidth:  120,
			TableMaxFactor: 2.0,
			MinFontSize:    10,
			MaxFontSize:    48,
			LocalPrefixes:  []string{"/uploads/"},
		},
		Ingest: IngestConfig{
			UploadDir:     "uploads",
			PublicPrefix:  "/uploads",
			ImageMaxBytes: 1024,
			MediaMaxBytes: 4096,
			NameTemplate:  "{{ .Slug }}.{{ .Ext }}",
			JPEGQuality:   85,
		},
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if len(data) == 0 {
		t.Error("Dump() returned empty data")
	}

	// Verify we can load it back
	cfg2 := &Config{}
	_, err = unmarshalConfig(data, cfg2, false)
	if err != nil {
		t.Errorf("Dumped config cannot be loaded: %v", err)
	}

	if cfg2.Version != cfg.Version {
		t.Errorf("Version mismatch after dump/load: got %d, want %d", cfg2.Version, cfg.Version)
	}
}

func TestDump_HidesAdminToken(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Server.AdminToken = "very-secret-token"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if containsSubstring(string(data), "very-secret-token") {
		t.Error("Dumped configuration contains actual admin token")
	}
}

func TestUnmarshalConfig(t *testing.T) {
	t.Run("valid config without processing", func(t *testing.T) {
		data := []byte(`version: 1`)
		cfg := &Config{}

		result, err := unmarshalConfig(data, cfg, false)
		if err != nil {
			t.Errorf("unmarshalConfig() error = %v", err)
		}

		if result == nil {
			t.Fatal("unmarshalConfig() returned nil")
		}

		if result.Version != 1 {
			t.Errorf("Version = %d, want 1", result.Version)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		data := []byte(`invalid: [yaml`)
		cfg := &Config{}

		_, err := unmarshalConfig(data, cfg, false)
		if err == nil {
			t.Error("Expected error for invalid YAML")
		}
	})
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	// Check that default values are reasonable
	if cfg.Editor.MinImageWidth < 1 {
		t.Error("MinImageWidth should be positive")
	}

	if cfg.Editor.TableMaxFactor <= 1.0 {
		t.Errorf("TableMaxFactor = %f, should be above 1.0", cfg.Editor.TableMaxFactor)
	}

	if cfg.Ingest.JPEGQuality < 40 || cfg.Ingest.JPEGQuality > 100 {
		t.Errorf("JPEGQuality = %d, should be between 40 and 100", cfg.Ingest.JPEGQuality)
	}

	if cfg.Ingest.ImageMaxBytes >= cfg.Ingest.MediaMaxBytes {
		t.Error("Image ceiling should be below media ceiling")
	}

	if len(cfg.Editor.LocalPrefixes) == 0 {
		t.Error("LocalPrefixes should not be empty")
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	// Partial config that only overrides some values
	partialConfig := `version: 1
editor:
  min_image_width: 64
`

	if err := os.WriteFile(configPath, []byte(partialConfig), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	// Check that explicitly set value is used
	if cfg.Editor.MinImageWidth != 64 {
		t.Errorf("MinImageWidth = %d, want 64 from config file", cfg.Editor.MinImageWidth)
	}

	// Check that default values are still present for unspecified fields
	if cfg.Ingest.NameTemplate == "" {
		t.Error("NameTemplate should have default value")
	}
	if cfg.Server.Listen == "" {
		t.Error("Listen should have default value")
	}
}

func TestLoadConfiguration_NameTemplateNotExpanded(t *testing.T) {
	// The name template uses the same {{ }} syntax the config processor
	// expands, it must pass through intact.
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if !containsSubstring(cfg.Ingest.NameTemplate, "{{") {
		t.Errorf("NameTemplate was expanded during processing: %q", cfg.Ingest.NameTemplate)
	}
}
