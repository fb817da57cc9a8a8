package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Processing.WindowSize != 64 || cfg.Processing.WindowStep != 6 {
		t.Errorf("Expected 64/6 window defaults, got %d/%d", cfg.Processing.WindowSize, cfg.Processing.WindowStep)
	}
	if cfg.Processing.NoData != -9999 {
		t.Errorf("Expected no-data -9999, got %f", cfg.Processing.NoData)
	}
	if cfg.Region.ColStart != -1 || cfg.Region.RowEnd != -1 {
		t.Errorf("Expected full-extent region defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.UpsampleFactor != 1 {
		t.Errorf("Expected defaults for a missing file")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s2coreg.yaml")
	content := strings.Join([]string{
		"processing:",
		"  windowSize: 32",
		"  upsampleFactor: 10",
		"  fftBackend: godsp",
		"region:",
		"  colStart: 100",
		"output:",
		"  format: bin",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.WindowSize != 32 || cfg.Processing.UpsampleFactor != 10 {
		t.Errorf("Expected overridden processing values, got %+v", cfg.Processing)
	}
	if cfg.Processing.WindowStep != 6 {
		t.Errorf("Expected untouched windowStep default 6, got %d", cfg.Processing.WindowStep)
	}
	if cfg.Region.ColStart != 100 || cfg.Region.ColEnd != -1 {
		t.Errorf("Unexpected region %+v", cfg.Region)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Config should validate: %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("processing: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestLoadConfigEdgeCases(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty file", "", false},
		{"unknown key", "processing:\n  windowSise: 32\n", true},
		{"unknown section", "masking:\n  overlapRatio: 0.3\n", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadConfig(path)
			if tc.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if cfg.Processing.WindowSize != 64 {
				t.Errorf("Expected default window size, got %d", cfg.Processing.WindowSize)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Output.ClampMax != 32000 || cfg.Output.Scale != 1000 {
		t.Errorf("Unexpected output section after reload: %+v", cfg.Output)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"window size", func(c *Config) { c.Processing.WindowSize = 1 }},
		{"window step", func(c *Config) { c.Processing.WindowStep = 0 }},
		{"upsample", func(c *Config) { c.Processing.UpsampleFactor = 0 }},
		{"output type", func(c *Config) { c.Processing.OutputType = "uint8" }},
		{"backend", func(c *Config) { c.Processing.FFTBackend = "fftw" }},
		{"format", func(c *Config) { c.Output.Format = "jp2" }},
		{"scale", func(c *Config) { c.Output.Scale = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}
