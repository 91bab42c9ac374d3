package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotla.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_EnvDefaults(t *testing.T) {
	t.Setenv("FX_CACHE_TTL", "15m")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.FX.CacheTTL != 15*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.FX.CacheTTL)
	}
	if cfg.Export.PDFEngine != "gofpdf" {
		t.Fatalf("pdf engine = %q", cfg.Export.PDFEngine)
	}
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "warn")
	path := writeFile(t, `
api:
  addr: ":7070"
fx:
  cache_ttl: 2h
  provider_url: http://rates.local
export:
  brand_color: "#112233"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.API.Addr != ":7070" {
		t.Fatalf("addr = %q", cfg.API.Addr)
	}
	if cfg.FX.CacheTTL != 2*time.Hour || cfg.FX.ProviderURL != "http://rates.local" {
		t.Fatalf("fx = %+v", cfg.FX)
	}
	if cfg.Export.BrandColor != "#112233" {
		t.Fatalf("brand = %q", cfg.Export.BrandColor)
	}
	// Keys absent from the file keep their environment value.
	if cfg.Log.Level != "warn" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	if cfg.FX.HTTPTimeout != 10*time.Second {
		t.Fatalf("http timeout = %v", cfg.FX.HTTPTimeout)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	if _, err := Load(writeFile(t, "")); err != nil {
		t.Fatalf("Load error = %v", err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	if _, err := Load(writeFile(t, "fx:\n  cache_tll: 1h\n")); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
