package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Palette.Colors) != len(DefaultPalette) || cfg.Export.PPI != DefaultPPI || cfg.Server.Addr != ":8080" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Watch.PollDuration() != 5*time.Second {
		t.Errorf("poll = %v", cfg.Watch.PollDuration())
	}
	if _, ok := cfg.ImageSource().(DirSource); !ok {
		t.Errorf("default source = %T, want DirSource", cfg.ImageSource())
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[palette]
colors = ["#000000", "#ffffff"]

[catalog]
dir = "/srv/catalog"
base_url = "https://example.org/images/"

[export]
ppi = 300
outlines = false

[server]
addr = "127.0.0.1:9000"
max_sessions = 4

[watch]
poll_interval = 30
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" || len(cfg.Palette.Colors) != 2 || cfg.Catalog.Dir != "/srv/catalog" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Catalog.ImagesDir != "public/images" {
		t.Errorf("unset images_dir = %q, want default", cfg.Catalog.ImagesDir)
	}
	if !cfg.Export.Validate {
		t.Error("unset validate lost its default")
	}
	if cfg.Watch.PollDuration() != 30*time.Second {
		t.Errorf("poll = %v", cfg.Watch.PollDuration())
	}
	src, ok := cfg.ImageSource().(HTTPSource)
	if !ok || src.BaseURL != "https://example.org/images/" {
		t.Errorf("source = %#v", cfg.ImageSource())
	}
	enc := cfg.SheetEncoder("t")
	if enc.PPI != 300 || enc.Outlines || enc.Title != "t" {
		t.Errorf("encoder = %+v", enc)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := map[string]string{
		"bad color":     "[palette]\ncolors = [\"#12345G\"]\n",
		"empty palette": "[palette]\ncolors = []\n",
		"zero ppi":      "[export]\nppi = 0\n",
		"no sessions":   "[server]\nmax_sessions = 0\n",
		"bad toml":      "log_level = \n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Error("LoadConfig succeeded")
			} else if !strings.Contains(err.Error(), "config") {
				t.Errorf("error %q does not name the config file", err)
			}
		})
	}
}
