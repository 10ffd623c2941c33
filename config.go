package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type PaletteConfig struct {
	Colors []string `toml:"colors"`
}

type CatalogConfig struct {
	Dir       string `toml:"dir"`
	ImagesDir string `toml:"images_dir"`
	// BaseURL, when set, fetches images over HTTP instead of from ImagesDir.
	BaseURL string `toml:"base_url"`
}

type ExportConfig struct {
	Dir      string  `toml:"dir"`
	PPI      float64 `toml:"ppi"`
	Outlines bool    `toml:"outlines"`
	Validate bool    `toml:"validate"`
}

type ServerConfig struct {
	Addr        string `toml:"addr"`
	MaxSessions int    `toml:"max_sessions"`
}

type WatchConfig struct {
	PollInterval int `toml:"poll_interval"` // seconds, 0 = default (5s)
}

func (w WatchConfig) PollDuration() time.Duration {
	if w.PollInterval > 0 {
		return time.Duration(w.PollInterval) * time.Second
	}
	return 5 * time.Second
}

type Config struct {
	LogLevel string        `toml:"log_level"`
	Palette  PaletteConfig `toml:"palette"`
	Catalog  CatalogConfig `toml:"catalog"`
	Export   ExportConfig  `toml:"export"`
	Server   ServerConfig  `toml:"server"`
	Watch    WatchConfig   `toml:"watch"`
}

func defaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Palette: PaletteConfig{
			Colors: append([]string(nil), DefaultPalette...),
		},
		Catalog: CatalogConfig{
			Dir:       "data",
			ImagesDir: "public/images",
		},
		Export: ExportConfig{
			Dir:      "exports",
			PPI:      DefaultPPI,
			Outlines: true,
			Validate: true,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxSessions: 64,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects palettes with malformed colors and non-positive sheet
// resolutions.
func (c *Config) Validate() error {
	if len(c.Palette.Colors) == 0 {
		return errors.New("palette: at least one color is required")
	}
	for i, hex := range c.Palette.Colors {
		if _, err := parseHexStrict(hex); err != nil {
			return fmt.Errorf("palette color %d: %w", i+1, err)
		}
	}
	if c.Export.PPI <= 0 {
		return fmt.Errorf("export: ppi must be positive, got %g", c.Export.PPI)
	}
	if c.Server.MaxSessions < 1 {
		return fmt.Errorf("server: max_sessions must be at least 1, got %d", c.Server.MaxSessions)
	}
	return nil
}

// ImageSource returns the configured image collaborator.
func (c *Config) ImageSource() ImageSource {
	if c.Catalog.BaseURL != "" {
		return HTTPSource{BaseURL: c.Catalog.BaseURL}
	}
	return DirSource{Root: c.Catalog.ImagesDir}
}

// SheetEncoder returns the PDF encoder configured by [export].
func (c *Config) SheetEncoder(title string) PDFEncoder {
	return PDFEncoder{PPI: c.Export.PPI, Outlines: c.Export.Outlines, Title: title}
}
