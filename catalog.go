package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownEntry   = errors.New("unknown catalog entry")
	ErrUnknownVariant = errors.New("variant not available")
	ErrPageOutOfRange = errors.New("page out of range")
)

// Reading is a dated entry with up to four drawings, one per reading.
type Reading struct {
	Date        string   `json:"date" yaml:"date"`
	DateDisplay string   `json:"dateDisplay" yaml:"dateDisplay"`
	Description string   `json:"description" yaml:"description"`
	Images      []string `json:"images" yaml:"images"`
}

// Prayer is a named devotional with an ordered list of page images.
type Prayer struct {
	ID     string   `json:"id" yaml:"id"`
	Title  string   `json:"title" yaml:"title"`
	Images []string `json:"images" yaml:"images"`
}

// Variants lists the reading images in liturgical order.
var Variants = []string{"lectura1", "salmo", "lectura2", "evangelio"}

var variantNames = map[string]string{
	"lectura1":  "Primera_Lectura",
	"salmo":     "Salmo",
	"lectura2":  "Segunda_Lectura",
	"evangelio": "Evangelio",
}

// VariantName returns the export name of a reading variant.
func VariantName(variant string) string {
	if n, ok := variantNames[variant]; ok {
		return n
	}
	return variant
}

const (
	readingsBase = "lecturas"
	prayersBase  = "oraciones"
)

var catalogExts = []string{".json", ".yaml", ".yml"}

// Catalog is the set of drawings available for coloring.
type Catalog struct {
	Readings []Reading
	Prayers  []Prayer
}

// LoadCatalog reads lecturas and oraciones from dir. Each file may be JSON
// or YAML; a missing file yields an empty list.
func LoadCatalog(dir string) (*Catalog, error) {
	cat := &Catalog{}
	if err := loadCatalogFile(dir, readingsBase, &cat.Readings); err != nil {
		return nil, err
	}
	if err := loadCatalogFile(dir, prayersBase, &cat.Prayers); err != nil {
		return nil, err
	}
	return cat, nil
}

func loadCatalogFile(dir, base string, v any) error {
	for _, ext := range catalogExts {
		path := filepath.Join(dir, base+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		if ext == ".json" {
			err = json.Unmarshal(data, v)
		} else {
			err = yaml.Unmarshal(data, v)
		}
		if err != nil {
			return fmt.Errorf("parsing catalog %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// isCatalogFile reports whether name is one of the files LoadCatalog reads.
func isCatalogFile(name string) bool {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	if !slices.Contains(catalogExts, ext) {
		return false
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem == readingsBase || stem == prayersBase
}

// Years returns the distinct years of the readings, newest first.
func (c *Catalog) Years() []string {
	var years []string
	for _, r := range c.Readings {
		if len(r.Date) < 4 {
			continue
		}
		y := r.Date[:4]
		if !slices.Contains(years, y) {
			years = append(years, y)
		}
	}
	slices.SortFunc(years, func(a, b string) int { return strings.Compare(b, a) })
	return years
}

// ReadingsForYear returns the readings dated in year, newest first.
func (c *Catalog) ReadingsForYear(year string) []Reading {
	var out []Reading
	for _, r := range c.Readings {
		if strings.HasPrefix(r.Date, year) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Reading) int { return strings.Compare(b.Date, a.Date) })
	return out
}

func (c *Catalog) Reading(date string) (Reading, bool) {
	for _, r := range c.Readings {
		if r.Date == date {
			return r, true
		}
	}
	return Reading{}, false
}

func (c *Catalog) Prayer(id string) (Prayer, bool) {
	for _, p := range c.Prayers {
		if p.ID == id {
			return p, true
		}
	}
	return Prayer{}, false
}

// HasVariant reports whether the reading dated date has the given image.
func (c *Catalog) HasVariant(date, variant string) bool {
	r, ok := c.Reading(date)
	return ok && slices.Contains(r.Images, variant)
}

// ReadingImagePath returns the image path of a reading variant, relative
// to the images root.
func (c *Catalog) ReadingImagePath(date, variant string) (string, error) {
	if _, ok := c.Reading(date); !ok {
		return "", fmt.Errorf("reading %s: %w", date, ErrUnknownEntry)
	}
	if !c.HasVariant(date, variant) {
		return "", fmt.Errorf("reading %s/%s: %w", date, variant, ErrUnknownVariant)
	}
	return date + "/" + variant + ".png", nil
}

// PrayerImagePath returns the image path of a prayer page (0-based),
// relative to the images root.
func (c *Catalog) PrayerImagePath(id string, page int) (string, error) {
	p, ok := c.Prayer(id)
	if !ok {
		return "", fmt.Errorf("prayer %s: %w", id, ErrUnknownEntry)
	}
	if page < 0 || page >= len(p.Images) {
		return "", fmt.Errorf("prayer %s page %d of %d: %w", id, page+1, len(p.Images), ErrPageOutOfRange)
	}
	return "oraciones/" + p.ID + "/" + p.Images[page] + ".png", nil
}

// Selection identifies what is being colored. A prayer selection takes
// precedence over a reading.
type Selection struct {
	Date     string `json:"date,omitempty"`
	Reading  string `json:"reading,omitempty"`
	PrayerID string `json:"prayer,omitempty"`
	Page     int    `json:"page"`
}

// ImagePath resolves the selection to an image path.
func (c *Catalog) ImagePath(sel Selection) (string, error) {
	if sel.PrayerID != "" {
		return c.PrayerImagePath(sel.PrayerID, sel.Page)
	}
	return c.ReadingImagePath(sel.Date, sel.Reading)
}
