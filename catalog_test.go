package main

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

const testReadingsJSON = `[
  {"date": "2024-12-25", "dateDisplay": "25 de diciembre", "description": "Natividad", "images": ["lectura1", "salmo", "evangelio"]},
  {"date": "2025-01-05", "dateDisplay": "5 de enero", "description": "Epifanía", "images": ["evangelio"]},
  {"date": "2024-03-31", "dateDisplay": "31 de marzo", "description": "Pascua", "images": ["lectura1", "lectura2", "salmo", "evangelio"]}
]`

const testPrayersYAML = `
- id: padrenuestro
  title: "Padre   Nuestro"
  images: [p1, p2, p3]
- id: avemaria
  title: Ave María
  images: [p1]
`

func writeCatalog(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := writeCatalog(t, map[string]string{
		"lecturas.json":  testReadingsJSON,
		"oraciones.yaml": testPrayersYAML,
	})
	cat, err := LoadCatalog(dir)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestLoadCatalog(t *testing.T) {
	cat := testCatalog(t)
	if len(cat.Readings) != 3 || len(cat.Prayers) != 2 {
		t.Fatalf("loaded %d readings, %d prayers", len(cat.Readings), len(cat.Prayers))
	}
	p, ok := cat.Prayer("padrenuestro")
	if !ok || p.Title != "Padre   Nuestro" || len(p.Images) != 3 {
		t.Errorf("prayer = %+v, %v", p, ok)
	}
	r, ok := cat.Reading("2025-01-05")
	if !ok || r.DateDisplay != "5 de enero" {
		t.Errorf("reading = %+v, %v", r, ok)
	}
}

func TestLoadCatalogMissingFiles(t *testing.T) {
	cat, err := LoadCatalog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(cat.Readings) != 0 || len(cat.Prayers) != 0 {
		t.Errorf("empty dir produced %+v", cat)
	}
}

func TestLoadCatalogMalformed(t *testing.T) {
	dir := writeCatalog(t, map[string]string{"lecturas.json": "{not json"})
	if _, err := LoadCatalog(dir); err == nil {
		t.Error("malformed catalog loaded without error")
	}
}

func TestCatalogYears(t *testing.T) {
	cat := testCatalog(t)
	if got, want := cat.Years(), []string{"2025", "2024"}; !slices.Equal(got, want) {
		t.Errorf("Years() = %v, want %v", got, want)
	}
	var dates []string
	for _, r := range cat.ReadingsForYear("2024") {
		dates = append(dates, r.Date)
	}
	if want := []string{"2024-12-25", "2024-03-31"}; !slices.Equal(dates, want) {
		t.Errorf("ReadingsForYear(2024) = %v, want %v", dates, want)
	}
	if got := cat.ReadingsForYear("1999"); len(got) != 0 {
		t.Errorf("ReadingsForYear(1999) = %v", got)
	}
}

func TestCatalogImagePath(t *testing.T) {
	cat := testCatalog(t)
	tests := []struct {
		name    string
		sel     Selection
		want    string
		wantErr error
	}{
		{"reading", Selection{Date: "2024-12-25", Reading: "salmo"}, "2024-12-25/salmo.png", nil},
		{"prayer first page", Selection{PrayerID: "padrenuestro"}, "oraciones/padrenuestro/p1.png", nil},
		{"prayer last page", Selection{PrayerID: "padrenuestro", Page: 2}, "oraciones/padrenuestro/p3.png", nil},
		{"prayer wins over reading", Selection{Date: "2024-12-25", Reading: "salmo", PrayerID: "avemaria"}, "oraciones/avemaria/p1.png", nil},
		{"unknown date", Selection{Date: "2023-01-01", Reading: "salmo"}, "", ErrUnknownEntry},
		{"missing variant", Selection{Date: "2025-01-05", Reading: "salmo"}, "", ErrUnknownVariant},
		{"unknown prayer", Selection{PrayerID: "credo"}, "", ErrUnknownEntry},
		{"page past end", Selection{PrayerID: "avemaria", Page: 1}, "", ErrPageOutOfRange},
		{"negative page", Selection{PrayerID: "avemaria", Page: -1}, "", ErrPageOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cat.ImagePath(tt.sel)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("path = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasVariant(t *testing.T) {
	cat := testCatalog(t)
	if !cat.HasVariant("2024-03-31", "lectura2") {
		t.Error("lectura2 should be available on 2024-03-31")
	}
	if cat.HasVariant("2024-12-25", "lectura2") {
		t.Error("lectura2 should not be available on 2024-12-25")
	}
}

func TestIsCatalogFile(t *testing.T) {
	for name, want := range map[string]bool{
		"/data/lecturas.json":   true,
		"oraciones.yml":         true,
		"data/oraciones.YAML":   true,
		"lecturas.json.swp":     false,
		"otras.json":            false,
		"lecturas":              false,
		"/data/.lecturas.json~": false,
	} {
		if got := isCatalogFile(name); got != want {
			t.Errorf("isCatalogFile(%q) = %v, want %v", name, got, want)
		}
	}
}
