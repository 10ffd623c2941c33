package main

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"regexp"
	"strings"

	"golang.org/x/image/draw"
)

const exportSuffix = "_coloreado"

var whitespaceRun = regexp.MustCompile(`[\s\p{Zs}]+`)

// PNGEncoder writes the buffer as a lossless PNG.
type PNGEncoder struct{}

func (PNGEncoder) Encode(w io.Writer, buf *PixelBuffer) error {
	if buf == nil {
		return ErrNotLoaded
	}
	return png.Encode(w, buf.ToNRGBA())
}

// exportStem derives the file name (without extension) for a selection:
// "<Title>_p<page>_coloreado" for prayers, "<date>_<Reading>_coloreado"
// for readings.
func exportStem(cat *Catalog, sel Selection) string {
	if sel.PrayerID != "" {
		title := sel.PrayerID
		if cat != nil {
			if p, ok := cat.Prayer(sel.PrayerID); ok {
				title = p.Title
			}
		}
		return fmt.Sprintf("%s_p%d%s", whitespaceRun.ReplaceAllString(title, "_"), sel.Page+1, exportSuffix)
	}
	return fmt.Sprintf("%s_%s%s", sel.Date, VariantName(sel.Reading), exportSuffix)
}

// ExportFilename is the suggested name of the PNG export.
func ExportFilename(cat *Catalog, sel Selection) string {
	return exportStem(cat, sel) + ".png"
}

// SheetFilename is the suggested name of the printable PDF sheet.
func SheetFilename(cat *Catalog, sel Selection) string {
	return exportStem(cat, sel) + ".pdf"
}

// SheetTitle is the document title written into PDF sheets.
func SheetTitle(cat *Catalog, sel Selection) string {
	if cat == nil {
		return ""
	}
	if sel.PrayerID != "" {
		if p, ok := cat.Prayer(sel.PrayerID); ok {
			return fmt.Sprintf("%s (%d)", p.Title, sel.Page+1)
		}
		return ""
	}
	if r, ok := cat.Reading(sel.Date); ok {
		return strings.TrimSpace(fmt.Sprintf("%s %s - %s", r.DateDisplay, strings.ReplaceAll(VariantName(sel.Reading), "_", " "), r.Description))
	}
	return ""
}

// Preview scales buf down to at most maxWidth pixels wide, keeping the
// aspect ratio. Buffers already narrower are returned at native size.
func Preview(buf *PixelBuffer, maxWidth int) *image.NRGBA {
	src := buf.ToNRGBA()
	if maxWidth <= 0 || buf.width <= maxWidth {
		return src
	}
	h := max(1, buf.height*maxWidth/buf.width)
	dst := image.NewNRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
