package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/dennwc/gotrace"
)

// lineMask marks outline pixels black on a white grayscale mask.
// It reports false when the buffer has no outline pixels.
func lineMask(buf *PixelBuffer) (*image.Gray, bool) {
	mask := image.NewGray(image.Rect(0, 0, buf.width, buf.height))
	if len(mask.Pix) == 0 {
		return mask, false
	}
	mask.Pix[0] = 0xFF
	for filled := 1; filled < len(mask.Pix); filled *= 2 {
		copy(mask.Pix[filled:], mask.Pix[:filled])
	}

	found := false
	pix := buf.pix
	for i := 0; i < buf.width*buf.height; i++ {
		off := i * 4
		if pix[off+3] == 0 {
			continue
		}
		if isLine(RGB{pix[off], pix[off+1], pix[off+2]}) {
			mask.Pix[i] = 0x00
			found = true
		}
	}
	return mask, found
}

// traceOutlines vectorises the outline pixels of buf.
func traceOutlines(buf *PixelBuffer) ([]gotrace.Path, error) {
	mask, ok := lineMask(buf)
	if !ok {
		return nil, nil
	}

	params := gotrace.Defaults
	params.TurdSize = 2

	bm := gotrace.NewBitmapFromImage(mask, func(x, y int, cl color.Color) bool {
		v, _, _, _ := cl.RGBA()
		return v < 0x8000
	})
	paths, err := gotrace.Trace(bm, &params)
	if err != nil {
		return nil, fmt.Errorf("tracing outlines: %w", err)
	}
	return paths, nil
}

// appendPDFSubpath appends a single traced path as PDF subpath operators to buf.
func appendPDFSubpath(buf []byte, p gotrace.Path, sx, sy, pageHeightPt float64) []byte {
	c := p.Curve
	if len(c) == 0 {
		return buf
	}

	last := c[len(c)-1]
	buf = appendFloat4(buf, last.Pnt[2].X*sx)
	buf = append(buf, ' ')
	buf = appendFloat4(buf, pageHeightPt-last.Pnt[2].Y*sy)
	buf = append(buf, " m\n"...)

	for _, seg := range c {
		switch seg.Type {
		case gotrace.TypeBezier:
			for k := 0; k < 3; k++ {
				buf = appendFloat4(buf, seg.Pnt[k].X*sx)
				buf = append(buf, ' ')
				buf = appendFloat4(buf, pageHeightPt-seg.Pnt[k].Y*sy)
				buf = append(buf, ' ')
			}
			buf = append(buf, "c\n"...)
		case gotrace.TypeCorner:
			buf = appendFloat4(buf, seg.Pnt[1].X*sx)
			buf = append(buf, ' ')
			buf = appendFloat4(buf, pageHeightPt-seg.Pnt[1].Y*sy)
			buf = append(buf, " l\n"...)
			buf = appendFloat4(buf, seg.Pnt[2].X*sx)
			buf = append(buf, ' ')
			buf = appendFloat4(buf, pageHeightPt-seg.Pnt[2].Y*sy)
			buf = append(buf, " l\n"...)
		}
	}

	buf = append(buf, "h\n"...)
	return buf
}

// appendPDFSubpathTree appends a path and its children (holes, islands) so
// the even-odd fill rule cuts out enclosed regions.
func appendPDFSubpathTree(buf []byte, p gotrace.Path, sx, sy, pageHeightPt float64) []byte {
	buf = appendPDFSubpath(buf, p, sx, sy, pageHeightPt)
	for _, child := range p.Childs {
		buf = appendPDFSubpathTree(buf, child, sx, sy, pageHeightPt)
	}
	return buf
}
