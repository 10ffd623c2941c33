package main

import (
	"bytes"
	"image"

	"golang.org/x/image/draw"
)

// PixelBuffer is a non-premultiplied RGBA raster, 4 bytes per pixel, row-major.
type PixelBuffer struct {
	width  int
	height int
	pix    []uint8
}

func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height*4),
	}
}

// FromImage copies img into a new buffer at its native size.
func FromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	buf := NewPixelBuffer(b.Dx(), b.Dy())

	// NRGBA fast path keeps partially transparent pixels byte-exact.
	if src, ok := img.(*image.NRGBA); ok {
		rowLen := b.Dx() * 4
		for y := 0; y < b.Dy(); y++ {
			sOff := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(buf.pix[y*rowLen:(y+1)*rowLen], src.Pix[sOff:sOff+rowLen])
		}
		return buf
	}

	dst := &image.NRGBA{Pix: buf.pix, Stride: b.Dx() * 4, Rect: image.Rect(0, 0, b.Dx(), b.Dy())}
	draw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	return buf
}

func (p *PixelBuffer) Width() int  { return p.width }
func (p *PixelBuffer) Height() int { return p.height }

// Pix returns the raw RGBA bytes.
func (p *PixelBuffer) Pix() []uint8 { return p.pix }

func (p *PixelBuffer) in(x, y int) bool {
	return x >= 0 && x < p.width && y >= 0 && y < p.height
}

// RGBAt returns the color channels of a pixel. Out of range reads return black.
func (p *PixelBuffer) RGBAt(x, y int) RGB {
	if !p.in(x, y) {
		return black
	}
	i := (y*p.width + x) * 4
	return RGB{p.pix[i], p.pix[i+1], p.pix[i+2]}
}

// AlphaAt returns the alpha channel of a pixel, 0 when out of range.
func (p *PixelBuffer) AlphaAt(x, y int) uint8 {
	if !p.in(x, y) {
		return 0
	}
	return p.pix[(y*p.width+x)*4+3]
}

// SetRGBA writes a single pixel; out of range writes are ignored.
func (p *PixelBuffer) SetRGBA(x, y int, c RGB, a uint8) {
	if !p.in(x, y) {
		return
	}
	i := (y*p.width + x) * 4
	p.pix[i] = c.R
	p.pix[i+1] = c.G
	p.pix[i+2] = c.B
	p.pix[i+3] = a
}

// Clear sets every pixel to c with alpha a.
func (p *PixelBuffer) Clear(c RGB, a uint8) {
	fillRGBA(p.pix, 0, p.width*p.height, c.R, c.G, c.B, a)
}

func (p *PixelBuffer) Clone() *PixelBuffer {
	out := NewPixelBuffer(p.width, p.height)
	copy(out.pix, p.pix)
	return out
}

// Equal reports whether both buffers have the same size and bytes.
func (p *PixelBuffer) Equal(o *PixelBuffer) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.width == o.width && p.height == o.height && bytes.Equal(p.pix, o.pix)
}

// ToNRGBA copies the buffer into a standard library image.
func (p *PixelBuffer) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	copy(img.Pix, p.pix)
	return img
}

// fillRGBA writes count pixels starting at pixel pos, doubling the copied
// span each step.
func fillRGBA(rgba []byte, pos, count int, r, g, b, alpha byte) {
	start := pos * 4
	end := min(start+count*4, len(rgba))
	if start >= end {
		return
	}
	rgba[start] = r
	rgba[start+1] = g
	rgba[start+2] = b
	rgba[start+3] = alpha
	for filled := 4; filled < end-start; filled *= 2 {
		copy(rgba[start+filled:end], rgba[start:start+filled])
	}
}
