package main

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R, G, B uint8
}

var (
	black = RGB{0, 0, 0}
	white = RGB{0xFF, 0xFF, 0xFF}
)

// DefaultPalette holds the colors offered to the user, in display order.
var DefaultPalette = []string{
	"#FF0000", // red
	"#FF6B00", // orange
	"#FFD700", // yellow
	"#90EE90", // light green
	"#228B22", // dark green
	"#00CED1", // turquoise
	"#87CEEB", // sky blue
	"#0066CC", // blue
	"#000080", // navy
	"#9370DB", // light purple
	"#800080", // purple
	"#FF69B4", // pink
	"#FFB6C1", // light pink
	"#8B4513", // brown
	"#D2691E", // light brown
	"#000000", // black
	"#808080", // gray
	"#C0C0C0", // light gray
	"#FFFFFF", // white
	"#FFDAB9", // light skin
	"#DEB887", // medium skin
	"#CD853F", // dark skin
	"#F5DEB3", // wheat
	"#FFF8DC", // cream
}

// ParseHex decodes "#RRGGBB" or "RRGGBB" (any case). Text that does not
// match exactly decodes to black.
func ParseHex(text string) RGB {
	c, err := parseHexStrict(text)
	if err != nil {
		return black
	}
	return c
}

func parseHexStrict(text string) (RGB, error) {
	hex := strings.TrimPrefix(text, "#")
	if len(hex) != 6 {
		return black, fmt.Errorf("invalid hex color: %q (expected 6 hex digits)", text)
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		pair := hex[i*2 : i*2+2]
		if !isHexDigit(pair[0]) || !isHexDigit(pair[1]) {
			return black, fmt.Errorf("invalid hex color: %q", text)
		}
		val, err := strconv.ParseUint(pair, 16, 8)
		if err != nil {
			return black, fmt.Errorf("invalid hex color: %q: %w", text, err)
		}
		rgb[i] = uint8(val)
	}
	return RGB{rgb[0], rgb[1], rgb[2]}, nil
}

// ParseUint accepts a leading '+', which is not a hex digit.
func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// Hex returns the color as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// withinTolerance reports whether every channel of a and b differs by at most tol.
func withinTolerance(a, b RGB, tol uint8) bool {
	return absDiff(a.R, b.R) <= tol &&
		absDiff(a.G, b.G) <= tol &&
		absDiff(a.B, b.B) <= tol
}

// isLine classifies outline pixels: channel average below lineThreshold.
func isLine(c RGB) bool {
	return int(c.R)+int(c.G)+int(c.B) < 3*lineThreshold
}
