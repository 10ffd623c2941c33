package main

const (
	// noopTolerance decides when the seed already has the fill color.
	noopTolerance = 10
	// matchTolerance absorbs anti-aliasing around outlines.
	matchTolerance = 50
	// lineThreshold is the channel average below which a pixel is outline.
	lineThreshold = 80
)

// FloodFill recolors the 4-connected region around seed whose pixels are
// not outline and lie within matchTolerance of the seed's original color.
// Matched pixels get the target color with full opacity. It returns the
// number of recolored pixels.
func FloodFill(buf *PixelBuffer, seed SeedPoint, target string) int {
	if buf == nil || !seed.In(buf.width, buf.height) {
		return 0
	}

	width, height := buf.width, buf.height
	pix := buf.pix
	start := buf.RGBAt(seed.X, seed.Y)
	fill := ParseHex(target)

	if withinTolerance(start, fill, noopTolerance) {
		return 0
	}
	if isLine(start) {
		return 0
	}

	matches := func(i int) bool {
		c := RGB{pix[i*4], pix[i*4+1], pix[i*4+2]}
		if isLine(c) {
			return false
		}
		return withinTolerance(c, start, matchTolerance)
	}

	// One bit per pixel, set when the pixel is enqueued.
	visited := make([]uint64, (width*height+63)/64)
	mark := func(i int) bool {
		w, bit := i>>6, uint64(1)<<(uint(i)&63)
		if visited[w]&bit != 0 {
			return false
		}
		visited[w] |= bit
		return true
	}

	queue := make([]int, 0, 1024)
	enqueue := func(x, y int) {
		if x < 0 || x >= width || y < 0 || y >= height {
			return
		}
		i := y*width + x
		if mark(i) {
			queue = append(queue, i)
		}
	}

	enqueue(seed.X, seed.Y)

	filled := 0
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		if !matches(i) {
			continue
		}

		off := i * 4
		pix[off] = fill.R
		pix[off+1] = fill.G
		pix[off+2] = fill.B
		pix[off+3] = 0xFF
		filled++

		x, y := i%width, i/width
		enqueue(x+1, y)
		enqueue(x-1, y)
		enqueue(x, y+1)
		enqueue(x, y-1)
	}

	return filled
}
