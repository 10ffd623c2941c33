package main

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrDimensionMismatch = errors.New("snapshot dimensions do not match buffer")

// Snapshot is an immutable copy of a PixelBuffer.
//
// Pixels are stored as runs: a uvarint run length followed by the 4 RGBA
// bytes repeated by the run. Line art is mostly flat color, so a full-size
// drawing usually encodes to a few percent of its raw size.
type Snapshot struct {
	width  int
	height int
	runs   []byte
}

// TakeSnapshot encodes the current contents of buf.
func TakeSnapshot(buf *PixelBuffer) Snapshot {
	pix := buf.pix
	runs := make([]byte, 0, 1024)

	n := len(pix) / 4
	for pos := 0; pos < n; {
		off := pos * 4
		r, g, b, a := pix[off], pix[off+1], pix[off+2], pix[off+3]
		length := 1
		for next := off + 4; pos+length < n; next += 4 {
			if pix[next] != r || pix[next+1] != g || pix[next+2] != b || pix[next+3] != a {
				break
			}
			length++
		}
		runs = binary.AppendUvarint(runs, uint64(length))
		runs = append(runs, r, g, b, a)
		pos += length
	}

	return Snapshot{width: buf.width, height: buf.height, runs: runs}
}

func (s Snapshot) Width() int  { return s.width }
func (s Snapshot) Height() int { return s.height }

// Size returns the encoded size in bytes.
func (s Snapshot) Size() int { return len(s.runs) }

// RestoreInto overwrites buf with the snapshot contents.
func (s Snapshot) RestoreInto(buf *PixelBuffer) error {
	if buf.width != s.width || buf.height != s.height {
		return fmt.Errorf("%w: snapshot %dx%d, buffer %dx%d",
			ErrDimensionMismatch, s.width, s.height, buf.width, buf.height)
	}
	decodeRuns(s.runs, s.width*s.height, func(pos, length int, r, g, b, a byte) {
		fillRGBA(buf.pix, pos, length, r, g, b, a)
	})
	return nil
}

// Buffer decodes the snapshot into a new PixelBuffer.
func (s Snapshot) Buffer() *PixelBuffer {
	buf := NewPixelBuffer(s.width, s.height)
	_ = s.RestoreInto(buf)
	return buf
}

// decodeRuns walks the run stream and calls emit for each run, clipped to
// expected pixels.
func decodeRuns(data []byte, expected int, emit func(pos, length int, r, g, b, a byte)) {
	pos := 0
	i := 0
	for i < len(data) && pos < expected {
		length, n := binary.Uvarint(data[i:])
		if n <= 0 || i+n+4 > len(data) {
			return
		}
		i += n
		r, g, b, a := data[i], data[i+1], data[i+2], data[i+3]
		i += 4

		run := int(min(length, uint64(expected-pos)))
		emit(pos, run, r, g, b, a)
		pos += run
	}
}
