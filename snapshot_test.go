package main

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	buf := whiteBuffer(16, 9)
	buf.SetRGBA(0, 0, RGB{1, 2, 3}, 4)
	for x := 0; x < 16; x++ {
		buf.SetRGBA(x, 4, black, 0xFF)
	}
	buf.SetRGBA(15, 8, RGB{200, 100, 50}, 128)

	snap := TakeSnapshot(buf)
	if snap.Width() != 16 || snap.Height() != 9 {
		t.Fatalf("snapshot size = %dx%d", snap.Width(), snap.Height())
	}
	if !snap.Buffer().Equal(buf) {
		t.Error("decoded snapshot differs from source")
	}

	saved := buf.Clone()
	FloodFill(buf, SeedPoint{5, 1}, "#FF0000")
	if buf.Equal(saved) {
		t.Fatal("fill did not change the buffer")
	}
	if err := snap.RestoreInto(buf); err != nil {
		t.Fatal(err)
	}
	if !buf.Equal(saved) {
		t.Error("restore is not byte-exact")
	}
}

func TestSnapshotCompressesFlatImages(t *testing.T) {
	buf := whiteBuffer(500, 500)
	snap := TakeSnapshot(buf)
	if snap.Size() > 16 {
		t.Errorf("flat 500x500 snapshot is %d bytes", snap.Size())
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	buf := whiteBuffer(3, 3)
	snap := TakeSnapshot(buf)
	buf.Clear(black, 0xFF)
	if got := snap.Buffer().RGBAt(1, 1); got != white {
		t.Errorf("snapshot pixel = %v after mutating source", got)
	}
}

func TestSnapshotDimensionMismatch(t *testing.T) {
	snap := TakeSnapshot(whiteBuffer(2, 2))
	err := snap.RestoreInto(whiteBuffer(3, 2))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestFromImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 13, 12))
	src.SetNRGBA(10, 10, color.NRGBA{10, 20, 30, 40})
	src.SetNRGBA(12, 11, color.NRGBA{255, 0, 0, 255})

	buf := FromImage(src)
	if buf.Width() != 3 || buf.Height() != 2 {
		t.Fatalf("size = %dx%d, want 3x2", buf.Width(), buf.Height())
	}
	if got := buf.RGBAt(0, 0); got != (RGB{10, 20, 30}) || buf.AlphaAt(0, 0) != 40 {
		t.Errorf("pixel (0,0) = %v a=%d", got, buf.AlphaAt(0, 0))
	}
	if got := buf.RGBAt(2, 1); got != (RGB{255, 0, 0}) {
		t.Errorf("pixel (2,1) = %v", got)
	}

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(1, 0, color.Gray{Y: 0x80})
	gbuf := FromImage(gray)
	if got := gbuf.RGBAt(1, 0); got != (RGB{0x80, 0x80, 0x80}) || gbuf.AlphaAt(1, 0) != 0xFF {
		t.Errorf("gray pixel = %v a=%d", got, gbuf.AlphaAt(1, 0))
	}
}

func TestPixelBufferBounds(t *testing.T) {
	buf := whiteBuffer(2, 2)
	buf.SetRGBA(5, 5, black, 0xFF)
	if got := buf.RGBAt(5, 5); got != black {
		t.Errorf("out of range read = %v, want black", got)
	}
	if a := buf.AlphaAt(-1, 0); a != 0 {
		t.Errorf("out of range alpha = %d", a)
	}
	if !buf.Equal(whiteBuffer(2, 2)) {
		t.Error("out of range write changed the buffer")
	}
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(MaxHistory)
	for i := 0; i < MaxHistory+1; i++ {
		buf := NewPixelBuffer(1, 1)
		buf.SetRGBA(0, 0, RGB{uint8(i), 0, 0}, 0xFF)
		h.Push(TakeSnapshot(buf))
	}
	if h.Len() != MaxHistory {
		t.Fatalf("Len() = %d, want %d", h.Len(), MaxHistory)
	}

	// Most recent first; the first push (0) was evicted.
	for want := MaxHistory; want >= 1; want-- {
		s, ok := h.Pop()
		if !ok {
			t.Fatalf("Pop() empty, want snapshot %d", want)
		}
		if got := s.Buffer().RGBAt(0, 0).R; int(got) != want {
			t.Fatalf("popped snapshot %d, want %d", got, want)
		}
	}
	if _, ok := h.Pop(); ok {
		t.Error("Pop() on exhausted history succeeded")
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(3)
	h.Push(TakeSnapshot(whiteBuffer(4, 4)))
	h.Push(TakeSnapshot(whiteBuffer(4, 4)))
	if h.Bytes() == 0 {
		t.Error("Bytes() = 0 with two snapshots")
	}
	h.Clear()
	if h.Len() != 0 || h.Bytes() != 0 {
		t.Errorf("after Clear: Len=%d Bytes=%d", h.Len(), h.Bytes())
	}
}
