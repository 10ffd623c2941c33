package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
)

var (
	ErrEmptyImage = errors.New("image has no pixels")
	ErrNotLoaded  = errors.New("no image loaded")
	ErrStaleLoad  = errors.New("load superseded by a newer one")
)

// Tool is the active editing tool.
type Tool int

const (
	ToolFill Tool = iota
	ToolEraser
)

func (t Tool) String() string {
	if t == ToolEraser {
		return "eraser"
	}
	return "fill"
}

// ParseTool accepts "fill" or "eraser".
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fill":
		return ToolFill, nil
	case "eraser":
		return ToolEraser, nil
	}
	return ToolFill, fmt.Errorf("unknown tool %q", s)
}

// Confirmer obtains the user's consent for an irreversible action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Encoder serialises a buffer, e.g. as PNG.
type Encoder interface {
	Encode(w io.Writer, buf *PixelBuffer) error
}

const resetPrompt = "Start over and clear all colors?"

// Session is the editing state for one loaded image. It is not safe for
// concurrent use; callers serialise access.
type Session struct {
	buf      *PixelBuffer
	original Snapshot
	history  *History
	tool     Tool
	color    string
	loaded   bool
	logger   *slog.Logger

	// loadGen counts BeginLoad calls; pending is the generation still
	// outstanding, 0 when none is.
	loadGen uint64
	pending uint64
}

// NewSession creates an empty session with the fill tool and the first
// palette color selected.
func NewSession() *Session {
	return &Session{
		history: NewHistory(MaxHistory),
		tool:    ToolFill,
		color:   DefaultPalette[0],
		logger:  Logger(),
	}
}

// SetLogger overrides the package logger for this session.
func (s *Session) SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	s.logger = l
}

// Load replaces the session contents with img at its native size, records
// it as the reset target and clears the history.
func (s *Session) Load(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyImage
	}
	buf := FromImage(img)
	s.buf = buf
	s.original = TakeSnapshot(buf)
	s.history.Clear()
	s.loaded = true
	s.logger.Debug("image loaded", "width", buf.width, "height", buf.height, "original_bytes", s.original.Size())
	return nil
}

// BeginLoad marks a load as outstanding and returns its token. Actions are
// rejected until FinishLoad is called with the most recent token.
func (s *Session) BeginLoad() uint64 {
	s.loadGen++
	s.pending = s.loadGen
	return s.loadGen
}

// FinishLoad completes the load identified by token. A token superseded by
// a later BeginLoad is discarded with ErrStaleLoad and the session keeps
// waiting for the newer load. When err is non-nil or the image is unusable
// the previous contents are kept.
func (s *Session) FinishLoad(token uint64, img image.Image, err error) error {
	if token == 0 || token != s.pending {
		return ErrStaleLoad
	}
	s.pending = 0
	if err != nil {
		return err
	}
	return s.Load(img)
}

// LoadFrom fetches path from src and loads it. A failed fetch or decode
// leaves the session unchanged.
func (s *Session) LoadFrom(ctx context.Context, src ImageSource, path string) error {
	token := s.BeginLoad()
	img, err := src.Open(ctx, path)
	if err != nil {
		err = fmt.Errorf("loading %s: %w", path, err)
	}
	return s.FinishLoad(token, img, err)
}

func (s *Session) Loaded() bool  { return s.loaded }
func (s *Session) Loading() bool { return s.pending != 0 }

func (s *Session) Width() int {
	if s.buf == nil {
		return 0
	}
	return s.buf.width
}

func (s *Session) Height() int {
	if s.buf == nil {
		return 0
	}
	return s.buf.height
}

// Buffer returns the live buffer. Callers must not modify it.
func (s *Session) Buffer() *PixelBuffer { return s.buf }

func (s *Session) Tool() Tool        { return s.tool }
func (s *Session) SetTool(t Tool)    { s.tool = t }
func (s *Session) Color() string     { return s.color }
func (s *Session) HistoryLen() int   { return s.history.Len() }
func (s *Session) History() *History { return s.history }

// SelectColor picks a color and switches back to the fill tool.
func (s *Session) SelectColor(hex string) {
	s.color = hex
	s.tool = ToolFill
}

func (s *Session) target() string {
	if s.tool == ToolEraser {
		return white.Hex()
	}
	return s.color
}

// Apply performs the active tool at the primary contact of ev. It reports
// whether the action was accepted; taps outside the image are ignored.
func (s *Session) Apply(ev InputEvent, rect Rect) bool {
	if !s.ready() {
		return false
	}
	p, ok := ev.Primary()
	if !ok {
		return false
	}
	return s.ApplyAt(MapToBuffer(p, rect, s.buf.width, s.buf.height))
}

// ApplyAt performs the active tool at a buffer coordinate.
func (s *Session) ApplyAt(seed SeedPoint) bool {
	if !s.ready() || !seed.In(s.buf.width, s.buf.height) {
		return false
	}
	s.history.Push(TakeSnapshot(s.buf))
	n := FloodFill(s.buf, seed, s.target())
	s.logger.Debug("tool applied",
		"tool", s.tool.String(), "x", seed.X, "y", seed.Y,
		"pixels", n, "history", s.history.Len())
	return true
}

func (s *Session) ready() bool {
	return s.loaded && s.pending == 0 && s.buf != nil
}

// Undo restores the state before the most recent action.
func (s *Session) Undo() bool {
	if !s.ready() {
		return false
	}
	snap, ok := s.history.Pop()
	if !ok {
		return false
	}
	if err := snap.RestoreInto(s.buf); err != nil {
		s.logger.Warn("undo failed", "error", err)
		return false
	}
	return true
}

// Reset restores the loaded image and clears the history once confirm
// agrees. The original is never pushed to history, so reset cannot be
// undone.
func (s *Session) Reset(confirm Confirmer) bool {
	if !s.ready() || confirm == nil {
		return false
	}
	if !confirm.Confirm(resetPrompt) {
		return false
	}
	if err := s.original.RestoreInto(s.buf); err != nil {
		s.logger.Warn("reset failed", "error", err)
		return false
	}
	s.history.Clear()
	return true
}

// Export writes the live buffer through enc.
func (s *Session) Export(enc Encoder, w io.Writer) error {
	if !s.loaded || s.buf == nil {
		return ErrNotLoaded
	}
	return enc.Encode(w, s.buf)
}
