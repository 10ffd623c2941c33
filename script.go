package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Op is an edit script operation.
type Op int

const (
	OpDisplay Op = iota
	OpColor
	OpTool
	OpTap
	OpTouch
	OpUndo
	OpReset
)

// Command is one parsed line of an edit script.
type Command struct {
	Line  int
	Op    Op
	X, Y  float64
	Color string
	Tool  Tool
}

// ScriptResult counts what a script did to a session.
type ScriptResult struct {
	Applied int
	Ignored int
	Undone  int
	Resets  int
}

// ParseScript reads one command per line. Blank lines and text after '#'
// are ignored.
func ParseScript(r io.Reader) ([]Command, error) {
	var cmds []Command
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := scriptFields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, err := parseCommand(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cmd.Line = line
		cmds = append(cmds, cmd)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return cmds, nil
}

// scriptFields splits a line and drops its comment. The argument of a
// color command starts with '#' and is kept.
func scriptFields(text string) []string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if !strings.HasPrefix(f, "#") {
			continue
		}
		if i == 1 && fields[0] == "color" {
			continue
		}
		return fields[:i]
	}
	return fields
}

func parseCommand(f []string) (Command, error) {
	switch f[0] {
	case "display", "tap", "touch":
		if len(f) != 3 {
			return Command{}, fmt.Errorf("%s: expected 2 numbers", f[0])
		}
		x, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return Command{}, fmt.Errorf("%s: %w", f[0], err)
		}
		y, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return Command{}, fmt.Errorf("%s: %w", f[0], err)
		}
		op := map[string]Op{"display": OpDisplay, "tap": OpTap, "touch": OpTouch}[f[0]]
		if op == OpDisplay && (x <= 0 || y <= 0) {
			return Command{}, fmt.Errorf("display: size must be positive")
		}
		return Command{Op: op, X: x, Y: y}, nil
	case "color":
		if len(f) != 2 {
			return Command{}, fmt.Errorf("color: expected one #RRGGBB argument")
		}
		return Command{Op: OpColor, Color: f[1]}, nil
	case "tool":
		if len(f) != 2 {
			return Command{}, fmt.Errorf("tool: expected fill or eraser")
		}
		t, err := ParseTool(f[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpTool, Tool: t}, nil
	case "undo":
		return Command{Op: OpUndo}, nil
	case "reset":
		return Command{Op: OpReset}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q", f[0])
}

// RunScript applies cmds to a loaded session. Taps use a display rectangle
// at the origin, sized like the buffer until a display command changes it.
// Script resets are treated as confirmed.
func RunScript(s *Session, cmds []Command) ScriptResult {
	var res ScriptResult
	rect := Rect{Width: float64(s.Width()), Height: float64(s.Height())}
	confirmed := ConfirmFunc(func(string) bool { return true })

	for _, c := range cmds {
		switch c.Op {
		case OpDisplay:
			rect = Rect{Width: c.X, Height: c.Y}
		case OpColor:
			s.SelectColor(c.Color)
		case OpTool:
			s.SetTool(c.Tool)
		case OpTap, OpTouch:
			ev := PointerEvent(c.X, c.Y)
			if c.Op == OpTouch {
				ev = TouchEvent(Point{X: c.X, Y: c.Y})
			}
			if s.Apply(ev, rect) {
				res.Applied++
			} else {
				res.Ignored++
			}
		case OpUndo:
			if s.Undo() {
				res.Undone++
			}
		case OpReset:
			if s.Reset(confirmed) {
				res.Resets++
			}
		}
	}
	return res
}
