package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"jamseq/sequencer"
	"jamseq/theme"
)

// GridOptions controls what is highlighted in a pattern grid. Negative
// values disable a highlight.
type GridOptions struct {
	CursorDivision int
	CursorRow      int
	PlayDivision   int
	LabelWidth     int
}

// NoHighlights is a grid with no cursor and no playhead
var NoHighlights = GridOptions{CursorDivision: -1, CursorRow: -1, PlayDivision: -1}

// RenderPatternGrid draws a pattern view as one row per legend entry and
// one column per division, with a bar line before each measure
func RenderPatternGrid(v *sequencer.PatternView, th *theme.Theme, opts GridOptions) string {
	entries := v.Legend().Entries()
	labelWidth := opts.LabelWidth
	if labelWidth <= 0 {
		for _, e := range entries {
			labelWidth = max(labelWidth, len(e.Name))
		}
	}

	dim := lipgloss.NewStyle().Foreground(th.Muted())
	accent := lipgloss.NewStyle().Foreground(th.Accent())
	cursor := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
	sym := th.Symbols

	var lines []string

	// playhead / bar header
	var head strings.Builder
	head.WriteString(strings.Repeat(" ", labelWidth+1))
	for d := 0; d < v.DivisionCount(); d++ {
		div := v.Division(d)
		if div.IsMeasureBoundary && d > 0 {
			head.WriteString(" ")
		}
		switch {
		case d == opts.PlayDivision:
			head.WriteString(accent.Render(string(sym.Playhead)))
		case div.IsMajorBeatBoundary:
			head.WriteString(dim.Render("'"))
		default:
			head.WriteString(" ")
		}
	}
	lines = append(lines, head.String())

	for row, e := range entries {
		var line strings.Builder
		label := fmt.Sprintf("%-*s ", labelWidth, truncate(e.Name, labelWidth))
		if row == opts.CursorRow {
			line.WriteString(cursor.Render(label))
		} else {
			line.WriteString(dim.Render(label))
		}

		rowColor := th.Hex(e.Color)
		if e.Color == "" {
			rowColor = lipgloss.Color(rgbToHex(th.Palette.Index(row%len(th.Palette.Colors) + 1)))
		}

		for d := 0; d < v.DivisionCount(); d++ {
			div := v.Division(d)
			if div.IsMeasureBoundary && d > 0 {
				line.WriteString(dim.Render("│"))
			}
			cell := v.Cell(d, e.NoteValue)
			onCursor := d == opts.CursorDivision && row == opts.CursorRow
			line.WriteString(renderCell(cell, th, rowColor, onCursor))
		}
		lines = append(lines, line.String())
	}

	return strings.Join(lines, "\n")
}

func renderCell(c sequencer.Cell, th *theme.Theme, rowColor lipgloss.Color, onCursor bool) string {
	sym := th.Symbols
	if onCursor {
		style := lipgloss.NewStyle().Foreground(th.Cursor()).Bold(true)
		if c.Kind == sequencer.CellNone {
			return style.Render(string(sym.CursorEmpty))
		}
		return style.Render(string(sym.CursorActive))
	}

	style := lipgloss.NewStyle().Foreground(rowColor)
	if c.Muted {
		style = style.Foreground(th.Muted())
	}
	switch c.Kind {
	case sequencer.CellNoteOn:
		if c.Muted {
			return style.Render(string(sym.CellMuted))
		}
		return style.Foreground(th.Velocity(c.Note.Velocity)).Render(string(sym.CellNoteOn))
	case sequencer.CellContinue:
		return style.Render(string(sym.CellContinue))
	case sequencer.CellNoteOff:
		return style.Render(string(sym.CellNoteOff))
	}
	return lipgloss.NewStyle().Foreground(th.Muted()).Render(string(sym.CellEmpty))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RenderPad renders a single colored swatch
func RenderPad(color [3]uint8) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color))).Render("■")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
