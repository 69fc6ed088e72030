package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Grid cells (no cursor)
	CellEmpty    rune // · nothing here
	CellNoteOn   rune // ● note starts
	CellContinue rune // ─ note sustains
	CellNoteOff  rune // ┤ note ends
	CellMuted    rune // ○ note start on a muted row
	Playhead     rune // ▼ column marker

	// Grid cells (with cursor)
	CursorEmpty  rune // □ cursor on empty
	CursorActive rune // ◉ cursor on a note
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			CellEmpty:    '·',
			CellNoteOn:   '●',
			CellContinue: '─',
			CellNoteOff:  '┤',
			CellMuted:    '○',
			Playhead:     '▼',

			CursorEmpty:  '□',
			CursorActive: '◉',
		},
	}
}

// Default is the built-in palette theme
func Default() *Theme {
	return New(DefaultPalette())
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0 // deep purple
	RoleSurface = 0.1 // dark purple
	RoleMuted   = 0.2 // purple-magenta
	RoleFG      = 0.4 // pink-purple (readable)
	RoleAccent  = 0.5 // vivid magenta
	RoleCursor  = 0.6 // rose pink
	RoleActive  = 0.7 // soft red
	RoleWarning = 0.8 // orange
	RoleSuccess = 1.0 // bright yellow
)

// Style helpers

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Velocity colors a note by its velocity, from the muted end of the
// palette (soft) to the bright end (loud)
func (t *Theme) Velocity(v float64) lipgloss.Color {
	return t.Color(RoleFG + v*(RoleSuccess-RoleFG))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// Hex formats a legend color like "#ff8800" into a lipgloss color, falling
// back to the accent role
func (t *Theme) Hex(hex string) lipgloss.Color {
	var c RGB
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &c[0], &c[1], &c[2]); err != nil {
		return t.Accent()
	}
	return rgbToLipgloss(c)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
