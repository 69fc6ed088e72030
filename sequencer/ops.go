package sequencer

import (
	"math"

	"jamseq/musictime"
)

// Edge selects which end of a note a resize drag moves
type Edge int

const (
	EdgeLeft Edge = iota
	EdgeRight
)

// AddNote validates and inserts a note into the live pattern. Times past
// the pattern end wrap around.
func (d *Device) AddNote(noteValue int, velocity, lengthBeats, timeBeats float64) (Note, error) {
	if err := d.legend.checkNote(noteValue); err != nil {
		return Note{}, err
	}
	pat := d.patch.Selected()
	n, err := NewNote(noteValue, velocity, lengthBeats, pat.wrapBeats(timeBeats))
	if err != nil {
		return Note{}, err
	}
	if err := pat.checkSlot(n); err != nil {
		return Note{}, err
	}
	n.ID = d.patch.allocNoteID()
	if err := pat.addNote(n); err != nil {
		return Note{}, err
	}
	d.touch()
	return n, nil
}

// RemoveNote deletes a note from whichever slot holds it
func (d *Device) RemoveNote(id NoteID) error {
	pat, _, ok := d.patch.findNote(id)
	if !ok {
		return notFound(ErrNoteNotFound, "note %d", id)
	}
	pat.removeNote(id)
	d.touch()
	return nil
}

// cellTarget validates a (division, note value) cell of the live view
func (d *Device) cellTarget(div, noteValue int) (*PatternView, Cell, error) {
	if err := d.legend.checkNote(noteValue); err != nil {
		return nil, Cell{}, err
	}
	v := d.View()
	if div < 0 || div >= v.DivisionCount() {
		return nil, Cell{}, invalid(ErrInvalidConfig, "division %d of %d", div, v.DivisionCount())
	}
	return v, v.Cell(div, noteValue), nil
}

// newCellNote builds a one-division note at the start of div
func (d *Device) newCellNote(v *PatternView, div, noteValue int, velocity float64) (Note, error) {
	dv := v.Division(div)
	n, err := NewNote(noteValue, velocity, dv.StraightEndBeat-dv.StraightBeginBeat, dv.StraightBeginBeat)
	if err != nil {
		return Note{}, err
	}
	n.ID = d.patch.allocNoteID()
	return n, nil
}

// tierIndex returns the velocity tier closest to velocity
func (d *Device) tierIndex(velocity float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, t := range d.engine.VelocityTiers {
		if dist := math.Abs(t - velocity); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// CycleCell is a plain click: empty cell -> tier 0 -> tier 1 -> ... -> removed
func (d *Device) CycleCell(div, noteValue int) error {
	v, cell, err := d.cellTarget(div, noteValue)
	if err != nil {
		return err
	}
	pat := d.patch.Selected()
	tiers := d.engine.VelocityTiers

	if cell.Kind == CellNoteOn {
		n := cell.Note
		next := d.tierIndex(n.Velocity) + 1
		if next >= len(tiers) {
			pat.removeNote(n.ID)
		} else {
			n.Velocity = tiers[next]
			if err := pat.replaceNote(n); err != nil {
				return err
			}
		}
		d.touch()
		return nil
	}

	n, err := d.newCellNote(v, div, noteValue, tiers[0])
	if err != nil {
		return err
	}
	if err := pat.addNote(n); err != nil {
		return err
	}
	d.touch()
	return nil
}

// ToggleCellTier is a shift-click: toggles a note at the configured tier
func (d *Device) ToggleCellTier(div, noteValue int) error {
	v, cell, err := d.cellTarget(div, noteValue)
	if err != nil {
		return err
	}
	pat := d.patch.Selected()
	tier := d.engine.VelocityTiers[d.engine.ShiftTier]

	if cell.Kind == CellNoteOn {
		n := cell.Note
		if d.tierIndex(n.Velocity) == d.engine.ShiftTier {
			pat.removeNote(n.ID)
		} else {
			n.Velocity = tier
			if err := pat.replaceNote(n); err != nil {
				return err
			}
		}
		d.touch()
		return nil
	}

	n, err := d.newCellNote(v, div, noteValue, tier)
	if err != nil {
		return err
	}
	if err := pat.addNote(n); err != nil {
		return err
	}
	d.touch()
	return nil
}

// ClearCell is a ctrl-click: removes whatever note occupies the cell
func (d *Device) ClearCell(div, noteValue int) error {
	_, cell, err := d.cellTarget(div, noteValue)
	if err != nil {
		return err
	}
	if cell.Kind == CellNone {
		return nil
	}
	d.patch.Selected().removeNote(cell.Note.ID)
	d.touch()
	return nil
}

// MoveNote drags a note body by deltaBeats in time and onto noteValue.
// The new time wraps around the pattern.
func (d *Device) MoveNote(id NoteID, deltaBeats float64, noteValue int) (Note, error) {
	if err := d.legend.checkNote(noteValue); err != nil {
		return Note{}, err
	}
	pat, n, ok := d.patch.findNote(id)
	if !ok {
		return Note{}, notFound(ErrNoteNotFound, "note %d", id)
	}
	if math.IsNaN(deltaBeats) || math.IsInf(deltaBeats, 0) {
		return Note{}, invalid(ErrInvalidNote, "move by %v", deltaBeats)
	}
	n.TimeBeats = pat.wrapBeats(n.TimeBeats + deltaBeats)
	n.NoteValue = noteValue
	if err := pat.replaceNote(n); err != nil {
		return Note{}, err
	}
	d.touch()
	return n, nil
}

// ResizeNote drags the left or right edge of a note. Lengths may grow past
// the pattern length so the note continues into later loops. The length is
// clamped to at least one division.
func (d *Device) ResizeNote(id NoteID, edge Edge, deltaBeats float64) (Note, error) {
	pat, n, ok := d.patch.findNote(id)
	if !ok {
		return Note{}, notFound(ErrNoteNotFound, "note %d", id)
	}
	if math.IsNaN(deltaBeats) || math.IsInf(deltaBeats, 0) {
		return Note{}, invalid(ErrInvalidNote, "resize by %v", deltaBeats)
	}
	minLen := pat.DivisionLengthBeats(d.patch.TimeSig())

	switch edge {
	case EdgeRight:
		n.LengthBeats = math.Max(minLen, n.LengthBeats+deltaBeats)
	case EdgeLeft:
		end := n.TimeBeats + n.LengthBeats
		start := math.Min(n.TimeBeats+deltaBeats, end-minLen)
		n.LengthBeats = end - start
		n.TimeBeats = pat.wrapBeats(start)
	default:
		return Note{}, invalid(ErrInvalidConfig, "unknown edge %d", edge)
	}
	if err := pat.replaceNote(n); err != nil {
		return Note{}, err
	}
	d.touch()
	return n, nil
}

// SetMuted mutes or unmutes a note value without touching its notes
func (d *Device) SetMuted(noteValue int, muted bool) error {
	if err := d.legend.checkNote(noteValue); err != nil {
		return err
	}
	d.patch.setMuted(noteValue, muted)
	d.touch()
	return nil
}

// SetPatternLength sets the live pattern length in beats
func (d *Device) SetPatternLength(beats float64) error {
	if err := d.patch.Selected().setLength(beats, d.patch.timeSig); err != nil {
		return err
	}
	d.touch()
	return nil
}

// SetDivisions sets the live pattern grid (steps per minor beat)
func (d *Device) SetDivisions(n int) error {
	if err := d.patch.Selected().setDivisions(n, d.patch.timeSig); err != nil {
		return err
	}
	d.touch()
	return nil
}

// SetSpeed sets the playback rate multiplier
func (d *Device) SetSpeed(speed float64) error {
	if err := d.patch.setSpeed(speed); err != nil {
		return err
	}
	d.touch()
	return nil
}

// SetSwing sets the swing amount, clamped to [-1,1]
func (d *Device) SetSwing(swing float64) error {
	if err := d.patch.setSwing(swing); err != nil {
		return err
	}
	d.touch()
	return nil
}

// SelectPattern switches the live pattern slot
func (d *Device) SelectPattern(i int) error {
	if err := d.patch.selectPattern(i); err != nil {
		return err
	}
	d.touch()
	return nil
}

// SetTimeSig changes the patch meter
func (d *Device) SetTimeSig(ts musictime.TimeSig) error {
	if !ts.IsValid() {
		return invalid(ErrInvalidConfig, "time signature %q is not initialized", ts.ID())
	}
	for _, pat := range d.patch.patterns {
		if err := checkGrid(pat.lengthBeats, pat.divisions, ts); err != nil {
			return err
		}
	}
	d.patch.timeSig = ts
	d.touch()
	return nil
}

// ClearPattern removes every note of slot i
func (d *Device) ClearPattern(i int) error {
	pat := d.patch.Pattern(i)
	if pat == nil {
		return invalid(ErrPatternIndex, "pattern %d of %d", i, d.patch.PatternCount())
	}
	pat.clear()
	d.touch()
	return nil
}

// CopyPattern replaces slot to with a copy of slot from. Copied notes get
// fresh IDs.
func (d *Device) CopyPattern(from, to int) error {
	src, dst := d.patch.Pattern(from), d.patch.Pattern(to)
	if src == nil || dst == nil {
		return invalid(ErrPatternIndex, "copy %d -> %d of %d", from, to, d.patch.PatternCount())
	}
	if from == to {
		return nil
	}
	c := src.clone()
	for i := range c.notes {
		c.notes[i].ID = d.patch.allocNoteID()
	}
	d.patch.patterns[to] = c
	d.touch()
	return nil
}
