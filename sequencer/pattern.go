package sequencer

import (
	"math"

	"jamseq/musictime"
)

// Pattern is a loopable container of notes. Its notes are only changed
// through the operations below so every edit is validated before it lands.
type Pattern struct {
	notes       []Note
	lengthBeats float64
	divisions   int // grid steps per minor beat
}

// NewPattern creates an empty pattern with default length and grid
func NewPattern() *Pattern {
	return &Pattern{
		lengthBeats: DefaultPatternLen,
		divisions:   DefaultDivisions,
	}
}

// Notes returns a copy of the notes in insertion order
func (p *Pattern) Notes() []Note {
	return append([]Note(nil), p.notes...)
}

// NoteCount returns the number of notes
func (p *Pattern) NoteCount() int {
	return len(p.notes)
}

// LengthBeats returns the loop length in beats
func (p *Pattern) LengthBeats() float64 {
	return p.lengthBeats
}

// Divisions returns the grid resolution (steps per minor beat)
func (p *Pattern) Divisions() int {
	return p.divisions
}

// HasContent reports whether the pattern has any notes
func (p *Pattern) HasContent() bool {
	return len(p.notes) > 0
}

// Note finds a note by ID
func (p *Pattern) Note(id NoteID) (Note, bool) {
	i := p.indexOf(id)
	if i < 0 {
		return Note{}, false
	}
	return p.notes[i], true
}

func (p *Pattern) indexOf(id NoteID) int {
	for i, n := range p.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// checkSlot rejects a note on the exact time and pitch of another note
func (p *Pattern) checkSlot(n Note) error {
	for _, o := range p.notes {
		if o.ID != n.ID && o.sameSlot(n) {
			return duplicate(ErrDuplicateNote, "note %d already at beat %g", n.NoteValue, n.TimeBeats)
		}
	}
	return nil
}

func (p *Pattern) addNote(n Note) error {
	if err := p.checkSlot(n); err != nil {
		return err
	}
	p.notes = append(p.notes, n)
	return nil
}

func (p *Pattern) removeNote(id NoteID) bool {
	i := p.indexOf(id)
	if i < 0 {
		return false
	}
	p.notes = append(p.notes[:i], p.notes[i+1:]...)
	return true
}

// replaceNote swaps a note in place, keeping its insertion position
func (p *Pattern) replaceNote(n Note) error {
	i := p.indexOf(n.ID)
	if i < 0 {
		return notFound(ErrNoteNotFound, "note %d", n.ID)
	}
	if err := p.checkSlot(n); err != nil {
		return err
	}
	p.notes[i] = n
	return nil
}

func (p *Pattern) setLength(beats float64, ts musictime.TimeSig) error {
	if math.IsNaN(beats) || math.IsInf(beats, 0) || beats <= 0 {
		return invalid(ErrInvalidConfig, "pattern length %v must be positive", beats)
	}
	if err := checkGrid(beats, p.divisions, ts); err != nil {
		return err
	}
	p.lengthBeats = beats
	return nil
}

func (p *Pattern) setDivisions(d int, ts musictime.TimeSig) error {
	if d <= 0 {
		return invalid(ErrInvalidConfig, "divisions %d must be positive", d)
	}
	if err := checkGrid(p.lengthBeats, d, ts); err != nil {
		return err
	}
	p.divisions = d
	return nil
}

// MaxGridSteps bounds the number of divisions of one pattern
const MaxGridSteps = 4096

// checkGrid rejects a length and grid whose division count exceeds
// MaxGridSteps under ts
func checkGrid(lengthBeats float64, divisions int, ts musictime.TimeSig) error {
	steps := lengthBeats * float64(ts.MinorBeatsPerQuarter()) * float64(divisions)
	if steps > MaxGridSteps+musictime.Epsilon {
		return invalid(ErrInvalidConfig, "%v beats at %d divisions under %s is %.0f steps, limit %d",
			lengthBeats, divisions, ts.ID(), steps, MaxGridSteps)
	}
	return nil
}

func (p *Pattern) clear() {
	p.notes = nil
}

// DivisionLengthBeats is the grid step length under ts
func (p *Pattern) DivisionLengthBeats(ts musictime.TimeSig) float64 {
	return 1 / float64(ts.MinorBeatsPerQuarter()*p.divisions)
}

// DivisionCount is the number of grid steps under ts. A pattern length that
// is not a multiple of the step leaves a short last division.
func (p *Pattern) DivisionCount(ts musictime.TimeSig) int {
	n := int(math.Ceil(p.lengthBeats/p.DivisionLengthBeats(ts) - musictime.Epsilon))
	if n < 1 {
		n = 1
	}
	return n
}

// wrapBeats folds a beat position into [0, length)
func (p *Pattern) wrapBeats(b float64) float64 {
	w := musictime.Mod(b, p.lengthBeats)
	if p.lengthBeats-w < musictime.Epsilon {
		w = 0
	}
	return w
}

func (p *Pattern) clone() *Pattern {
	return &Pattern{
		notes:       append([]Note(nil), p.notes...),
		lengthBeats: p.lengthBeats,
		divisions:   p.divisions,
	}
}
