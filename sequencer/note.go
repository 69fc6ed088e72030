package sequencer

import (
	"math"

	"jamseq/musictime"
)

// Note value and default bounds
const (
	MinNoteValue = 1
	MaxNoteValue = 126

	DefaultVelocity   = 0.5
	DefaultNoteLength = 1.0
	DefaultPatternLen = 8.0
	DefaultDivisions  = 2
	DefaultSpeed      = 1.0
)

// NoteID identifies a note within a patch
type NoteID int64

// Note is one sequenced note. Times and lengths are in pattern beats
// (quarters before speed is applied).
type Note struct {
	ID          NoteID  `json:"id"`
	NoteValue   int     `json:"noteValue"`
	Velocity    float64 `json:"velocity"`
	LengthBeats float64 `json:"lengthBeats"`
	TimeBeats   float64 `json:"timeBeats"`
}

// NewNote validates a note. Velocity above 1 is clamped; everything else
// out of range is rejected.
func NewNote(noteValue int, velocity, lengthBeats, timeBeats float64) (Note, error) {
	if noteValue < MinNoteValue || noteValue > MaxNoteValue {
		return Note{}, invalid(ErrInvalidNote, "note value %d outside [%d,%d]", noteValue, MinNoteValue, MaxNoteValue)
	}
	if math.IsNaN(velocity) || velocity <= 0 {
		return Note{}, invalid(ErrInvalidNote, "velocity %v must be positive", velocity)
	}
	if velocity > 1 {
		velocity = 1
	}
	if math.IsNaN(lengthBeats) || math.IsInf(lengthBeats, 0) || lengthBeats <= 0 {
		return Note{}, invalid(ErrInvalidNote, "length %v must be positive", lengthBeats)
	}
	if math.IsNaN(timeBeats) || math.IsInf(timeBeats, 0) || timeBeats < 0 {
		return Note{}, invalid(ErrInvalidNote, "time %v must not be negative", timeBeats)
	}
	return Note{
		NoteValue:   noteValue,
		Velocity:    velocity,
		LengthBeats: lengthBeats,
		TimeBeats:   timeBeats,
	}, nil
}

// EndBeats returns where the note ends, unwrapped
func (n Note) EndBeats() float64 {
	return n.TimeBeats + n.LengthBeats
}

// sameSlot reports whether two notes would sit on the exact same time and pitch
func (n Note) sameSlot(o Note) bool {
	return n.NoteValue == o.NoteValue && math.Abs(n.TimeBeats-o.TimeBeats) < musictime.Epsilon
}
