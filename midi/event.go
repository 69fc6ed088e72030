package midi

import (
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"

	"jamseq/sequencer"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// Event is one MIDI message due at an absolute beat
type Event struct {
	Beat         float64
	Type         uint8 // NoteOn, NoteOff
	InstrumentID string
	NoteID       sequencer.NoteID
	Note         uint8
	Velocity     uint8
}

// Message builds the wire message on a 0-based channel
func (e Event) Message(channel uint8) gomidi.Message {
	if e.Type == NoteOff {
		return gomidi.NoteOff(channel, e.Note)
	}
	return gomidi.NoteOn(channel, e.Note, e.Velocity)
}

// NoteOnFor converts a scheduled event into its note-on
func NoteOnFor(se sequencer.ScheduledEvent) Event {
	return Event{
		Beat:         se.AbsBeat,
		Type:         NoteOn,
		InstrumentID: se.InstrumentID,
		NoteID:       se.NoteID,
		Note:         uint8(se.NoteValue),
		Velocity:     Velocity7(se.Velocity),
	}
}

// NoteOffFor is the matching release at onset + length
func NoteOffFor(se sequencer.ScheduledEvent) Event {
	return Event{
		Beat:         se.AbsBeat + se.LengthBeats,
		Type:         NoteOff,
		InstrumentID: se.InstrumentID,
		NoteID:       se.NoteID,
		Note:         uint8(se.NoteValue),
	}
}

// Velocity7 maps a (0,1] velocity to 1-127
func Velocity7(v float64) uint8 {
	n := math.Round(v * 127)
	if n < 1 {
		n = 1
	}
	if n > 127 {
		n = 127
	}
	return uint8(n)
}
