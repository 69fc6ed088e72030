package sequencer

import (
	"math"
	"sort"
	"sync"
	"time"

	"jamseq/config"
	"jamseq/debug"
	"jamseq/musictime"
)

// Window walk limits. A window never spans more than maxWindowLoops
// pattern loops, and loop indices stay where k+1 != k still holds.
const (
	maxWindowLoops = 1 << 12
	maxLoopIndex   = 1 << 50
)

// ScheduledEvent is one note occurrence inside a scheduling window
type ScheduledEvent struct {
	InstrumentID string
	NoteID       NoteID
	NoteValue    int
	Velocity     float64
	LengthBeats  float64 // already divided by speed
	AbsBeat      float64 // absolute beat of the onset
}

// Batch is the complete scheduling state of one instrument for one window.
// Each batch replaces every earlier batch for the same instrument.
type Batch struct {
	InstrumentID string
	Events       []ScheduledEvent
	View         *PatternView
	Playing      bool
	PlayFrom     float64 // only meaningful while Playing
	WindowStart  float64
	WindowEnd    float64
}

// Quantizer consumes scheduled batches and turns them into sound
type Quantizer interface {
	SetSequencerEvents(b Batch)
}

// Player computes batches from devices and the shared clock. It holds no
// per-tick state, so a tick can be repeated at will.
type Player struct {
	engine  config.EngineConfig
	tracker *musictime.Tracker
}

// NewPlayer creates a player reading time from tracker
func NewPlayer(engine config.EngineConfig, tracker *musictime.Tracker) *Player {
	return &Player{engine: engine, tracker: tracker}
}

// WindowBeats is the forward window length in absolute beats at the
// current tempo
func (p *Player) WindowBeats() float64 {
	ms := float64(p.engine.TickIntervalMS) * p.engine.ChunkSizeFactor
	return ms / p.tracker.MsPerBeat()
}

// Schedule builds the batch for one instrument at now
func (p *Player) Schedule(id string, d *Device, now time.Time) Batch {
	b := Batch{
		InstrumentID: id,
		View:         d.View(),
		Playing:      d.IsPlaying(),
	}
	if !b.Playing {
		return b
	}

	playhead := p.tracker.AbsoluteBeat(now)
	b.PlayFrom = d.PlayFrom()
	b.WindowStart = math.Max(playhead, b.PlayFrom)
	b.WindowEnd = playhead + p.WindowBeats()
	b.Events = ScheduleWindow(id, b.View, b.PlayFrom, b.WindowStart, b.WindowEnd)
	return b
}

// ScheduleWindow lists every note-on of v that sounds in [start, end),
// with pattern beat 0 anchored at playFrom. Events are ordered by onset,
// then note value, then note ID.
func ScheduleWindow(id string, v *PatternView, playFrom, start, end float64) []ScheduledEvent {
	length := v.LengthBeats
	speed := v.Speed
	if !finite(length, speed, playFrom, start, end) || length <= 0 || speed <= 0 || end <= start {
		return nil
	}
	period := length / speed
	if (end-start)/period > maxWindowLoops {
		debug.Warn("player", "inst=%s: window [%v,%v) spans too many loops of %v beats", id, start, end, period)
		return nil
	}

	loopCount := (start - playFrom) / period
	if math.Abs(loopCount) > maxLoopIndex {
		debug.Warn("player", "inst=%s: loop index %v out of range", id, loopCount)
		return nil
	}
	loopFrac := musictime.Frac(loopCount)

	var events []ScheduledEvent
	for _, on := range v.NoteOns() {
		if on.Muted {
			continue
		}

		// first occurrence: this loop if the onset is still ahead, else the next
		loop := math.Floor(loopCount)
		if on.OnsetBeat/length < loopFrac-musictime.Epsilon {
			loop = math.Ceil(loopCount)
		}

		for k := loop; ; k++ {
			at := playFrom + (k*length+on.OnsetBeat)/speed
			if at >= end-musictime.Epsilon {
				break
			}
			if at < start-musictime.Epsilon {
				continue
			}
			events = append(events, ScheduledEvent{
				InstrumentID: id,
				NoteID:       on.Note.ID,
				NoteValue:    on.Note.NoteValue,
				Velocity:     on.Note.Velocity,
				LengthBeats:  on.Note.LengthBeats / speed,
				AbsBeat:      at,
			})
		}
	}

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.AbsBeat != b.AbsBeat {
			return a.AbsBeat < b.AbsBeat
		}
		if a.NoteValue != b.NoteValue {
			return a.NoteValue < b.NoteValue
		}
		return a.NoteID < b.NoteID
	})
	return events
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// RecordingQuantizer keeps every batch it receives
type RecordingQuantizer struct {
	mu      sync.Mutex
	batches []Batch
	latest  map[string]Batch
}

// NewRecordingQuantizer creates an empty recorder
func NewRecordingQuantizer() *RecordingQuantizer {
	return &RecordingQuantizer{latest: make(map[string]Batch)}
}

func (q *RecordingQuantizer) SetSequencerEvents(b Batch) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batches = append(q.batches, b)
	q.latest[b.InstrumentID] = b
}

// Batches returns every batch received so far, oldest first
func (q *RecordingQuantizer) Batches() []Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Batch(nil), q.batches...)
}

// Latest returns the last batch for an instrument
func (q *RecordingQuantizer) Latest(id string) (Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.latest[id]
	return b, ok
}

// Reset forgets everything recorded
func (q *RecordingQuantizer) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batches = nil
	q.latest = make(map[string]Batch)
}
