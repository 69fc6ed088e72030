package midi

import (
	"fmt"
	"sync"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"jamseq/config"
	"jamseq/musictime"
	"jamseq/sequencer"
)

type sentMsg struct {
	inst string
	msg  gomidi.Message
}

// fakeOutput records messages instead of opening a port
type fakeOutput struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeOutput) Channel(instrumentID string) uint8 {
	if instrumentID == "bass" {
		return 1
	}
	return 0
}

func (f *fakeOutput) Send(instrumentID string, msg gomidi.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{instrumentID, msg})
	return nil
}

// take returns and clears the recorded messages as "on 36"/"off 36" strings
func (f *fakeOutput) take(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		var ch, key, vel uint8
		switch {
		case s.msg.GetNoteStart(&ch, &key, &vel):
			out = append(out, fmt.Sprintf("on %d", key))
		case s.msg.GetNoteEnd(&ch, &key):
			out = append(out, fmt.Sprintf("off %d", key))
		default:
			t.Errorf("unexpected message %v", s.msg)
		}
	}
	f.sent = nil
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var base = time.Unix(1000, 0)

// at returns the wall time of beat b at 120bpm
func at(b float64) time.Time {
	return base.Add(time.Duration(b * 500 * float64(time.Millisecond)))
}

func newTestQuantizer() (*Quantizer, *fakeOutput) {
	tracker := musictime.NewTracker(func() time.Time { return base })
	tracker.OnBeatSync(120, 0)
	out := &fakeOutput{}
	return NewQuantizer(tracker, out), out
}

func event(inst string, id sequencer.NoteID, note int, beat, length float64) sequencer.ScheduledEvent {
	return sequencer.ScheduledEvent{
		InstrumentID: inst,
		NoteID:       id,
		NoteValue:    note,
		Velocity:     0.5,
		LengthBeats:  length,
		AbsBeat:      beat,
	}
}

func playing(inst string, start, end float64, events ...sequencer.ScheduledEvent) sequencer.Batch {
	return sequencer.Batch{
		InstrumentID: inst,
		Events:       events,
		Playing:      true,
		WindowStart:  start,
		WindowEnd:    end,
	}
}

func TestQuantizerFlush(t *testing.T) {
	q, out := newTestQuantizer()
	q.SetSequencerEvents(playing("drums", 0, 4,
		event("drums", 1, 36, 0, 1),
		event("drums", 2, 38, 1, 0.5),
	))

	next, ok := q.Flush(at(0))
	if got := out.take(t); !equal(got, []string{"on 36"}) {
		t.Errorf("beat 0 sent %v", got)
	}
	if !ok || next != 1 {
		t.Errorf("next = %v %v, want 1", next, ok)
	}

	// the kick releases before the snare starts
	q.Flush(at(1))
	if got := out.take(t); !equal(got, []string{"off 36", "on 38"}) {
		t.Errorf("beat 1 sent %v", got)
	}

	q.Flush(at(1.5))
	if got := out.take(t); !equal(got, []string{"off 38"}) {
		t.Errorf("beat 1.5 sent %v", got)
	}
	if _, ok := q.Flush(at(2)); ok {
		t.Error("nothing should be pending")
	}
}

func TestQuantizerOverlappingBatches(t *testing.T) {
	q, out := newTestQuantizer()
	kick := event("drums", 1, 36, 0.5, 0.25)

	q.SetSequencerEvents(playing("drums", 0, 2, kick))
	q.Flush(at(0.5))
	if got := out.take(t); !equal(got, []string{"on 36"}) {
		t.Fatalf("first window sent %v", got)
	}

	// the next window still contains the same onset
	q.SetSequencerEvents(playing("drums", 0.5, 2.5, kick, event("drums", 1, 36, 8.5, 0.25)))
	q.Flush(at(0.5))
	if got := out.take(t); len(got) != 0 {
		t.Errorf("onset fired twice: %v", got)
	}
	if ons, _ := q.Pending(); ons != 1 {
		t.Errorf("pending ons = %d, want 1", ons)
	}
}

func TestQuantizerDropsLateNotes(t *testing.T) {
	q, out := newTestQuantizer()
	q.SetSequencerEvents(playing("drums", 0, 4,
		event("drums", 1, 36, 0, 1),
		event("drums", 2, 38, 1.95, 1),
	))

	// 1000ms after beat 0, 25ms after beat 1.95
	q.Flush(at(2))
	if got := out.take(t); !equal(got, []string{"on 38"}) {
		t.Errorf("sent %v, want only the snare", got)
	}
	if ons, offs := q.Pending(); ons != 0 || offs != 1 {
		t.Errorf("pending = %d ons %d offs, want 0 and 1", ons, offs)
	}
}

func TestQuantizerStopReleases(t *testing.T) {
	q, out := newTestQuantizer()
	q.SetSequencerEvents(playing("drums", 0, 8, event("drums", 1, 36, 0, 4), event("drums", 2, 38, 2, 1)))
	q.SetSequencerEvents(playing("bass", 0, 8, event("bass", 3, 40, 0, 4)))

	q.Flush(at(0))
	if got := out.take(t); !equal(got, []string{"on 36", "on 40"}) {
		t.Fatalf("sent %v", got)
	}

	q.SetSequencerEvents(sequencer.Batch{InstrumentID: "drums"})
	q.Flush(at(0.5))
	if got := out.take(t); !equal(got, []string{"off 36"}) {
		t.Errorf("stop sent %v, want the kick release only", got)
	}

	// the stopped instrument's future notes are gone, the other plays on
	q.Flush(at(4))
	if got := out.take(t); !equal(got, []string{"off 40"}) {
		t.Errorf("beat 4 sent %v", got)
	}
}

func TestQuantizerChannels(t *testing.T) {
	q, out := newTestQuantizer()
	q.SetSequencerEvents(playing("bass", 0, 2, event("bass", 1, 40, 0, 1)))
	q.Flush(at(0))

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.sent) != 1 {
		t.Fatalf("%d messages, want 1", len(out.sent))
	}
	var ch, key, vel uint8
	if !out.sent[0].msg.GetNoteStart(&ch, &key, &vel) {
		t.Fatalf("not a note-on: %v", out.sent[0].msg)
	}
	if ch != 1 || key != 40 || vel != 64 {
		t.Errorf("note-on ch=%d key=%d vel=%d", ch, key, vel)
	}
}

func TestVelocity7(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{0.001, 1},
		{0.5, 64},
		{1, 127},
		{3, 127},
	}
	for _, tt := range tests {
		if got := Velocity7(tt.in); got != tt.want {
			t.Errorf("Velocity7(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNoteOffFor(t *testing.T) {
	off := NoteOffFor(event("drums", 4, 36, 10, 0.75))
	if off.Beat != 10.75 || off.Type != NoteOff || off.Note != 36 {
		t.Errorf("release = %+v", off)
	}
}

func TestOutputsChannel(t *testing.T) {
	o := NewOutputs(config.OutputConfig{Channels: map[string]uint8{"bass": 10, "lead": 17}})
	tests := map[string]uint8{"bass": 9, "lead": 0, "drums": 0}
	for inst, want := range tests {
		if got := o.Channel(inst); got != want {
			t.Errorf("Channel(%s) = %d, want %d", inst, got, want)
		}
	}
}
