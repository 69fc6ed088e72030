package sequencer

import (
	"math"
	"reflect"
	"testing"
	"time"

	"jamseq/config"
	"jamseq/musictime"
)

func onsets(events []ScheduledEvent) []float64 {
	out := make([]float64, len(events))
	for i, e := range events {
		out[i] = e.AbsBeat
	}
	return out
}

func sameBeats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestScheduleWindow(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 1)
	mustAdd(t, d, snare, 1, 1)
	v := d.View()

	tests := []struct {
		name                 string
		playFrom, start, end float64
		want                 []float64
	}{
		{"three loops", 0, 0, 24, []float64{0, 1, 8, 9, 16, 17}},
		{"mid loop", 0, 3, 12, []float64{8, 9}},
		{"start on an onset", 0, 8, 9, []float64{8}},
		{"end is exclusive", 0, 2, 8, nil},
		{"anchored later", 100, 100, 110, []float64{100, 101, 108, 109}},
		{"anchor off the grid", 0.25, 0, 9, []float64{0.25, 1.25, 8.25}},
		{"empty window", 0, 5, 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := onsets(ScheduleWindow("drums", v, tt.playFrom, tt.start, tt.end))
			if !sameBeats(got, tt.want) {
				t.Errorf("onsets = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduleWindowCompleteness(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, hat, 3.5, 0.5)
	if err := d.SetSwing(-0.4); err != nil {
		t.Fatal(err)
	}
	v := d.View()
	onset := v.NoteOns()[0].OnsetBeat

	// every onset+k*L inside the window shows up exactly once, however the
	// window is cut
	for _, start := range []float64{0, 0.1, 3.2, onset, 7.99, 11.6, 19} {
		end := start + 10
		var want []float64
		for k := 0.0; k < 5; k++ {
			at := onset + k*v.LengthBeats
			if at >= start-1e-9 && at < end-1e-9 {
				want = append(want, at)
			}
		}
		got := onsets(ScheduleWindow("drums", v, 0, start, end))
		if !sameBeats(got, want) {
			t.Errorf("window [%v,%v): onsets %v, want %v", start, end, got, want)
		}
	}
}

// A note spanning the whole pattern still has one onset per loop.
func TestScheduleWholePatternNote(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 8)

	events := ScheduleWindow("drums", d.View(), 0, 0, 10)
	if got := onsets(events); !sameBeats(got, []float64{0, 8}) {
		t.Errorf("onsets = %v, want [0 8]", got)
	}
	for _, e := range events {
		if e.LengthBeats != 8 {
			t.Errorf("length = %v, want 8", e.LengthBeats)
		}
	}
}

func TestScheduleWindowOrder(t *testing.T) {
	d := newTestDevice(t)
	s := mustAdd(t, d, snare, 0, 1)
	k := mustAdd(t, d, kick, 0, 1)
	mustAdd(t, d, hat, 0.5, 0.5)

	events := ScheduleWindow("drums", d.View(), 0, 0, 1)
	if len(events) != 3 {
		t.Fatalf("%d events, want 3", len(events))
	}
	if events[0].NoteID != k.ID || events[1].NoteID != s.ID || events[2].NoteValue != hat {
		t.Errorf("order = %+v", events)
	}
	for _, e := range events {
		if e.InstrumentID != "drums" {
			t.Errorf("instrument = %q", e.InstrumentID)
		}
	}
}

func TestScheduleWindowIdempotent(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 1)
	mustAdd(t, d, hat, 0.5, 0.5)
	v := d.View()

	a := ScheduleWindow("drums", v, 4, 10, 21.5)
	b := ScheduleWindow("drums", v, 4, 10, 21.5)
	if !reflect.DeepEqual(a, b) {
		t.Error("same inputs gave different schedules")
	}
}

func TestScheduleWindowSpeed(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 1)
	mustAdd(t, d, snare, 1, 1)
	if err := d.SetSpeed(2); err != nil {
		t.Fatal(err)
	}

	events := ScheduleWindow("drums", d.View(), 0, 0, 8)
	if got := onsets(events); !sameBeats(got, []float64{0, 0.5, 4, 4.5}) {
		t.Errorf("onsets at double speed = %v", got)
	}
	for _, e := range events {
		if e.LengthBeats != 0.5 {
			t.Errorf("length at double speed = %v, want 0.5", e.LengthBeats)
		}
	}
}

func TestScheduleWindowMute(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 1)
	mustAdd(t, d, snare, 1, 1)
	before := ScheduleWindow("drums", d.View(), 0, 0, 16)

	if err := d.SetMuted(snare, true); err != nil {
		t.Fatal(err)
	}
	for _, e := range ScheduleWindow("drums", d.View(), 0, 0, 16) {
		if e.NoteValue == snare {
			t.Errorf("muted note scheduled at %v", e.AbsBeat)
		}
	}

	if err := d.SetMuted(snare, false); err != nil {
		t.Fatal(err)
	}
	if after := ScheduleWindow("drums", d.View(), 0, 0, 16); !reflect.DeepEqual(before, after) {
		t.Error("unmuting did not restore the schedule")
	}
}

func TestPlayerSchedule(t *testing.T) {
	base := time.Unix(5000, 0)
	tracker := musictime.NewTracker(func() time.Time { return base })
	tracker.OnBeatSync(120, 10)

	engine := config.DefaultEngine()
	engine.TickIntervalMS = 4000
	engine.ChunkSizeFactor = 1.25
	p := NewPlayer(engine, tracker)

	if w := p.WindowBeats(); math.Abs(w-10) > 1e-9 {
		t.Fatalf("window = %v beats, want 10", w)
	}

	d := NewDevice(engine, GetLegend("gm"))
	mustAdd(t, d, kick, 0, 1)
	mustAdd(t, d, snare, 1, 1)

	b := p.Schedule("drums", d, base)
	if b.Playing || len(b.Events) != 0 {
		t.Errorf("stopped device scheduled %d events", len(b.Events))
	}
	if b.View == nil {
		t.Error("stopped batch has no view")
	}

	d.setPlaying(true, 8)
	b = p.Schedule("drums", d, base)
	if b.WindowStart != 10 || b.WindowEnd != 20 || b.PlayFrom != 8 {
		t.Errorf("window = [%v,%v) from %v", b.WindowStart, b.WindowEnd, b.PlayFrom)
	}
	if got := onsets(b.Events); !sameBeats(got, []float64{16, 17}) {
		t.Errorf("onsets = %v, want [16 17]", got)
	}

	// playback anchored in the future starts at the anchor
	d.setPlaying(true, 12)
	b = p.Schedule("drums", d, base)
	if b.WindowStart != 12 {
		t.Errorf("window start = %v, want 12", b.WindowStart)
	}
	if got := onsets(b.Events); !sameBeats(got, []float64{12, 13}) {
		t.Errorf("onsets = %v, want [12 13]", got)
	}
}

func TestScheduleWindowBounds(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 1)
	v := d.View()

	tests := []struct {
		name                 string
		playFrom, start, end float64
	}{
		{"NaN start", 0, math.NaN(), 10},
		{"NaN anchor", math.NaN(), 0, 10},
		{"infinite end", 0, 0, math.Inf(1)},
		{"infinite start", 0, math.Inf(-1), 0},
		{"too many loops", 0, 0, 8 * (maxWindowLoops + 1)},
		{"loop index too large", 0, 1e17, 1e17 + 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan []ScheduledEvent, 1)
			go func() { done <- ScheduleWindow("drums", v, tt.playFrom, tt.start, tt.end) }()
			select {
			case got := <-done:
				if got != nil {
					t.Errorf("got %d events, want none", len(got))
				}
			case <-time.After(2 * time.Second):
				t.Fatal("window walk did not finish")
			}
		})
	}

	// the largest allowed window still schedules every loop
	if got := ScheduleWindow("drums", v, 0, 0, 8*maxWindowLoops); len(got) != maxWindowLoops {
		t.Errorf("%d events, want %d", len(got), maxWindowLoops)
	}
}

func TestPlayerScheduleIgnoresBadSync(t *testing.T) {
	base := time.Unix(5000, 0)
	tracker := musictime.NewTracker(func() time.Time { return base })
	tracker.OnBeatSync(120, 10)
	for _, beat := range []float64{math.NaN(), math.Inf(1), 1e17} {
		if tracker.OnBeatSync(120, beat) {
			t.Errorf("beat %v accepted", beat)
		}
	}

	engine := config.DefaultEngine()
	engine.TickIntervalMS = 4000
	engine.ChunkSizeFactor = 1.25
	p := NewPlayer(engine, tracker)

	d := NewDevice(engine, GetLegend("gm"))
	mustAdd(t, d, kick, 0, 1)
	d.setPlaying(true, 8)

	b := p.Schedule("drums", d, base)
	if got := onsets(b.Events); !sameBeats(got, []float64{16}) {
		t.Errorf("onsets = %v, want [16]", got)
	}
}
