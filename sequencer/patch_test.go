package sequencer

import (
	"encoding/json"
	"testing"

	"jamseq/musictime"
)

func TestPatchJSONRoundTrip(t *testing.T) {
	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 1)
	mustAdd(t, d, snare, 2.5, 0.5)
	for _, err := range []error{
		d.SetSwing(0.3),
		d.SetSpeed(2),
		d.SetMuted(hat, true),
		d.SetTimeSig(musictime.GetTimeSigByID("7/8-322")),
		d.SetDivisions(4),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	orig := d.Patch()
	orig.Name = "groove"
	orig.Tags = []string{"house"}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}
	got := NewPatch(4)
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatal(err)
	}

	if got.Name != "groove" || len(got.Tags) != 1 {
		t.Errorf("metadata = %q %v", got.Name, got.Tags)
	}
	if got.Speed() != 2 || got.Swing() != 0.3 {
		t.Errorf("speed=%v swing=%v", got.Speed(), got.Swing())
	}
	if !got.IsMuted(hat) || got.IsMuted(kick) {
		t.Errorf("muted = %v", got.MutedNotes())
	}
	if got.TimeSig().ID() != "7/8-322" || got.TimeSig().MinorBeatsPerMeasure() != 7 {
		t.Errorf("time sig = %s", got.TimeSig().ID())
	}
	if got.Selected().Divisions() != 4 {
		t.Errorf("divisions = %d", got.Selected().Divisions())
	}

	want := orig.Selected().Notes()
	notes := got.Selected().Notes()
	if len(notes) != len(want) {
		t.Fatalf("%d notes, want %d", len(notes), len(want))
	}
	for i := range want {
		if notes[i] != want[i] {
			t.Errorf("note %d = %+v, want %+v", i, notes[i], want[i])
		}
	}

	// IDs keep increasing after a load
	next := got.allocNoteID()
	for _, n := range notes {
		if next <= n.ID {
			t.Errorf("allocated ID %d collides with loaded note %d", next, n.ID)
		}
	}
}

func TestPatchUnmarshalPatternCount(t *testing.T) {
	src := NewPatch(4)
	n, _ := NewNote(kick, 0.5, 1, 0)
	n.ID = src.allocNoteID()
	if err := src.Selected().addNote(n); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(src)
	if err != nil {
		t.Fatal(err)
	}

	got := NewPatch(2)
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatal(err)
	}
	if got.PatternCount() != 2 {
		t.Errorf("pattern count = %d, want 2", got.PatternCount())
	}
	for i, has := range got.ContentMask() {
		if has {
			t.Errorf("pattern %d kept notes from a patch with a different slot count", i)
		}
	}
}

func TestPatchUnmarshalDefaults(t *testing.T) {
	tests := []struct {
		name string
		json string
		ts   string
		len  float64
	}{
		{
			name: "no time signature",
			json: `{"name":"x","patterns":[{"notes":[]},{"notes":[]},{"notes":[]},{"notes":[]}]}`,
			ts:   "4/4",
			len:  DefaultPatternLen,
		},
		{
			name: "unknown id with groups",
			json: `{"timeSig":{"id":"odd","minorBeatsPerQuarter":2,"minorBeatGroups":[2,2,3]},"patterns":[{"lengthBeats":3.5,"notes":[]},{"notes":[]},{"notes":[]},{"notes":[]}]}`,
			ts:   "odd",
			len:  3.5,
		},
		{
			name: "broken time signature",
			json: `{"timeSig":{"id":"6/8","minorBeatsPerQuarter":0,"minorBeatGroups":[3,3]},"patterns":[]}`,
			ts:   "6/8",
			len:  DefaultPatternLen,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPatch(4)
			if err := json.Unmarshal([]byte(tt.json), p); err != nil {
				t.Fatal(err)
			}
			if p.TimeSig().ID() != tt.ts || !p.TimeSig().IsValid() {
				t.Errorf("time sig = %q valid=%v, want %q", p.TimeSig().ID(), p.TimeSig().IsValid(), tt.ts)
			}
			if p.Selected().LengthBeats() != tt.len {
				t.Errorf("length = %v, want %v", p.Selected().LengthBeats(), tt.len)
			}
			if p.Speed() != DefaultSpeed {
				t.Errorf("speed = %v, want %v", p.Speed(), DefaultSpeed)
			}
		})
	}
}

func TestPatchUnmarshalRepairsNotes(t *testing.T) {
	data := `{"patterns":[
		{"notes":[
			{"id":5,"noteValue":36,"velocity":0.5,"lengthBeats":1,"timeBeats":0},
			{"id":5,"noteValue":38,"velocity":0.5,"lengthBeats":1,"timeBeats":1},
			{"id":7,"noteValue":200,"velocity":0.5,"lengthBeats":1,"timeBeats":2},
			{"id":8,"noteValue":42,"timeBeats":3}
		]},
		{"notes":[]},{"notes":[]},{"notes":[]}
	],"selectedPatternIdx":9,"speed":-1}`

	p := NewPatch(4)
	if err := json.Unmarshal([]byte(data), p); err != nil {
		t.Fatal(err)
	}
	notes := p.Selected().Notes()
	if len(notes) != 3 {
		t.Fatalf("%d notes survived, want 3", len(notes))
	}
	if notes[0].ID == notes[1].ID {
		t.Error("duplicate IDs not reassigned")
	}
	if notes[2].Velocity != DefaultVelocity || notes[2].LengthBeats != DefaultNoteLength {
		t.Errorf("missing fields not defaulted: %+v", notes[2])
	}
	if p.SelectedIndex() != 0 {
		t.Errorf("bad selected index kept: %d", p.SelectedIndex())
	}
	if p.Speed() != DefaultSpeed {
		t.Errorf("bad speed kept: %v", p.Speed())
	}
}

func TestPatchUnmarshalOversizedGrid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"huge divisions", `{"patterns":[{"divisions":100000000,"notes":[]},{},{},{}]}`},
		{"huge length", `{"patterns":[{"lengthBeats":1e12,"notes":[]},{},{},{}]}`},
		{"fine time sig", `{"timeSig":{"id":"fine","minorBeatsPerQuarter":64,"minorBeatGroups":[4]},"patterns":[{"lengthBeats":16,"divisions":8,"notes":[]},{},{},{}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPatch(4)
			if err := json.Unmarshal([]byte(tt.json), p); err != nil {
				t.Fatal(err)
			}
			pat := p.Selected()
			if pat.LengthBeats() != DefaultPatternLen || pat.Divisions() != DefaultDivisions {
				t.Errorf("grid = %v beats / %d divisions, want the defaults", pat.LengthBeats(), pat.Divisions())
			}
			if n := pat.DivisionCount(p.TimeSig()); n > MaxGridSteps {
				t.Errorf("division count %d over the limit", n)
			}
		})
	}
}
