package sequencer

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"jamseq/debug"
	"jamseq/musictime"
)

// DefaultPatternCount is used when a patch is built without a config
const DefaultPatternCount = 4

// Patch is the full configuration of one instrument's sequencer. The number
// of pattern slots is fixed when the patch is created.
type Patch struct {
	Name    string
	Author  string
	Tags    []string
	SavedAt time.Time

	timeSig  musictime.TimeSig
	patterns []*Pattern
	selected int
	speed    float64
	swing    float64
	muted    map[int]bool

	nextNoteID NoteID
}

// NewPatch creates an empty patch with patternCount slots
func NewPatch(patternCount int) *Patch {
	if patternCount <= 0 {
		patternCount = DefaultPatternCount
	}
	p := &Patch{
		timeSig:    musictime.DefaultTimeSig,
		patterns:   make([]*Pattern, patternCount),
		speed:      DefaultSpeed,
		muted:      make(map[int]bool),
		nextNoteID: 1,
	}
	for i := range p.patterns {
		p.patterns[i] = NewPattern()
	}
	return p
}

// TimeSig returns the patch meter
func (p *Patch) TimeSig() musictime.TimeSig {
	return p.timeSig
}

// PatternCount returns the fixed slot count
func (p *Patch) PatternCount() int {
	return len(p.patterns)
}

// Pattern returns slot i, or nil when out of range
func (p *Patch) Pattern(i int) *Pattern {
	if i < 0 || i >= len(p.patterns) {
		return nil
	}
	return p.patterns[i]
}

// SelectedIndex returns the live pattern slot
func (p *Patch) SelectedIndex() int {
	return p.selected
}

// Selected returns the live pattern
func (p *Patch) Selected() *Pattern {
	return p.patterns[p.selected]
}

// Speed returns the playback rate multiplier
func (p *Patch) Speed() float64 {
	return p.speed
}

// Swing returns the swing amount in [-1,1]
func (p *Patch) Swing() float64 {
	return p.swing
}

// IsMuted reports whether a note value is muted
func (p *Patch) IsMuted(noteValue int) bool {
	return p.muted[noteValue]
}

// MutedNotes returns the muted note values in ascending order
func (p *Patch) MutedNotes() []int {
	out := make([]int, 0, len(p.muted))
	for v, on := range p.muted {
		if on {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// ContentMask reports which slots have notes
func (p *Patch) ContentMask() []bool {
	mask := make([]bool, len(p.patterns))
	for i, pat := range p.patterns {
		mask[i] = pat.HasContent()
	}
	return mask
}

func (p *Patch) allocNoteID() NoteID {
	id := p.nextNoteID
	p.nextNoteID++
	return id
}

// findNote searches every slot, the live one first
func (p *Patch) findNote(id NoteID) (*Pattern, Note, bool) {
	if n, ok := p.Selected().Note(id); ok {
		return p.Selected(), n, true
	}
	for _, pat := range p.patterns {
		if n, ok := pat.Note(id); ok {
			return pat, n, true
		}
	}
	return nil, Note{}, false
}

func (p *Patch) setSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return invalid(ErrInvalidConfig, "speed %v must be positive", speed)
	}
	p.speed = speed
	return nil
}

func (p *Patch) setSwing(swing float64) error {
	if math.IsNaN(swing) {
		return invalid(ErrInvalidConfig, "swing is NaN")
	}
	p.swing = clampSwing(swing)
	return nil
}

func clampSwing(s float64) float64 {
	return math.Max(-1, math.Min(1, s))
}

func (p *Patch) selectPattern(i int) error {
	if i < 0 || i >= len(p.patterns) {
		return invalid(ErrPatternIndex, "pattern %d of %d", i, len(p.patterns))
	}
	p.selected = i
	return nil
}

func (p *Patch) setMuted(noteValue int, muted bool) {
	if muted {
		p.muted[noteValue] = true
	} else {
		delete(p.muted, noteValue)
	}
}

// Clone returns a deep copy
func (p *Patch) Clone() *Patch {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.patterns = make([]*Pattern, len(p.patterns))
	for i, pat := range p.patterns {
		c.patterns[i] = pat.clone()
	}
	c.muted = make(map[int]bool, len(p.muted))
	for k, v := range p.muted {
		c.muted[k] = v
	}
	return &c
}

// JSON shapes

type timeSigJSON struct {
	ID                   string `json:"id"`
	MinorBeatsPerQuarter int    `json:"minorBeatsPerQuarter"`
	MinorBeatGroups      []int  `json:"minorBeatGroups"`
}

type patternJSON struct {
	Notes       []Note  `json:"notes"`
	LengthBeats float64 `json:"lengthBeats"`
	Divisions   int     `json:"divisions"`
}

type patchJSON struct {
	Name               string        `json:"name"`
	Author             string        `json:"author,omitempty"`
	Tags               []string      `json:"tags,omitempty"`
	SavedAt            time.Time     `json:"savedAt"`
	TimeSig            *timeSigJSON  `json:"timeSig,omitempty"`
	Patterns           []patternJSON `json:"patterns"`
	SelectedPatternIdx int           `json:"selectedPatternIdx"`
	Speed              float64       `json:"speed"`
	Swing              float64       `json:"swing"`
	MutedNotes         []int         `json:"mutedNotes,omitempty"`
}

// MarshalJSON writes the plain-data shape of the patch
func (p *Patch) MarshalJSON() ([]byte, error) {
	out := patchJSON{
		Name:    p.Name,
		Author:  p.Author,
		Tags:    p.Tags,
		SavedAt: p.SavedAt,
		TimeSig: &timeSigJSON{
			ID:                   p.timeSig.ID(),
			MinorBeatsPerQuarter: p.timeSig.MinorBeatsPerQuarter(),
			MinorBeatGroups:      p.timeSig.MinorBeatGroups(),
		},
		SelectedPatternIdx: p.selected,
		Speed:              p.speed,
		Swing:              p.swing,
		MutedNotes:         p.MutedNotes(),
	}
	for _, pat := range p.patterns {
		notes := pat.notes
		if notes == nil {
			notes = []Note{}
		}
		out.Patterns = append(out.Patterns, patternJSON{
			Notes:       notes,
			LengthBeats: pat.lengthBeats,
			Divisions:   pat.divisions,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a patch from possibly stale data. The slot count
// of the receiver (DefaultPatternCount for a zero Patch) is authoritative:
// data with a different count loses all its patterns. Bad substructures are
// replaced by defaults rather than failing the load.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var in patchJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	n := len(p.patterns)
	if n == 0 {
		n = DefaultPatternCount
	}
	fresh := NewPatch(n)
	fresh.Name = in.Name
	fresh.Author = in.Author
	fresh.Tags = in.Tags
	fresh.SavedAt = in.SavedAt
	fresh.timeSig = decodeTimeSig(in.TimeSig)

	if in.Speed > 0 && !math.IsInf(in.Speed, 0) {
		fresh.speed = in.Speed
	} else if in.Speed != 0 {
		debug.Warn("patch", "%q: bad speed %v, using %v", in.Name, in.Speed, DefaultSpeed)
	}
	if !math.IsNaN(in.Swing) {
		fresh.swing = clampSwing(in.Swing)
	}
	for _, v := range in.MutedNotes {
		fresh.muted[v] = true
	}

	if len(in.Patterns) != n {
		debug.Warn("patch", "%q: has %d patterns, want %d; starting empty", in.Name, len(in.Patterns), n)
	} else {
		for _, pj := range in.Patterns {
			for _, nj := range pj.Notes {
				if nj.ID >= fresh.nextNoteID {
					fresh.nextNoteID = nj.ID + 1
				}
			}
		}
		seen := make(map[NoteID]bool)
		for i, pj := range in.Patterns {
			fresh.patterns[i] = fresh.decodePattern(in.Name, i, pj, seen)
		}
		if in.SelectedPatternIdx >= 0 && in.SelectedPatternIdx < n {
			fresh.selected = in.SelectedPatternIdx
		}
	}

	*p = *fresh
	return nil
}

func decodeTimeSig(in *timeSigJSON) musictime.TimeSig {
	if in == nil {
		return musictime.DefaultTimeSig
	}
	if ts, ok := musictime.LookupTimeSig(in.ID); ok && sameGroups(ts, in) {
		return ts
	}
	ts, err := musictime.NewTimeSig(in.ID, "", in.MinorBeatsPerQuarter, in.MinorBeatGroups...)
	if err != nil {
		debug.Warn("patch", "bad time signature %q (%v); falling back", in.ID, err)
		return musictime.GetTimeSigByID(in.ID)
	}
	return ts
}

func sameGroups(ts musictime.TimeSig, in *timeSigJSON) bool {
	if in.MinorBeatsPerQuarter == 0 && len(in.MinorBeatGroups) == 0 {
		return true // id-only reference
	}
	g := ts.MinorBeatGroups()
	if ts.MinorBeatsPerQuarter() != in.MinorBeatsPerQuarter || len(g) != len(in.MinorBeatGroups) {
		return false
	}
	for i := range g {
		if g[i] != in.MinorBeatGroups[i] {
			return false
		}
	}
	return true
}

func (p *Patch) decodePattern(name string, idx int, in patternJSON, seen map[NoteID]bool) *Pattern {
	pat := NewPattern()
	if in.LengthBeats > 0 {
		pat.lengthBeats = in.LengthBeats
	}
	if in.Divisions > 0 {
		pat.divisions = in.Divisions
	}
	if err := checkGrid(pat.lengthBeats, pat.divisions, p.timeSig); err != nil {
		debug.Warn("patch", "%q pattern %d: %v; using the default grid", name, idx, err)
		pat.lengthBeats = DefaultPatternLen
		pat.divisions = DefaultDivisions
	}
	for _, nj := range in.Notes {
		if nj.Velocity == 0 {
			nj.Velocity = DefaultVelocity
		}
		if nj.LengthBeats == 0 {
			nj.LengthBeats = DefaultNoteLength
		}
		n, err := NewNote(nj.NoteValue, nj.Velocity, nj.LengthBeats, nj.TimeBeats)
		if err != nil {
			debug.Warn("patch", "%q pattern %d: dropping note: %v", name, idx, err)
			continue
		}
		n.ID = nj.ID
		if n.ID <= 0 || seen[n.ID] {
			n.ID = p.allocNoteID()
		}
		if err := pat.addNote(n); err != nil {
			debug.Warn("patch", "%q pattern %d: dropping note: %v", name, idx, err)
			continue
		}
		seen[n.ID] = true
	}
	return pat
}
