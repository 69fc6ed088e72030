package sequencer

import (
	"math"

	"jamseq/musictime"
)

// CellKind classifies one (division, pitch) cell of a pattern view
type CellKind int

const (
	CellNone     CellKind = iota
	CellNoteOn            // division contains the note start
	CellContinue          // division is inside the note's sustain
	CellNoteOff           // division contains the note end
)

func (k CellKind) String() string {
	switch k {
	case CellNoteOn:
		return "on"
	case CellContinue:
		return "continue"
	case CellNoteOff:
		return "off"
	}
	return "none"
}

// Cell is the resolved state of one division for one pitch. Note is set for
// every kind but CellNone; only CellNoteOn cells are authoritative for the
// note's identity.
type Cell struct {
	Kind  CellKind
	Note  Note
	Muted bool
}

// Division is one grid step of a view. Beats are pattern-relative; Begin
// and End are swung, Straight* are the unswung grid positions.
type Division struct {
	Index               int
	BeginBeat           float64
	EndBeat             float64
	StraightBeginBeat   float64
	StraightEndBeat     float64
	BeginPatternFrac    float64
	EndPatternFrac      float64
	IsMeasureBoundary   bool
	IsMajorBeatBoundary bool
	IsMinorBeatBoundary bool

	cells []Cell // by legend row
}

// NoteOn is a note start found in the view
type NoteOn struct {
	Division  int
	Note      Note
	OnsetBeat float64 // swung, pattern-relative, in [0, LengthBeats)
	Muted     bool
}

// PatternView is a read-only projection of the live pattern of a patch
// through a legend. It is rebuilt, never updated.
type PatternView struct {
	PatternIndex        int
	LengthBeats         float64
	DivisionLengthBeats float64
	Swing               float64
	Speed               float64
	TimeSig             musictime.TimeSig

	legend    Legend
	divisions []Division
	noteOns   []NoteOn
	swingUnit float64
	swingEnd  float64 // positions at or past this stay straight
}

// NewPatternView projects the selected pattern of patch.
//
// Overlapping notes of the same pitch resolve deterministically: sustain
// and note-off cells are written first and note-on cells second, and within
// each pass later-inserted notes overwrite earlier ones. A note ending where
// another starts therefore shows the note-on.
func NewPatternView(patch *Patch, legend Legend) *PatternView {
	pat := patch.Selected()
	ts := patch.TimeSig()

	v := &PatternView{
		PatternIndex:        patch.SelectedIndex(),
		LengthBeats:         pat.LengthBeats(),
		DivisionLengthBeats: pat.DivisionLengthBeats(ts),
		Swing:               patch.Swing(),
		Speed:               patch.Speed(),
		TimeSig:             ts,
		legend:              legend,
	}
	v.swingUnit = 2 * v.DivisionLengthBeats
	v.swingEnd = math.Floor(v.LengthBeats/v.swingUnit+musictime.Epsilon) * v.swingUnit

	count := pat.DivisionCount(ts)
	v.divisions = make([]Division, count)
	for i := range v.divisions {
		v.divisions[i] = v.buildDivision(i, count)
	}

	var notes []Note
	for _, n := range pat.notes {
		if legend.Contains(n.NoteValue) {
			notes = append(notes, n)
		}
	}

	// pass 1: sustain and release
	for _, n := range notes {
		start, end, steps := v.span(n)
		walk := steps
		if walk > count {
			walk = count
		}
		for j := 1; j <= walk; j++ {
			v.set((start+j)%count, CellContinue, n, patch)
		}
		v.set(end, CellNoteOff, n, patch)
	}

	// pass 2: note starts
	for _, n := range notes {
		start, _, _ := v.span(n)
		v.set(start, CellNoteOn, n, patch)
	}

	for d := range v.divisions {
		for _, c := range v.divisions[d].cells {
			if c.Kind != CellNoteOn {
				continue
			}
			v.noteOns = append(v.noteOns, NoteOn{
				Division:  d,
				Note:      c.Note,
				OnsetBeat: v.SwingBeat(v.wrap(c.Note.TimeBeats)),
				Muted:     c.Muted,
			})
		}
	}
	return v
}

func (v *PatternView) buildDivision(i, count int) Division {
	sb := float64(i) * v.DivisionLengthBeats
	se := math.Min(float64(i+1)*v.DivisionLengthBeats, v.LengthBeats)
	if i == count-1 {
		se = v.LengthBeats
	}
	d := Division{
		Index:             i,
		StraightBeginBeat: sb,
		StraightEndBeat:   se,
		BeginBeat:         v.SwingBeat(sb),
		EndBeat:           v.SwingBeat(se),
		cells:             make([]Cell, v.legend.Len()),
	}
	d.BeginPatternFrac = d.BeginBeat / v.LengthBeats
	d.EndPatternFrac = d.EndBeat / v.LengthBeats

	mf := v.TimeSig.MeasureFracForAbsQuarter(sb)
	d.IsMeasureBoundary = mf < musictime.Epsilon || 1-mf < musictime.Epsilon
	minor := sb * float64(v.TimeSig.MinorBeatsPerQuarter())
	d.IsMinorBeatBoundary = math.Abs(minor-math.Round(minor)) < 1e-6
	if d.IsMinorBeatBoundary {
		d.IsMajorBeatBoundary = v.TimeSig.MinorBeatForMeasureFrac(mf).IsMajorBeatBoundary
	}
	return d
}

// wrap folds a straight beat position into [0, LengthBeats)
func (v *PatternView) wrap(b float64) float64 {
	w := musictime.Mod(b, v.LengthBeats)
	if v.LengthBeats-w < musictime.Epsilon {
		w = 0
	}
	return w
}

// straightDivision returns the division containing a wrapped straight position
func (v *PatternView) straightDivision(b float64) int {
	i := int(math.Floor(b/v.DivisionLengthBeats + musictime.Epsilon))
	if i >= len(v.divisions) {
		i = len(v.divisions) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// span returns the start and end division of n and how many division steps
// the note walks from start to end, counting wraps past the pattern end.
func (v *PatternView) span(n Note) (start, end, steps int) {
	b := v.wrap(n.TimeBeats)
	start = v.straightDivision(b)

	e := b + n.LengthBeats
	loops := math.Floor(e/v.LengthBeats + musictime.Epsilon)
	ew := e - loops*v.LengthBeats
	if ew < 0 {
		ew = 0
	}
	end = v.straightDivision(ew)
	steps = int(loops)*len(v.divisions) + end - start
	if steps < 0 {
		steps = 0
	}
	return start, end, steps
}

func (v *PatternView) set(div int, kind CellKind, n Note, patch *Patch) {
	row := v.legend.Index(n.NoteValue)
	if row < 0 {
		return
	}
	v.divisions[div].cells[row] = Cell{
		Kind:  kind,
		Note:  n,
		Muted: patch.IsMuted(n.NoteValue),
	}
}

// SwingBeat maps a straight pattern position to its swung position. Swing
// works on pairs of divisions; a trailing incomplete pair stays straight.
func (v *PatternView) SwingBeat(b float64) float64 {
	if b >= v.swingEnd-musictime.Epsilon || v.swingUnit <= 0 {
		return b
	}
	return v.swingUnit * musictime.ApplySwingToBeats(b/v.swingUnit, v.Swing)
}

// StraightBeat is the inverse of SwingBeat
func (v *PatternView) StraightBeat(b float64) float64 {
	if b >= v.swingEnd-musictime.Epsilon || v.swingUnit <= 0 {
		return b
	}
	return v.swingUnit * musictime.RemoveSwingFromBeats(b/v.swingUnit, v.Swing)
}

// Legend returns the legend the view was built with
func (v *PatternView) Legend() Legend {
	return v.legend
}

// DivisionCount returns the number of divisions
func (v *PatternView) DivisionCount() int {
	return len(v.divisions)
}

// Division returns division i. Out of range indexes give a zero Division.
func (v *PatternView) Division(i int) Division {
	if i < 0 || i >= len(v.divisions) {
		return Division{Index: -1}
	}
	return v.divisions[i]
}

// Cell returns the classification of (division, noteValue). It is total:
// anything outside the view is CellNone.
func (v *PatternView) Cell(div, noteValue int) Cell {
	if div < 0 || div >= len(v.divisions) {
		return Cell{}
	}
	row := v.legend.Index(noteValue)
	if row < 0 {
		return Cell{}
	}
	return v.divisions[div].cells[row]
}

// NoteOns returns every note-on cell, by division then legend row
func (v *PatternView) NoteOns() []NoteOn {
	return append([]NoteOn(nil), v.noteOns...)
}

// DivisionAtBeat returns the division containing a swung pattern position
func (v *PatternView) DivisionAtBeat(b float64) int {
	return v.straightDivision(v.wrap(v.StraightBeat(v.wrap(b))))
}
