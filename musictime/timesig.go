package musictime

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// MinorBeat describes one minor beat of a measure
type MinorBeat struct {
	Index                int // index within the measure
	MajorBeatIndex       int // which major beat this belongs to
	MinorBeatOfMajorBeat int // index within its major beat
	BeginMeasureFrac     float64
	EndMeasureFrac       float64
	IsMajorBeatBoundary  bool // first minor beat of a major beat
}

// MajorBeat aggregates the minor beats of one major beat
type MajorBeat struct {
	Index            int
	MinorBeatCount   int
	FirstMinorBeat   int
	BeginMeasureFrac float64
	EndMeasureFrac   float64
}

// TimeSig is an immutable meter. Build it with NewTimeSig; the zero value
// is not usable.
type TimeSig struct {
	id                   string
	name                 string
	minorBeatsPerQuarter int
	minorBeatGroups      []int

	majorBeatsPerMeasure int
	minorBeatsPerMeasure int
	quartersPerMeasure   float64

	minorBeats []MinorBeat
	majorBeats []MajorBeat
}

// Limits on custom time signatures
const (
	MaxMinorBeatsPerQuarter = 64
	MaxMinorBeatsPerMeasure = 256
)

// ErrInvalidTimeSig is returned by NewTimeSig for a bad grouping
var ErrInvalidTimeSig = errors.New("invalid time signature")

func invalidTimeSig(id, format string, args ...any) error {
	return fault.Wrap(ErrInvalidTimeSig,
		fmsg.With(fmt.Sprintf("time signature %q: ", id)+fmt.Sprintf(format, args...)),
		ftag.With(ftag.InvalidArgument),
	)
}

// NewTimeSig validates the grouping and computes every derived table once
func NewTimeSig(id, name string, minorBeatsPerQuarter int, groups ...int) (TimeSig, error) {
	if minorBeatsPerQuarter <= 0 || minorBeatsPerQuarter > MaxMinorBeatsPerQuarter {
		return TimeSig{}, invalidTimeSig(id, "minor beats per quarter must be in 1..%d, got %d", MaxMinorBeatsPerQuarter, minorBeatsPerQuarter)
	}
	if len(groups) == 0 {
		return TimeSig{}, invalidTimeSig(id, "no minor beat groups")
	}
	total := 0
	for i, g := range groups {
		if g <= 0 {
			return TimeSig{}, invalidTimeSig(id, "group %d has %d minor beats", i, g)
		}
		total += g
		if total > MaxMinorBeatsPerMeasure {
			return TimeSig{}, invalidTimeSig(id, "more than %d minor beats per measure", MaxMinorBeatsPerMeasure)
		}
	}

	ts := TimeSig{
		id:                   id,
		name:                 name,
		minorBeatsPerQuarter: minorBeatsPerQuarter,
		minorBeatGroups:      append([]int(nil), groups...),
		majorBeatsPerMeasure: len(groups),
		minorBeatsPerMeasure: total,
		quartersPerMeasure:   float64(total) / float64(minorBeatsPerQuarter),
	}
	if ts.name == "" {
		ts.name = ts.defaultName()
	}

	// Fractions are computed from integer positions so the boundaries tile
	// [0,1) exactly and the last end is 1.
	pos := 0
	for major, g := range groups {
		mb := MajorBeat{
			Index:            major,
			MinorBeatCount:   g,
			FirstMinorBeat:   pos,
			BeginMeasureFrac: float64(pos) / float64(total),
			EndMeasureFrac:   float64(pos+g) / float64(total),
		}
		for m := 0; m < g; m++ {
			ts.minorBeats = append(ts.minorBeats, MinorBeat{
				Index:                pos,
				MajorBeatIndex:       major,
				MinorBeatOfMajorBeat: m,
				BeginMeasureFrac:     float64(pos) / float64(total),
				EndMeasureFrac:       float64(pos+1) / float64(total),
				IsMajorBeatBoundary:  m == 0,
			})
			pos++
		}
		ts.majorBeats = append(ts.majorBeats, mb)
	}
	return ts, nil
}

func (t TimeSig) defaultName() string {
	parts := make([]string, len(t.minorBeatGroups))
	for i, g := range t.minorBeatGroups {
		parts[i] = fmt.Sprint(g)
	}
	return fmt.Sprintf("%d/%d (%s)", t.minorBeatsPerMeasure, t.minorBeatsPerQuarter*4, strings.Join(parts, "+"))
}

func (t TimeSig) ID() string                { return t.id }
func (t TimeSig) Name() string              { return t.name }
func (t TimeSig) MinorBeatsPerQuarter() int { return t.minorBeatsPerQuarter }
func (t TimeSig) MajorBeatsPerMeasure() int { return t.majorBeatsPerMeasure }
func (t TimeSig) MinorBeatsPerMeasure() int { return t.minorBeatsPerMeasure }
func (t TimeSig) QuartersPerMeasure() float64 {
	return t.quartersPerMeasure
}

// MinorBeatGroups returns a copy of the grouping
func (t TimeSig) MinorBeatGroups() []int {
	return append([]int(nil), t.minorBeatGroups...)
}

// MinorBeatInfo returns a copy of the per-minor-beat table
func (t TimeSig) MinorBeatInfo() []MinorBeat {
	return append([]MinorBeat(nil), t.minorBeats...)
}

// MajorBeatInfo returns a copy of the per-major-beat table
func (t TimeSig) MajorBeatInfo() []MajorBeat {
	return append([]MajorBeat(nil), t.majorBeats...)
}

// IsValid reports whether t came out of NewTimeSig
func (t TimeSig) IsValid() bool {
	return t.minorBeatsPerMeasure > 0 && t.minorBeatsPerQuarter > 0
}

// MeasureFracForAbsQuarter returns the position within a measure in [0,1)
// for any absolute quarter, negative ones included.
func (t TimeSig) MeasureFracForAbsQuarter(quarter float64) float64 {
	return Frac(quarter / t.quartersPerMeasure)
}

// MinorBeatForMeasureFrac returns the minor beat containing frac
func (t TimeSig) MinorBeatForMeasureFrac(frac float64) MinorBeat {
	frac = Frac(frac)
	i := int(math.Floor(frac*float64(t.minorBeatsPerMeasure) + Epsilon))
	if i >= t.minorBeatsPerMeasure {
		i = t.minorBeatsPerMeasure - 1
	}
	return t.minorBeats[i]
}

// QuartersForMeasures converts a measure count to quarters
func (t TimeSig) QuartersForMeasures(measures float64) float64 {
	return measures * t.quartersPerMeasure
}

// MinorBeatLengthQuarters is the length of one minor beat in quarters
func (t TimeSig) MinorBeatLengthQuarters() float64 {
	return 1 / float64(t.minorBeatsPerQuarter)
}

// NextMeasureBoundary returns the first measure start at or after quarter
func (t TimeSig) NextMeasureBoundary(quarter float64) float64 {
	measures := math.Ceil(quarter/t.quartersPerMeasure - Epsilon)
	return measures * t.quartersPerMeasure
}

func (t TimeSig) String() string {
	return t.name
}
