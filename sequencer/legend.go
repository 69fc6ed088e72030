package sequencer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gopkg.in/yaml.v2"
)

// LegendEntry is one playable row of an instrument
type LegendEntry struct {
	NoteValue int    `yaml:"note"`
	Name      string `yaml:"name"`
	Group     string `yaml:"group,omitempty"`
	Color     string `yaml:"color,omitempty"` // display hint, e.g. "#ea4974"
}

// Legend is the ordered list of pitches an instrument can play. It is
// read-only input to the view projector.
type Legend struct {
	Name    string
	entries []LegendEntry
	index   map[int]int
}

// NewLegend validates entries: note values must be in range and unique
func NewLegend(name string, entries []LegendEntry) (Legend, error) {
	l := Legend{
		Name:    name,
		entries: append([]LegendEntry(nil), entries...),
		index:   make(map[int]int, len(entries)),
	}
	for i, e := range entries {
		if e.NoteValue < MinNoteValue || e.NoteValue > MaxNoteValue {
			return Legend{}, invalid(ErrInvalidNote, "legend %q: note %d out of range", name, e.NoteValue)
		}
		if _, dup := l.index[e.NoteValue]; dup {
			return Legend{}, duplicate(ErrDuplicateNote, "legend %q: note %d listed twice", name, e.NoteValue)
		}
		l.index[e.NoteValue] = i
	}
	return l, nil
}

func mustLegend(name string, entries []LegendEntry) Legend {
	l, err := NewLegend(name, entries)
	if err != nil {
		panic(err)
	}
	return l
}

// Entries returns a copy of the rows in display order
func (l Legend) Entries() []LegendEntry {
	return append([]LegendEntry(nil), l.entries...)
}

// Len returns the number of rows
func (l Legend) Len() int {
	return len(l.entries)
}

// Contains reports whether noteValue is playable
func (l Legend) Contains(noteValue int) bool {
	_, ok := l.index[noteValue]
	return ok
}

// Index returns the row of noteValue or -1
func (l Legend) Index(noteValue int) int {
	if i, ok := l.index[noteValue]; ok {
		return i
	}
	return -1
}

// NoteValues returns the note values in display order
func (l Legend) NoteValues() []int {
	out := make([]int, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.NoteValue
	}
	return out
}

// Entry returns the row for noteValue
func (l Legend) Entry(noteValue int) (LegendEntry, bool) {
	i, ok := l.index[noteValue]
	if !ok {
		return LegendEntry{}, false
	}
	return l.entries[i], true
}

func (l Legend) checkNote(noteValue int) error {
	if !l.Contains(noteValue) {
		return invalid(ErrNoteNotInLegend, "note %d not in legend %q", noteValue, l.Name)
	}
	return nil
}

// Built-in legends

func drumLegend(name string, notes [16]int) Legend {
	slotNames := [16]string{
		"Kick", "Snare", "Closed HH", "Open HH",
		"Low Tom", "Mid Tom", "High Tom", "Crash",
		"Ride", "Clap", "Rimshot", "Cowbell",
		"Clave", "Maracas", "Low Conga", "High Conga",
	}
	entries := make([]LegendEntry, 16)
	for i := range notes {
		entries[i] = LegendEntry{NoteValue: notes[i], Name: slotNames[i], Group: "drums"}
	}
	return mustLegend(name, entries)
}

func chromaticLegend(name string, low, high int) Legend {
	noteNames := []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	var entries []LegendEntry
	for v := high; v >= low; v-- {
		entries = append(entries, LegendEntry{
			NoteValue: v,
			Name:      fmt.Sprintf("%s%d", noteNames[v%12], v/12-1),
		})
	}
	return mustLegend(name, entries)
}

// Legends contains the built-in legends by name
var Legends = map[string]Legend{
	"gm": drumLegend("gm", [16]int{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 64, 63}),
	// RD-8 uses 40 for the snare, not 38
	"rd8":       drumLegend("rd8", [16]int{36, 40, 42, 46, 45, 48, 50, 49, 51, 39, 37, 56, 75, 70, 64, 63}),
	"tr8s":      drumLegend("tr8s", [16]int{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 62, 63}),
	"chromatic": chromaticLegend("chromatic", 48, 72),
}

// DefaultLegend is the default legend name
const DefaultLegend = "gm"

// LegendNames returns the list of built-in legend names
func LegendNames() []string {
	return []string{"gm", "rd8", "tr8s", "chromatic"}
}

// GetLegend returns a built-in legend, defaulting to GM if not found
func GetLegend(name string) Legend {
	if l, ok := Legends[name]; ok {
		return l
	}
	return Legends[DefaultLegend]
}

type legendFile struct {
	Name    string        `yaml:"name"`
	Entries []LegendEntry `yaml:"entries"`
}

// ParseLegend reads a YAML legend:
//
//	name: bass
//	entries:
//	  - {note: 36, name: C2}
func ParseLegend(data []byte) (Legend, error) {
	var f legendFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Legend{}, fault.Wrap(err, fmsg.With("parse legend"))
	}
	if len(f.Entries) == 0 {
		return Legend{}, invalid(ErrInvalidConfig, "legend %q has no entries", f.Name)
	}
	return NewLegend(f.Name, f.Entries)
}

// LoadLegendFile reads a YAML legend from disk. The file name is used when
// the document has no name.
func LoadLegendFile(path string) (Legend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Legend{}, fault.Wrap(err, fmsg.With("read legend file"))
	}
	l, err := ParseLegend(data)
	if err != nil {
		return Legend{}, err
	}
	if l.Name == "" {
		l.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return l, nil
}

// ResolveLegend treats ref as a built-in name, or as a YAML path when it
// ends in .yaml/.yml
func ResolveLegend(ref string) (Legend, error) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml":
		return LoadLegendFile(ref)
	}
	if l, ok := Legends[ref]; ok {
		return l, nil
	}
	return Legend{}, notFound(ErrInvalidConfig, "no legend named %q", ref)
}

// MarshalYAML writes the legend back in file form
func (l Legend) MarshalYAML() (interface{}, error) {
	return legendFile{Name: l.Name, Entries: l.entries}, nil
}
