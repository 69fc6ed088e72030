package sequencer

import (
	"time"

	"jamseq/config"
)

// Device is the runtime sequencer of one instrument: a live patch, saved
// presets and the transport flag. It is not safe for concurrent use; the
// Room serializes every call.
type Device struct {
	engine  config.EngineConfig
	legend  Legend
	patch   *Patch
	presets []*Patch

	playing  bool
	playFrom float64 // absolute beat where pattern beat 0 sounds

	revision uint64
	view     *PatternView
	viewRev  uint64
}

// NewDevice creates a device with an empty patch sized by engine
func NewDevice(engine config.EngineConfig, legend Legend) *Device {
	return &Device{
		engine:   engine,
		legend:   legend,
		patch:    NewPatch(engine.PatternCount),
		revision: 1,
	}
}

// Patch returns a copy of the live patch
func (d *Device) Patch() *Patch {
	return d.patch.Clone()
}

// Legend returns the instrument legend
func (d *Device) Legend() Legend {
	return d.legend
}

// SetLegend swaps the legend. Notes outside the new legend stay in the
// patch but drop out of the view.
func (d *Device) SetLegend(l Legend) {
	d.legend = l
	d.touch()
}

// IsPlaying reports the transport state
func (d *Device) IsPlaying() bool {
	return d.playing
}

// PlayFrom returns the play anchor in absolute beats
func (d *Device) PlayFrom() float64 {
	return d.playFrom
}

// Revision increases on every accepted edit
func (d *Device) Revision() uint64 {
	return d.revision
}

// View returns the pattern view of the live pattern, rebuilt after edits
func (d *Device) View() *PatternView {
	if d.view == nil || d.viewRev != d.revision {
		d.view = NewPatternView(d.patch, d.legend)
		d.viewRev = d.revision
	}
	return d.view
}

func (d *Device) touch() {
	d.revision++
}

func (d *Device) setPlaying(playing bool, anchor float64) {
	d.playing = playing
	if playing {
		d.playFrom = anchor
	}
	d.touch()
}

// ReplacePatch swaps the live patch for a copy of p. The slot count must
// match the engine's.
func (d *Device) ReplacePatch(p *Patch) error {
	if p.PatternCount() != d.engine.PatternCount {
		return invalid(ErrInvalidConfig, "patch has %d patterns, want %d", p.PatternCount(), d.engine.PatternCount)
	}
	d.patch = p.Clone()
	d.touch()
	return nil
}

// Presets

// Presets returns copies of the saved presets
func (d *Device) Presets() []*Patch {
	out := make([]*Patch, len(d.presets))
	for i, p := range d.presets {
		out[i] = p.Clone()
	}
	return out
}

// SavePreset stores a snapshot of the live patch under name
func (d *Device) SavePreset(name string, now time.Time) *Patch {
	p := d.patch.Clone()
	p.Name = name
	p.SavedAt = now
	d.presets = append(d.presets, p)
	return p.Clone()
}

// AddPreset adds an externally loaded preset
func (d *Device) AddPreset(p *Patch) error {
	if p.PatternCount() != d.engine.PatternCount {
		return invalid(ErrInvalidConfig, "preset %q has %d patterns, want %d", p.Name, p.PatternCount(), d.engine.PatternCount)
	}
	d.presets = append(d.presets, p.Clone())
	return nil
}

// LoadPreset makes preset i the live patch
func (d *Device) LoadPreset(i int) error {
	if i < 0 || i >= len(d.presets) {
		return invalid(ErrPresetIndex, "preset %d of %d", i, len(d.presets))
	}
	d.patch = d.presets[i].Clone()
	d.touch()
	return nil
}

// DeletePreset removes preset i
func (d *Device) DeletePreset(i int) error {
	if i < 0 || i >= len(d.presets) {
		return invalid(ErrPresetIndex, "preset %d of %d", i, len(d.presets))
	}
	d.presets = append(d.presets[:i], d.presets[i+1:]...)
	return nil
}
