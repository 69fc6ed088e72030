package musictime

import (
	"math"
	"sync"
	"time"

	"jamseq/debug"
)

// DefaultTempo is used until the first beat sync arrives
const DefaultTempo = 120.0

// Limits on accepted clock samples. Beats stay far below 2^53 so the
// scheduler can still step whole loops.
const (
	MaxTempo = 1000.0
	MaxBeat  = 1 << 40
)

// ValidSample reports whether a (tempo, beat) sample is usable
func ValidSample(tempoBPM, beat float64) bool {
	if math.IsNaN(tempoBPM) || tempoBPM <= 0 || tempoBPM > MaxTempo {
		return false
	}
	return !math.IsNaN(beat) && math.Abs(beat) <= MaxBeat
}

// Tracker extrapolates the absolute beat position from the last
// authoritative (tempo, beat) sample. It never smooths jitter: a newer
// sample simply replaces the old one, out of order or not.
type Tracker struct {
	mu  sync.RWMutex
	now func() time.Time

	tempo    float64   // BPM
	beat     float64   // beat at sampleAt
	sampleAt time.Time // local receipt time of the sample
	synced   bool
}

// NewTracker creates a tracker reading time from clock (time.Now if nil).
// Until synced it reports beat 0 at creation time at DefaultTempo.
func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		now:      clock,
		tempo:    DefaultTempo,
		sampleAt: clock(),
	}
}

// OnBeatSync records an authoritative sample. Samples failing
// ValidSample are dropped and the previous state is kept.
func (t *Tracker) OnBeatSync(tempoBPM, beat float64) bool {
	if !ValidSample(tempoBPM, beat) {
		debug.Warn("clock", "ignoring beat sync tempo=%v beat=%v", tempoBPM, beat)
		return false
	}
	now := t.now()

	t.mu.Lock()
	t.tempo = tempoBPM
	t.beat = beat
	t.sampleAt = now
	t.synced = true
	t.mu.Unlock()

	debug.LogEvery(16, "clock", "sync tempo=%.2f beat=%.3f", tempoBPM, beat)
	return true
}

// Now returns the tracker's clock reading
func (t *Tracker) Now() time.Time {
	return t.now()
}

// AbsoluteBeat extrapolates the beat position at now
func (t *Tracker) AbsoluteBeat(now time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	elapsedMS := float64(now.Sub(t.sampleAt)) / float64(time.Millisecond)
	return t.beat + elapsedMS/msPerBeat(t.tempo)
}

// CurrentBeat is AbsoluteBeat at the tracker's own clock
func (t *Tracker) CurrentBeat() float64 {
	return t.AbsoluteBeat(t.now())
}

// TimeForBeat is the inverse of AbsoluteBeat under the current sample
func (t *Tracker) TimeForBeat(beat float64) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ms := (beat - t.beat) * msPerBeat(t.tempo)
	return t.sampleAt.Add(time.Duration(ms * float64(time.Millisecond)))
}

// Tempo returns the last synced tempo in BPM
func (t *Tracker) Tempo() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tempo
}

// MsPerBeat returns the beat duration at the current tempo
func (t *Tracker) MsPerBeat() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return msPerBeat(t.tempo)
}

// Synced reports whether any beat sync has been received
func (t *Tracker) Synced() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.synced
}

// BeatsForDuration converts a wall duration to beats at the current tempo
func (t *Tracker) BeatsForDuration(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond) / t.MsPerBeat()
}

func msPerBeat(tempoBPM float64) float64 {
	return 60000 / tempoBPM
}
