package midi

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"jamseq/debug"
	"jamseq/musictime"
	"jamseq/sequencer"
)

// LateTolerance is how far behind the clock a note-on may fire. Older
// onsets are dropped instead of being played in a burst.
const LateTolerance = 50 * time.Millisecond

// fireKey identifies one occurrence of a note so overlapping windows
// never fire it twice
type fireKey struct {
	instrumentID string
	noteID       sequencer.NoteID
	onset        int64 // onset beat in micro-beats
}

func keyFor(se sequencer.ScheduledEvent) fireKey {
	return fireKey{se.InstrumentID, se.NoteID, int64(math.Round(se.AbsBeat * 1e6))}
}

// Quantizer turns scheduled batches into MIDI messages at wall-clock time.
// Each batch replaces the previous one for its instrument.
type Quantizer struct {
	tracker *musictime.Tracker
	out     Output

	mu      sync.Mutex
	batches map[string]sequencer.Batch
	fired   map[fireKey]bool
	offs    []Event // pending releases

	interruptChan chan struct{}
}

// NewQuantizer creates a quantizer timing messages with tracker
func NewQuantizer(tracker *musictime.Tracker, out Output) *Quantizer {
	return &Quantizer{
		tracker:       tracker,
		out:           out,
		batches:       make(map[string]sequencer.Batch),
		fired:         make(map[fireKey]bool),
		interruptChan: make(chan struct{}, 1),
	}
}

// SetSequencerEvents stores b as the full schedule of its instrument. A
// stopped batch releases every note still sounding on that instrument.
func (q *Quantizer) SetSequencerEvents(b sequencer.Batch) {
	q.mu.Lock()
	if b.Playing {
		q.batches[b.InstrumentID] = b
		for k := range q.fired {
			if k.instrumentID == b.InstrumentID && float64(k.onset)/1e6 < b.WindowStart-1 {
				delete(q.fired, k)
			}
		}
	} else {
		delete(q.batches, b.InstrumentID)
		for i := range q.offs {
			if q.offs[i].InstrumentID == b.InstrumentID {
				q.offs[i].Beat = math.Inf(-1)
			}
		}
		for k := range q.fired {
			if k.instrumentID == b.InstrumentID {
				delete(q.fired, k)
			}
		}
	}
	q.mu.Unlock()

	q.interrupt()
}

// interrupt signals the dispatch loop to recalculate
func (q *Quantizer) interrupt() {
	select {
	case q.interruptChan <- struct{}{}:
	default:
	}
}

// Flush sends everything due at now and returns the beat of the next
// pending message
func (q *Quantizer) Flush(now time.Time) (next float64, ok bool) {
	nowBeat := q.tracker.AbsoluteBeat(now)
	lateBeat := q.tracker.AbsoluteBeat(now.Add(-LateTolerance))
	next = math.Inf(1)

	// Collect under the lock, send outside it
	var due []Event
	q.mu.Lock()
	remaining := q.offs[:0]
	for _, off := range q.offs {
		if off.Beat <= nowBeat+musictime.Epsilon {
			due = append(due, off)
		} else {
			remaining = append(remaining, off)
			next = math.Min(next, off.Beat)
		}
	}
	q.offs = remaining

	var ons []Event
	for _, b := range q.batches {
		for _, se := range b.Events {
			k := keyFor(se)
			if q.fired[k] {
				continue
			}
			if se.AbsBeat > nowBeat+musictime.Epsilon {
				next = math.Min(next, se.AbsBeat)
				continue
			}
			q.fired[k] = true
			if se.AbsBeat < lateBeat {
				debug.Log("quant", "inst=%s note=%d late by %.3f beats, dropped", se.InstrumentID, se.NoteID, nowBeat-se.AbsBeat)
				continue
			}
			ons = append(ons, NoteOnFor(se))
			off := NoteOffFor(se)
			q.offs = append(q.offs, off)
			next = math.Min(next, off.Beat)
		}
	}
	q.mu.Unlock()

	// releases first so a retrigger on the same pitch is heard
	sortEvents(due)
	sortEvents(ons)
	for _, e := range append(due, ons...) {
		if err := q.out.Send(e.InstrumentID, e.Message(q.out.Channel(e.InstrumentID))); err != nil {
			debug.LogEvery(32, "quant", "send failed: %v", err)
		}
	}

	return next, !math.IsInf(next, 1)
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Beat != events[j].Beat {
			return events[i].Beat < events[j].Beat
		}
		return events[i].Note < events[j].Note
	})
}

// Pending returns the number of scheduled notes not yet fired and releases
// not yet sent
func (q *Quantizer) Pending() (ons, offs int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range q.batches {
		for _, se := range b.Events {
			if !q.fired[keyFor(se)] {
				ons++
			}
		}
	}
	return ons, len(q.offs)
}

// Run dispatches messages until ctx is done, then releases every sounding
// note
func (q *Quantizer) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		next, ok := q.Flush(q.tracker.Now())

		var timer *time.Timer
		var timerC <-chan time.Time
		if ok {
			wait := q.tracker.TimeForBeat(next).Sub(q.tracker.Now())
			if wait < time.Millisecond {
				wait = time.Millisecond
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			q.releaseAll()
			return
		case <-q.interruptChan:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (q *Quantizer) releaseAll() {
	q.mu.Lock()
	offs := q.offs
	q.offs = nil
	q.batches = make(map[string]sequencer.Batch)
	q.mu.Unlock()

	for _, e := range offs {
		q.out.Send(e.InstrumentID, e.Message(q.out.Channel(e.InstrumentID)))
	}
}
