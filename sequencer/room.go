package sequencer

import (
	"sort"
	"time"

	"jamseq/config"
	"jamseq/debug"
	"jamseq/musictime"
)

// Room owns the instruments of one jam session and schedules them against
// the shared clock. Everything runs on one goroutine: public methods post a
// task and wait for it, and the periodic tick is just another case of the
// same select, so a tick never overlaps an edit.
type Room struct {
	engine  config.EngineConfig
	tracker *musictime.Tracker
	player  *Player
	quant   Quantizer

	tasks  chan func()
	stop   chan struct{}
	closed chan struct{}

	// owned by the loop goroutine
	instruments map[string]*Device
	ticker      *time.Ticker // nil while idle

	// Notify the UI after every tick
	UpdateChan chan struct{}
}

// NewRoom creates a room. Start must be called before use.
func NewRoom(engine config.EngineConfig, tracker *musictime.Tracker, quant Quantizer) *Room {
	return &Room{
		engine:      engine,
		tracker:     tracker,
		player:      NewPlayer(engine, tracker),
		quant:       quant,
		tasks:       make(chan func()),
		stop:        make(chan struct{}),
		closed:      make(chan struct{}),
		instruments: make(map[string]*Device),
		UpdateChan:  make(chan struct{}, 1),
	}
}

// Start runs the room loop
func (r *Room) Start() {
	go r.loop()
}

// Close stops the loop and waits for it to exit
func (r *Room) Close() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.closed
}

// Tracker returns the room clock
func (r *Room) Tracker() *musictime.Tracker {
	return r.tracker
}

func (r *Room) loop() {
	defer close(r.closed)
	for {
		var tick <-chan time.Time
		if r.ticker != nil {
			tick = r.ticker.C
		}

		select {
		case <-r.stop:
			if r.ticker != nil {
				r.ticker.Stop()
				r.ticker = nil
			}
			return
		case task := <-r.tasks:
			task()
		case <-tick:
			r.tick()
		}
	}
}

// do runs fn on the loop goroutine and returns its error
func (r *Room) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case r.tasks <- func() { errc <- fn() }:
	case <-r.closed:
		return invalid(ErrRoomClosed, "room is closed")
	}
	return <-errc
}

// invokeNow cancels the pending tick, ticks synchronously and restarts the
// timer. With no instruments left the timer stays off.
func (r *Room) invokeNow() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	r.tick()
	if len(r.instruments) > 0 {
		r.ticker = time.NewTicker(r.engine.TickInterval())
	}
}

// tick pushes a fresh batch for every instrument to the quantizer
func (r *Room) tick() {
	now := r.tracker.Now()
	for _, id := range r.sortedIDs() {
		b := r.player.Schedule(id, r.instruments[id], now)
		r.quant.SetSequencerEvents(b)
		if b.Playing {
			debug.LogEvery(8, "tick", "inst=%s window=[%.3f,%.3f) events=%d", id, b.WindowStart, b.WindowEnd, len(b.Events))
		}
	}
	r.notifyUpdate()
}

func (r *Room) sortedIDs() []string {
	ids := make([]string, 0, len(r.instruments))
	for id := range r.instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) notifyUpdate() {
	select {
	case r.UpdateChan <- struct{}{}:
	default:
	}
}

// lookup returns the device for id or a stale-reference error
func (r *Room) lookup(id string) (*Device, error) {
	d, ok := r.instruments[id]
	if !ok {
		err := notFound(ErrUnknownInstrument, "instrument %q", id)
		debug.Warn("room", "stale instrument reference %q", id)
		return nil, err
	}
	return d, nil
}

// AddInstrument registers a new instrument with an empty patch
func (r *Room) AddInstrument(id string, legend Legend) error {
	return r.do(func() error {
		if _, ok := r.instruments[id]; ok {
			return duplicate(ErrDuplicateInstrument, "instrument %q", id)
		}
		r.instruments[id] = NewDevice(r.engine, legend)
		debug.Log("room", "added instrument %s legend=%s", id, legend.Name)
		r.invokeNow()
		return nil
	})
}

// RemoveInstrument drops an instrument. The quantizer receives a final
// stopped batch so it can release anything still sounding.
func (r *Room) RemoveInstrument(id string) error {
	return r.do(func() error {
		if _, err := r.lookup(id); err != nil {
			return err
		}
		delete(r.instruments, id)
		r.quant.SetSequencerEvents(Batch{InstrumentID: id})
		debug.Log("room", "removed instrument %s", id)
		r.invokeNow()
		return nil
	})
}

// Instruments lists instrument IDs in sorted order
func (r *Room) Instruments() []string {
	var ids []string
	if err := r.do(func() error {
		ids = r.sortedIDs()
		return nil
	}); err != nil {
		debug.Warn("room", "instruments: %v", err)
	}
	return ids
}

// Edit applies fn to one instrument's device and reschedules. A failing fn
// leaves the device untouched and nothing is rescheduled.
func (r *Room) Edit(id string, fn func(d *Device) error) error {
	return r.do(func() error {
		d, err := r.lookup(id)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			debug.Warn("room", "edit on %s dropped: %v", id, err)
			return err
		}
		r.invokeNow()
		return nil
	})
}

// PlayStop starts or stops an instrument. Starting anchors pattern beat 0
// at the next measure boundary, or at the current beat when QuantizeStart
// is off.
func (r *Room) PlayStop(id string, playing bool) error {
	return r.Edit(id, func(d *Device) error {
		if playing == d.IsPlaying() {
			return nil
		}
		anchor := r.tracker.CurrentBeat()
		if r.engine.QuantizeStart {
			anchor = d.patch.TimeSig().NextMeasureBoundary(anchor)
		}
		d.setPlaying(playing, anchor)
		debug.Log("room", "inst=%s playing=%v from=%.3f", id, playing, anchor)
		return nil
	})
}

// TogglePlay flips an instrument's transport
func (r *Room) TogglePlay(id string) error {
	return r.Edit(id, func(d *Device) error {
		anchor := r.tracker.CurrentBeat()
		if r.engine.QuantizeStart {
			anchor = d.patch.TimeSig().NextMeasureBoundary(anchor)
		}
		d.setPlaying(!d.IsPlaying(), anchor)
		return nil
	})
}

// BeatSync feeds an authoritative clock sample. A tempo change changes the
// window length, so it reschedules at once.
func (r *Room) BeatSync(tempoBPM, beat float64) error {
	return r.do(func() error {
		prev := r.tracker.Tempo()
		if !r.tracker.OnBeatSync(tempoBPM, beat) {
			return invalid(ErrInvalidConfig, "beat sync tempo=%v beat=%v", tempoBPM, beat)
		}
		if prev != tempoBPM && len(r.instruments) > 0 {
			r.invokeNow()
		}
		return nil
	})
}

// Snapshot is a read-only copy of one instrument's state
type Snapshot struct {
	ID       string
	Patch    *Patch
	View     *PatternView
	Legend   Legend
	Playing  bool
	PlayFrom float64
	Presets  []string
	Beat     float64
	Tempo    float64
}

// Snapshot copies an instrument's state for display
func (r *Room) Snapshot(id string) (Snapshot, error) {
	var s Snapshot
	err := r.do(func() error {
		d, err := r.lookup(id)
		if err != nil {
			return err
		}
		s = Snapshot{
			ID:       id,
			Patch:    d.Patch(),
			View:     d.View(),
			Legend:   d.Legend(),
			Playing:  d.IsPlaying(),
			PlayFrom: d.PlayFrom(),
			Beat:     r.tracker.CurrentBeat(),
			Tempo:    r.tracker.Tempo(),
		}
		for _, p := range d.presets {
			s.Presets = append(s.Presets, p.Name)
		}
		return nil
	})
	return s, err
}

// Running reports whether the periodic timer is active
func (r *Room) Running() bool {
	var running bool
	if err := r.do(func() error {
		running = r.ticker != nil
		return nil
	}); err != nil {
		debug.Warn("room", "running: %v", err)
	}
	return running
}

// InvokeNow forces a synchronous tick and timer reset
func (r *Room) InvokeNow() {
	if err := r.do(func() error {
		r.invokeNow()
		return nil
	}); err != nil {
		debug.Warn("room", "invoke now: %v", err)
	}
}
