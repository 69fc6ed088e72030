package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jamseq/musictime"
	"jamseq/sequencer"
	"jamseq/theme"
	"jamseq/widgets"
)

// UI refresh rate for the playhead
const uiFPS = 30

type Model struct {
	Room   *sequencer.Room
	Store  *sequencer.PresetStore // may be nil
	Theme  *theme.Theme
	Author string

	instruments []string
	current     int
	cursorDiv   int
	cursorRow   int
	status      string
	statusOK    bool
	quitting    bool
}

type UpdateMsg struct{}

type frameMsg time.Time

func NewModel(room *sequencer.Room, store *sequencer.PresetStore, th *theme.Theme) Model {
	return Model{
		Room:        room,
		Store:       store,
		Theme:       th,
		instruments: room.Instruments(),
	}
}

func ListenForUpdates(room *sequencer.Room) tea.Cmd {
	return func() tea.Msg {
		<-room.UpdateChan
		return UpdateMsg{}
	}
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/uiFPS, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Room),
		frame(),
	)
}

// instrument returns the focused instrument ID ("" if none)
func (m Model) instrument() string {
	if len(m.instruments) == 0 {
		return ""
	}
	return m.instruments[m.current%len(m.instruments)]
}

func (m Model) edit(fn func(d *sequencer.Device) error) Model {
	id := m.instrument()
	if id == "" {
		return m
	}
	m.statusOK = false
	if err := m.Room.Edit(id, fn); err != nil {
		m.status = err.Error()
	} else {
		m.status = ""
	}
	return m
}

// cursorNote returns the note value under the cursor row
func cursorNote(s sequencer.Snapshot, row int) int {
	values := s.Legend.NoteValues()
	if row < 0 || row >= len(values) {
		return -1
	}
	return values[row]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		m.instruments = m.Room.Instruments()
		return m, ListenForUpdates(m.Room)

	case frameMsg:
		return m, frame()
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	id := m.instrument()
	if key == "q" || key == "ctrl+c" {
		m.quitting = true
		for _, inst := range m.instruments {
			m.Room.PlayStop(inst, false)
		}
		return m, tea.Quit
	}
	if id == "" {
		return m, nil
	}

	snap, err := m.Room.Snapshot(id)
	if err != nil {
		m.status = err.Error()
		m.instruments = m.Room.Instruments()
		return m, nil
	}
	divCount := snap.View.DivisionCount()
	rows := snap.Legend.Len()
	if rows == 0 {
		return m, nil
	}
	note := cursorNote(snap, m.cursorRow)
	cell := snap.View.Cell(m.cursorDiv, note)
	divLen := snap.View.DivisionLengthBeats
	patch := snap.Patch

	switch key {
	// navigation
	case "left", "h":
		m.cursorDiv = musictime.ModInt(m.cursorDiv-1, divCount)
	case "right", "l":
		m.cursorDiv = musictime.ModInt(m.cursorDiv+1, divCount)
	case "up", "k":
		m.cursorRow = musictime.ModInt(m.cursorRow-1, rows)
	case "down", "j":
		m.cursorRow = musictime.ModInt(m.cursorRow+1, rows)
	case "tab":
		m.current = (m.current + 1) % len(m.instruments)
		m.cursorDiv, m.cursorRow = 0, 0

	// cells
	case " ":
		m = m.edit(func(d *sequencer.Device) error { return d.CycleCell(m.cursorDiv, note) })
	case "t":
		m = m.edit(func(d *sequencer.Device) error { return d.ToggleCellTier(m.cursorDiv, note) })
	case "x":
		m = m.edit(func(d *sequencer.Device) error { return d.ClearCell(m.cursorDiv, note) })
	case "m":
		muted := patch.IsMuted(note)
		m = m.edit(func(d *sequencer.Device) error { return d.SetMuted(note, !muted) })

	// drag the note under the cursor
	case "H", "L", "K", "J", "e", "E":
		if cell.Kind == sequencer.CellNone {
			break
		}
		nid := cell.Note.ID
		switch key {
		case "H":
			m = m.edit(moveNote(nid, -divLen, note))
			m.cursorDiv = musictime.ModInt(m.cursorDiv-1, divCount)
		case "L":
			m = m.edit(moveNote(nid, divLen, note))
			m.cursorDiv = musictime.ModInt(m.cursorDiv+1, divCount)
		case "K", "J":
			step := -1
			if key == "J" {
				step = 1
			}
			row := musictime.ModInt(m.cursorRow+step, rows)
			target := cursorNote(snap, row)
			m = m.edit(moveNote(nid, 0, target))
			m.cursorRow = row
		case "e":
			m = m.edit(resizeNote(nid, divLen))
		case "E":
			m = m.edit(resizeNote(nid, -divLen))
		}

	// pattern
	case "[", "]":
		delta := -1.0
		if key == "]" {
			delta = 1
		}
		length := patch.Selected().LengthBeats() + delta
		m = m.edit(func(d *sequencer.Device) error { return d.SetPatternLength(length) })
	case ",", ".":
		n := patch.Selected().Divisions() - 1
		if key == "." {
			n += 2
		}
		m = m.edit(func(d *sequencer.Device) error { return d.SetDivisions(n) })
	case "{", "}":
		swing := patch.Swing() - 0.1
		if key == "}" {
			swing += 0.2
		}
		m = m.edit(func(d *sequencer.Device) error { return d.SetSwing(swing) })
	case "<", ">":
		speed := patch.Speed() / 2
		if key == ">" {
			speed = patch.Speed() * 2
		}
		m = m.edit(func(d *sequencer.Device) error { return d.SetSpeed(speed) })
	case "T":
		next := nextTimeSig(patch.TimeSig().ID())
		m = m.edit(func(d *sequencer.Device) error { return d.SetTimeSig(next) })
	case "c":
		from := patch.SelectedIndex()
		to := (from + 1) % patch.PatternCount()
		m = m.edit(func(d *sequencer.Device) error {
			if err := d.CopyPattern(from, to); err != nil {
				return err
			}
			return d.SelectPattern(to)
		})
	case "C":
		idx := patch.SelectedIndex()
		m = m.edit(func(d *sequencer.Device) error { return d.ClearPattern(idx) })
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(key[0] - '1')
		m = m.edit(func(d *sequencer.Device) error { return d.SelectPattern(idx) })

	// transport
	case "p":
		if err := m.Room.TogglePlay(id); err != nil {
			m.status, m.statusOK = err.Error(), false
		}

	// presets
	case "s":
		m = m.savePreset(id, snap)
	case "o":
		m = m.loadPreset(id)
	}

	// clamp the cursor after grid changes
	if after, err := m.Room.Snapshot(id); err == nil {
		if n := after.View.DivisionCount(); m.cursorDiv >= n {
			m.cursorDiv = n - 1
		}
	}

	return m, nil
}

func moveNote(id sequencer.NoteID, delta float64, noteValue int) func(d *sequencer.Device) error {
	return func(d *sequencer.Device) error {
		_, err := d.MoveNote(id, delta, noteValue)
		return err
	}
}

func resizeNote(id sequencer.NoteID, delta float64) func(d *sequencer.Device) error {
	return func(d *sequencer.Device) error {
		_, err := d.ResizeNote(id, sequencer.EdgeRight, delta)
		return err
	}
}

func (m Model) savePreset(id string, snap sequencer.Snapshot) Model {
	name := fmt.Sprintf("%s-%d", id, len(snap.Presets)+1)
	var saved *sequencer.Patch
	m = m.edit(func(d *sequencer.Device) error {
		saved = d.SavePreset(name, time.Now())
		return nil
	})
	if m.Store != nil && saved != nil {
		saved.Author = m.Author
		if _, err := m.Store.Save(id, saved); err != nil {
			m.status = err.Error()
			return m
		}
	}
	m.status, m.statusOK = "saved "+name, true
	return m
}

func (m Model) loadPreset(id string) Model {
	if m.Store == nil {
		return m.edit(func(d *sequencer.Device) error {
			return d.LoadPreset(len(d.Presets()) - 1)
		})
	}
	p, err := m.Store.Load(id, "")
	if err != nil {
		m.status, m.statusOK = err.Error(), false
		return m
	}
	m = m.edit(func(d *sequencer.Device) error { return d.ReplacePatch(p) })
	if m.status == "" {
		m.status, m.statusOK = "loaded "+p.Name, true
	}
	return m
}

func nextTimeSig(id string) musictime.TimeSig {
	all := musictime.TimeSigs()
	for i, ts := range all {
		if ts.ID() == id {
			return all[(i+1)%len(all)]
		}
	}
	return musictime.DefaultTimeSig
}

// playDivision returns the division under the playhead, or -1
func playDivision(s sequencer.Snapshot) int {
	if !s.Playing || s.Beat < s.PlayFrom {
		return -1
	}
	v := s.View
	pos := musictime.Mod((s.Beat-s.PlayFrom)*v.Speed, v.LengthBeats)
	return v.DivisionAtBeat(pos)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())
	okStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())

	id := m.instrument()
	if id == "" {
		return "\n" + headerStyle.Render("jamseq  no instruments") + "\n"
	}
	snap, err := m.Room.Snapshot(id)
	if err != nil {
		return "\n" + warnStyle.Render(err.Error()) + "\n"
	}

	playState := "STOP"
	if snap.Playing {
		playState = "PLAY"
	}
	patch := snap.Patch
	header := headerStyle.Render(fmt.Sprintf("jamseq  %s  %s  %.1fbpm  beat:%7.2f",
		id, playState, snap.Tempo, snap.Beat))

	slots := make([]string, patch.PatternCount())
	mask := patch.ContentMask()
	for i := range slots {
		label := string(rune('A' + i))
		switch {
		case i == patch.SelectedIndex():
			slots[i] = headerStyle.Render("[" + label + "]")
		case mask[i]:
			slots[i] = " " + label + " "
		default:
			slots[i] = dimStyle.Render(" " + label + " ")
		}
	}
	pat := patch.Selected()
	info := fmt.Sprintf("%s  %s  len:%g  div:%d  swing:%+.1f  speed:%gx",
		strings.Join(slots, ""), patch.TimeSig().Name(), pat.LengthBeats(), pat.Divisions(),
		patch.Swing(), patch.Speed())

	grid := widgets.RenderPatternGrid(snap.View, m.Theme, widgets.GridOptions{
		CursorDivision: m.cursorDiv,
		CursorRow:      m.cursorRow,
		PlayDivision:   playDivision(snap),
	})

	var muted []string
	for _, v := range patch.MutedNotes() {
		if e, ok := snap.Legend.Entry(v); ok {
			muted = append(muted, e.Name)
		}
	}

	help := dimStyle.Render(widgets.RenderKeyHelp(helpSections))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(info)
	out.WriteString("\n\n")
	out.WriteString(grid)
	out.WriteString("\n\n")
	if len(muted) > 0 {
		out.WriteString(widgets.RenderLegendItem(m.Theme.RGB(theme.RoleMuted), "muted", strings.Join(muted, ", ")))
		out.WriteString("\n")
	}
	switch {
	case m.status == "":
	case m.statusOK:
		out.WriteString(okStyle.Render(m.status))
		out.WriteString("\n")
	default:
		out.WriteString(warnStyle.Render(m.status))
		out.WriteString("\n")
	}
	out.WriteString(help)

	return out.String()
}

var helpSections = []widgets.KeySection{
	{Title: "", Keys: []widgets.KeyBinding{
		{Key: "hjkl", Desc: "move cursor"},
		{Key: "space", Desc: "cycle velocity / remove"},
		{Key: "t / x", Desc: "toggle loud / clear cell"},
		{Key: "HL KJ e E", Desc: "move note time, pitch, grow, shrink"},
		{Key: "m", Desc: "mute row"},
		{Key: "[ ] , .", Desc: "pattern length, divisions"},
		{Key: "{ } < >", Desc: "swing, speed"},
		{Key: "T", Desc: "next time signature"},
		{Key: "1-4 c C", Desc: "select, copy, clear pattern"},
		{Key: "p s o", Desc: "play/stop, save, load preset"},
		{Key: "tab q", Desc: "next instrument, quit"},
	}},
}
