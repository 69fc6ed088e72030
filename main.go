package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v2"

	"jamseq/config"
	"jamseq/debug"
	"jamseq/midi"
	"jamseq/musictime"
	"jamseq/sequencer"
	"jamseq/theme"
	"jamseq/tui"
	"jamseq/widgets"
)

var (
	app        = kingpin.New("jamseq", "Pattern sequencer synced to a shared beat clock")
	configPath = app.Flag("config", "Config file (default ~/.config/jamseq/config.json)").String()
	debugLog   = app.Flag("debug", "Write a debug log to ~/.config/jamseq/debug.log").Bool()
	logLevel   = app.Flag("log-level", "Debug log level").Default("debug").Enum("debug", "info", "warn", "error")

	runCmd      = app.Command("run", "Edit and play patterns").Default()
	runInsts    = runCmd.Flag("instrument", "Instrument as id[:legend], legend is a built-in name or YAML file").Short('i').Default("drums:gm").Strings()
	runTempo    = runCmd.Flag("tempo", "Local clock tempo in BPM").Short('t').Float64()
	runPort     = runCmd.Flag("port", "MIDI output port name (substring match)").Short('p').String()
	runPresets  = runCmd.Flag("presets", "Preset directory").String()
	runAuthor   = runCmd.Flag("author", "Author stored in saved presets").Default(os.Getenv("USER")).String()
	runPalette  = runCmd.Flag("palette", "GIMP palette file").String()
	runNoOutput = runCmd.Flag("no-output", "Do not open a MIDI port").Bool()

	renderCmd    = app.Command("render", "Print a preset's pattern grid and schedule")
	renderFile   = renderCmd.Arg("preset", "Preset JSON file").Required().ExistingFile()
	renderLegend = renderCmd.Flag("legend", "Legend name or YAML file").Short('l').Default(sequencer.DefaultLegend).String()
	renderBeats  = renderCmd.Flag("beats", "Schedule window length in beats (0 = two loops)").Default("0").Float64()
	renderSlot   = renderCmd.Flag("pattern", "Pattern slot to render (default: selected)").Default("-1").Int()

	portsCmd    = app.Command("ports", "List MIDI output ports")
	timesigsCmd = app.Command("timesigs", "List time signatures")
	legendsCmd  = app.Command("legends", "Print built-in legends as YAML")
)

func main() {
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *debugLog {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
		if err := debug.SetLevel(*logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		exit(err)
	}

	switch cmd {
	case runCmd.FullCommand():
		err = run(cfg)
	case renderCmd.FullCommand():
		err = render(cfg)
	case portsCmd.FullCommand():
		err = ports()
	case timesigsCmd.FullCommand():
		timesigs()
	case legendsCmd.FullCommand():
		err = legends()
	}
	if err != nil {
		exit(err)
	}
}

func exit(err error) {
	if issue := fmsg.GetIssue(err); issue != "" {
		fmt.Fprintln(os.Stderr, "Error:", issue)
	} else {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(1)
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFile(*configPath)
	}
	return config.Load()
}

// instrumentSpec splits "id[:legend]"
func instrumentSpec(cfg *config.Config, spec string) (string, sequencer.Legend, error) {
	id, ref, found := strings.Cut(spec, ":")
	if !found {
		ref = cfg.Output.Legends[id]
	}
	if ref == "" {
		ref = sequencer.DefaultLegend
	}
	legend, err := sequencer.ResolveLegend(ref)
	return id, legend, err
}

func run(cfg *config.Config) error {
	if *runTempo > 0 {
		cfg.Engine.DefaultTempo = *runTempo
	}
	if *runPort != "" {
		cfg.Output.PortName = *runPort
	}
	if *runPresets != "" {
		cfg.Presets = *runPresets
	}
	if *runPalette != "" {
		cfg.UI.Palette = *runPalette
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		return err
	}
	th := theme.New(palette)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := musictime.NewTracker(nil)
	tracker.OnBeatSync(cfg.Engine.DefaultTempo, 0)

	var quant sequencer.Quantizer = sequencer.NewRecordingQuantizer()
	if !*runNoOutput {
		outputs := midi.NewOutputs(cfg.Output)
		defer outputs.Close()
		q := midi.NewQuantizer(tracker, outputs)
		go q.Run(ctx)
		quant = q
	}

	room := sequencer.NewRoom(cfg.Engine, tracker, quant)
	room.Start()
	defer room.Close()

	var store *sequencer.PresetStore
	if dir, err := cfg.PresetDir(); err == nil {
		store = sequencer.NewPresetStore(dir, cfg.Engine.PatternCount)
	}

	for _, spec := range *runInsts {
		id, legend, err := instrumentSpec(cfg, spec)
		if err != nil {
			return err
		}
		if err := room.AddInstrument(id, legend); err != nil {
			return err
		}
		if store != nil {
			loadPresets(room, store, id)
		}
	}

	go runClock(ctx, room, cfg.Engine.DefaultTempo)

	m := tui.NewModel(room, store, th)
	m.Author = *runAuthor
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	cfg.UI.LastInstrument = (*runInsts)[0]
	if *configPath == "" {
		if err := cfg.Save(); err != nil {
			debug.Warn("config", "save failed: %v", err)
		}
	}
	return nil
}

// loadPresets fills an instrument's preset list from disk and makes the
// newest preset live
func loadPresets(room *sequencer.Room, store *sequencer.PresetStore, id string) {
	presets, err := store.LoadAll(id)
	if err != nil {
		debug.Warn("store", "loading presets for %s: %v", id, err)
		return
	}
	if len(presets) == 0 {
		return
	}
	room.Edit(id, func(d *sequencer.Device) error {
		for i := len(presets) - 1; i >= 0; i-- {
			if err := d.AddPreset(presets[i]); err != nil {
				debug.Warn("store", "%s: %v", id, err)
			}
		}
		return d.ReplacePatch(presets[0])
	})
}

// runClock stands in for a networked transport: it broadcasts the local
// beat position once a second
func runClock(ctx context.Context, room *sequencer.Room, tempo float64) {
	start := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			beat := now.Sub(start).Minutes() * tempo
			if err := room.BeatSync(tempo, beat); err != nil {
				return
			}
		}
	}
}

func render(cfg *config.Config) error {
	data, err := os.ReadFile(*renderFile)
	if err != nil {
		return err
	}
	patch := sequencer.NewPatch(cfg.Engine.PatternCount)
	if err := json.Unmarshal(data, patch); err != nil {
		return err
	}
	legend, err := sequencer.ResolveLegend(*renderLegend)
	if err != nil {
		return err
	}

	dev := sequencer.NewDevice(cfg.Engine, legend)
	if err := dev.ReplacePatch(patch); err != nil {
		return err
	}
	if *renderSlot >= 0 {
		if err := dev.SelectPattern(*renderSlot); err != nil {
			return err
		}
	}

	v := dev.View()
	th := theme.Default()
	fmt.Printf("%s  %s  len:%g  div:%d  swing:%+.2f  speed:%gx\n\n",
		patch.Name, v.TimeSig.Name(), v.LengthBeats, patch.Selected().Divisions(), v.Swing, v.Speed)
	fmt.Println(widgets.RenderPatternGrid(v, th, widgets.NoHighlights))

	beats := *renderBeats
	if beats <= 0 {
		beats = 2 * v.LengthBeats / v.Speed
	}
	fmt.Printf("\nschedule [0, %g)\n", beats)
	for _, e := range sequencer.ScheduleWindow("render", v, 0, 0, beats) {
		name := fmt.Sprint(e.NoteValue)
		if entry, ok := legend.Entry(e.NoteValue); ok {
			name = entry.Name
		}
		fmt.Printf("  %8.3f  %-12s vel %.2f  len %.3f\n", e.AbsBeat, name, e.Velocity, e.LengthBeats)
	}
	return nil
}

func ports() error {
	names, err := midi.OutPortNames()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No MIDI output ports")
		return nil
	}
	fmt.Println("MIDI output ports:")
	for i, name := range names {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func timesigs() {
	for _, ts := range musictime.TimeSigs() {
		groups := ts.MinorBeatGroups()
		parts := make([]string, len(groups))
		for i, g := range groups {
			parts[i] = fmt.Sprint(g)
		}
		fmt.Printf("  %-8s %-12s groups %-8s minor/quarter %d  quarters/measure %g\n",
			ts.ID(), ts.Name(), strings.Join(parts, "+"), ts.MinorBeatsPerQuarter(), ts.QuartersPerMeasure())
	}
}

func legends() error {
	for _, name := range sequencer.LegendNames() {
		out, err := yaml.Marshal(sequencer.GetLegend(name))
		if err != nil {
			return err
		}
		fmt.Printf("---\n%s", out)
	}
	return nil
}
