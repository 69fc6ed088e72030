package sequencer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"jamseq/debug"
)

const presetTimeLayout = "2006-01-02_15-04-05"

// PresetInfo describes a saved preset file (for listing)
type PresetInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// PresetStore keeps timestamped preset files, one folder per instrument:
// <dir>/<instrument>/2024-01-15_14-30-00[_name].json
type PresetStore struct {
	dir          string
	patternCount int
}

// NewPresetStore creates a store rooted at dir. Loaded presets get
// patternCount slots.
func NewPresetStore(dir string, patternCount int) *PresetStore {
	return &PresetStore{dir: dir, patternCount: patternCount}
}

// Dir returns the store root
func (s *PresetStore) Dir() string {
	return s.dir
}

func (s *PresetStore) instrumentDir(instrumentID string) string {
	return filepath.Join(s.dir, sanitizeFilename(instrumentID))
}

// Instruments returns all instrument folders
func (s *PresetStore) Instruments() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fault.Wrap(err, fmsg.With("reading preset directory"))
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// List returns the presets of an instrument, newest first
func (s *PresetStore) List(instrumentID string) ([]PresetInfo, error) {
	entries, err := os.ReadDir(s.instrumentDir(instrumentID))
	if err != nil {
		if os.IsNotExist(err) {
			return []PresetInfo{}, nil
		}
		return nil, fault.Wrap(err, fmsg.With("listing presets"))
	}

	var presets []PresetInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, ok := parsePresetFilename(entry.Name()); ok {
			presets = append(presets, info)
		}
	}

	sort.Slice(presets, func(i, j int) bool {
		if presets[i].Timestamp.Equal(presets[j].Timestamp) {
			return presets[i].Filename > presets[j].Filename
		}
		return presets[i].Timestamp.After(presets[j].Timestamp)
	})
	return presets, nil
}

// parsePresetFilename reads 2006-01-02_15-04-05[_name].json
func parsePresetFilename(filename string) (PresetInfo, bool) {
	if !strings.HasSuffix(filename, ".json") {
		return PresetInfo{}, false
	}
	base := strings.TrimSuffix(filename, ".json")
	if len(base) < len(presetTimeLayout) {
		return PresetInfo{}, false
	}
	ts, err := time.ParseInLocation(presetTimeLayout, base[:len(presetTimeLayout)], time.Local)
	if err != nil {
		return PresetInfo{}, false
	}

	info := PresetInfo{Filename: filename, Timestamp: ts}
	rest := base[len(presetTimeLayout):]
	if len(rest) > 1 && rest[0] == '_' {
		info.Name = rest[1:]
	}
	return info, true
}

func presetFilename(name string, at time.Time) string {
	stamp := at.Format(presetTimeLayout)
	if name == "" {
		return stamp + ".json"
	}
	return stamp + "_" + sanitizeFilename(name) + ".json"
}

// Save writes p under the instrument folder, stamped with p.SavedAt (now
// when zero)
func (s *PresetStore) Save(instrumentID string, p *Patch) (PresetInfo, error) {
	dir := s.instrumentDir(instrumentID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return PresetInfo{}, fault.Wrap(err, fmsg.With("creating preset directory"))
	}

	at := p.SavedAt
	if at.IsZero() {
		at = time.Now()
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return PresetInfo{}, fault.Wrap(err, fmsg.With("encoding preset"))
	}

	filename := presetFilename(p.Name, at)
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return PresetInfo{}, fault.Wrap(err, fmsg.With("writing preset"))
	}
	debug.Log("store", "saved %s/%s", instrumentID, filename)

	info, _ := parsePresetFilename(filename)
	return info, nil
}

// Load reads a preset, or the newest one if filename is empty
func (s *PresetStore) Load(instrumentID, filename string) (*Patch, error) {
	if filename == "" {
		presets, err := s.List(instrumentID)
		if err != nil {
			return nil, err
		}
		if len(presets) == 0 {
			return nil, notFound(ErrPresetNotFound, "no presets for %q", instrumentID)
		}
		filename = presets[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(s.instrumentDir(instrumentID), filepath.Base(filename)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(ErrPresetNotFound, "preset %s/%s", instrumentID, filename)
		}
		return nil, fault.Wrap(err, fmsg.With("reading preset"))
	}

	p := NewPatch(s.patternCount)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fault.Wrap(err, fmsg.With("decoding preset "+filename))
	}
	return p, nil
}

// LoadAll reads every preset of an instrument, newest first. Unreadable
// files are logged and skipped.
func (s *PresetStore) LoadAll(instrumentID string) ([]*Patch, error) {
	presets, err := s.List(instrumentID)
	if err != nil {
		return nil, err
	}
	var out []*Patch
	for _, info := range presets {
		p, err := s.Load(instrumentID, info.Filename)
		if err != nil {
			debug.Warn("store", "skipping %s/%s: %v", instrumentID, info.Filename, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes a preset file
func (s *PresetStore) Delete(instrumentID, filename string) error {
	path := filepath.Join(s.instrumentDir(instrumentID), filepath.Base(filename))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return notFound(ErrPresetNotFound, "preset %s/%s", instrumentID, filename)
		}
		return fault.Wrap(err, fmsg.With("deleting preset"))
	}
	return nil
}

// Rename changes the name part of a preset file, keeping its timestamp
func (s *PresetStore) Rename(instrumentID, oldFilename, newName string) (PresetInfo, error) {
	info, ok := parsePresetFilename(filepath.Base(oldFilename))
	if !ok {
		return PresetInfo{}, invalid(ErrInvalidConfig, "not a preset file: %q", oldFilename)
	}

	dir := s.instrumentDir(instrumentID)
	newFilename := presetFilename(newName, info.Timestamp)
	if err := os.Rename(filepath.Join(dir, info.Filename), filepath.Join(dir, newFilename)); err != nil {
		if os.IsNotExist(err) {
			return PresetInfo{}, notFound(ErrPresetNotFound, "preset %s/%s", instrumentID, oldFilename)
		}
		return PresetInfo{}, fault.Wrap(err, fmsg.With("renaming preset"))
	}

	info, _ = parsePresetFilename(newFilename)
	return info, nil
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return r.Replace(name)
}
