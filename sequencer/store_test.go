package sequencer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParsePresetFilename(t *testing.T) {
	tests := []struct {
		filename string
		ok       bool
		name     string
	}{
		{"2024-01-15_14-30-00.json", true, ""},
		{"2024-01-15_14-30-00_my-groove.json", true, "my-groove"},
		{"2024-01-15_14-30-00_.json", true, ""},
		{"2024-01-15_14-30-00.txt", false, ""},
		{"notes.json", false, ""},
		{"2024-13-45_99-99-99.json", false, ""},
	}
	for _, tt := range tests {
		info, ok := parsePresetFilename(tt.filename)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.filename, ok, tt.ok)
			continue
		}
		if ok && info.Name != tt.name {
			t.Errorf("%s: name = %q, want %q", tt.filename, info.Name, tt.name)
		}
	}

	info, _ := parsePresetFilename("2024-01-15_14-30-00.json")
	want := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)
	if !info.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", info.Timestamp, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename(`my groove/v2: "final"?`); got != "my-groove-v2--final" {
		t.Errorf("sanitizeFilename = %q", got)
	}
}

func TestPresetStore(t *testing.T) {
	s := NewPresetStore(t.TempDir(), 4)

	if ids, err := s.Instruments(); err != nil || len(ids) != 0 {
		t.Errorf("empty store instruments = %v, %v", ids, err)
	}
	if list, err := s.List("drums"); err != nil || len(list) != 0 {
		t.Errorf("empty store list = %v, %v", list, err)
	}
	if _, err := s.Load("drums", ""); !errors.Is(err, ErrPresetNotFound) || !IsStale(err) {
		t.Errorf("load from empty store = %v", err)
	}

	d := newTestDevice(t)
	mustAdd(t, d, kick, 0, 1)
	older := d.SavePreset("", time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local))
	mustAdd(t, d, snare, 1, 1)
	newer := d.SavePreset("big groove", time.Date(2024, 2, 1, 9, 0, 0, 0, time.Local))

	for _, p := range []*Patch{older, newer} {
		if _, err := s.Save("drums", p); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List("drums")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("%d presets listed, want 2", len(list))
	}
	if list[0].Filename != "2024-02-01_09-00-00_big-groove.json" || list[0].Name != "big-groove" {
		t.Errorf("newest = %+v", list[0])
	}
	if list[1].Filename != "2024-01-15_14-30-00.json" {
		t.Errorf("oldest = %+v", list[1])
	}

	latest, err := s.Load("drums", "")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Name != "big groove" || latest.Selected().NoteCount() != 2 {
		t.Errorf("newest preset = %q with %d notes", latest.Name, latest.Selected().NoteCount())
	}

	all, err := s.LoadAll("drums")
	if err != nil || len(all) != 2 {
		t.Fatalf("LoadAll = %d, %v", len(all), err)
	}
	if all[1].Selected().NoteCount() != 1 {
		t.Errorf("older preset has %d notes, want 1", all[1].Selected().NoteCount())
	}

	renamed, err := s.Rename("drums", list[1].Filename, "intro")
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Filename != "2024-01-15_14-30-00_intro.json" {
		t.Errorf("renamed to %s", renamed.Filename)
	}
	if _, err := s.Load("drums", list[1].Filename); !IsStale(err) {
		t.Errorf("old name still loads: %v", err)
	}

	if err := s.Delete("drums", renamed.Filename); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("drums", renamed.Filename); !errors.Is(err, ErrPresetNotFound) {
		t.Errorf("deleting twice = %v", err)
	}

	if ids, _ := s.Instruments(); len(ids) != 1 || ids[0] != "drums" {
		t.Errorf("instruments = %v", ids)
	}
}

func TestPresetStoreSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewPresetStore(dir, 4)

	if _, err := s.Save("drums", NewPatch(4)); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "drums", "2020-01-01_00-00-00_broken.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "drums", "readme.txt"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	all, err := s.LoadAll("drums")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("LoadAll returned %d presets, want 1", len(all))
	}
}
