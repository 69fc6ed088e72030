package sequencer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestBuiltinLegends(t *testing.T) {
	for _, name := range LegendNames() {
		l, ok := Legends[name]
		if !ok {
			t.Errorf("%s listed but not defined", name)
			continue
		}
		if l.Len() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
	if GetLegend("nope").Name != DefaultLegend {
		t.Error("unknown legend did not fall back to the default")
	}
	if snareRow := GetLegend("rd8").Index(40); snareRow != 1 {
		t.Errorf("rd8 snare row = %d, want 1", snareRow)
	}
}

func TestParseLegend(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    error
		entries int
	}{
		{
			name:    "valid",
			yaml:    "name: bass\nentries:\n  - {note: 36, name: C2}\n  - {note: 38, name: D2, color: \"#ff8800\"}\n",
			entries: 2,
		},
		{
			name: "duplicate note",
			yaml: "name: bad\nentries:\n  - {note: 36, name: a}\n  - {note: 36, name: b}\n",
			want: ErrDuplicateNote,
		},
		{
			name: "note out of range",
			yaml: "name: bad\nentries:\n  - {note: 127, name: a}\n",
			want: ErrInvalidNote,
		},
		{
			name: "no entries",
			yaml: "name: empty\n",
			want: ErrInvalidConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ParseLegend([]byte(tt.yaml))
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Errorf("err = %v, want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if l.Len() != tt.entries {
				t.Errorf("%d entries, want %d", l.Len(), tt.entries)
			}
		})
	}

	if _, err := ParseLegend([]byte("entries: [")); err == nil {
		t.Error("broken YAML accepted")
	}
}

func TestLegendYAML(t *testing.T) {
	out, err := yaml.Marshal(GetLegend("gm"))
	if err != nil {
		t.Fatal(err)
	}
	l, err := ParseLegend(out)
	if err != nil {
		t.Fatal(err)
	}
	got, want := l.NoteValues(), GetLegend("gm").NoteValues()
	if len(got) != len(want) || l.Name != "gm" {
		t.Fatalf("reparsed legend %q has %d notes", l.Name, len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResolveLegend(t *testing.T) {
	if l, err := ResolveLegend("tr8s"); err != nil || l.Name != "tr8s" {
		t.Errorf("ResolveLegend(tr8s) = %q, %v", l.Name, err)
	}
	if _, err := ResolveLegend("nope"); !IsStale(err) {
		t.Errorf("unknown legend = %v, want a stale error", err)
	}

	path := filepath.Join(t.TempDir(), "keys.yaml")
	if err := os.WriteFile(path, []byte("entries:\n  - {note: 60, name: C4}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l, err := ResolveLegend(path)
	if err != nil {
		t.Fatal(err)
	}
	if l.Name != "keys" || !l.Contains(60) {
		t.Errorf("file legend = %q %v", l.Name, l.NoteValues())
	}
	if _, err := ResolveLegend(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("missing legend file accepted")
	}
}
