package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"sem-scale/internal/scalebar"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", prefsFile)
	p := LoadFile(path)
	p.SetString(KeyPenColor, "Red")
	p.SetFloat(KeyThreshold, 0.8)
	p.SetBool(KeyOCR, true)
	if err := p.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	q := LoadFile(path)
	if got := q.StringWithFallback(KeyPenColor, "Black"); got != "Red" {
		t.Errorf("pen = %q, want Red", got)
	}
	if got := q.FloatWithFallback(KeyThreshold, 0); got != 0.8 {
		t.Errorf("threshold = %v, want 0.8", got)
	}
	if !q.Bool(KeyOCR, false) {
		t.Error("ocr flag lost")
	}
}

func TestDefaults(t *testing.T) {
	p := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if p.DetectorOptions() != scalebar.DefaultOptions() {
		t.Errorf("DetectorOptions = %+v, want defaults", p.DetectorOptions())
	}
	if got := p.StringWithFallback(KeyPenColor, "Black"); got != "Black" {
		t.Errorf("fallback = %q", got)
	}
}

func TestCorruptFileAndInvalidOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), prefsFile)
	if err := os.WriteFile(path, []byte(`{"threshold": 7, "regionStart": 0.5`), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := LoadFile(path).DetectorOptions(); got != scalebar.DefaultOptions() {
		t.Errorf("corrupt file options = %+v", got)
	}

	if err := os.WriteFile(path, []byte(`{"threshold": 7, "regionStart": 0.5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	got := LoadFile(path).DetectorOptions()
	want := scalebar.Options{Threshold: scalebar.DefaultThreshold, RegionStart: 0.5}
	if got != want {
		t.Errorf("DetectorOptions = %+v, want %+v", got, want)
	}
}
