// Package prefs provides JSON-based application preferences.
package prefs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"sem-scale/internal/scalebar"
)

const prefsFile = "preferences.json"

// Preference keys.
const (
	KeyLastDir     = "lastDirectory"
	KeyPenColor    = "penColor"
	KeyThreshold   = "threshold"
	KeyRegionStart = "regionStart"
	KeyOCR         = "ocrEnabled"
)

// Prefs stores application preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Load reads preferences from ~/.config/semscale/preferences.json.
// Returns a Prefs with defaults if the file doesn't exist.
func Load() *Prefs {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return LoadFile(filepath.Join(configDir, "semscale", prefsFile))
}

// LoadFile reads preferences from path. A missing or corrupt file yields empty preferences.
func LoadFile(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	if err := json.Unmarshal(data, &p.values); err != nil {
		log.Printf("Ignoring unreadable preferences %s: %v", path, err)
		p.values = make(map[string]interface{})
	}
	return p
}

// Save writes preferences to disk, creating the directory if needed.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// lookup returns the value stored under key if it has type T.
func lookup[T any](p *Prefs, key string) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key].(T)
	return v, ok
}

func (p *Prefs) set(key string, val interface{}) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// FloatWithFallback returns a number preference, or fallback if unset.
// JSON numbers decode as float64.
func (p *Prefs) FloatWithFallback(key string, fallback float64) float64 {
	if v, ok := lookup[float64](p, key); ok {
		return v
	}
	return fallback
}

// SetFloat stores a number preference.
func (p *Prefs) SetFloat(key string, val float64) { p.set(key, val) }

// StringWithFallback returns a non-empty string preference, or fallback.
func (p *Prefs) StringWithFallback(key, fallback string) string {
	if v, ok := lookup[string](p, key); ok && v != "" {
		return v
	}
	return fallback
}

// SetString stores a string preference.
func (p *Prefs) SetString(key, val string) { p.set(key, val) }

// Bool returns a bool preference, or fallback if unset.
func (p *Prefs) Bool(key string, fallback bool) bool {
	if v, ok := lookup[bool](p, key); ok {
		return v
	}
	return fallback
}

// SetBool stores a bool preference.
func (p *Prefs) SetBool(key string, val bool) { p.set(key, val) }

// DetectorOptions returns the stored scale-bar detector settings, normalized.
func (p *Prefs) DetectorOptions() scalebar.Options {
	return scalebar.Options{
		Threshold:   p.FloatWithFallback(KeyThreshold, scalebar.DefaultThreshold),
		RegionStart: p.FloatWithFallback(KeyRegionStart, scalebar.DefaultRegionStart),
	}.Normalize()
}
