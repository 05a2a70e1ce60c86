// Package memory provides repository implementations backed by the
// Fyne preferences store.
package memory

import (
	"sync"

	"fyne.io/fyne/v2"
	"github.com/tunecast/tunecast/internal/ports"
)

// Default cast server port range, probed linearly for a free port.
const (
	defaultCastPortStart = 8090
	defaultCastPortEnd   = 8100
)

// PreferencesRepository implements ports.PreferencesRepository using Fyne preferences.
// This provides a thin wrapper around Fyne's preferences system with proper error handling.
//
// The Pro entitlement flag is never stored here; it lives in the store
// and is re-queried on every launch.
//
// Thread-safe: All operations protected by sync.RWMutex.
type PreferencesRepository struct {
	prefs fyne.Preferences
	mu    sync.RWMutex
}

// NewPreferencesRepository creates a new preferences' repository.
// The preferences parameter should be obtained from fyne.CurrentApp().Preferences().
func NewPreferencesRepository(prefs fyne.Preferences) *PreferencesRepository {
	return &PreferencesRepository{
		prefs: prefs,
	}
}

// SaveVolume persists the volume level.
func (r *PreferencesRepository) SaveVolume(volume float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetFloat("preferences.volume", volume)
	return nil
}

// LoadVolume retrieves the saved volume level.
func (r *PreferencesRepository) LoadVolume() (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	volume := r.prefs.FloatWithFallback("preferences.volume", 1.0)
	return volume, nil
}

// SaveLoopMode persists the loop mode state.
func (r *PreferencesRepository) SaveLoopMode(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetBool("preferences.loop", enabled)
	return nil
}

// LoadLoopMode retrieves the saved loop mode state.
func (r *PreferencesRepository) LoadLoopMode() (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loop := r.prefs.BoolWithFallback("preferences.loop", false)
	return loop, nil
}

// SaveTheme persists the theme preference.
func (r *PreferencesRepository) SaveTheme(theme string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetString("preferences.theme", theme)
	return nil
}

// LoadTheme retrieves the saved theme preference.
func (r *PreferencesRepository) LoadTheme() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	theme := r.prefs.StringWithFallback("preferences.theme", "system")
	return theme, nil
}

// SavePlaybackRate persists the playback speed multiplier.
func (r *PreferencesRepository) SavePlaybackRate(rate float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetFloat("preferences.rate", rate)
	return nil
}

// LoadPlaybackRate retrieves the saved playback speed multiplier.
func (r *PreferencesRepository) LoadPlaybackRate() (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rate := r.prefs.FloatWithFallback("preferences.rate", 1.0)
	return rate, nil
}

// SaveCastPortRange persists the port range probed by the cast server.
func (r *PreferencesRepository) SaveCastPortRange(start, end int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetInt("preferences.cast_port_start", start)
	r.prefs.SetInt("preferences.cast_port_end", end)
	return nil
}

// LoadCastPortRange retrieves the saved cast server port range.
func (r *PreferencesRepository) LoadCastPortRange() (start, end int, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start = r.prefs.IntWithFallback("preferences.cast_port_start", defaultCastPortStart)
	end = r.prefs.IntWithFallback("preferences.cast_port_end", defaultCastPortEnd)
	return start, end, nil
}

// Clear removes all saved preferences.
func (r *PreferencesRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.RemoveValue("preferences.volume")
	r.prefs.RemoveValue("preferences.loop")
	r.prefs.RemoveValue("preferences.theme")
	r.prefs.RemoveValue("preferences.rate")
	r.prefs.RemoveValue("preferences.cast_port_start")
	r.prefs.RemoveValue("preferences.cast_port_end")

	return nil
}

// Verify interface implementation
var _ ports.PreferencesRepository = (*PreferencesRepository)(nil)
