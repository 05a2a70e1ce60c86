// Package ports define repository interfaces for persistence.
package ports

// PreferencesRepository persists user preferences.
//
// Note: the Pro entitlement flag is deliberately NOT persisted here.
// It is rebuilt from the store on every query; the store's record is
// the only durable source of truth.
type PreferencesRepository interface {
	// SaveVolume persists the volume level (0.0 to 1.0).
	SaveVolume(volume float64) error

	// LoadVolume returns the persisted volume level.
	LoadVolume() (float64, error)

	// SaveLoopMode persists the loop mode flag.
	SaveLoopMode(enabled bool) error

	// LoadLoopMode returns the persisted loop mode flag.
	LoadLoopMode() (bool, error)

	// SaveTheme persists the UI theme name.
	SaveTheme(theme string) error

	// LoadTheme returns the persisted UI theme name.
	LoadTheme() (string, error)

	// SavePlaybackRate persists the playback speed multiplier.
	SavePlaybackRate(rate float64) error

	// LoadPlaybackRate returns the persisted playback speed multiplier.
	LoadPlaybackRate() (float64, error)

	// SaveCastPortRange persists the port range probed by the cast server.
	SaveCastPortRange(start, end int) error

	// LoadCastPortRange returns the persisted cast server port range.
	LoadCastPortRange() (start, end int, err error)

	// Clear resets all preferences to defaults.
	Clear() error
}
