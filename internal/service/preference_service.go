package service

import (
	"log/slog"
	"sync"

	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
)

// PreferenceService manages application preferences and settings.
// All operations are thread-safe via sync.RWMutex.
type PreferenceService struct {
	// Dependencies (injected)
	logger     *slog.Logger
	repository ports.PreferencesRepository

	// Cached preferences (for performance)
	volume        float64
	loopEnabled   bool
	theme         string
	playbackRate  float64
	castPortStart int
	castPortEnd   int
	cacheValid    bool

	// Concurrency control
	mu sync.RWMutex
}

// NewPreferenceService creates a new preference service.
func NewPreferenceService(
	logger *slog.Logger,
	repository ports.PreferencesRepository,
) *PreferenceService {
	service := &PreferenceService{
		logger:       logger,
		repository:   repository,
		volume:       0.8,    // Default volume
		theme:        "dark", // Default theme
		playbackRate: 1.0,
	}

	logger.Debug("preference service initialized")

	// Load preferences from the repository
	service.loadPreferences()

	return service
}

// loadPreferences loads all preferences from repository into cache.
func (s *PreferenceService) loadPreferences() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vol, err := s.repository.LoadVolume(); err == nil {
		s.volume = vol
	}

	if loop, err := s.repository.LoadLoopMode(); err == nil {
		s.loopEnabled = loop
	}

	if theme, err := s.repository.LoadTheme(); err == nil {
		s.theme = theme
	}

	if rate, err := s.repository.LoadPlaybackRate(); err == nil {
		s.playbackRate = rate
	}

	if start, end, err := s.repository.LoadCastPortRange(); err == nil {
		s.castPortStart = start
		s.castPortEnd = end
	}

	s.cacheValid = true
}

// GetVolume returns the saved volume preference (0.0 to 1.0).
func (s *PreferenceService) GetVolume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.cacheValid {
		// Try to load from the repository
		if vol, err := s.repository.LoadVolume(); err == nil {
			return vol
		}
	}

	return s.volume
}

// SetVolume saves the volume preference (0.0 to 1.0).
func (s *PreferenceService) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()

	// Save to repository
	return s.repository.SaveVolume(volume)
}

// GetLoopMode returns the saved loop mode preference.
func (s *PreferenceService) GetLoopMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.cacheValid {
		if loop, err := s.repository.LoadLoopMode(); err == nil {
			return loop
		}
	}

	return s.loopEnabled
}

// SetLoopMode saves the loop mode preference.
func (s *PreferenceService) SetLoopMode(enabled bool) error {
	s.mu.Lock()
	s.loopEnabled = enabled
	s.mu.Unlock()

	return s.repository.SaveLoopMode(enabled)
}

// GetTheme returns the saved theme preference.
func (s *PreferenceService) GetTheme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.theme
}

// SetTheme saves the theme preference.
func (s *PreferenceService) SetTheme(theme string) error {
	switch theme {
	case "light", "dark", "system":
	default:
		return domain.NewValidationError("theme", theme, "must be 'light', 'dark' or 'system'")
	}

	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()

	return s.repository.SaveTheme(theme)
}

// GetPlaybackRate returns the saved playback speed multiplier.
func (s *PreferenceService) GetPlaybackRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.playbackRate
}

// SetPlaybackRate saves the playback speed multiplier.
func (s *PreferenceService) SetPlaybackRate(rate float64) error {
	if rate < 0.25 || rate > 4.0 {
		return domain.ErrInvalidRate
	}

	s.mu.Lock()
	s.playbackRate = rate
	s.mu.Unlock()

	return s.repository.SavePlaybackRate(rate)
}

// GetCastPortRange returns the saved cast server port range.
func (s *PreferenceService) GetCastPortRange() (start, end int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.castPortStart, s.castPortEnd
}

// SetCastPortRange saves the cast server port range.
func (s *PreferenceService) SetCastPortRange(start, end int) error {
	if start < 1 || start > 65535 || end < start || end > 65535 {
		return domain.NewValidationError("cast_port_range", []int{start, end}, "must be a valid port range")
	}

	s.mu.Lock()
	s.castPortStart = start
	s.castPortEnd = end
	s.mu.Unlock()

	return s.repository.SaveCastPortRange(start, end)
}

// GetPreferences returns a snapshot of all preferences.
func (s *PreferenceService) GetPreferences() domain.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Preferences{
		Volume:        s.volume,
		LoopEnabled:   s.loopEnabled,
		Theme:         s.theme,
		PlaybackRate:  s.playbackRate,
		CastPortStart: s.castPortStart,
		CastPortEnd:   s.castPortEnd,
	}
}

// ResetToDefaults resets all preferences to default values.
func (s *PreferenceService) ResetToDefaults() error {
	if err := s.repository.Clear(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cacheValid = false
	s.mu.Unlock()

	s.loadPreferences()

	return nil
}

// Shutdown cleans up resources.
func (s *PreferenceService) Shutdown() error {
	// No cleanup needed for preference service
	return nil
}

// Verify that PreferenceService implements the expected interface patterns
var _ interface {
	GetVolume() float64
	SetVolume(float64) error
	GetLoopMode() bool
	SetLoopMode(bool) error
	GetTheme() string
	SetTheme(string) error
	GetPlaybackRate() float64
	SetPlaybackRate(float64) error
	GetCastPortRange() (int, int)
	SetCastPortRange(int, int) error
	GetPreferences() domain.Preferences
	ResetToDefaults() error
	Shutdown() error
} = (*PreferenceService)(nil)
