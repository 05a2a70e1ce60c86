// Package mock provides a mock implementation of the AudioEngine interface.
// This is used for testing services without a native audio backend.
package mock

import (
	"sync"
	"time"

	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
)

// Engine is a mock implementation of the AudioEngine interface.
// It simulates audio playback in memory without actually playing audio.
//
// Thread-safety: This implementation is thread-safe.
type Engine struct {
	initialized bool
	device      int
	frequency   int

	// Track state
	tracks     map[domain.TrackHandle]*mockTrack
	nextHandle domain.TrackHandle
	mu         sync.RWMutex

	// Behavior configuration (for testing error scenarios)
	failLoad     bool
	failPlay     bool
	supportsRate bool
}

// mockTrack represents a loaded track in the mock engine.
type mockTrack struct {
	source   string
	kind     domain.SourceKind
	duration time.Duration
	position time.Duration
	volume   float64
	rate     float64
	status   domain.PlaybackStatus
}

// NewEngine creates a new mock audio engine.
func NewEngine() *Engine {
	return &Engine{
		tracks:       make(map[domain.TrackHandle]*mockTrack),
		nextHandle:   1,
		supportsRate: true,
	}
}

// SetFailLoad configures the mock to fail loading tracks (for testing).
func (m *Engine) SetFailLoad(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoad = fail
}

// SetFailPlay configures the mock to fail playback (for testing).
func (m *Engine) SetFailPlay(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlay = fail
}

// SetSupportsRate configures whether the mock reports rate support (for testing).
func (m *Engine) SetSupportsRate(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supportsRate = supported
}

// Initialize initializes the mock audio engine.
func (m *Engine) Initialize(device int, frequency int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return domain.ErrAlreadyInitialized
	}

	m.initialized = true
	m.device = device
	m.frequency = frequency

	return nil
}

// Shutdown shuts down the mock audio engine.
func (m *Engine) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	m.initialized = false
	m.tracks = make(map[domain.TrackHandle]*mockTrack)

	return nil
}

// IsInitialized returns true if the engine is initialized.
func (m *Engine) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Load opens a data source and returns a handle.
func (m *Engine) Load(source string, kind domain.SourceKind) (domain.TrackHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.InvalidTrackHandle, domain.ErrNotInitialized
	}

	if m.failLoad {
		return domain.InvalidTrackHandle, domain.NewAudioEngineError("load", source, -1, "mock load failed", nil)
	}

	if source == "" {
		return domain.InvalidTrackHandle, domain.ErrInvalidFilePath
	}

	handle := m.nextHandle
	m.nextHandle++

	m.tracks[handle] = &mockTrack{
		source:   source,
		kind:     kind,
		duration: 3 * time.Minute, // Default duration
		volume:   1.0,
		rate:     1.0,
		status:   domain.StatusStopped,
	}

	return handle, nil
}

// Unload unloads a previously loaded track.
func (m *Engine) Unload(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	if _, exists := m.tracks[handle]; !exists {
		return domain.ErrInvalidTrackHandle
	}

	delete(m.tracks, handle)
	return nil
}

// Play starts or resumes playback.
func (m *Engine) Play(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	if m.failPlay {
		return domain.ErrPlaybackFailed
	}

	track, exists := m.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	// If stopped, reset position
	if track.status == domain.StatusStopped {
		track.position = 0
	}

	track.status = domain.StatusPlaying
	return nil
}

// Pause pauses playback.
func (m *Engine) Pause(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if track.status == domain.StatusPlaying {
		track.status = domain.StatusPaused
	}

	return nil
}

// Stop stops playback and unloads the track.
func (m *Engine) Stop(handle domain.TrackHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	track.status = domain.StatusStopped
	track.position = 0

	delete(m.tracks, handle)

	return nil
}

// Status returns the playback status.
func (m *Engine) Status(handle domain.TrackHandle) (domain.PlaybackStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return domain.StatusStopped, domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return domain.StatusStopped, domain.ErrInvalidTrackHandle
	}

	return track.status, nil
}

// Position returns the current playback position.
func (m *Engine) Position(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return 0, domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return 0, domain.ErrInvalidTrackHandle
	}

	return track.position, nil
}

// Duration returns the total track duration.
func (m *Engine) Duration(handle domain.TrackHandle) (time.Duration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return 0, domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return 0, domain.ErrInvalidTrackHandle
	}

	return track.duration, nil
}

// Seek sets the playback position.
func (m *Engine) Seek(handle domain.TrackHandle, position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if position < 0 || position > track.duration {
		return domain.ErrInvalidPosition
	}

	track.position = position
	return nil
}

// SetVolume sets the playback volume.
func (m *Engine) SetVolume(handle domain.TrackHandle, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	track.volume = volume
	return nil
}

// GetVolume returns the current volume.
func (m *Engine) GetVolume(handle domain.TrackHandle) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return 0, domain.ErrNotInitialized
	}

	track, exists := m.tracks[handle]
	if !exists {
		return 0, domain.ErrInvalidTrackHandle
	}

	return track.volume, nil
}

// SupportsRate reports the configured rate support.
func (m *Engine) SupportsRate() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supportsRate
}

// SetRate sets the playback speed multiplier.
func (m *Engine) SetRate(handle domain.TrackHandle, rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return domain.ErrNotInitialized
	}

	if !m.supportsRate {
		return domain.NewAudioEngineError("set_rate", "", -1, "rate changes not supported", nil)
	}

	track, exists := m.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if rate < 0.25 || rate > 4.0 {
		return domain.ErrInvalidRate
	}

	track.rate = rate
	return nil
}

// GetRate returns the current playback rate (for testing).
func (m *Engine) GetRate(handle domain.TrackHandle) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, exists := m.tracks[handle]
	if !exists {
		return 0, domain.ErrInvalidTrackHandle
	}

	return track.rate, nil
}

// LoadedKind returns the source kind a handle was loaded with (for testing).
func (m *Engine) LoadedKind(handle domain.TrackHandle) (domain.SourceKind, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, exists := m.tracks[handle]
	if !exists {
		return domain.SourcePath, domain.ErrInvalidTrackHandle
	}

	return track.kind, nil
}

// LoadedSource returns the source string a handle was loaded with (for testing).
func (m *Engine) LoadedSource(handle domain.TrackHandle) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	track, exists := m.tracks[handle]
	if !exists {
		return "", domain.ErrInvalidTrackHandle
	}

	return track.source, nil
}

// GetLoadedTracks returns the number of currently loaded tracks (for testing).
func (m *Engine) GetLoadedTracks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tracks)
}

// SimulateProgress simulates playback progress (for testing).
// This advances the position by the specified duration.
func (m *Engine) SimulateProgress(handle domain.TrackHandle, delta time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	track, exists := m.tracks[handle]
	if !exists {
		return domain.ErrInvalidTrackHandle
	}

	if track.status != domain.StatusPlaying {
		return domain.ErrPlaybackFailed
	}

	track.position += delta
	if track.position > track.duration {
		track.position = track.duration
		track.status = domain.StatusStopped
	}

	return nil
}

// Verify that Engine implements the AudioEngine interface
var _ ports.AudioEngine = (*Engine)(nil)
