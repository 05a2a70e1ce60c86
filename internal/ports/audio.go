// Package ports define interfaces for dependency inversion.
// These interfaces allow the core business logic to remain independent of external frameworks.
package ports

import (
	"time"

	"github.com/tunecast/tunecast/internal/domain"
)

// AudioEngine is the interface for audio playback engines.
// This abstracts the underlying audio backend and allows for testing with mocks.
//
// Implementations must be thread-safe as they may be called from multiple goroutines.
type AudioEngine interface {
	// Initialize sets up the audio engine with the specified configuration.
	// device: Audio device index (-1 for default)
	// frequency: Sample rate in Hz (e.g., 44100 for CD quality)
	//
	// Returns an error if initialization fails.
	Initialize(device int, frequency int) error

	// Shutdown releases all audio engine resources.
	// Should be called when the engine is no longer needed.
	Shutdown() error

	// IsInitialized returns true if the engine has been successfully initialized.
	IsInitialized() bool

	// Load opens a data source and returns a handle to it. The source is
	// either a filesystem path (for file:// URIs the caller strips the
	// scheme first) or an http(s):// stream URL.
	//
	// Returns a TrackHandle for the loaded track, or an error if loading fails.
	Load(source string, kind domain.SourceKind) (domain.TrackHandle, error)

	// Unload releases resources for a previously loaded track.
	// This is called automatically by Stop, but can be called explicitly if needed.
	Unload(handle domain.TrackHandle) error

	// Play starts or resumes playback of the specified track.
	Play(handle domain.TrackHandle) error

	// Pause pauses playback of the specified track.
	// The playback position is preserved and can be resumed with Play.
	Pause(handle domain.TrackHandle) error

	// Stop stops playback of the specified track and unloads it.
	// The track must be reloaded with Load before it can be played again.
	Stop(handle domain.TrackHandle) error

	// Status returns the current playback status of the specified track.
	Status(handle domain.TrackHandle) (domain.PlaybackStatus, error)

	// Position returns the current playback position within the track.
	Position(handle domain.TrackHandle) (time.Duration, error)

	// Duration returns the total duration of the specified track.
	Duration(handle domain.TrackHandle) (time.Duration, error)

	// Seek sets the playback position to the specified time.
	// The position must be within the valid range [0, Duration].
	Seek(handle domain.TrackHandle, position time.Duration) error

	// SetVolume sets the playback volume for the specified track.
	// volume: Volume level from 0.0 (silent) to 1.0 (full volume)
	SetVolume(handle domain.TrackHandle, volume float64) error

	// GetVolume returns the current volume level for the specified track.
	GetVolume(handle domain.TrackHandle) (float64, error)

	// SupportsRate reports whether this engine can change playback speed.
	// Engines that cannot must still accept playback without a rate applied.
	SupportsRate() bool

	// SetRate sets the playback speed multiplier for the specified track.
	// rate: Speed multiplier, 1.0 for normal speed.
	//
	// Returns an error if the engine does not support rate changes or the
	// rate is out of range.
	SetRate(handle domain.TrackHandle, rate float64) error
}

// MetadataReader extracts track metadata from an audio file without
// loading it for playback.
type MetadataReader interface {
	// ReadMetadata returns a MusicTrack with populated metadata for the
	// given filesystem path, or an error if extraction fails.
	ReadMetadata(path string) (*domain.MusicTrack, error)
}
