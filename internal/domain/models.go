// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the TuneCast music player.
package domain

import (
	"strings"
	"time"
)

// MusicTrack represents a single audio track with all its metadata.
// This is the core domain model for individual music files.
type MusicTrack struct {
	// ID is a unique identifier for the track (UUID)
	ID string

	// Source is the data source the track was opened from: a plain
	// filesystem path, a file:// URI, or an http(s):// stream URL
	Source string

	// Title is the song title (from metadata or filename)
	Title string

	// Artist is the performing artist name
	Artist string

	// Album is the album name
	Album string

	// Duration is the total length of the track
	Duration time.Duration

	// FileFormat is the file extension (mp3, flac, ogg, etc.)
	FileFormat string

	// Metadata contains additional track information
	Metadata *TrackMetadata
}

// TrackMetadata contains extended metadata for an audio track.
type TrackMetadata struct {
	// Genre is the music genre
	Genre string

	// Year is the release year
	Year int

	// AlbumArt is the embedded album artwork as raw bytes
	AlbumArt []byte

	// TrackNumber is the track number on the album
	TrackNumber int

	// Comment contains any additional metadata comments
	Comment string
}

// SourceKind classifies how a data source string should be opened.
type SourceKind int

const (
	// SourcePath is a plain filesystem path
	SourcePath SourceKind = iota

	// SourceFileURI is a file:// URI that must be stripped to a path
	SourceFileURI

	// SourceStream is an http:// or https:// stream URL
	SourceStream
)

// KindOfSource detects the source branch from the prefix of the
// data-source string. Unknown schemes fall back to a plain path.
func KindOfSource(source string) SourceKind {
	switch {
	case strings.HasPrefix(source, "file://"):
		return SourceFileURI
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return SourceStream
	default:
		return SourcePath
	}
}

// PlaybackState represents the current state of the music player.
// This is the central state object that services manage.
type PlaybackState struct {
	// CurrentTrack is the currently loaded track (nil if none)
	CurrentTrack *MusicTrack

	// Status is the current playback status
	Status PlaybackStatus

	// Position is the current playback position within the track
	Position time.Duration

	// Duration is the total length of the loaded track
	Duration time.Duration

	// Volume is the current volume level (0.0 to 1.0)
	Volume float64

	// Rate is the playback speed multiplier (1.0 is normal speed)
	Rate float64

	// IsMuted indicates if audio is muted
	IsMuted bool

	// IsLooping indicates if the current track should loop
	IsLooping bool
}

// PlaybackStatus represents the current playback state.
type PlaybackStatus int

const (
	// StatusStopped indicates playback is stopped
	StatusStopped PlaybackStatus = iota

	// StatusPlaying indicates playback is active
	StatusPlaying

	// StatusPaused indicates playback is paused
	StatusPaused

	// StatusStalled indicates playback is stalled/buffering
	StatusStalled
)

// String returns a human-readable representation of the playback status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// Preferences contain user preferences and settings.
type Preferences struct {
	// Volume is the saved volume level (0.0 to 1.0)
	Volume float64

	// LoopEnabled indicates if loop mode is enabled by default
	LoopEnabled bool

	// Theme is the UI theme (dark, light, system)
	Theme string

	// PlaybackRate is the saved playback speed multiplier
	PlaybackRate float64

	// CastPortStart is the first port probed for the cast server
	CastPortStart int

	// CastPortEnd is the last port probed for the cast server
	CastPortEnd int
}

// TrackHandle represents a handle to an audio track in the audio engine.
// This is an opaque identifier used by the audio engine to reference loaded tracks.
type TrackHandle int64

const (
	// InvalidTrackHandle represents an invalid or uninitialized track handle
	InvalidTrackHandle TrackHandle = 0
)
