// Package tagmeta extracts track metadata from audio files using ID3/MP4/FLAC tags.
package tagmeta

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
)

// Reader implements the MetadataReader port on top of dhowden/tag.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a new metadata reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadMetadata extracts metadata from an audio file.
// Files without parseable tags yield a track with the filename as title.
func (r *Reader) ReadMetadata(path string) (*domain.MusicTrack, error) {
	if path == "" {
		return nil, domain.ErrInvalidFilePath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, domain.ErrFileNotFound
	}

	filename := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	track := &domain.MusicTrack{
		ID:         uuid.NewString(),
		Source:     path,
		Title:      strings.TrimSuffix(filename, filepath.Ext(filename)),
		FileFormat: strings.TrimPrefix(ext, "."),
		Metadata:   &domain.TrackMetadata{},
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, domain.NewAudioEngineError("read_metadata", path, -1, "failed to open file", err)
	}
	defer func() {
		_ = file.Close()
	}()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// Not an error for playback: fall back to filename metadata
		r.logger.Debug("no parseable tags", slog.String("path", path), slog.Any("error", err))
		return track, nil
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		track.Title = title
	}
	track.Artist = strings.TrimSpace(meta.Artist())
	track.Album = strings.TrimSpace(meta.Album())
	track.Metadata.Genre = strings.TrimSpace(meta.Genre())
	track.Metadata.Year = meta.Year()
	track.Metadata.Comment = strings.TrimSpace(meta.Comment())

	if number, _ := meta.Track(); number > 0 {
		track.Metadata.TrackNumber = number
	}

	if picture := meta.Picture(); picture != nil {
		track.Metadata.AlbumArt = picture.Data
	}

	return track, nil
}

// Verify that Reader implements the MetadataReader interface
var _ ports.MetadataReader = (*Reader)(nil)
