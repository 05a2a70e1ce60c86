package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunecast/tunecast/internal/adapter/audio/mock"
	"github.com/tunecast/tunecast/internal/adapter/eventbus"
	"github.com/tunecast/tunecast/internal/domain"
)

type playbackFixture struct {
	service  *PlaybackService
	engine   *mock.Engine
	bus      *eventbus.SyncEventBus
	recorder *eventRecorder
}

func newPlaybackFixture(t *testing.T) *playbackFixture {
	t.Helper()

	engine := mock.NewEngine()
	require.NoError(t, engine.Initialize(-1, 44100))

	bus := eventbus.NewSyncEventBus()
	bus.SetLogger(testLogger())

	recorder := &eventRecorder{}
	for _, eventType := range []domain.EventType{
		domain.EventTrackLoaded,
		domain.EventTrackStarted,
		domain.EventTrackStopped,
		domain.EventTrackError,
		domain.EventVolumeChanged,
		domain.EventRateChanged,
		domain.EventLoopToggled,
	} {
		bus.Subscribe(eventType, recorder.record)
	}

	service := NewPlaybackService(testLogger(), engine, bus)

	t.Cleanup(func() {
		require.NoError(t, service.Shutdown())
		require.NoError(t, bus.Close())
	})

	return &playbackFixture{
		service:  service,
		engine:   engine,
		bus:      bus,
		recorder: recorder,
	}
}

func pathTrack(source string) domain.MusicTrack {
	return domain.MusicTrack{
		ID:     "track-1",
		Source: source,
		Title:  "Test Track",
	}
}

// prepareTrack runs SetDataSource and waits for the completion callback.
func prepareTrack(t *testing.T, fixture *playbackFixture, track domain.MusicTrack, rate float64) domain.TrackHandle {
	t.Helper()

	prepared := make(chan domain.TrackHandle, 1)
	fixture.service.SetDataSource(track, rate, func(handle domain.TrackHandle, duration time.Duration) {
		assert.Positive(t, duration)
		prepared <- handle
	})

	select {
	case handle := <-prepared:
		return handle
	case <-time.After(time.Second):
		t.Fatal("prepared callback not invoked")
		return domain.InvalidTrackHandle
	}
}

func TestSetDataSource_PlainPath(t *testing.T) {
	fixture := newPlaybackFixture(t)

	handle := prepareTrack(t, fixture, pathTrack("/music/song.mp3"), 1.0)

	source, err := fixture.engine.LoadedSource(handle)
	require.NoError(t, err)
	assert.Equal(t, "/music/song.mp3", source)

	kind, err := fixture.engine.LoadedKind(handle)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePath, kind)

	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventTrackLoaded))
}

func TestSetDataSource_FileURIStrippedToPath(t *testing.T) {
	fixture := newPlaybackFixture(t)

	handle := prepareTrack(t, fixture, pathTrack("file:///music/song.mp3"), 1.0)

	source, err := fixture.engine.LoadedSource(handle)
	require.NoError(t, err)
	assert.Equal(t, "/music/song.mp3", source)

	kind, err := fixture.engine.LoadedKind(handle)
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePath, kind)
}

func TestSetDataSource_StreamURL(t *testing.T) {
	fixture := newPlaybackFixture(t)

	handle := prepareTrack(t, fixture, pathTrack("http://radio.example/stream"), 1.0)

	source, err := fixture.engine.LoadedSource(handle)
	require.NoError(t, err)
	assert.Equal(t, "http://radio.example/stream", source)

	kind, err := fixture.engine.LoadedKind(handle)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceStream, kind)
}

func TestSetDataSource_AppliesRate(t *testing.T) {
	fixture := newPlaybackFixture(t)

	handle := prepareTrack(t, fixture, pathTrack("/music/song.mp3"), 1.5)

	rate, err := fixture.engine.GetRate(handle)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, rate, 0.001)
	assert.InDelta(t, 1.5, fixture.service.GetRate(), 0.001)
}

func TestSetDataSource_RateSkippedWhenUnsupported(t *testing.T) {
	fixture := newPlaybackFixture(t)
	fixture.engine.SetSupportsRate(false)

	handle := prepareTrack(t, fixture, pathTrack("/music/song.mp3"), 1.5)

	// Prepared fine, playing at normal speed
	rate, err := fixture.engine.GetRate(handle)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rate, 0.001)
	assert.InDelta(t, 1.0, fixture.service.GetRate(), 0.001)
}

func TestSetDataSource_LoadFailurePublishesError(t *testing.T) {
	fixture := newPlaybackFixture(t)
	fixture.engine.SetFailLoad(true)

	invoked := make(chan struct{}, 1)
	fixture.service.SetDataSource(pathTrack("/music/song.mp3"), 1.0, func(domain.TrackHandle, time.Duration) {
		invoked <- struct{}{}
	})

	assert.Eventually(t, func() bool {
		return fixture.recorder.countOf(domain.EventTrackError) == 1
	}, time.Second, 10*time.Millisecond)

	select {
	case <-invoked:
		t.Fatal("callback must not fire on prepare failure")
	default:
	}
}

func TestSetDataSource_CallbackPanicRecovered(t *testing.T) {
	fixture := newPlaybackFixture(t)

	fixture.service.SetDataSource(pathTrack("/music/song.mp3"), 1.0, func(domain.TrackHandle, time.Duration) {
		panic("listener blew up")
	})

	// The panic is swallowed; the track is loaded and playable
	assert.Eventually(t, func() bool {
		return fixture.engine.GetLoadedTracks() == 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, fixture.service.Play())
}

func TestSetDataSource_ReplacesCurrentTrack(t *testing.T) {
	fixture := newPlaybackFixture(t)

	prepareTrack(t, fixture, pathTrack("/music/first.mp3"), 1.0)
	handle := prepareTrack(t, fixture, pathTrack("/music/second.mp3"), 1.0)

	assert.Equal(t, 1, fixture.engine.GetLoadedTracks())
	source, err := fixture.engine.LoadedSource(handle)
	require.NoError(t, err)
	assert.Equal(t, "/music/second.mp3", source)
}

func TestPlay_WithoutTrack(t *testing.T) {
	fixture := newPlaybackFixture(t)

	assert.ErrorIs(t, fixture.service.Play(), domain.ErrInvalidTrackHandle)
}

func TestPlayPauseStop_Lifecycle(t *testing.T) {
	fixture := newPlaybackFixture(t)
	prepareTrack(t, fixture, pathTrack("/music/song.mp3"), 1.0)

	require.NoError(t, fixture.service.Play())
	assert.Equal(t, domain.StatusPlaying, fixture.service.GetState().Status)
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventTrackStarted))

	require.NoError(t, fixture.service.Pause())
	assert.Equal(t, domain.StatusPaused, fixture.service.GetState().Status)

	require.NoError(t, fixture.service.Stop())
	assert.Equal(t, domain.StatusStopped, fixture.service.GetState().Status)
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventTrackStopped))
	assert.Zero(t, fixture.engine.GetLoadedTracks())
}

func TestSetVolume_Validation(t *testing.T) {
	fixture := newPlaybackFixture(t)

	assert.ErrorIs(t, fixture.service.SetVolume(-0.1), domain.ErrInvalidVolume)
	assert.ErrorIs(t, fixture.service.SetVolume(1.1), domain.ErrInvalidVolume)

	require.NoError(t, fixture.service.SetVolume(0.5))
	assert.InDelta(t, 0.5, fixture.service.GetVolume(), 0.001)
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventVolumeChanged))
}

func TestSetRate_Validation(t *testing.T) {
	fixture := newPlaybackFixture(t)

	assert.ErrorIs(t, fixture.service.SetRate(0.1), domain.ErrInvalidRate)
	assert.ErrorIs(t, fixture.service.SetRate(5.0), domain.ErrInvalidRate)

	require.NoError(t, fixture.service.SetRate(2.0))
	assert.InDelta(t, 2.0, fixture.service.GetRate(), 0.001)
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventRateChanged))
}

func TestMute_RestoresVolume(t *testing.T) {
	fixture := newPlaybackFixture(t)
	handle := prepareTrack(t, fixture, pathTrack("/music/song.mp3"), 1.0)

	require.NoError(t, fixture.service.SetVolume(0.6))
	require.NoError(t, fixture.service.Mute(true))
	assert.True(t, fixture.service.IsMuted())

	volume, err := fixture.engine.GetVolume(handle)
	require.NoError(t, err)
	assert.Zero(t, volume)

	require.NoError(t, fixture.service.Mute(false))
	volume, err = fixture.engine.GetVolume(handle)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, volume, 0.001)
}

func TestSetLoop_PublishesOnce(t *testing.T) {
	fixture := newPlaybackFixture(t)

	fixture.service.SetLoop(true)
	fixture.service.SetLoop(true) // No change, no event

	assert.True(t, fixture.service.IsLooping())
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventLoopToggled))
}
