package cast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunecast/tunecast/internal/adapter/eventbus"
	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/netutil"
	"github.com/tunecast/tunecast/internal/testutil"
	"go.uber.org/goleak"
)

func newTestServer(t *testing.T) (*Server, *eventbus.SyncEventBus) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewSyncEventBus()
	bus.SetLogger(logger)

	server := NewServer(logger, bus)
	t.Cleanup(func() {
		_ = server.Stop(context.Background())
		_ = bus.Close()
	})

	return server, bus
}

func TestServer_StartServesStatusAndStream(t *testing.T) {
	server, _ := newTestServer(t)

	dir := t.TempDir()
	source := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(source, []byte("mp3-bytes"), 0o644))
	server.SetTrack(domain.MusicTrack{
		Source: source,
		Title:  "Night Drive",
		Artist: "The Examples",
	})

	port, err := server.Start(20100, 20140)
	require.NoError(t, err)
	assert.Equal(t, port, server.Port())

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	resp, err := http.Get(base + "/status")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.JSONEq(t, fmt.Sprintf(
		`{"port":%d,"has_source":true,"title":"Night Drive","artist":"The Examples"}`,
		port), string(body))

	resp, err = http.Get(base + "/stream")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "mp3-bytes", string(body))
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
}

func TestServer_StreamWithoutSource(t *testing.T) {
	server, _ := newTestServer(t)

	port, err := server.Start(20150, 20190)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/stream", port))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_StartSkipsOccupiedPort(t *testing.T) {
	server, _ := newTestServer(t)

	blocker, err := net.Listen("tcp", "127.0.0.1:20200")
	require.NoError(t, err)
	defer func() { _ = blocker.Close() }()

	port, err := server.Start(20200, 20210)
	require.NoError(t, err)
	assert.Greater(t, port, 20200)
}

func TestServer_StartNoFreePort(t *testing.T) {
	server, _ := newTestServer(t)

	blocker, err := net.Listen("tcp", "127.0.0.1:20220")
	require.NoError(t, err)
	defer func() { _ = blocker.Close() }()

	port, err := server.Start(20220, 20220)
	assert.ErrorIs(t, err, domain.ErrNoFreePort)
	assert.Equal(t, netutil.PortNotFound, port)
}

func TestServer_StartTwice(t *testing.T) {
	server, _ := newTestServer(t)

	port, err := server.Start(20230, 20270)
	require.NoError(t, err)

	again, err := server.Start(20230, 20270)
	assert.ErrorIs(t, err, domain.ErrAlreadyInitialized)
	assert.Equal(t, port, again)
}

func TestServer_StopReleasesGoroutines(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, goleak.IgnoreCurrent())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewSyncEventBus()
	bus.SetLogger(logger)
	server := NewServer(logger, bus)

	_, err := server.Start(20330, 20370)
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))
	require.NoError(t, bus.Close())
}

func TestServer_StopIdempotent(t *testing.T) {
	server, bus := newTestServer(t)

	stopped := 0
	bus.Subscribe(domain.EventCastStopped, func(domain.Event) { stopped++ })

	_, err := server.Start(20280, 20320)
	require.NoError(t, err)

	require.NoError(t, server.Stop(context.Background()))
	require.NoError(t, server.Stop(context.Background()))

	assert.Equal(t, netutil.PortNotFound, server.Port())
	assert.Equal(t, 1, stopped)
}
