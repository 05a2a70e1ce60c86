package fyne

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	audiomock "github.com/tunecast/tunecast/internal/adapter/audio/mock"
	billingmock "github.com/tunecast/tunecast/internal/adapter/billing/mock"
	"github.com/tunecast/tunecast/internal/adapter/eventbus"
	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/service"
)

// fakeView records UI updates for assertions.
type fakeView struct {
	mu             sync.Mutex
	enableCount    int
	thanksCount    int
	restoreResults []bool
	notifications  []string
	playing        bool
	trackTitle     string
}

func (v *fakeView) SetPlayState(playing bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = playing
}

func (v *fakeView) SetMuteState(bool)  {}
func (v *fakeView) SetLoopState(bool)  {}
func (v *fakeView) SetVolume(float64)  {}
func (v *fakeView) SetAlbumArt([]byte) {}
func (v *fakeView) ClearAlbumArt()     {}

func (v *fakeView) SetTrackInfo(title, _, _ string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trackTitle = title
}

func (v *fakeView) SetCurrentTime(float64)   {}
func (v *fakeView) SetTotalTime(float64)     {}
func (v *fakeView) SetProgress(_, _ float64) {}

func (v *fakeView) EnablePurchaseActions() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enableCount++
}

func (v *fakeView) ShowPurchaseThanks() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.thanksCount++
}

func (v *fakeView) ShowRestoreResult(owned bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.restoreResults = append(v.restoreResults, owned)
}

func (v *fakeView) ShowNotification(title, _ string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifications = append(v.notifications, title)
}

// OpenCheckout lets the fake view double as the checkout host.
func (v *fakeView) OpenCheckout(string) error { return nil }

func (v *fakeView) enables() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enableCount
}

func (v *fakeView) thanks() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.thanksCount
}

func (v *fakeView) restores() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]bool{}, v.restoreResults...)
}

// fakeMetadataReader returns a fixed track per path.
type fakeMetadataReader struct{}

func (fakeMetadataReader) ReadMetadata(path string) (*domain.MusicTrack, error) {
	return &domain.MusicTrack{ID: "t-1", Source: path, Title: "Fixture Track"}, nil
}

// fakePrefsRepo is a minimal in-memory preferences repository.
type fakePrefsRepo struct {
	volume float64
	loop   bool
}

func (r *fakePrefsRepo) SaveVolume(v float64) error          { r.volume = v; return nil }
func (r *fakePrefsRepo) LoadVolume() (float64, error)        { return r.volume, nil }
func (r *fakePrefsRepo) SaveLoopMode(l bool) error           { r.loop = l; return nil }
func (r *fakePrefsRepo) LoadLoopMode() (bool, error)         { return r.loop, nil }
func (r *fakePrefsRepo) SaveTheme(string) error              { return nil }
func (r *fakePrefsRepo) LoadTheme() (string, error)          { return "system", nil }
func (r *fakePrefsRepo) SavePlaybackRate(float64) error      { return nil }
func (r *fakePrefsRepo) LoadPlaybackRate() (float64, error)  { return 1.0, nil }
func (r *fakePrefsRepo) SaveCastPortRange(_, _ int) error    { return nil }
func (r *fakePrefsRepo) LoadCastPortRange() (int, int, error) { return 8090, 8100, nil }
func (r *fakePrefsRepo) Clear() error                        { return nil }

type presenterFixture struct {
	presenter *Presenter
	view      *fakeView
	billing   *billingmock.Client
	engine    *audiomock.Engine
}

func newPresenterFixture(t *testing.T) *presenterFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bus := eventbus.NewSyncEventBus()
	bus.SetLogger(logger)

	engine := audiomock.NewEngine()
	require.NoError(t, engine.Initialize(-1, 44100))

	billingClient := billingmock.NewClient()
	view := &fakeView{}

	playbackService := service.NewPlaybackService(logger, engine, bus)
	billingService := service.NewBillingService(logger, billingClient, bus, view)
	preferenceService := service.NewPreferenceService(logger, &fakePrefsRepo{volume: 0.8})

	presenter := NewPresenter(logger, playbackService, billingService,
		preferenceService, fakeMetadataReader{}, bus, view)

	t.Cleanup(func() {
		presenter.Shutdown()
		require.NoError(t, billingService.Shutdown())
		require.NoError(t, playbackService.Shutdown())
		require.NoError(t, bus.Close())
	})

	return &presenterFixture{
		presenter: presenter,
		view:      view,
		billing:   billingClient,
		engine:    engine,
	}
}

func (f *presenterFixture) connectBilling() {
	f.presenter.billingService.Connect()
	f.billing.FinishSetup(domain.BillingOK)
}

func TestPresenter_EnablesPurchaseActionsAtMostOnce(t *testing.T) {
	fixture := newPresenterFixture(t)

	fixture.connectBilling()
	assert.Equal(t, 1, fixture.view.enables())

	// The store drops and reconnects; the buttons stay enabled and the
	// second ready event must not re-enable them
	fixture.billing.Disconnect()
	fixture.billing.FinishSetup(domain.BillingOK)

	assert.Equal(t, 1, fixture.view.enables())
}

func TestPresenter_RestoreReportsOutcome(t *testing.T) {
	fixture := newPresenterFixture(t)
	fixture.connectBilling()

	fixture.billing.SetPurchases([]domain.Purchase{{
		OrderID:      "o-1",
		ProductID:    domain.ProductProUpgrade,
		State:        domain.PurchasePurchased,
		Acknowledged: true,
		Token:        "tok-1",
	}})

	fixture.presenter.OnRestoreClicked()

	assert.Eventually(t, func() bool {
		results := fixture.view.restores()
		return len(results) == 1 && results[0]
	}, time.Second, 10*time.Millisecond)
	assert.True(t, fixture.presenter.IsProOwned())
}

func TestPresenter_RestoreFindsNothing(t *testing.T) {
	fixture := newPresenterFixture(t)
	fixture.connectBilling()

	fixture.presenter.OnRestoreClicked()

	assert.Eventually(t, func() bool {
		results := fixture.view.restores()
		return len(results) == 1 && !results[0]
	}, time.Second, 10*time.Millisecond)
}

func TestPresenter_PurchaseCompletedShowsThanks(t *testing.T) {
	fixture := newPresenterFixture(t)
	fixture.connectBilling()

	fixture.billing.PushUpdate([]domain.Purchase{{
		OrderID:   "o-2",
		ProductID: domain.ProductProUpgrade,
		State:     domain.PurchasePurchased,
		Token:     "tok-2",
	}}, domain.BillingOK)

	assert.Equal(t, 1, fixture.view.thanks())
}

func TestPresenter_FileOpenStartsPlayback(t *testing.T) {
	fixture := newPresenterFixture(t)

	require.NoError(t, fixture.presenter.OnFileOpened("/music/song.mp3"))

	assert.Eventually(t, func() bool {
		fixture.view.mu.Lock()
		defer fixture.view.mu.Unlock()
		return fixture.view.playing && fixture.view.trackTitle == "Fixture Track"
	}, time.Second, 10*time.Millisecond)
}
