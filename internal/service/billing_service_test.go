package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunecast/tunecast/internal/adapter/billing/mock"
	"github.com/tunecast/tunecast/internal/adapter/eventbus"
	"github.com/tunecast/tunecast/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventRecorder collects published events by type.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) record(event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) countOf(eventType domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event.Type() == eventType {
			count++
		}
	}
	return count
}

func (r *eventRecorder) lastOf(eventType domain.EventType) domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type() == eventType {
			return r.events[i]
		}
	}
	return nil
}

// checkoutHost records opened checkout URLs.
type checkoutHost struct {
	mu   sync.Mutex
	urls []string
}

func (h *checkoutHost) OpenCheckout(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls = append(h.urls, url)
	return nil
}

func (h *checkoutHost) opened() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.urls...)
}

type billingFixture struct {
	service  *BillingService
	client   *mock.Client
	bus      *eventbus.SyncEventBus
	host     *checkoutHost
	recorder *eventRecorder
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()

	client := mock.NewClient()
	bus := eventbus.NewSyncEventBus()
	bus.SetLogger(testLogger())
	host := &checkoutHost{}
	recorder := &eventRecorder{}

	for _, eventType := range []domain.EventType{
		domain.EventBillingReady,
		domain.EventBillingDisconnected,
		domain.EventEntitlementChanged,
		domain.EventPurchaseCompleted,
		domain.EventRestoreCompleted,
	} {
		bus.Subscribe(eventType, recorder.record)
	}

	service := NewBillingService(testLogger(), client, bus, host)

	t.Cleanup(func() {
		require.NoError(t, service.Shutdown())
		require.NoError(t, bus.Close())
	})

	return &billingFixture{
		service:  service,
		client:   client,
		bus:      bus,
		host:     host,
		recorder: recorder,
	}
}

func proPurchase(acknowledged bool) domain.Purchase {
	return domain.Purchase{
		OrderID:      "order-1",
		ProductID:    domain.ProductProUpgrade,
		State:        domain.PurchasePurchased,
		Acknowledged: acknowledged,
		Token:        "token-1",
		PurchasedAt:  time.Now(),
	}
}

func TestBillingService_InitialState(t *testing.T) {
	fixture := newBillingFixture(t)

	assert.Equal(t, domain.ConnectionDisconnected, fixture.service.ConnectionState())
	assert.False(t, fixture.service.IsProOwned())
}

func TestBillingService_ConnectTransitionsToConnecting(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()

	assert.Equal(t, domain.ConnectionConnecting, fixture.service.ConnectionState())
	assert.Equal(t, 1, fixture.client.StartCount())
}

func TestBillingService_ConnectIgnoredWhileConnecting(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()
	fixture.service.Connect()

	assert.Equal(t, 1, fixture.client.StartCount())
}

func TestBillingService_SetupSuccessPublishesReadyOnce(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingOK)
	fixture.client.FinishSetup(domain.BillingOK) // Duplicate callback

	assert.Equal(t, domain.ConnectionReady, fixture.service.ConnectionState())
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventBillingReady))
}

func TestBillingService_SetupSuccessQueriesEntitlement(t *testing.T) {
	fixture := newBillingFixture(t)
	fixture.client.SetPurchases([]domain.Purchase{proPurchase(true)})

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingOK)

	assert.Eventually(t, fixture.service.IsProOwned, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return fixture.recorder.countOf(domain.EventEntitlementChanged) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBillingService_SetupFailureStaysDisconnected(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingServiceUnavailable)

	assert.Equal(t, domain.ConnectionDisconnected, fixture.service.ConnectionState())
	assert.Zero(t, fixture.recorder.countOf(domain.EventBillingReady))
}

func TestBillingService_ReadyFiresAgainAfterReconnect(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingOK)
	fixture.client.Disconnect()

	assert.Equal(t, domain.ConnectionDisconnected, fixture.service.ConnectionState())
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventBillingDisconnected))

	// The store client reconnects on its own and reports setup again
	fixture.client.FinishSetup(domain.BillingOK)

	assert.Equal(t, domain.ConnectionReady, fixture.service.ConnectionState())
	assert.Equal(t, 2, fixture.recorder.countOf(domain.EventBillingReady))
}

func TestBillingService_PurchaseBeforeReady(t *testing.T) {
	fixture := newBillingFixture(t)

	err := fixture.service.Purchase(context.Background())

	assert.ErrorIs(t, err, domain.ErrBillingNotReady)
	assert.Empty(t, fixture.client.Launched())
}

func TestBillingService_PurchaseLaunchesCheckout(t *testing.T) {
	fixture := newBillingFixture(t)
	fixture.client.AddProduct(domain.Product{
		ID:          domain.ProductProUpgrade,
		Type:        domain.ProductTypeInApp,
		Title:       "TuneCast Pro",
		Price:       "$4.99",
		CheckoutURL: "https://pay.example/pro",
	})

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingOK)

	require.NoError(t, fixture.service.Purchase(context.Background()))

	launched := fixture.client.Launched()
	require.Len(t, launched, 1)
	assert.Equal(t, domain.ProductProUpgrade, launched[0].ID)
	assert.Equal(t, []string{"https://pay.example/pro"}, fixture.host.opened())
}

func TestBillingService_PurchaseAbortsWhenProductMissing(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingOK)

	err := fixture.service.Purchase(context.Background())

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Empty(t, fixture.client.Launched())
	assert.Empty(t, fixture.host.opened())
}

func TestBillingService_PurchaseUpdateAcknowledgesAndGrants(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingOK)

	fixture.client.PushUpdate([]domain.Purchase{proPurchase(false)}, domain.BillingOK)

	assert.True(t, fixture.service.IsProOwned())
	assert.Equal(t, []string{"token-1"}, fixture.client.Acknowledged())
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventPurchaseCompleted))
}

func TestBillingService_PurchaseUpdateSkipsRedundantAck(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.client.PushUpdate([]domain.Purchase{proPurchase(true)}, domain.BillingOK)

	assert.True(t, fixture.service.IsProOwned())
	assert.Empty(t, fixture.client.Acknowledged())
}

func TestBillingService_EntitlementSurvivesAckFailure(t *testing.T) {
	fixture := newBillingFixture(t)
	fixture.client.SetFailAcknowledge(true)

	fixture.client.PushUpdate([]domain.Purchase{proPurchase(false)}, domain.BillingOK)

	assert.True(t, fixture.service.IsProOwned())
	assert.Equal(t, 1, fixture.recorder.countOf(domain.EventPurchaseCompleted))
}

func TestBillingService_UnrelatedProductDoesNotGrant(t *testing.T) {
	fixture := newBillingFixture(t)

	other := proPurchase(false)
	other.ProductID = "tunecast.theme.pack"
	other.Token = "token-other"
	fixture.client.PushUpdate([]domain.Purchase{other}, domain.BillingOK)

	assert.False(t, fixture.service.IsProOwned())
	assert.Zero(t, fixture.recorder.countOf(domain.EventPurchaseCompleted))
	// Acknowledgment still happens for any purchased record
	assert.Equal(t, []string{"token-other"}, fixture.client.Acknowledged())
}

func TestBillingService_PendingPurchaseIgnored(t *testing.T) {
	fixture := newBillingFixture(t)

	pending := proPurchase(false)
	pending.State = domain.PurchasePending
	fixture.client.PushUpdate([]domain.Purchase{pending}, domain.BillingOK)

	assert.False(t, fixture.service.IsProOwned())
	assert.Empty(t, fixture.client.Acknowledged())
}

func TestBillingService_UserCancelledIsQuiet(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.client.PushUpdate(nil, domain.BillingUserCancelled)

	assert.False(t, fixture.service.IsProOwned())
	assert.Zero(t, fixture.recorder.countOf(domain.EventPurchaseCompleted))
}

func TestBillingService_AlreadyOwnedTriggersResync(t *testing.T) {
	fixture := newBillingFixture(t)
	fixture.client.SetPurchases([]domain.Purchase{proPurchase(true)})

	fixture.client.PushUpdate(nil, domain.BillingItemAlreadyOwned)

	assert.True(t, fixture.service.IsProOwned())
}

func TestBillingService_RestoreFindsPurchase(t *testing.T) {
	fixture := newBillingFixture(t)
	fixture.client.SetPurchases([]domain.Purchase{proPurchase(true)})

	owned, err := fixture.service.Restore(context.Background())

	require.NoError(t, err)
	assert.True(t, owned)
	assert.True(t, fixture.service.IsProOwned())

	event := fixture.recorder.lastOf(domain.EventRestoreCompleted)
	require.NotNil(t, event)
	assert.True(t, event.(domain.RestoreCompletedEvent).Owned)
}

func TestBillingService_RestoreFindsNothing(t *testing.T) {
	fixture := newBillingFixture(t)

	owned, err := fixture.service.Restore(context.Background())

	require.NoError(t, err)
	assert.False(t, owned)

	event := fixture.recorder.lastOf(domain.EventRestoreCompleted)
	require.NotNil(t, event)
	assert.False(t, event.(domain.RestoreCompletedEvent).Owned)
}

func TestBillingService_RestoreQueryFailureKeepsFlag(t *testing.T) {
	fixture := newBillingFixture(t)

	// Grant entitlement first, then make the store unreachable
	fixture.client.PushUpdate([]domain.Purchase{proPurchase(true)}, domain.BillingOK)
	require.True(t, fixture.service.IsProOwned())

	fixture.client.SetFailQueryPurchases(true)
	owned, err := fixture.service.Restore(context.Background())

	assert.Error(t, err)
	assert.True(t, owned)
	assert.True(t, fixture.service.IsProOwned())
}

func TestBillingService_EntitlementRevokedOnResync(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.client.PushUpdate([]domain.Purchase{proPurchase(true)}, domain.BillingOK)
	require.True(t, fixture.service.IsProOwned())

	// The store no longer reports the purchase (refund)
	fixture.client.SetPurchases(nil)
	owned, err := fixture.service.Restore(context.Background())

	require.NoError(t, err)
	assert.False(t, owned)
	assert.False(t, fixture.service.IsProOwned())
	assert.Equal(t, 2, fixture.recorder.countOf(domain.EventEntitlementChanged))
}

func TestBillingService_ShutdownIdempotent(t *testing.T) {
	fixture := newBillingFixture(t)

	fixture.service.Connect()
	fixture.client.FinishSetup(domain.BillingOK)

	require.NoError(t, fixture.service.Shutdown())
	require.NoError(t, fixture.service.Shutdown())

	assert.Equal(t, 1, fixture.client.EndCount())
	assert.Equal(t, domain.ConnectionDisconnected, fixture.service.ConnectionState())
}

func TestBillingService_ShutdownWithoutConnect(t *testing.T) {
	fixture := newBillingFixture(t)

	require.NoError(t, fixture.service.Shutdown())
	assert.Zero(t, fixture.client.EndCount())
}
