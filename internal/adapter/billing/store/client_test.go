package store

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunecast/tunecast/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(baseURL string) *Client {
	cfg := DefaultConfig(baseURL, "device-test")
	cfg.Timeout = 2 * time.Second
	cfg.ReconnectDelay = 50 * time.Millisecond
	return NewClient(testLogger(), cfg)
}

// recordingListener captures connection callbacks on channels.
type recordingListener struct {
	setup        chan domain.BillingResponseCode
	disconnected chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		setup:        make(chan domain.BillingResponseCode, 4),
		disconnected: make(chan struct{}, 4),
	}
}

func (l *recordingListener) OnSetupFinished(code domain.BillingResponseCode) {
	l.setup <- code
}

func (l *recordingListener) OnDisconnected() {
	l.disconnected <- struct{}{}
}

// openHost records checkout URLs passed to it.
type openHost struct {
	mu   sync.Mutex
	urls []string
}

func (h *openHost) OpenCheckout(url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls = append(h.urls, url)
	return nil
}

func TestQueryPurchases_MapsRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/purchases", r.URL.Path)
		assert.Equal(t, "inapp", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"order_id":"o-1","product_id":"tunecast.pro.upgrade","state":"purchased","acknowledged":true,"token":"tok-1"},
			{"order_id":"o-2","product_id":"other","state":"pending","acknowledged":false,"token":"tok-2"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	purchases, err := client.QueryPurchases(context.Background(), domain.ProductTypeInApp)
	require.NoError(t, err)
	require.Len(t, purchases, 2)

	assert.Equal(t, domain.ProductProUpgrade, purchases[0].ProductID)
	assert.Equal(t, domain.PurchasePurchased, purchases[0].State)
	assert.True(t, purchases[0].Acknowledged)
	assert.Equal(t, domain.PurchasePending, purchases[1].State)
}

func TestQueryProduct_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.QueryProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestQueryProduct_MapsMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/products/tunecast.pro.upgrade", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tunecast.pro.upgrade","type":"inapp","title":"TuneCast Pro","price":"$4.99","checkout_url":"https://pay.example/x"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	product, err := client.QueryProduct(context.Background(), domain.ProductProUpgrade)
	require.NoError(t, err)

	assert.Equal(t, "TuneCast Pro", product.Title)
	assert.Equal(t, domain.ProductTypeInApp, product.Type)
	assert.Equal(t, "$4.99", product.Price)
}

func TestAcknowledge_PostsToken(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.Acknowledge(context.Background(), "tok-42"))
	assert.Equal(t, "/v1/purchases/tok-42/acknowledge", path)
}

func TestLaunchCheckout_OpensSessionURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"checkout_url":"https://pay.example/session-1"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	host := &openHost{}
	product := domain.Product{ID: domain.ProductProUpgrade, CheckoutURL: "https://pay.example/fallback"}

	require.NoError(t, client.LaunchCheckout(context.Background(), host, product))
	require.Len(t, host.urls, 1)
	assert.Equal(t, "https://pay.example/session-1", host.urls[0])
}

func TestStartConnection_DeliversSetupAndUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	pushed := make(chan *websocket.Conn, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/updates", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		pushed <- conn
		// Keep the connection open; the client closes it on shutdown
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)
	listener := newRecordingListener()

	updates := make(chan []domain.Purchase, 1)
	client.SetPurchaseUpdateHandler(func(purchases []domain.Purchase, code domain.BillingResponseCode) {
		assert.Equal(t, domain.BillingOK, code)
		updates <- purchases
	})

	client.StartConnection(listener)
	defer client.EndConnection()

	select {
	case code := <-listener.setup:
		assert.Equal(t, domain.BillingOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("setup callback not delivered")
	}

	// Push an update over the websocket
	var conn *websocket.Conn
	select {
	case conn = <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
	}
	err := conn.WriteJSON(map[string]any{
		"code": "ok",
		"purchases": []map[string]any{
			{"order_id": "o-9", "product_id": domain.ProductProUpgrade, "state": "purchased", "token": "tok-9"},
		},
	})
	require.NoError(t, err)

	select {
	case purchases := <-updates:
		require.Len(t, purchases, 1)
		assert.Equal(t, "tok-9", purchases[0].Token)
		assert.Equal(t, domain.PurchasePurchased, purchases[0].State)
	case <-time.After(2 * time.Second):
		t.Fatal("purchase update not delivered")
	}
}

func TestStartConnection_SetupFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Unreachable store

	client := newTestClient(server.URL)
	listener := newRecordingListener()

	client.StartConnection(listener)
	defer client.EndConnection()

	select {
	case code := <-listener.setup:
		assert.Equal(t, domain.BillingServiceUnavailable, code)
	case <-time.After(2 * time.Second):
		t.Fatal("setup failure not delivered")
	}
}

func TestEndConnection_Idempotent(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")

	// Safe without a prior StartConnection, and safe twice
	client.EndConnection()
	client.EndConnection()
}
