// Package store implements the BillingClient interface against the
// TuneCast store API. Queries and commands go over HTTP behind a
// circuit breaker; purchase updates are pushed over a websocket.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker/v2"
	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
)

// Config holds store client configuration.
type Config struct {
	// BaseURL is the store API root, e.g. "https://store.tunecast.app"
	BaseURL string

	// DeviceID identifies this installation to the store
	DeviceID string

	// Timeout bounds individual HTTP requests
	Timeout time.Duration

	// ReconnectDelay is the wait between reconnection attempts after
	// the update channel drops
	ReconnectDelay time.Duration
}

// DefaultConfig returns the default store client configuration.
func DefaultConfig(baseURL, deviceID string) Config {
	return Config{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		DeviceID:       deviceID,
		Timeout:        10 * time.Second,
		ReconnectDelay: 5 * time.Second,
	}
}

// Client talks to the external store. It owns the update websocket and
// its reconnection; the billing service only sees listener callbacks.
//
// Thread-safety: This implementation is thread-safe.
type Client struct {
	logger  *slog.Logger
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]

	mu            sync.Mutex
	listener      ports.ConnectionListener
	updateHandler ports.PurchaseUpdateHandler
	conn          *websocket.Conn
	stopCh        chan struct{}
	running       bool
	wg            sync.WaitGroup
}

// NewClient creates a new store client.
func NewClient(logger *slog.Logger, cfg Config) *Client {
	settings := gobreaker.Settings{
		Name:    "store-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	return &Client{
		logger:  logger,
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// SetPurchaseUpdateHandler registers the pushed-update handler.
// Must be called before StartConnection.
func (c *Client) SetPurchaseUpdateHandler(handler ports.PurchaseUpdateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateHandler = handler
}

// StartConnection begins asynchronous connection setup. The first
// attempt reports its outcome through the listener; afterwards the
// client keeps the update channel alive on its own, re-reporting
// readiness after every successful reconnect.
func (c *Client) StartConnection(listener ports.ConnectionListener) {
	c.mu.Lock()
	c.listener = listener
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stop := c.stopCh
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(stop)
}

// EndConnection closes the store connection. Idempotent.
func (c *Client) EndConnection() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// run maintains the update websocket until EndConnection.
func (c *Client) run(stop chan struct{}) {
	defer c.wg.Done()

	first := true
	for {
		conn, err := c.dial()
		if err != nil {
			c.logger.Warn("store connection failed", slog.Any("error", err))
			if first {
				// Only the initial attempt reports failure; later
				// attempts are silent background reconnects.
				c.notifySetup(domain.BillingServiceUnavailable)
				first = false
			}
			select {
			case <-stop:
				return
			case <-time.After(c.cfg.ReconnectDelay):
				continue
			}
		}

		first = false
		c.setConn(conn)
		c.notifySetup(domain.BillingOK)

		c.readLoop(conn)

		select {
		case <-stop:
			return
		default:
		}

		c.logger.Info("store update channel dropped, reconnecting")
		c.notifyDisconnected()

		select {
		case <-stop:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// dial verifies the API is reachable and opens the update websocket.
func (c *Client) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	if err := c.getJSON(ctx, "/v1/ping", nil); err != nil {
		return nil, err
	}

	wsURL := strings.Replace(c.cfg.BaseURL, "http", "ws", 1) + "/v1/updates?device=" + c.cfg.DeviceID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open update channel: %w", err)
	}
	return conn, nil
}

// updateMessage is the wire format of a pushed purchase update.
type updateMessage struct {
	Code      string        `json:"code"`
	Purchases []purchaseDTO `json:"purchases"`
}

// readLoop delivers pushed purchase updates until the connection drops.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg updateMessage
		if err := conn.ReadJSON(&msg); err != nil {
			_ = conn.Close()
			return
		}

		c.mu.Lock()
		handler := c.updateHandler
		c.mu.Unlock()
		if handler == nil {
			continue
		}

		purchases := make([]domain.Purchase, 0, len(msg.Purchases))
		for _, dto := range msg.Purchases {
			purchases = append(purchases, dto.toDomain())
		}
		handler(purchases, parseResponseCode(msg.Code))
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) notifySetup(code domain.BillingResponseCode) {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener.OnSetupFinished(code)
	}
}

func (c *Client) notifyDisconnected() {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener.OnDisconnected()
	}
}

// purchaseDTO is the wire format of a store purchase record.
type purchaseDTO struct {
	OrderID      string    `json:"order_id"`
	ProductID    string    `json:"product_id"`
	State        string    `json:"state"`
	Acknowledged bool      `json:"acknowledged"`
	Token        string    `json:"token"`
	PurchasedAt  time.Time `json:"purchased_at"`
}

func (d purchaseDTO) toDomain() domain.Purchase {
	return domain.Purchase{
		OrderID:      d.OrderID,
		ProductID:    d.ProductID,
		State:        parsePurchaseState(d.State),
		Acknowledged: d.Acknowledged,
		Token:        d.Token,
		PurchasedAt:  d.PurchasedAt,
	}
}

// productDTO is the wire format of store product metadata.
type productDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
	CheckoutURL string `json:"checkout_url"`
}

func (d productDTO) toDomain() domain.Product {
	return domain.Product{
		ID:          d.ID,
		Type:        domain.ProductType(d.Type),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		CheckoutURL: d.CheckoutURL,
	}
}

func parsePurchaseState(state string) domain.PurchaseState {
	switch state {
	case "purchased":
		return domain.PurchasePurchased
	case "cancelled":
		return domain.PurchaseCancelled
	default:
		return domain.PurchasePending
	}
}

func parseResponseCode(code string) domain.BillingResponseCode {
	switch code {
	case "ok":
		return domain.BillingOK
	case "user_cancelled":
		return domain.BillingUserCancelled
	case "item_already_owned":
		return domain.BillingItemAlreadyOwned
	case "service_unavailable":
		return domain.BillingServiceUnavailable
	default:
		return domain.BillingFailure
	}
}

// QueryPurchases returns all owned purchases of the given product type.
func (c *Client) QueryPurchases(ctx context.Context, productType domain.ProductType) ([]domain.Purchase, error) {
	var dtos []purchaseDTO
	path := "/v1/purchases?device=" + c.cfg.DeviceID + "&type=" + string(productType)
	if err := c.getJSON(ctx, path, &dtos); err != nil {
		return nil, domain.NewBillingError("query_purchases", domain.BillingServiceUnavailable, "purchase query failed", err)
	}

	purchases := make([]domain.Purchase, 0, len(dtos))
	for _, dto := range dtos {
		purchases = append(purchases, dto.toDomain())
	}
	return purchases, nil
}

// QueryProduct returns store metadata for a product identifier.
func (c *Client) QueryProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var dto productDTO
	err := c.getJSON(ctx, "/v1/products/"+productID, &dto)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.NewBillingError("query_product", domain.BillingServiceUnavailable, "product query failed", err)
	}

	product := dto.toDomain()
	return &product, nil
}

// checkoutRequest is the wire format of a checkout launch.
type checkoutRequest struct {
	ProductID string `json:"product_id"`
	DeviceID  string `json:"device_id"`
}

// checkoutResponse carries the URL the store wants presented.
type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// LaunchCheckout asks the store for a checkout session and presents it
// on the host. The purchase result arrives later over the update channel.
func (c *Client) LaunchCheckout(ctx context.Context, host ports.CheckoutHost, product domain.Product) error {
	var resp checkoutResponse
	req := checkoutRequest{ProductID: product.ID, DeviceID: c.cfg.DeviceID}
	if err := c.postJSON(ctx, "/v1/checkout", req, &resp); err != nil {
		return domain.NewBillingError("launch_checkout", domain.BillingServiceUnavailable, "checkout session failed", err)
	}

	url := resp.CheckoutURL
	if url == "" {
		url = product.CheckoutURL
	}
	if err := host.OpenCheckout(url); err != nil {
		return domain.NewBillingError("launch_checkout", domain.BillingFailure, "failed to present checkout", err)
	}
	return nil
}

// Acknowledge confirms delivery of a purchase to the store.
func (c *Client) Acknowledge(ctx context.Context, token string) error {
	if err := c.postJSON(ctx, "/v1/purchases/"+token+"/acknowledge", nil, nil); err != nil {
		return domain.NewBillingError("acknowledge", domain.BillingServiceUnavailable, "acknowledgment failed", err)
	}
	return nil
}

// errNotFound marks 404 responses internally.
var errNotFound = errors.New("not found")

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// doJSON performs an HTTP request through the circuit breaker.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = strings.NewReader(string(encoded))
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("store returned status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return err
	}

	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

// Verify that Client implements the BillingClient interface
var _ ports.BillingClient = (*Client)(nil)
