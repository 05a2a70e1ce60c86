// Package mock provides a mock implementation of the BillingClient interface.
// This is used for testing the billing service without a real store.
package mock

import (
	"context"
	"sync"

	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
)

// Client is a scripted mock of the external store.
//
// Setup callbacks are not fired automatically: tests drive the
// connection lifecycle explicitly with FinishSetup and Disconnect.
//
// Thread-safety: This implementation is thread-safe.
type Client struct {
	mu sync.Mutex

	listener ports.ConnectionListener
	handler  ports.PurchaseUpdateHandler

	purchases []domain.Purchase
	products  map[string]domain.Product

	acknowledged []string
	launched     []domain.Product

	startCount int
	endCount   int

	failQueryPurchases bool
	failAcknowledge    bool
}

// NewClient creates a new mock store client.
func NewClient() *Client {
	return &Client{
		products: make(map[string]domain.Product),
	}
}

// SetPurchases configures the purchases returned by QueryPurchases.
func (c *Client) SetPurchases(purchases []domain.Purchase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purchases = purchases
}

// AddProduct configures product metadata returned by QueryProduct.
func (c *Client) AddProduct(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

// SetFailQueryPurchases configures QueryPurchases to fail (for testing).
func (c *Client) SetFailQueryPurchases(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failQueryPurchases = fail
}

// SetFailAcknowledge configures Acknowledge to fail (for testing).
func (c *Client) SetFailAcknowledge(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAcknowledge = fail
}

// FinishSetup delivers the setup result to the registered listener.
func (c *Client) FinishSetup(code domain.BillingResponseCode) {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener.OnSetupFinished(code)
	}
}

// Disconnect delivers a disconnect notification to the listener.
func (c *Client) Disconnect() {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		listener.OnDisconnected()
	}
}

// PushUpdate delivers a purchase update to the registered handler.
func (c *Client) PushUpdate(purchases []domain.Purchase, code domain.BillingResponseCode) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(purchases, code)
	}
}

// Acknowledged returns the tokens acknowledged so far.
func (c *Client) Acknowledged() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.acknowledged...)
}

// Launched returns the products for which checkout was launched.
func (c *Client) Launched() []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Product{}, c.launched...)
}

// StartCount returns how many times StartConnection was called.
func (c *Client) StartCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startCount
}

// EndCount returns how many times EndConnection was called.
func (c *Client) EndCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endCount
}

// StartConnection implements ports.BillingClient.
func (c *Client) StartConnection(listener ports.ConnectionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
	c.startCount++
}

// EndConnection implements ports.BillingClient.
func (c *Client) EndConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endCount++
}

// QueryPurchases implements ports.BillingClient.
func (c *Client) QueryPurchases(_ context.Context, productType domain.ProductType) ([]domain.Purchase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failQueryPurchases {
		return nil, domain.NewBillingError("query_purchases", domain.BillingServiceUnavailable, "mock query failure", nil)
	}

	_ = productType // The mock holds one-time products only
	return append([]domain.Purchase{}, c.purchases...), nil
}

// QueryProduct implements ports.BillingClient.
func (c *Client) QueryProduct(_ context.Context, productID string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	product, ok := c.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &product, nil
}

// LaunchCheckout implements ports.BillingClient.
func (c *Client) LaunchCheckout(_ context.Context, host ports.CheckoutHost, product domain.Product) error {
	c.mu.Lock()
	c.launched = append(c.launched, product)
	c.mu.Unlock()

	return host.OpenCheckout(product.CheckoutURL)
}

// Acknowledge implements ports.BillingClient.
func (c *Client) Acknowledge(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failAcknowledge {
		return domain.NewBillingError("acknowledge", domain.BillingFailure, "mock acknowledge failure", nil)
	}

	c.acknowledged = append(c.acknowledged, token)
	return nil
}

// SetPurchaseUpdateHandler implements ports.BillingClient.
func (c *Client) SetPurchaseUpdateHandler(handler ports.PurchaseUpdateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Verify that Client implements the BillingClient interface
var _ ports.BillingClient = (*Client)(nil)
