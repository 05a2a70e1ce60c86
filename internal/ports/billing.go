// Package ports define the BillingClient interface for the external store.
// The store client owns the wire protocol and reconnection; the billing
// service owns the coordinator state machine on top of it.
package ports

import (
	"context"

	"github.com/tunecast/tunecast/internal/domain"
)

// ConnectionListener receives connection lifecycle notifications from
// the store client. Callbacks may arrive on client-owned goroutines.
type ConnectionListener interface {
	// OnSetupFinished is called when asynchronous connection setup
	// completes, successfully or not.
	OnSetupFinished(code domain.BillingResponseCode)

	// OnDisconnected is called when an established connection drops.
	// The client reconnects on its own; this is informational.
	OnDisconnected()
}

// PurchaseUpdateHandler receives purchase updates pushed by the store,
// for example when a checkout flow finishes in the browser.
type PurchaseUpdateHandler func(purchases []domain.Purchase, code domain.BillingResponseCode)

// CheckoutHost anchors the store's purchase UI. The desktop
// implementation opens the checkout URL in the system browser.
type CheckoutHost interface {
	// OpenCheckout presents the store checkout page to the user.
	OpenCheckout(url string) error
}

// BillingClient is the interface to the external purchasing service.
//
// Connection setup is asynchronous with listener callbacks; queries and
// commands are synchronous calls that the service runs on its own
// goroutines. Implementations must be thread-safe.
type BillingClient interface {
	// StartConnection begins asynchronous connection setup. The result
	// is delivered through the listener; StartConnection itself never
	// blocks on the network.
	StartConnection(listener ConnectionListener)

	// EndConnection closes the store connection. Safe to call when no
	// connection is active.
	EndConnection()

	// QueryPurchases returns all owned purchases of the given product type.
	QueryPurchases(ctx context.Context, productType domain.ProductType) ([]domain.Purchase, error)

	// QueryProduct returns store metadata for a product identifier.
	// Returns domain.ErrProductNotFound if the store does not know the ID.
	QueryProduct(ctx context.Context, productID string) (*domain.Product, error)

	// LaunchCheckout asks the store to present its purchase flow for the
	// product, anchored to the given host. The purchase result arrives
	// later through the purchase update handler, never as a return value.
	LaunchCheckout(ctx context.Context, host CheckoutHost, product domain.Product) error

	// Acknowledge confirms delivery of a purchase to the store. The store
	// auto-refunds unacknowledged purchases after a bounded window.
	Acknowledge(ctx context.Context, token string) error

	// SetPurchaseUpdateHandler registers the handler invoked for pushed
	// purchase updates. Must be set before StartConnection.
	SetPurchaseUpdateHandler(handler PurchaseUpdateHandler)
}
