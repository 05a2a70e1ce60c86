// Package domain defines billing models for the Pro upgrade.
// These mirror the records held by the external store; TuneCast only
// inspects and acknowledges purchases, it never creates or stores them.
package domain

import "time"

// ProductProUpgrade is the store identifier of the one-time Pro upgrade.
const ProductProUpgrade = "tunecast.pro.upgrade"

// ProductType distinguishes one-time products from subscriptions.
type ProductType string

const (
	// ProductTypeInApp is a one-time, non-subscription product
	ProductTypeInApp ProductType = "inapp"

	// ProductTypeSubscription is a recurring subscription product
	ProductTypeSubscription ProductType = "subs"
)

// ConnectionState is the coordinator's view of the store connection.
type ConnectionState int

const (
	// ConnectionDisconnected means no store connection exists
	ConnectionDisconnected ConnectionState = iota

	// ConnectionConnecting means setup is in flight
	ConnectionConnecting

	// ConnectionReady means the store accepts queries and purchases
	ConnectionReady
)

// String returns a human-readable representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionReady:
		return "ready"
	default:
		return "unknown"
	}
}

// PurchaseState is the lifecycle state of a store purchase record.
type PurchaseState int

const (
	// PurchasePending means payment has not completed yet
	PurchasePending PurchaseState = iota

	// PurchasePurchased means payment completed
	PurchasePurchased

	// PurchaseCancelled means the purchase was cancelled or refunded
	PurchaseCancelled
)

// String returns a human-readable representation of the purchase state.
func (s PurchaseState) String() string {
	switch s {
	case PurchasePending:
		return "pending"
	case PurchasePurchased:
		return "purchased"
	case PurchaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Purchase is a store purchase record. Read-only to this application;
// the only mutation TuneCast performs is acknowledgment via the token.
type Purchase struct {
	// OrderID is the store's unique order identifier
	OrderID string

	// ProductID is the purchased product identifier
	ProductID string

	// State is the purchase lifecycle state
	State PurchaseState

	// Acknowledged reports whether delivery was confirmed to the store.
	// Unacknowledged purchases are auto-refunded by the store after a
	// bounded window, so acknowledgment must happen promptly.
	Acknowledged bool

	// Token authenticates acknowledgment requests for this purchase
	Token string

	// PurchasedAt is when the purchase completed
	PurchasedAt time.Time
}

// Product is store product metadata fetched before launching checkout.
type Product struct {
	// ID is the product identifier
	ID string

	// Type is the product type
	Type ProductType

	// Title is the display name
	Title string

	// Description is the display description
	Description string

	// Price is the formatted, localized price string
	Price string

	// CheckoutURL is where the store presents its purchase flow
	CheckoutURL string
}

// BillingResponseCode is the result code attached to store responses
// and purchase updates.
type BillingResponseCode int

const (
	// BillingOK means the operation succeeded
	BillingOK BillingResponseCode = iota

	// BillingUserCancelled means the user backed out of the flow
	BillingUserCancelled

	// BillingItemAlreadyOwned means the product was purchased earlier
	BillingItemAlreadyOwned

	// BillingServiceUnavailable means the store is unreachable
	BillingServiceUnavailable

	// BillingFailure is any other store-reported error
	BillingFailure
)

// String returns a human-readable representation of the response code.
func (c BillingResponseCode) String() string {
	switch c {
	case BillingOK:
		return "ok"
	case BillingUserCancelled:
		return "user_cancelled"
	case BillingItemAlreadyOwned:
		return "item_already_owned"
	case BillingServiceUnavailable:
		return "service_unavailable"
	case BillingFailure:
		return "failure"
	default:
		return "unknown"
	}
}
