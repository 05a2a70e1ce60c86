// Package service provides business logic for the TuneCast application.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
)

// BillingService mediates between the application and the external
// store. It owns the connection state machine and the Pro entitlement
// flag, and publishes billing events on the bus.
//
// The entitlement flag is rebuilt from the store on every query and is
// never persisted locally; the store's record is the source of truth.
//
// All operations are thread-safe via sync.RWMutex.
type BillingService struct {
	// Dependencies (injected)
	logger *slog.Logger
	client ports.BillingClient
	bus    ports.EventBus
	host   ports.CheckoutHost

	// State
	state        domain.ConnectionState
	proOwned     bool
	queryTimeout time.Duration

	// Concurrency control
	mu sync.RWMutex
	wg sync.WaitGroup // Tracks background entitlement queries
}

// NewBillingService creates a new billing service.
// Connect must be called separately to begin connection setup.
func NewBillingService(
	logger *slog.Logger,
	client ports.BillingClient,
	bus ports.EventBus,
	host ports.CheckoutHost,
) *BillingService {
	service := &BillingService{
		logger:       logger,
		client:       client,
		bus:          bus,
		host:         host,
		state:        domain.ConnectionDisconnected,
		queryTimeout: 10 * time.Second,
	}

	client.SetPurchaseUpdateHandler(service.handlePurchaseUpdate)

	logger.Debug("billing service initialized")

	return service
}

// Connect begins asynchronous connection setup. The outcome arrives via
// the listener callbacks; on success the service queries entitlement and
// publishes BillingReadyEvent. Setup failure is logged only — the store
// client owns reconnection, this service schedules no retry.
func (s *BillingService) Connect() {
	s.mu.Lock()
	if s.state != domain.ConnectionDisconnected {
		s.mu.Unlock()
		s.logger.Debug("connect ignored", slog.String("state", s.state.String()))
		return
	}
	s.state = domain.ConnectionConnecting
	s.mu.Unlock()

	s.logger.Debug("starting store connection")
	s.client.StartConnection(s)
}

// OnSetupFinished implements ports.ConnectionListener.
func (s *BillingService) OnSetupFinished(code domain.BillingResponseCode) {
	if code != domain.BillingOK {
		s.mu.Lock()
		s.state = domain.ConnectionDisconnected
		s.mu.Unlock()

		s.logger.Warn("store connection setup failed", slog.String("code", code.String()))
		return
	}

	s.mu.Lock()
	if s.state == domain.ConnectionReady {
		// Duplicate setup callback for an already-ready connection
		s.mu.Unlock()
		return
	}
	s.state = domain.ConnectionReady
	s.mu.Unlock()

	s.logger.Info("store connection ready")

	// Readiness fires exactly once per successful setup
	s.bus.Publish(domain.NewBillingReadyEvent())

	// Entitlement query runs in the background; its result lands via
	// the entitlement-changed event
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.refreshEntitlement(context.Background())
	}()
}

// OnDisconnected implements ports.ConnectionListener.
// Reconnection is owned by the store client; a later successful setup
// callback moves the service back to ready.
func (s *BillingService) OnDisconnected() {
	s.mu.Lock()
	s.state = domain.ConnectionDisconnected
	s.mu.Unlock()

	s.logger.Warn("store connection lost")
	s.bus.Publish(domain.NewBillingDisconnectedEvent())
}

// ConnectionState returns the current connection state.
func (s *BillingService) ConnectionState() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsProOwned returns the current Pro entitlement flag.
func (s *BillingService) IsProOwned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proOwned
}

// refreshEntitlement queries owned one-time products and rebuilds the
// entitlement flag. Query errors leave the flag untouched and are
// logged only.
func (s *BillingService) refreshEntitlement(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	purchases, err := s.client.QueryPurchases(ctx, domain.ProductTypeInApp)
	if err != nil {
		s.logger.Warn("entitlement query failed", slog.Any("error", err))
		return s.IsProOwned(), err
	}

	owned := false
	for _, purchase := range purchases {
		if purchase.ProductID == domain.ProductProUpgrade && purchase.State == domain.PurchasePurchased {
			owned = true
			break
		}
	}

	s.setProOwned(owned)
	return owned, nil
}

// setProOwned updates the entitlement flag and publishes a change event
// when the value flips.
func (s *BillingService) setProOwned(owned bool) {
	s.mu.Lock()
	changed := s.proOwned != owned
	s.proOwned = owned
	s.mu.Unlock()

	if changed {
		s.logger.Info("entitlement changed", slog.Bool("pro_owned", owned))
		s.bus.Publish(domain.NewEntitlementChangedEvent(owned))
	}
}

// Purchase fetches Pro product metadata and launches the store checkout
// flow. The purchase result arrives later through the purchase update
// handler, never as a return value of this call — callers must not
// assume synchronous success.
func (s *BillingService) Purchase(ctx context.Context) error {
	if s.ConnectionState() != domain.ConnectionReady {
		s.logger.Warn("purchase requested before store ready")
		return domain.ErrBillingNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	product, err := s.client.QueryProduct(ctx, domain.ProductProUpgrade)
	if err != nil {
		s.logger.Warn("pro product metadata unavailable", slog.Any("error", err))
		return domain.NewServiceError("BillingService", "Purchase", "product metadata unavailable", err)
	}

	s.logger.Debug("launching checkout",
		slog.String("product_id", product.ID),
		slog.String("price", product.Price))

	if err := s.client.LaunchCheckout(ctx, s.host, *product); err != nil {
		s.logger.Warn("failed to launch checkout", slog.Any("error", err))
		return domain.NewServiceError("BillingService", "Purchase", "failed to launch checkout", err)
	}

	return nil
}

// handlePurchaseUpdate processes purchase updates pushed by the store.
func (s *BillingService) handlePurchaseUpdate(purchases []domain.Purchase, code domain.BillingResponseCode) {
	switch code {
	case domain.BillingOK:
		for _, purchase := range purchases {
			s.handlePurchase(purchase)
		}

	case domain.BillingUserCancelled:
		// Normal outcome, nothing to surface
		s.logger.Debug("purchase flow cancelled by user")

	case domain.BillingItemAlreadyOwned:
		s.logger.Info("product already owned, re-syncing entitlement")
		_, _ = s.refreshEntitlement(context.Background())

	default:
		s.logger.Warn("purchase update failed", slog.String("code", code.String()))
	}
}

// handlePurchase acknowledges and applies a single purchase record.
func (s *BillingService) handlePurchase(purchase domain.Purchase) {
	if purchase.State != domain.PurchasePurchased {
		s.logger.Debug("ignoring purchase update",
			slog.String("order_id", purchase.OrderID),
			slog.String("state", purchase.State.String()))
		return
	}

	if !purchase.Acknowledged {
		// The store auto-refunds unacknowledged purchases, so this must
		// happen promptly. Entitlement does not depend on the outcome.
		ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
		if err := s.client.Acknowledge(ctx, purchase.Token); err != nil {
			s.logger.Warn("acknowledgment failed", slog.Any("error", err))
		}
		cancel()
	}

	if purchase.ProductID != domain.ProductProUpgrade {
		return
	}

	s.setProOwned(true)
	s.bus.Publish(domain.NewPurchaseCompletedEvent(purchase))
}

// Restore re-queries owned purchases and returns the resulting
// entitlement flag directly to the caller. No timed side-read of shared
// state: the caller gets the query result as a one-shot completion.
func (s *BillingService) Restore(ctx context.Context) (bool, error) {
	s.logger.Info("restoring purchases")

	owned, err := s.refreshEntitlement(ctx)
	s.bus.Publish(domain.NewRestoreCompletedEvent(owned))
	return owned, err
}

// Shutdown ends the store connection if active. Idempotent — safe to
// call when already disconnected.
func (s *BillingService) Shutdown() error {
	s.mu.Lock()
	active := s.state != domain.ConnectionDisconnected
	s.state = domain.ConnectionDisconnected
	s.mu.Unlock()

	// Wait for in-flight entitlement queries before tearing down
	s.wg.Wait()

	if active {
		s.client.EndConnection()
	}

	return nil
}

// Verify that BillingService implements the ConnectionListener interface
var _ ports.ConnectionListener = (*BillingService)(nil)
