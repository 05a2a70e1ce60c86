// Package domain defines events for the event-driven architecture.
// Events replace the callback system and enable loose coupling between components.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventTrackLoaded    EventType = "track.loaded"
	EventTrackStarted   EventType = "track.started"
	EventTrackPaused    EventType = "track.paused"
	EventTrackStopped   EventType = "track.stopped"
	EventTrackCompleted EventType = "track.completed"
	EventTrackProgress  EventType = "track.progress"
	EventTrackError     EventType = "track.error"

	// Volume events
	EventVolumeChanged EventType = "volume.changed"
	EventMuteToggled   EventType = "mute.toggled"

	// Playback mode events
	EventLoopToggled EventType = "loop.toggled"
	EventRateChanged EventType = "rate.changed"

	// Billing events
	EventBillingReady        EventType = "billing.ready"
	EventBillingDisconnected EventType = "billing.disconnected"
	EventEntitlementChanged  EventType = "billing.entitlement_changed"
	EventPurchaseCompleted   EventType = "billing.purchase_completed"
	EventRestoreCompleted    EventType = "billing.restore_completed"

	// Cast server events
	EventCastStarted EventType = "cast.started"
	EventCastStopped EventType = "cast.stopped"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackLoadedEvent is published when a track is successfully loaded.
type TrackLoadedEvent struct {
	baseEvent
	Track    MusicTrack
	Handle   TrackHandle
	Duration time.Duration
}

// Type returns the event type.
func (e TrackLoadedEvent) Type() EventType {
	return EventTrackLoaded
}

// NewTrackLoadedEvent creates a new TrackLoadedEvent.
func NewTrackLoadedEvent(track MusicTrack, handle TrackHandle, duration time.Duration) TrackLoadedEvent {
	return TrackLoadedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Handle:    handle,
		Duration:  duration,
	}
}

// TrackStartedEvent is published when playback starts.
type TrackStartedEvent struct {
	baseEvent
	Track MusicTrack
}

// Type returns the event type.
func (e TrackStartedEvent) Type() EventType {
	return EventTrackStarted
}

// NewTrackStartedEvent creates a new TrackStartedEvent.
func NewTrackStartedEvent(track MusicTrack) TrackStartedEvent {
	return TrackStartedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// TrackPausedEvent is published when playback is paused.
type TrackPausedEvent struct {
	baseEvent
	Track    MusicTrack
	Position time.Duration
}

// Type returns the event type.
func (e TrackPausedEvent) Type() EventType {
	return EventTrackPaused
}

// NewTrackPausedEvent creates a new TrackPausedEvent.
func NewTrackPausedEvent(track MusicTrack, position time.Duration) TrackPausedEvent {
	return TrackPausedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Position:  position,
	}
}

// TrackStoppedEvent is published when playback is stopped.
type TrackStoppedEvent struct {
	baseEvent
	Track MusicTrack
}

// Type returns the event type.
func (e TrackStoppedEvent) Type() EventType {
	return EventTrackStopped
}

// NewTrackStoppedEvent creates a new TrackStoppedEvent.
func NewTrackStoppedEvent(track MusicTrack) TrackStoppedEvent {
	return TrackStoppedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// TrackCompletedEvent is published when a track finishes playing naturally.
type TrackCompletedEvent struct {
	baseEvent
	Track MusicTrack
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType {
	return EventTrackCompleted
}

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(track MusicTrack) TrackCompletedEvent {
	return TrackCompletedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// TrackProgressEvent is published periodically during playback.
type TrackProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e TrackProgressEvent) Type() EventType {
	return EventTrackProgress
}

// NewTrackProgressEvent creates a new TrackProgressEvent.
func NewTrackProgressEvent(position, duration time.Duration) TrackProgressEvent {
	return TrackProgressEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// TrackErrorEvent is published when an error occurs with a track.
type TrackErrorEvent struct {
	baseEvent
	Track MusicTrack
	Error error
}

// Type returns the event type.
func (e TrackErrorEvent) Type() EventType {
	return EventTrackError
}

// NewTrackErrorEvent creates a new TrackErrorEvent.
func NewTrackErrorEvent(track MusicTrack, err error) TrackErrorEvent {
	return TrackErrorEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Error:     err,
	}
}

// VolumeChangedEvent is published when the volume changes.
type VolumeChangedEvent struct {
	baseEvent
	Volume float64 // 0.0 to 1.0
}

// Type returns the event type.
func (e VolumeChangedEvent) Type() EventType {
	return EventVolumeChanged
}

// NewVolumeChangedEvent creates a new VolumeChangedEvent.
func NewVolumeChangedEvent(volume float64) VolumeChangedEvent {
	return VolumeChangedEvent{
		baseEvent: newBaseEvent(),
		Volume:    volume,
	}
}

// MuteToggledEvent is published when mute is toggled.
type MuteToggledEvent struct {
	baseEvent
	Muted bool
}

// Type returns the event type.
func (e MuteToggledEvent) Type() EventType {
	return EventMuteToggled
}

// NewMuteToggledEvent creates a new MuteToggledEvent.
func NewMuteToggledEvent(muted bool) MuteToggledEvent {
	return MuteToggledEvent{
		baseEvent: newBaseEvent(),
		Muted:     muted,
	}
}

// LoopToggledEvent is published when loop mode is toggled.
type LoopToggledEvent struct {
	baseEvent
	Enabled bool
}

// Type returns the event type.
func (e LoopToggledEvent) Type() EventType {
	return EventLoopToggled
}

// NewLoopToggledEvent creates a new LoopToggledEvent.
func NewLoopToggledEvent(enabled bool) LoopToggledEvent {
	return LoopToggledEvent{
		baseEvent: newBaseEvent(),
		Enabled:   enabled,
	}
}

// RateChangedEvent is published when the playback rate changes.
type RateChangedEvent struct {
	baseEvent
	Rate float64 // Multiplier, 1.0 is normal speed
}

// Type returns the event type.
func (e RateChangedEvent) Type() EventType {
	return EventRateChanged
}

// NewRateChangedEvent creates a new RateChangedEvent.
func NewRateChangedEvent(rate float64) RateChangedEvent {
	return RateChangedEvent{
		baseEvent: newBaseEvent(),
		Rate:      rate,
	}
}

// BillingReadyEvent is published exactly once per successful store
// connection setup, after the coordinator transitions to ready.
type BillingReadyEvent struct {
	baseEvent
}

// Type returns the event type.
func (e BillingReadyEvent) Type() EventType {
	return EventBillingReady
}

// NewBillingReadyEvent creates a new BillingReadyEvent.
func NewBillingReadyEvent() BillingReadyEvent {
	return BillingReadyEvent{baseEvent: newBaseEvent()}
}

// BillingDisconnectedEvent is published when the store connection drops.
// Reconnection is owned by the store client, not the coordinator.
type BillingDisconnectedEvent struct {
	baseEvent
}

// Type returns the event type.
func (e BillingDisconnectedEvent) Type() EventType {
	return EventBillingDisconnected
}

// NewBillingDisconnectedEvent creates a new BillingDisconnectedEvent.
func NewBillingDisconnectedEvent() BillingDisconnectedEvent {
	return BillingDisconnectedEvent{baseEvent: newBaseEvent()}
}

// EntitlementChangedEvent is published when the Pro entitlement flag flips.
type EntitlementChangedEvent struct {
	baseEvent
	Owned bool
}

// Type returns the event type.
func (e EntitlementChangedEvent) Type() EventType {
	return EventEntitlementChanged
}

// NewEntitlementChangedEvent creates a new EntitlementChangedEvent.
func NewEntitlementChangedEvent(owned bool) EntitlementChangedEvent {
	return EntitlementChangedEvent{
		baseEvent: newBaseEvent(),
		Owned:     owned,
	}
}

// PurchaseCompletedEvent is published when a Pro purchase finishes and
// the user should see a confirmation.
type PurchaseCompletedEvent struct {
	baseEvent
	Purchase Purchase
}

// Type returns the event type.
func (e PurchaseCompletedEvent) Type() EventType {
	return EventPurchaseCompleted
}

// NewPurchaseCompletedEvent creates a new PurchaseCompletedEvent.
func NewPurchaseCompletedEvent(purchase Purchase) PurchaseCompletedEvent {
	return PurchaseCompletedEvent{
		baseEvent: newBaseEvent(),
		Purchase:  purchase,
	}
}

// RestoreCompletedEvent is published when a restore-purchases request
// finishes, carrying the resulting entitlement flag.
type RestoreCompletedEvent struct {
	baseEvent
	Owned bool
}

// Type returns the event type.
func (e RestoreCompletedEvent) Type() EventType {
	return EventRestoreCompleted
}

// NewRestoreCompletedEvent creates a new RestoreCompletedEvent.
func NewRestoreCompletedEvent(owned bool) RestoreCompletedEvent {
	return RestoreCompletedEvent{
		baseEvent: newBaseEvent(),
		Owned:     owned,
	}
}

// CastStartedEvent is published when the cast server starts listening.
type CastStartedEvent struct {
	baseEvent
	Addr string
	Port int
}

// Type returns the event type.
func (e CastStartedEvent) Type() EventType {
	return EventCastStarted
}

// NewCastStartedEvent creates a new CastStartedEvent.
func NewCastStartedEvent(addr string, port int) CastStartedEvent {
	return CastStartedEvent{
		baseEvent: newBaseEvent(),
		Addr:      addr,
		Port:      port,
	}
}

// CastStoppedEvent is published when the cast server shuts down.
type CastStoppedEvent struct {
	baseEvent
	Reason string
}

// Type returns the event type.
func (e CastStoppedEvent) Type() EventType {
	return EventCastStopped
}

// NewCastStoppedEvent creates a new CastStoppedEvent.
func NewCastStoppedEvent(reason string) CastStoppedEvent {
	return CastStoppedEvent{
		baseEvent: newBaseEvent(),
		Reason:    reason,
	}
}
