// Package domain defines the event-resolution pipeline's types: inbound
// commerce lifecycle events, their canonical resolution requests, and the
// membership commands they expand into.
package domain

import (
	"errors"

	commercedomain "github.com/smallbiznis/groupsync/internal/commerce/domain"
)

// EventType identifies a commerce lifecycle transition.
type EventType string

const (
	EventPurchaseCompleted EventType = "purchase.completed"

	EventLicenseIssued  EventType = "license.issued"
	EventLicenseRevoked EventType = "license.revoked"
	EventLicenseDeleted EventType = "license.deleted"
	EventLicenseRenewed EventType = "license.renewed"

	EventSubscriptionDeleted   EventType = "subscription.deleted"
	EventSubscriptionRenewed   EventType = "subscription.renewed"
	EventSubscriptionExpired   EventType = "subscription.expired"
	EventSubscriptionCancelled EventType = "subscription.cancelled"

	// EventUserRegistered backfills group memberships from licenses bought
	// before the purchaser had an account.
	EventUserRegistered EventType = "user.registered"
)

// CommerceEvent is an inbound lifecycle event. Which identifier is
// authoritative depends on the event type.
type CommerceEvent struct {
	Type EventType `json:"type"`

	// Source names the delivering system and DeliveryID its delivery
	// identifier; together they deduplicate webhook redeliveries.
	Source     string `json:"source,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`

	ProductID      string    `json:"product_id,omitempty"`
	PaymentID      string    `json:"payment_id,omitempty"`
	LicenseID      string    `json:"license_id,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	Email          string    `json:"email,omitempty"`
}

// ResolutionRequest is the canonical form every event normalizes into.
// Exactly one of PaymentID, LicenseID, SubscriptionID, or Email is set.
type ResolutionRequest struct {
	ProductID      string
	PaymentID      string
	LicenseID      string
	SubscriptionID string

	// UserID and Email drive registration backfill resolution.
	UserID string
	Email  string

	// IncludeCart expands every line item on the payment, not just the
	// product named on the request. Set for completed purchases, where a
	// multi-item cart fires a single event.
	IncludeCart bool
}

// Entitlement is one resolved (product, user) pair eligible for group rules.
type Entitlement struct {
	ProductID string
	UserID    string
}

// MembershipCommand is the unit of work sent to the discussion platform.
type MembershipCommand struct {
	UserID  string                    `json:"user_id"`
	GroupID string                    `json:"group_id"`
	Action  commercedomain.RuleAction `json:"action"`
}

// FailureKind distinguishes skipped commands (permanently unprocessable
// targets) from commands that exhausted their transient retries.
type FailureKind string

const (
	FailureSkipped FailureKind = "skipped"
	FailureFailed  FailureKind = "failed"
)

type CommandFailure struct {
	Command MembershipCommand `json:"command"`
	Kind    FailureKind       `json:"kind"`
	Reason  string            `json:"reason"`
}

// ProcessingResult aggregates the outcome of one event's pipeline run.
type ProcessingResult struct {
	CommandsApplied int              `json:"commands_applied"`
	CommandsSkipped int              `json:"commands_skipped"`
	CommandsFailed  int              `json:"commands_failed"`
	Failures        []CommandFailure `json:"failures,omitempty"`

	// Duplicate marks a redelivered event that was already processed.
	Duplicate bool `json:"duplicate,omitempty"`
}

var (
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrUnknownEventType = errors.New("unknown_event_type")
)
