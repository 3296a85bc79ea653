// Package domain holds read-only views of the commerce system's entities.
// The commerce system owns payments, licenses, subscriptions, and per-product
// group rules; this service never mutates them.
package domain

import "errors"

// LineItem is one purchased product on a payment.
type LineItem struct {
	ProductID string `json:"product_id"`
}

// Payment is a completed checkout. A payment without a UserID is a guest
// purchase and never produces membership changes.
type Payment struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	Items  []LineItem `json:"items"`
}

func (p Payment) IsGuest() bool { return p.UserID == "" }

// License grants a user access to a single product.
type License struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Status    string `json:"status"`
}

// Subscription references the payment that originated it. The product set of
// a subscription is the line-item set of that payment.
type Subscription struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
}

// RuleAction is what a group rule does to a membership.
type RuleAction string

const (
	RuleActionAdd    RuleAction = "add"
	RuleActionRemove RuleAction = "remove"
)

// GroupRule maps a product to one discussion-group membership action.
// Rules are configured per product and their order is significant: when two
// rules target the same group, the later rule wins at application time.
type GroupRule struct {
	GroupID string     `json:"group_id"`
	Action  RuleAction `json:"action"`
}

var (
	ErrNotFound       = errors.New("commerce_entity_not_found")
	ErrUnavailable    = errors.New("commerce_unavailable")
	ErrInvalidPayload = errors.New("commerce_invalid_payload")
)
