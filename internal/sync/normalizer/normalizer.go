// Package normalizer maps each commerce event variant onto the canonical
// resolution request consumed by the resolver. The mapping is a pure
// dispatch table built once at construction.
package normalizer

import (
	"fmt"
	"strings"

	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
)

type normalizeFunc func(syncdomain.CommerceEvent) (syncdomain.ResolutionRequest, error)

type Normalizer struct {
	table map[syncdomain.EventType]normalizeFunc
}

func New() *Normalizer {
	n := &Normalizer{}
	n.table = map[syncdomain.EventType]normalizeFunc{
		syncdomain.EventPurchaseCompleted: n.fromPurchase,
		syncdomain.EventLicenseIssued:     n.fromLicensePayment,

		syncdomain.EventLicenseRevoked: n.fromLicense,
		syncdomain.EventLicenseDeleted: n.fromLicense,
		syncdomain.EventLicenseRenewed: n.fromLicense,

		syncdomain.EventSubscriptionDeleted:   n.fromSubscription,
		syncdomain.EventSubscriptionRenewed:   n.fromSubscription,
		syncdomain.EventSubscriptionExpired:   n.fromSubscription,
		syncdomain.EventSubscriptionCancelled: n.fromSubscription,

		syncdomain.EventUserRegistered: n.fromRegistration,
	}
	return n
}

// Normalize produces the resolution request for one event.
func (n *Normalizer) Normalize(event syncdomain.CommerceEvent) (syncdomain.ResolutionRequest, error) {
	fn, ok := n.table[event.Type]
	if !ok {
		return syncdomain.ResolutionRequest{}, fmt.Errorf("%w: %q", syncdomain.ErrUnknownEventType, event.Type)
	}
	return fn(event)
}

func (n *Normalizer) fromPurchase(event syncdomain.CommerceEvent) (syncdomain.ResolutionRequest, error) {
	if strings.TrimSpace(event.PaymentID) == "" {
		return syncdomain.ResolutionRequest{}, fmt.Errorf("%w: %s requires payment_id", syncdomain.ErrInvalidEvent, event.Type)
	}
	return syncdomain.ResolutionRequest{
		ProductID:   event.ProductID,
		PaymentID:   event.PaymentID,
		IncludeCart: true,
	}, nil
}

func (n *Normalizer) fromLicensePayment(event syncdomain.CommerceEvent) (syncdomain.ResolutionRequest, error) {
	if strings.TrimSpace(event.PaymentID) == "" {
		return syncdomain.ResolutionRequest{}, fmt.Errorf("%w: %s requires payment_id", syncdomain.ErrInvalidEvent, event.Type)
	}
	return syncdomain.ResolutionRequest{
		ProductID: event.ProductID,
		PaymentID: event.PaymentID,
	}, nil
}

func (n *Normalizer) fromLicense(event syncdomain.CommerceEvent) (syncdomain.ResolutionRequest, error) {
	if strings.TrimSpace(event.LicenseID) == "" {
		return syncdomain.ResolutionRequest{}, fmt.Errorf("%w: %s requires license_id", syncdomain.ErrInvalidEvent, event.Type)
	}
	return syncdomain.ResolutionRequest{LicenseID: event.LicenseID}, nil
}

func (n *Normalizer) fromSubscription(event syncdomain.CommerceEvent) (syncdomain.ResolutionRequest, error) {
	if strings.TrimSpace(event.SubscriptionID) == "" {
		return syncdomain.ResolutionRequest{}, fmt.Errorf("%w: %s requires subscription_id", syncdomain.ErrInvalidEvent, event.Type)
	}
	return syncdomain.ResolutionRequest{SubscriptionID: event.SubscriptionID}, nil
}

func (n *Normalizer) fromRegistration(event syncdomain.CommerceEvent) (syncdomain.ResolutionRequest, error) {
	if strings.TrimSpace(event.UserID) == "" || strings.TrimSpace(event.Email) == "" {
		return syncdomain.ResolutionRequest{}, fmt.Errorf("%w: %s requires user_id and email", syncdomain.ErrInvalidEvent, event.Type)
	}
	return syncdomain.ResolutionRequest{UserID: event.UserID, Email: event.Email}, nil
}
