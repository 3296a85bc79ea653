// Package resolver turns a resolution request into the concrete set of
// (product, user) entitlements affected by the originating event.
package resolver

import (
	"context"
	"errors"

	commercedomain "github.com/smallbiznis/groupsync/internal/commerce/domain"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"go.uber.org/zap"
)

type Resolver struct {
	commerce commercedomain.Provider
	log      *zap.Logger
}

func New(commerce commercedomain.Provider, log *zap.Logger) *Resolver {
	return &Resolver{
		commerce: commerce,
		log:      log.Named("sync.resolver"),
	}
}

// Resolve fetches the entities behind the request and returns the affected
// entitlements. Absent upstream entities and guest payments resolve to an
// empty set, never an error: a subscription already deleted upstream, or a
// checkout without an account, are expected and must not abort the event.
func (r *Resolver) Resolve(ctx context.Context, req syncdomain.ResolutionRequest) ([]syncdomain.Entitlement, error) {
	switch {
	case req.PaymentID != "":
		return r.resolvePayment(ctx, req)
	case req.LicenseID != "":
		return r.resolveLicense(ctx, req)
	case req.SubscriptionID != "":
		return r.resolveSubscription(ctx, req)
	case req.Email != "":
		return r.resolveRegistration(ctx, req)
	default:
		return nil, syncdomain.ErrInvalidEvent
	}
}

func (r *Resolver) resolvePayment(ctx context.Context, req syncdomain.ResolutionRequest) ([]syncdomain.Entitlement, error) {
	payment, err := r.commerce.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return r.skipAbsent(err, "payment", req.PaymentID)
	}
	if payment.IsGuest() {
		r.log.Debug("guest payment, nothing to sync", zap.String("payment_id", payment.ID))
		return nil, nil
	}

	if !req.IncludeCart {
		if req.ProductID == "" {
			return nil, nil
		}
		return []syncdomain.Entitlement{{ProductID: req.ProductID, UserID: payment.UserID}}, nil
	}

	// A completed purchase covers the whole cart. Every line item is
	// independently eligible for group rules; the product named on the
	// event is prepended if the cart somehow omits it.
	pairs := make([]syncdomain.Entitlement, 0, len(payment.Items)+1)
	named := false
	for _, item := range payment.Items {
		if item.ProductID == "" {
			continue
		}
		if item.ProductID == req.ProductID {
			named = true
		}
		pairs = append(pairs, syncdomain.Entitlement{ProductID: item.ProductID, UserID: payment.UserID})
	}
	if req.ProductID != "" && !named {
		pairs = append([]syncdomain.Entitlement{{ProductID: req.ProductID, UserID: payment.UserID}}, pairs...)
	}
	return pairs, nil
}

func (r *Resolver) resolveLicense(ctx context.Context, req syncdomain.ResolutionRequest) ([]syncdomain.Entitlement, error) {
	license, err := r.commerce.GetLicense(ctx, req.LicenseID)
	if err != nil {
		return r.skipAbsent(err, "license", req.LicenseID)
	}
	if license.UserID == "" || license.ProductID == "" {
		return nil, nil
	}
	return []syncdomain.Entitlement{{ProductID: license.ProductID, UserID: license.UserID}}, nil
}

func (r *Resolver) resolveSubscription(ctx context.Context, req syncdomain.ResolutionRequest) ([]syncdomain.Entitlement, error) {
	subscription, err := r.commerce.GetSubscription(ctx, req.SubscriptionID)
	if err != nil {
		return r.skipAbsent(err, "subscription", req.SubscriptionID)
	}
	if subscription.PaymentID == "" {
		return nil, nil
	}

	payment, err := r.commerce.GetPayment(ctx, subscription.PaymentID)
	if err != nil {
		return r.skipAbsent(err, "payment", subscription.PaymentID)
	}
	if payment.IsGuest() {
		return nil, nil
	}

	pairs := make([]syncdomain.Entitlement, 0, len(payment.Items))
	for _, item := range payment.Items {
		if item.ProductID == "" {
			continue
		}
		pairs = append(pairs, syncdomain.Entitlement{ProductID: item.ProductID, UserID: payment.UserID})
	}
	return pairs, nil
}

// resolveRegistration backfills entitlements for a freshly registered user
// from licenses originally bought as a guest with the same email.
func (r *Resolver) resolveRegistration(ctx context.Context, req syncdomain.ResolutionRequest) ([]syncdomain.Entitlement, error) {
	licenses, err := r.commerce.ListLicensesByEmail(ctx, req.Email)
	if err != nil {
		return r.skipAbsent(err, "licenses", req.Email)
	}

	pairs := make([]syncdomain.Entitlement, 0, len(licenses))
	for _, license := range licenses {
		if license.ProductID == "" {
			continue
		}
		pairs = append(pairs, syncdomain.Entitlement{ProductID: license.ProductID, UserID: req.UserID})
	}
	return pairs, nil
}

func (r *Resolver) skipAbsent(err error, entity, id string) ([]syncdomain.Entitlement, error) {
	if errors.Is(err, commercedomain.ErrNotFound) {
		r.log.Debug("upstream entity absent, skipping",
			zap.String("entity", entity),
			zap.String("id", id),
		)
		return nil, nil
	}
	return nil, err
}
