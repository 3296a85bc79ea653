package domain

import "context"

// Provider is the read-only accessor surface the sync pipeline needs from the
// commerce system.
type Provider interface {
	GetPayment(ctx context.Context, paymentID string) (Payment, error)
	GetLicense(ctx context.Context, licenseID string) (License, error)
	GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
	// GetProductGroupRules returns the product's rules in configured order,
	// empty when none are configured.
	GetProductGroupRules(ctx context.Context, productID string) ([]GroupRule, error)
	// ListLicensesByEmail returns licenses whose original purchase was made
	// with the given email, used to backfill memberships when a past guest
	// purchaser registers an account.
	ListLicensesByEmail(ctx context.Context, email string) ([]License, error)
}
