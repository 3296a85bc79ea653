package normalizer

import (
	"testing"

	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"github.com/stretchr/testify/require"
)

func TestNormalizePaymentKeyedVariants(t *testing.T) {
	n := New()

	req, err := n.Normalize(syncdomain.CommerceEvent{
		Type:      syncdomain.EventPurchaseCompleted,
		ProductID: "prod-1",
		PaymentID: "pay-1",
	})
	require.NoError(t, err)
	require.Equal(t, "prod-1", req.ProductID)
	require.Equal(t, "pay-1", req.PaymentID)
	require.True(t, req.IncludeCart, "completed purchases cover the whole cart")

	req, err = n.Normalize(syncdomain.CommerceEvent{
		Type:      syncdomain.EventLicenseIssued,
		ProductID: "prod-1",
		PaymentID: "pay-1",
	})
	require.NoError(t, err)
	require.Equal(t, "pay-1", req.PaymentID)
	require.False(t, req.IncludeCart, "license issuance targets a single product")
}

func TestNormalizeLicenseKeyedVariants(t *testing.T) {
	n := New()

	for _, eventType := range []syncdomain.EventType{
		syncdomain.EventLicenseRevoked,
		syncdomain.EventLicenseDeleted,
		syncdomain.EventLicenseRenewed,
	} {
		req, err := n.Normalize(syncdomain.CommerceEvent{Type: eventType, LicenseID: "lic-9"})
		require.NoError(t, err, string(eventType))
		require.Equal(t, "lic-9", req.LicenseID)
		require.Empty(t, req.PaymentID)
		require.Empty(t, req.SubscriptionID)
	}
}

func TestNormalizeSubscriptionKeyedVariants(t *testing.T) {
	n := New()

	for _, eventType := range []syncdomain.EventType{
		syncdomain.EventSubscriptionDeleted,
		syncdomain.EventSubscriptionRenewed,
		syncdomain.EventSubscriptionExpired,
		syncdomain.EventSubscriptionCancelled,
	} {
		req, err := n.Normalize(syncdomain.CommerceEvent{Type: eventType, SubscriptionID: "sub-4"})
		require.NoError(t, err, string(eventType))
		require.Equal(t, "sub-4", req.SubscriptionID)
	}
}

func TestNormalizeRegistration(t *testing.T) {
	n := New()

	req, err := n.Normalize(syncdomain.CommerceEvent{
		Type:   syncdomain.EventUserRegistered,
		UserID: "user-7",
		Email:  "buyer@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "user-7", req.UserID)
	require.Equal(t, "buyer@example.com", req.Email)
}

func TestNormalizeMissingIdentifiers(t *testing.T) {
	n := New()

	cases := []syncdomain.CommerceEvent{
		{Type: syncdomain.EventPurchaseCompleted, ProductID: "prod-1"},
		{Type: syncdomain.EventLicenseIssued},
		{Type: syncdomain.EventLicenseRevoked},
		{Type: syncdomain.EventSubscriptionExpired},
		{Type: syncdomain.EventUserRegistered, UserID: "user-7"},
	}
	for _, event := range cases {
		_, err := n.Normalize(event)
		require.ErrorIs(t, err, syncdomain.ErrInvalidEvent, string(event.Type))
	}
}

func TestNormalizeUnknownEventType(t *testing.T) {
	n := New()

	_, err := n.Normalize(syncdomain.CommerceEvent{Type: "refund.issued", PaymentID: "pay-1"})
	require.ErrorIs(t, err, syncdomain.ErrUnknownEventType)
}
