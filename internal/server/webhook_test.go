package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/groupsync/internal/config"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSyncService struct {
	result syncdomain.ProcessingResult
	err    error
	events []syncdomain.CommerceEvent
}

func (s *stubSyncService) HandleCommerceEvent(ctx context.Context, event syncdomain.CommerceEvent) (syncdomain.ProcessingResult, error) {
	s.events = append(s.events, event)
	return s.result, s.err
}

func setupServer(t *testing.T, svc syncdomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	srv := &Server{
		engine: engine,
		cfg: config.Config{
			WebhookSecrets: map[string]string{"edd": "shh"},
		},
		log:     zap.NewNop(),
		syncSvc: svc,
	}
	srv.RegisterRoutes()
	return engine
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(engine *gin.Engine, source string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+source, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcceptsSignedDelivery(t *testing.T) {
	svc := &stubSyncService{result: syncdomain.ProcessingResult{CommandsApplied: 2}}
	engine := setupServer(t, svc)

	body := []byte(`{"id":"evt-1","type":"purchase.completed","product_id":"prod-a","payment_id":"pay-1"}`)
	rec := postWebhook(engine, "edd", body, map[string]string{
		signatureHeader: sign("shh", body),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var result syncdomain.ProcessingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 2, result.CommandsApplied)

	require.Len(t, svc.events, 1)
	event := svc.events[0]
	require.Equal(t, syncdomain.EventPurchaseCompleted, event.Type)
	require.Equal(t, "edd", event.Source)
	require.Equal(t, "evt-1", event.DeliveryID)
	require.Equal(t, "pay-1", event.PaymentID)
}

func TestWebhookPrefersDeliveryHeader(t *testing.T) {
	svc := &stubSyncService{}
	engine := setupServer(t, svc)

	body := []byte(`{"id":"evt-1","type":"license.revoked","license_id":"lic-1"}`)
	rec := postWebhook(engine, "edd", body, map[string]string{
		signatureHeader: sign("shh", body),
		"X-Delivery-Id": "dlv-77",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	require.Equal(t, "dlv-77", svc.events[0].DeliveryID)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubSyncService{}
	engine := setupServer(t, svc)

	body := []byte(`{"type":"purchase.completed","payment_id":"pay-1"}`)
	rec := postWebhook(engine, "edd", body, map[string]string{
		signatureHeader: sign("wrong-secret", body),
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, svc.events)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubSyncService{}
	engine := setupServer(t, svc)

	rec := postWebhook(engine, "edd", []byte(`{}`), nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsUnconfiguredSource(t *testing.T) {
	svc := &stubSyncService{}
	engine := setupServer(t, svc)

	body := []byte(`{"type":"purchase.completed","payment_id":"pay-1"}`)
	rec := postWebhook(engine, "shopify", body, map[string]string{
		signatureHeader: sign("shh", body),
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, svc.events)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	svc := &stubSyncService{}
	engine := setupServer(t, svc)

	body := []byte(`{"type": `)
	rec := postWebhook(engine, "edd", body, map[string]string{
		signatureHeader: sign("shh", body),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookMapsEventErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		code int
	}{
		{"invalid event", syncdomain.ErrInvalidEvent, http.StatusBadRequest},
		{"unknown type", syncdomain.ErrUnknownEventType, http.StatusBadRequest},
		{"pipeline failure", context.DeadlineExceeded, http.StatusInternalServerError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			engine := setupServer(t, &stubSyncService{err: tc.err})

			body := []byte(`{"type":"purchase.completed","payment_id":"pay-1"}`)
			rec := postWebhook(engine, "edd", body, map[string]string{
				signatureHeader: sign("shh", body),
			})
			require.Equal(t, tc.code, rec.Code)
		})
	}
}
