package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"go.uber.org/zap"
)

const signatureHeader = "X-Webhook-Signature"

type webhookPayload struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	ProductID      string `json:"product_id"`
	PaymentID      string `json:"payment_id"`
	LicenseID      string `json:"license_id"`
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
}

// HandleCommerceWebhook verifies, decodes, and processes one commerce event
// delivery. Partial command failures still return 200: delivery semantics
// belong to the source, and the result body carries the per-command outcome.
func (s *Server) HandleCommerceWebhook(c *gin.Context) {
	source := strings.ToLower(strings.TrimSpace(c.Param("source")))

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !s.verifySignature(source, body, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	deliveryID := strings.TrimSpace(c.GetHeader("X-Delivery-Id"))
	if deliveryID == "" {
		deliveryID = payload.ID
	}

	event := syncdomain.CommerceEvent{
		Type:           syncdomain.EventType(payload.Type),
		Source:         source,
		DeliveryID:     deliveryID,
		ProductID:      payload.ProductID,
		PaymentID:      payload.PaymentID,
		LicenseID:      payload.LicenseID,
		SubscriptionID: payload.SubscriptionID,
		UserID:         payload.UserID,
		Email:          payload.Email,
	}

	result, err := s.syncSvc.HandleCommerceEvent(c.Request.Context(), event)
	if err != nil {
		if errors.Is(err, syncdomain.ErrInvalidEvent) || errors.Is(err, syncdomain.ErrUnknownEventType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("event processing failed",
			zap.String("source", source),
			zap.String("event_type", payload.Type),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// verifySignature checks the HMAC-SHA256 of the raw body against the
// source's configured secret. Sources without a configured secret are
// rejected outright.
func (s *Server) verifySignature(source string, body []byte, header string) bool {
	secret, ok := s.cfg.WebhookSecrets[source]
	if !ok || secret == "" {
		return false
	}

	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "sha256=")
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(header))
}
