// Package edd adapts an Easy Digital Downloads style commerce API to the
// read-only provider interface consumed by the sync pipeline.
package edd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/groupsync/internal/commerce/domain"
	"github.com/smallbiznis/groupsync/internal/config"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	key     string
	token   string
	policy  *config.SyncPolicyHolder
	client  *http.Client
	log     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(cfg config.Config, policy *config.SyncPolicyHolder, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.CommerceBaseURL, "/"),
		key:     cfg.CommerceAPIKey,
		token:   cfg.CommerceAPIToken,
		policy:  policy,
		client:  &http.Client{},
		log:     log.Named("commerce.edd"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	var out domain.Payment
	if err := c.get(ctx, "/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return domain.Payment{}, err
	}
	return out, nil
}

func (c *Client) GetLicense(ctx context.Context, licenseID string) (domain.License, error) {
	var out domain.License
	if err := c.get(ctx, "/licenses/"+url.PathEscape(licenseID), nil, &out); err != nil {
		return domain.License{}, err
	}
	return out, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (domain.Subscription, error) {
	var out domain.Subscription
	if err := c.get(ctx, "/subscriptions/"+url.PathEscape(subscriptionID), nil, &out); err != nil {
		return domain.Subscription{}, err
	}
	return out, nil
}

func (c *Client) GetProductGroupRules(ctx context.Context, productID string) ([]domain.GroupRule, error) {
	var out struct {
		Rules []domain.GroupRule `json:"rules"`
	}
	err := c.get(ctx, "/products/"+url.PathEscape(productID)+"/group-rules", nil, &out)
	if err != nil {
		// Products without group metadata are expected.
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out.Rules, nil
}

func (c *Client) ListLicensesByEmail(ctx context.Context, email string) ([]domain.License, error) {
	var out struct {
		Licenses []domain.License `json:"licenses"`
	}
	query := url.Values{}
	query.Set("email", email)
	if err := c.get(ctx, "/licenses", query, &out); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return out.Licenses, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.baseURL == "" {
		return domain.ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.policy.Get().RequestTimeout)
	defer cancel()

	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.key)
	query.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", domain.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		var apiErr errorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			c.log.Warn("commerce api error",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("error", apiErr.Error),
			)
		}
		return fmt.Errorf("%w: status %d", domain.ErrInvalidPayload, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
