// Package discourse implements the membership interface against the
// Discourse admin API.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/groupsync/internal/config"
	"github.com/smallbiznis/groupsync/internal/platform/domain"
	"go.uber.org/zap"
)

type Client struct {
	baseURL     string
	apiKey      string
	apiUsername string
	policy      *config.SyncPolicyHolder
	client      *http.Client
	log         *zap.Logger
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(cfg config.Config, policy *config.SyncPolicyHolder, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(cfg.DiscourseBaseURL, "/"),
		apiKey:      cfg.DiscourseAPIKey,
		apiUsername: cfg.DiscourseAPIUsername,
		policy:      policy,
		client:      &http.Client{},
		log:         log.Named("platform.discourse"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type membersPayload struct {
	UserIDs string `json:"user_ids"`
}

type errorsResponse struct {
	Errors    []string `json:"errors"`
	ErrorType string   `json:"error_type"`
}

func (c *Client) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	return c.changeMembers(ctx, http.MethodPut, userID, groupID)
}

func (c *Client) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	return c.changeMembers(ctx, http.MethodDelete, userID, groupID)
}

func (c *Client) changeMembers(ctx context.Context, method, userID, groupID string) error {
	if c.baseURL == "" {
		return fmt.Errorf("discourse base url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.policy.Get().RequestTimeout)
	defer cancel()

	body, err := json.Marshal(membersPayload{UserIDs: userID})
	if err != nil {
		return err
	}

	path := fmt.Sprintf("%s/admin/groups/%s/members.json", c.baseURL, url.PathEscape(groupID))
	req, err := http.NewRequestWithContext(ctx, method, path, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Api-Username", c.apiUsername)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("discourse request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("discourse response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return domain.ErrGroupNotFound
	case http.StatusUnprocessableEntity:
		return c.classifyUnprocessable(method, raw)
	default:
		return fmt.Errorf("discourse status %d", resp.StatusCode)
	}
}

// classifyUnprocessable maps Discourse 422 bodies. Already-a-member and
// not-a-member responses are idempotent successes; unknown users are
// permanent skips.
func (c *Client) classifyUnprocessable(method string, raw []byte) error {
	var parsed errorsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("discourse status %d", http.StatusUnprocessableEntity)
	}

	joined := strings.ToLower(strings.Join(parsed.Errors, "; "))
	switch {
	case strings.Contains(joined, "already a member"):
		return nil
	case method == http.MethodDelete && strings.Contains(joined, "not a member"):
		return nil
	case strings.Contains(joined, "user") && strings.Contains(joined, "not found"),
		parsed.ErrorType == "not_found":
		return domain.ErrUserNotFound
	default:
		c.log.Warn("discourse rejected membership change", zap.Strings("errors", parsed.Errors))
		return fmt.Errorf("discourse rejected change: %s", joined)
	}
}
