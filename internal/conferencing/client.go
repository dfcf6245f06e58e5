// Package conferencing talks to the video-conferencing provider on behalf of
// a configured account and keeps a local mirror of the sessions it creates.
package conferencing

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	confErrors "meetly/internal/conferencing/errors"
	"meetly/pkg/client"
	"meetly/pkg/config"
	"meetly/pkg/logger"
	"meetly/pkg/metrics"
	"meetly/pkg/model"
)

// Client is the provider REST client. Every call authenticates with the
// account's client credentials and retries once on 401 with a fresh token.
type Client struct {
	api      *client.HttpClient
	authURL  string
	tokens   *TokenCache
	timezone string
	log      *logger.Logger
	metrics  metrics.Recorder
}

func NewClient(cfg *config.Config, rec metrics.Recorder) *Client {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Client{
		api:      client.NewHttpClient(cfg.ConferencingAPIURL, cfg.ConferencingTimeout),
		authURL:  cfg.ConferencingAuthURL,
		tokens:   NewTokenCache(cfg.ConferencingTokenCacheSize, cfg.ConferencingTokenTTL, cfg.ConferencingTimeout),
		timezone: cfg.ConferencingTimezone,
		log:      cfg.Log.WithComponent("conferencing"),
		metrics:  rec,
	}
}

func (c *Client) Timezone() string {
	return c.timezone
}

// Authenticate forces a token refresh for the account.
func (c *Client) Authenticate(ctx context.Context, account *model.ConferencingAccount) error {
	_, err := c.token(ctx, account, true)
	return err
}

func (c *Client) token(ctx context.Context, account *model.ConferencingAccount, force bool) (string, error) {
	if account == nil || account.ClientID == "" || account.ClientSecret == "" || account.ProviderAccountID == "" {
		return "", confErrors.ErrCredentialsMissing
	}
	return c.tokens.Token(ctx, account.ProviderAccountID, force, func(ctx context.Context) (string, error) {
		return c.fetchToken(ctx, account)
	})
}

func (c *Client) fetchToken(ctx context.Context, account *model.ConferencingAccount) (string, error) {
	form := url.Values{
		"grant_type": {"account_credentials"},
		"account_id": {account.ProviderAccountID},
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(account.ClientID + ":" + account.ClientSecret))

	resp, err := c.api.POSTForm(ctx, c.authURL, form.Encode(), map[string]string{
		"Authorization": "Basic " + credentials,
	})
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", &confErrors.RemoteError{Operation: "authenticate", StatusCode: resp.StatusCode, Message: client.ErrorMessage(resp)}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	c.metrics.Count(metrics.ProviderTokenRefresh, map[string]string{"account": account.ID})
	c.log.Debug("Conferencing token refreshed", "account_id", account.ID, "expires_in", body.ExpiresIn)
	return body.AccessToken, nil
}

// do sends an authenticated request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, account *model.ConferencingAccount, operation, method, path string, body, out any) error {
	send := func(force bool) (*client.Response, error) {
		token, err := c.token(ctx, account, force)
		if err != nil {
			return nil, err
		}
		headers := map[string]string{"Authorization": "Bearer " + token}
		switch method {
		case http.MethodPost:
			return c.api.POST(ctx, path, body, headers)
		case http.MethodPatch:
			return c.api.PATCH(ctx, path, body, headers)
		case http.MethodDelete:
			return c.api.DELETE(ctx, path, headers)
		default:
			return c.api.GET(ctx, path, headers)
		}
	}

	start := time.Now()
	resp, err := send(false)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		c.log.Info("Conferencing token rejected, refreshing", "operation", operation, "account_id", account.ID)
		resp, err = send(true)
	}
	if err != nil {
		c.metrics.Count(metrics.ProviderRequestFailed, map[string]string{"operation": operation})
		return fmt.Errorf("%s: %w", operation, err)
	}
	if !resp.IsSuccess() {
		c.metrics.Count(metrics.ProviderRequestFailed, map[string]string{"operation": operation})
		c.log.Warn("Conferencing request failed",
			"operation", operation,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return &confErrors.RemoteError{Operation: operation, StatusCode: resp.StatusCode, Message: client.ErrorMessage(resp)}
	}

	if out != nil && len(resp.Body) > 0 {
		if err := resp.DecodeJSON(out); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", operation, err)
		}
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, account *model.ConferencingAccount, params SessionParams) (*RemoteSession, error) {
	var session RemoteSession
	if err := c.do(ctx, account, "create session", http.MethodPost, "/users/me/meetings", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) UpdateSession(ctx context.Context, account *model.ConferencingAccount, remoteID string, params SessionParams) error {
	return c.do(ctx, account, "update session", http.MethodPatch, "/meetings/"+url.PathEscape(remoteID), params, nil)
}

func (c *Client) DeleteSession(ctx context.Context, account *model.ConferencingAccount, remoteID string) error {
	return c.do(ctx, account, "delete session", http.MethodDelete, "/meetings/"+url.PathEscape(remoteID), nil, nil)
}

func (c *Client) GetSession(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*RemoteSession, error) {
	var session RemoteSession
	if err := c.do(ctx, account, "get session", http.MethodGet, "/meetings/"+url.PathEscape(remoteID), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) ListSessions(ctx context.Context, account *model.ConferencingAccount) (*SessionList, error) {
	var list SessionList
	if err := c.do(ctx, account, "list sessions", http.MethodGet, "/users/me/meetings", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetSessionSummary looks a summary up by session UUID. UUIDs may contain
// '/' and '+', so the path segment is encoded twice.
func (c *Client) GetSessionSummary(ctx context.Context, account *model.ConferencingAccount, sessionUUID string) (*SessionSummary, error) {
	encoded := url.QueryEscape(url.QueryEscape(sessionUUID))
	var summary SessionSummary
	if err := c.do(ctx, account, "get session summary", http.MethodGet, "/meetings/"+encoded+"/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) GetPastSessionDetails(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*PastSessionDetails, error) {
	var details PastSessionDetails
	if err := c.do(ctx, account, "get past session", http.MethodGet, "/past_meetings/"+url.PathEscape(remoteID), nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) GetRecordings(ctx context.Context, account *model.ConferencingAccount, remoteID string) (*Recordings, error) {
	var recordings Recordings
	if err := c.do(ctx, account, "get recordings", http.MethodGet, "/meetings/"+url.PathEscape(remoteID)+"/recordings", nil, &recordings); err != nil {
		return nil, err
	}
	return &recordings, nil
}
