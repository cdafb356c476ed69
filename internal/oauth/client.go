package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ss14tools/verilink/internal/metrics"
)

const defaultTimeout = 10 * time.Second

// Client performs the server-to-server provider calls: code exchange,
// userinfo fetch and token revocation. Safe for concurrent use; one Client
// is shared across all Authenticator instances.
type Client struct {
	http *http.Client
	sf   singleflight.Group
}

// NewClient creates a provider HTTP client with a bounded timeout.
// timeout <= 0 selects the 10s default; an unbounded outbound call would
// pin the inbound request forever.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTP wraps an existing *http.Client. Used by tests to inject
// a spy transport.
func NewClientWithHTTP(h *http.Client) *Client {
	return &Client{http: h}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

// Exchange swaps an authorization code for an access token.
// Provider-reported OAuth errors come back as *ProviderError; anything
// wrong with the call itself as *TransportError.
func (c *Client) Exchange(ctx context.Context, p Provider, code, redirectURI string) (string, error) {
	metrics.OAuthOutbound.WithLabelValues(p.Name, "token").Inc()

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TransportError{Op: "token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &TransportError{Op: "token", Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.Error != "" {
		return "", &ProviderError{Code: tr.Error, Description: tr.ErrorDesc}
	}
	if tr.AccessToken == "" {
		return "", &TransportError{Op: "token", Err: errors.New("no access_token in response")}
	}
	return tr.AccessToken, nil
}

// Userinfo fetches the user profile with the bearer token. Concurrent
// fetches for the same provider+token collapse into one outbound call.
func (c *Client) Userinfo(ctx context.Context, p Provider, accessToken string) (map[string]any, error) {
	v, err, _ := c.sf.Do(p.Name+"\x00"+accessToken, func() (any, error) {
		return c.userinfo(ctx, p, accessToken)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func (c *Client) userinfo(ctx context.Context, p Provider, accessToken string) (map[string]any, error) {
	metrics.OAuthOutbound.WithLabelValues(p.Name, "userinfo").Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL(), nil)
	if err != nil {
		return nil, &TransportError{Op: "userinfo", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "userinfo", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &TransportError{Op: "userinfo", Err: fmt.Errorf("userinfo http %d", resp.StatusCode)}
	}
	var user map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, &TransportError{Op: "userinfo", Err: fmt.Errorf("decode userinfo: %w", err)}
	}
	return user, nil
}

// Revoke invalidates the access token provider-side with client
// credentials. Callers clear local state regardless of the outcome.
func (c *Client) Revoke(ctx context.Context, p Provider, accessToken string) error {
	metrics.OAuthOutbound.WithLabelValues(p.Name, "revoke").Inc()

	form := url.Values{}
	form.Set("token", accessToken)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Op: "revoke", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "revoke", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &TransportError{Op: "revoke", Err: fmt.Errorf("revoke http %d", resp.StatusCode)}
	}
	return nil
}
