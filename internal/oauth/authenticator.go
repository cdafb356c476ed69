package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/ss14tools/verilink/internal/observability/logger"
	"github.com/ss14tools/verilink/internal/session"
)

// SiteConfig is the service's public-facing address configuration,
// read-only after startup.
type SiteConfig struct {
	Scheme  string // "https" unless overridden for local testing
	Address string // public web address (host)
	Port    int

	// ResolvedIP is the externally resolved IP of the service. When set, it
	// is substituted for loopback request hosts and added to the redirect
	// allow-list so local-testing flows round-trip correctly.
	ResolvedIP string

	// TrustLoopback disables the loopback substitution for deployments
	// legitimately served behind a loopback-bound reverse proxy.
	TrustLoopback bool
}

// Result is the response triple an operation produces. Operations never
// panic or return errors for protocol-level failures; those are mapped to
// 4xx Results. Only transport failures travel as Go errors.
type Result struct {
	Status int
	Header http.Header
	Body   string
}

// Authenticator drives one authorization-code flow for one provider on
// behalf of one requester. Constructed per request; holds only a transient
// view of the session.
type Authenticator struct {
	provider Provider
	sessions session.Store
	client   *Client
	site     SiteConfig

	requester       string
	defaultRedirect string
	redirectHome    string
	allowed         []string
	nonce           string
	user            map[string]any
}

// NewAuthenticator builds the per-request flow driver.
//
// requester is the resolved client network address (the session key half);
// reqHost/reqPath identify the request target used to derive the default
// redirect URI. The session nonce is created here if absent, and when the
// session already holds an access token the cached profile is refreshed
// best-effort: a failed fetch only leaves IsAuthenticated false.
func NewAuthenticator(ctx context.Context, p Provider, sessions session.Store, client *Client, site SiteConfig, requester, reqHost, reqPath string) (*Authenticator, error) {
	if requester == "" || reqHost == "" {
		return nil, fmt.Errorf("oauth: request context missing remote address or target URI")
	}

	a := &Authenticator{
		provider:  p,
		sessions:  sessions,
		client:    client,
		site:      site,
		requester: requester,
	}

	host := reqHost
	if !site.TrustLoopback && site.ResolvedIP != "" && isLoopbackHost(host) {
		// Local testing: the provider must redirect somewhere it can reach.
		if _, port, err := net.SplitHostPort(host); err == nil {
			host = net.JoinHostPort(site.ResolvedIP, port)
		} else {
			host = site.ResolvedIP
		}
	}
	if i := strings.IndexByte(reqPath, '?'); i >= 0 {
		reqPath = reqPath[:i]
	}
	a.defaultRedirect = fmt.Sprintf("%s://%s%s", site.Scheme, host, reqPath)

	a.redirectHome = fmt.Sprintf("%s://%s:%d", site.Scheme, site.Address, site.Port)
	// Order matters: allowed[0] is the fallback target for invalid redirects.
	a.allowed = []string{
		a.redirectHome + "/" + p.Name,
		a.redirectHome,
	}
	if site.ResolvedIP != "" && site.ResolvedIP != site.Address {
		ipHome := fmt.Sprintf("%s://%s:%d", site.Scheme, site.ResolvedIP, site.Port)
		a.allowed = append(a.allowed, ipHome+"/", ipHome+"/"+p.Name)
	}

	nonce, err := sessions.GetOrCreateNonce(ctx, p.Name, requester)
	if err != nil {
		return nil, fmt.Errorf("oauth: session nonce: %w", err)
	}
	a.nonce = nonce

	if sess, err := sessions.Get(ctx, p.Name, requester); err == nil && sess.AccessToken != "" {
		if sess.User != nil {
			a.user = sess.User
		} else if p.CanUserinfo() {
			if user, err := client.Userinfo(ctx, p, sess.AccessToken); err == nil {
				a.user = user
				_ = sessions.SetUser(ctx, p.Name, requester, user)
			} else {
				logger.From(ctx).Debug("eager profile fetch failed",
					logger.Provider(p.Name), logger.Err(err))
			}
		}
	}

	return a, nil
}

// StateNonce returns the session's state nonce. Exposed for tests.
func (a *Authenticator) StateNonce() string { return a.nonce }

// IsAuthenticated reports whether a user profile is present for the session.
func (a *Authenticator) IsAuthenticated() bool { return a.user != nil }

// Login produces the 302 to the provider's consent screen, or a safe
// fallback redirect when the requested redirect URI is not allow-listed.
func (a *Authenticator) Login(redirectOverride, scopeOverride string) Result {
	if !a.provider.CanLogin() {
		return textResult(http.StatusBadRequest, "method not supported")
	}

	// The derived default redirect is trusted; only caller-supplied
	// overrides go through the allow-list.
	redirectURI := a.defaultRedirect
	if redirectOverride != "" {
		if !a.isAllowedRedirect(redirectOverride) {
			// Open-redirect defense: re-enter the flow from the canonical
			// URL instead of failing the request.
			return redirectResult(a.allowed[0] + "?login")
		}
		redirectURI = redirectOverride
	}

	scope := a.provider.Scope
	if scopeOverride != "" {
		scope = scopeOverride
	}

	u, err := url.Parse(a.provider.authorizeURL())
	if err != nil {
		return textResult(http.StatusBadRequest, "method not supported")
	}
	q := u.Query()
	q.Set("client_id", a.provider.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", scope)
	q.Set("state", a.nonce)
	q.Set("redirect_uri", redirectURI)
	u.RawQuery = q.Encode()

	return redirectResult(u.String())
}

// ExchangeCode validates the provider redirect and swaps the one-time code
// for an access token. Idempotent re-entry: if the session already holds a
// token the exchange short-circuits without an outbound call.
//
// Transport failures are returned as an error for the adapter to map to
// 500; every protocol-level outcome is a Result.
func (a *Authenticator) ExchangeCode(ctx context.Context, code, state, redirectOverride string) (Result, string, error) {
	if sess, err := a.sessions.Get(ctx, a.provider.Name, a.requester); err == nil && sess.AccessToken != "" {
		return redirectResult(a.redirectHome), sess.AccessToken, nil
	}

	if !a.provider.CanExchange() {
		return textResult(http.StatusBadRequest, "method not supported"), "", nil
	}

	if state != a.nonce {
		// CSRF defense, not secret comparison. Do not hint at which part
		// mismatched.
		return textResult(http.StatusBadRequest, "Invalid state."), "", nil
	}

	redirectURI := a.defaultRedirect
	if redirectOverride != "" {
		redirectURI = redirectOverride
	}

	token, err := a.client.Exchange(ctx, a.provider, code, redirectURI)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return textResult(http.StatusBadRequest, "Error: "+pe.Code), "", nil
		}
		return Result{}, "", err
	}

	if err := a.sessions.SetToken(ctx, a.provider.Name, a.requester, token); err != nil {
		return Result{}, "", fmt.Errorf("oauth: store token: %w", err)
	}
	return redirectResult(a.redirectHome), token, nil
}

// FetchUser returns the session's user profile, fetching and caching it on
// first use. A missing token or unconfigured userinfo endpoint yields an
// empty result without error.
func (a *Authenticator) FetchUser(ctx context.Context) (map[string]any, error) {
	if a.user != nil {
		_ = a.sessions.SetUser(ctx, a.provider.Name, a.requester, a.user)
		return a.user, nil
	}

	if !a.provider.CanUserinfo() {
		return nil, nil
	}
	sess, err := a.sessions.Get(ctx, a.provider.Name, a.requester)
	if err != nil || sess.AccessToken == "" {
		return nil, nil
	}

	user, err := a.client.Userinfo(ctx, a.provider, sess.AccessToken)
	if err != nil {
		return nil, err
	}
	a.user = user
	_ = a.sessions.SetUser(ctx, a.provider.Name, a.requester, user)
	return user, nil
}

// Logout deletes the whole session entry. The next contact generates a
// fresh state nonce.
func (a *Authenticator) Logout(ctx context.Context) Result {
	if err := a.sessions.Delete(ctx, a.provider.Name, a.requester); err != nil {
		logger.From(ctx).Warn("session delete failed",
			logger.Provider(a.provider.Name), logger.Err(err))
	}
	a.user = nil
	return redirectResult(a.redirectHome)
}

// RevokeToken revokes the session's access token provider-side and clears
// it locally. Local state is cleared regardless of the revoke call's
// outcome; the state nonce survives for re-login.
func (a *Authenticator) RevokeToken(ctx context.Context) Result {
	if !a.provider.CanRevoke() {
		return textResult(http.StatusBadRequest, "method not supported")
	}

	sess, err := a.sessions.Get(ctx, a.provider.Name, a.requester)
	if err == nil && sess.AccessToken != "" {
		if err := a.client.Revoke(ctx, a.provider, sess.AccessToken); err != nil {
			logger.From(ctx).Warn("provider revoke failed",
				logger.Provider(a.provider.Name), logger.Err(err))
		}
	}
	if err := a.sessions.ClearToken(ctx, a.provider.Name, a.requester); err != nil {
		logger.From(ctx).Warn("session token clear failed",
			logger.Provider(a.provider.Name), logger.Err(err))
	}
	a.user = nil
	return redirectResult(a.redirectHome)
}

func (a *Authenticator) isAllowedRedirect(uri string) bool {
	for _, allowed := range a.allowed {
		if uri == allowed {
			return true
		}
	}
	return false
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

func redirectResult(location string) Result {
	h := http.Header{}
	h.Set("Location", location)
	return Result{Status: http.StatusFound, Header: h}
}

func textResult(status int, body string) Result {
	h := http.Header{}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return Result{Status: status, Header: h, Body: body}
}
