package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ss14tools/verilink/internal/oauth"
	"github.com/ss14tools/verilink/internal/session"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testEndpoint(rt rtFunc) (*OAuthEndpoint, session.Store) {
	store := session.NewMemoryStore()
	if rt == nil {
		rt = func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusNotFound, `{}`), nil
		}
	}
	ep := &OAuthEndpoint{
		Provider: oauth.DiscordProvider("client-1", "sec"),
		Sessions: store,
		Client:   oauth.NewClientWithHTTP(&http.Client{Transport: rt}),
		Site:     oauth.SiteConfig{Scheme: "https", Address: "example.org", Port: 443},
	}
	return ep, store
}

func serve(ep *OAuthEndpoint, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Host = "example.org"
	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, req)
	return rec
}

func TestEndpoint_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	ep, _ := testEndpoint(nil)

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch} {
		rec := serve(ep, method, "https://example.org/dwa?login")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: status = %d, want 405", method, rec.Code)
		}
		if body := rec.Body.String(); body != "Method Not Allowed" {
			t.Fatalf("%s: body = %q", method, body)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Fatalf("%s: content-type = %q", method, ct)
		}
	}
}

func TestEndpoint_LoginRedirectsToProvider(t *testing.T) {
	t.Parallel()
	ep, _ := testEndpoint(nil)

	rec := serve(ep, http.MethodGet, "https://example.org/dwa?login")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if u.Host != "discord.com" {
		t.Fatalf("location host = %q", u.Host)
	}
	if u.Query().Get("state") == "" {
		t.Fatal("missing state param")
	}
}

func TestEndpoint_PostEquivalentToGet(t *testing.T) {
	t.Parallel()
	ep, _ := testEndpoint(nil)

	rec := serve(ep, http.MethodPost, "https://example.org/dwa?login")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
}

func TestEndpoint_NoOperationIs404(t *testing.T) {
	t.Parallel()
	ep, _ := testEndpoint(nil)

	rec := serve(ep, http.MethodGet, "https://example.org/dwa")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEndpoint_UserWithoutSessionIs404(t *testing.T) {
	t.Parallel()
	ep, _ := testEndpoint(nil)

	rec := serve(ep, http.MethodGet, "https://example.org/dwa?user")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEndpoint_ExchangeStateMismatch(t *testing.T) {
	t.Parallel()
	ep, _ := testEndpoint(nil)

	// Prime the session so a nonce exists, then replay with a bad state.
	serve(ep, http.MethodGet, "https://example.org/dwa?login")

	rec := serve(ep, http.MethodGet, "https://example.org/dwa?code=abc&state=wrong")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := rec.Body.String(); body != "Invalid state." {
		t.Fatalf("body = %q", body)
	}
}

func TestEndpoint_FullCodeFlow(t *testing.T) {
	t.Parallel()
	rt := rtFunc(func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/oauth2/token":
			return jsonResponse(http.StatusOK, `{"access_token":"tok-1"}`), nil
		case "/users/@me":
			return jsonResponse(http.StatusOK, `{"id":"42","username":"urist"}`), nil
		}
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})
	ep, store := testEndpoint(rt)

	// 1. login issues the provider redirect carrying the session nonce
	rec := serve(ep, http.MethodGet, "https://example.org/dwa?login")
	u, _ := url.Parse(rec.Header().Get("Location"))
	state := u.Query().Get("state")
	if state == "" {
		t.Fatal("no state in authorize redirect")
	}

	// 2. provider redirects back with code+state; exchange succeeds
	rec = serve(ep, http.MethodGet, "https://example.org/dwa?code=abc&state="+url.QueryEscape(state))
	if rec.Code != http.StatusFound {
		t.Fatalf("exchange status = %d, want 302: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "https://example.org:443" {
		t.Fatalf("post-exchange location = %q", loc)
	}

	sess, err := store.Get(context.Background(), "dwa", "203.0.113.7")
	if err != nil {
		t.Fatalf("session get err: %v", err)
	}
	if sess.AccessToken != "tok-1" {
		t.Fatalf("stored token = %q", sess.AccessToken)
	}

	// 3. user returns the cached profile as JSON
	rec = serve(ep, http.MethodGet, "https://example.org/dwa?user")
	if rec.Code != http.StatusOK {
		t.Fatalf("user status = %d, want 200", rec.Code)
	}
	var profile map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile["id"] != "42" {
		t.Fatalf("profile = %v", profile)
	}

	// 4. remove revokes and clears the token
	rec = serve(ep, http.MethodGet, "https://example.org/dwa?remove")
	if rec.Code != http.StatusFound {
		t.Fatalf("remove status = %d, want 302", rec.Code)
	}
	sess, err = store.Get(context.Background(), "dwa", "203.0.113.7")
	if err != nil {
		t.Fatalf("session get err: %v", err)
	}
	if sess.AccessToken != "" {
		t.Fatalf("token survived remove: %q", sess.AccessToken)
	}

	// 5. logout drops the session entirely
	rec = serve(ep, http.MethodGet, "https://example.org/dwa?logout")
	if rec.Code != http.StatusFound {
		t.Fatalf("logout status = %d, want 302", rec.Code)
	}
	if _, err := store.Get(context.Background(), "dwa", "203.0.113.7"); err != session.ErrNotFound {
		t.Fatalf("session survived logout: %v", err)
	}
}

func TestEndpoint_ProviderErrorBody(t *testing.T) {
	t.Parallel()
	rt := rtFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":"invalid_grant"}`), nil
	})
	ep, _ := testEndpoint(rt)

	rec := serve(ep, http.MethodGet, "https://example.org/dwa?login")
	u, _ := url.Parse(rec.Header().Get("Location"))
	state := u.Query().Get("state")

	rec = serve(ep, http.MethodGet, "https://example.org/dwa?code=abc&state="+url.QueryEscape(state))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := rec.Body.String(); body != "Error: invalid_grant" {
		t.Fatalf("body = %q", body)
	}
}

func TestEndpoint_TransportErrorIs500(t *testing.T) {
	t.Parallel()
	rt := rtFunc(func(r *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})
	ep, _ := testEndpoint(rt)

	rec := serve(ep, http.MethodGet, "https://example.org/dwa?login")
	u, _ := url.Parse(rec.Header().Get("Location"))
	state := u.Query().Get("state")

	rec = serve(ep, http.MethodGet, "https://example.org/dwa?code=abc&state="+url.QueryEscape(state))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
