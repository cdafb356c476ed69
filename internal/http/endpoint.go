// Package http is the inbound HTTP surface: the query-param OAuth endpoint
// adapter, the verified-member REST handlers, and the router wiring.
package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ss14tools/verilink/internal/http/middlewares"
	"github.com/ss14tools/verilink/internal/metrics"
	"github.com/ss14tools/verilink/internal/oauth"
	"github.com/ss14tools/verilink/internal/observability/logger"
	"github.com/ss14tools/verilink/internal/session"
)

// OAuthEndpoint adapts one provider's authorization-code flow onto a single
// URL. Operations are selected by query parameter, not by path, so the same
// URL serves as the provider's registered redirect URI and as the browser
// entry point.
type OAuthEndpoint struct {
	Provider oauth.Provider
	Sessions session.Store
	Client   *oauth.Client
	Site     oauth.SiteConfig
}

// Dispatch priority: a provider redirect carrying code+state always wins,
// then login, logout, remove, user. GET and POST are equivalent; HEAD is
// tolerated for probes.
func (e *OAuthEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodHead:
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = io.WriteString(w, "Method Not Allowed")
		return
	}

	ctx := r.Context()
	log := logger.Named("oauth").With(
		logger.Provider(e.Provider.Name),
		logger.RequestID(middlewares.RequestIDFrom(ctx)),
	)
	ctx = logger.ToContext(ctx, log)

	requester := middlewares.ClientIP(r)
	auth, err := oauth.NewAuthenticator(ctx, e.Provider, e.Sessions, e.Client, e.Site, requester, r.Host, r.URL.RequestURI())
	if err != nil {
		log.Error("authenticator init failed", logger.Err(err))
		writeText(w, http.StatusInternalServerError, "internal server error")
		return
	}

	q := r.URL.Query()
	has := func(k string) bool { _, ok := q[k]; return ok }

	switch {
	case has("code") && has("state"):
		res, _, err := auth.ExchangeCode(ctx, q.Get("code"), q.Get("state"), q.Get("redirect_uri"))
		if err != nil {
			metrics.OAuthExchanges.WithLabelValues(e.Provider.Name, metrics.ResultTransport).Inc()
			log.Error("code exchange failed", logger.Err(err))
			writeText(w, http.StatusInternalServerError, "internal server error")
			return
		}
		metrics.OAuthExchanges.WithLabelValues(e.Provider.Name, exchangeResultLabel(res)).Inc()
		writeResult(w, res)

	case has("login"):
		metrics.OAuthLogins.WithLabelValues(e.Provider.Name).Inc()
		writeResult(w, auth.Login(q.Get("redirect_uri"), q.Get("scope")))

	case has("logout"):
		writeResult(w, auth.Logout(ctx))

	case has("remove") && auth.IsAuthenticated():
		metrics.OAuthRevocations.WithLabelValues(e.Provider.Name).Inc()
		writeResult(w, auth.RevokeToken(ctx))

	case has("user") && auth.IsAuthenticated():
		user, err := auth.FetchUser(ctx)
		if err != nil {
			log.Error("userinfo fetch failed", logger.Err(err))
			writeText(w, http.StatusInternalServerError, "internal server error")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(user)

	default:
		writeText(w, http.StatusNotFound, "Not Found")
	}
}

func exchangeResultLabel(res oauth.Result) string {
	switch {
	case res.Status == http.StatusFound:
		return metrics.ResultSuccess
	case res.Body == "Invalid state.":
		return metrics.ResultStateMismatch
	default:
		return metrics.ResultProviderError
	}
}

func writeResult(w http.ResponseWriter, res oauth.Result) {
	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(res.Status)
	if res.Body != "" {
		_, _ = io.WriteString(w, res.Body)
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
