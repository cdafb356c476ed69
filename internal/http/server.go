package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ss14tools/verilink/internal/http/middlewares"
	"github.com/ss14tools/verilink/internal/members"
	"github.com/ss14tools/verilink/internal/oauth"
	"github.com/ss14tools/verilink/internal/rate"
	"github.com/ss14tools/verilink/internal/security/apitoken"
	"github.com/ss14tools/verilink/internal/session"
)

// Deps collects everything the router needs. All fields are read-only after
// startup.
type Deps struct {
	Site      oauth.SiteConfig
	Providers []oauth.Provider
	Sessions  session.Store
	Client    *oauth.Client
	Members   members.Store
	Auth      *apitoken.Validator
	Limiter   rate.Limiter
}

// NewRouter builds the full route tree:
//
//	/<provider>   query-param OAuth endpoints (ss14wa, dwa)
//	/verified     membership list REST API
//	/healthz      liveness probe
//	/metrics      Prometheus
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	for _, p := range d.Providers {
		ep := &OAuthEndpoint{
			Provider: p,
			Sessions: d.Sessions,
			Client:   d.Client,
			Site:     d.Site,
		}
		r.Handle("/"+p.Name, middlewares.Chain(ep,
			middlewares.WithRequestID(),
			middlewares.WithLogging(p.Name),
			middlewares.WithRateLimit(d.Limiter, p.Name),
		))
	}

	mh := &MembersHandler{Store: d.Members, Auth: d.Auth}
	r.Route("/verified", func(r chi.Router) {
		r.Use(middlewares.WithRequestID(), middlewares.WithLogging("verified"))
		r.Get("/", mh.List)
		r.Get("/{id}", mh.Get)
		r.Post("/", mh.Add)
		r.Delete("/{id}", mh.Remove)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
