package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"

	"github.com/ss14tools/verilink/internal/config"
	httpserver "github.com/ss14tools/verilink/internal/http"
	"github.com/ss14tools/verilink/internal/members"
	membersfs "github.com/ss14tools/verilink/internal/members/fs"
	memberspg "github.com/ss14tools/verilink/internal/members/pg"
	"github.com/ss14tools/verilink/internal/metrics"
	"github.com/ss14tools/verilink/internal/oauth"
	"github.com/ss14tools/verilink/internal/observability/logger"
	"github.com/ss14tools/verilink/internal/rate"
	"github.com/ss14tools/verilink/internal/security/apitoken"
	"github.com/ss14tools/verilink/internal/session"
)

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", getenv("VERILINK_CONFIG", "config.yaml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *cfgPath, err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "verilink"})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("main")

	if err := metrics.Register(nil); err != nil {
		lg.Fatal("register metrics", logger.Err(err))
	}

	store, err := buildMemberStore(cfg)
	if err != nil {
		lg.Fatal("member store", logger.Err(err))
	}
	defer store.Close()

	sessions := buildSessionStore(cfg)
	limiter := buildLimiter(cfg)

	site := oauth.SiteConfig{
		Scheme:        cfg.Public.Scheme,
		Address:       cfg.Public.Address,
		Port:          cfg.Public.Port,
		ResolvedIP:    cfg.Public.ResolvedIP,
		TrustLoopback: cfg.Public.TrustLoopback,
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Site:      site,
		Providers: buildProviders(cfg),
		Sessions:  sessions,
		Client:    oauth.NewClient(10 * time.Second),
		Members:   store,
		Auth: &apitoken.Validator{
			APIKey:    cfg.Auth.APIKey,
			JWTSecret: []byte(cfg.Auth.JWTSecret),
		},
		Limiter: limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		lg.Info("listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("serve", logger.Err(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		lg.Warn("shutdown", logger.Err(err))
	}
}

// buildProviders returns one endpoint per known provider. Disabled providers
// keep their mount but answer "method not supported" on every operation.
func buildProviders(cfg *config.Config) []oauth.Provider {
	var out []oauth.Provider

	if c := cfg.Providers.SS14; c.Enabled {
		p := oauth.SS14Provider(c.ClientID, c.ClientSecret)
		if c.Scope != "" {
			p.Scope = c.Scope
		}
		out = append(out, p)
	} else {
		out = append(out, oauth.Provider{Name: "ss14wa"})
	}

	if c := cfg.Providers.Discord; c.Enabled {
		p := oauth.DiscordProvider(c.ClientID, c.ClientSecret)
		if c.Scope != "" {
			p.Scope = c.Scope
		}
		out = append(out, p)
	} else {
		out = append(out, oauth.Provider{Name: "dwa"})
	}

	return out
}

func buildMemberStore(cfg *config.Config) (members.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return memberspg.New(ctx, cfg.Storage.DSN)
	default:
		return membersfs.New(cfg.Storage.Path)
	}
}

func buildSessionStore(cfg *config.Config) session.Store {
	if cfg.Session.Kind == "redis" {
		client := rdb.NewClient(&rdb.Options{
			Addr: cfg.Session.Redis.Addr,
			DB:   cfg.Session.Redis.DB,
		})
		return session.NewRedisStore(client, cfg.Session.Redis.Prefix, cfg.Session.TTL)
	}
	return session.NewMemoryStore()
}

func buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if cfg.Rate.Kind == "redis" {
		client := rdb.NewClient(&rdb.Options{
			Addr: cfg.Rate.Redis.Addr,
			DB:   cfg.Rate.Redis.DB,
		})
		return rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Limit, cfg.Rate.Window)
	}
	return rate.NewMemoryLimiter(cfg.Rate.Limit, cfg.Rate.Window)
}
