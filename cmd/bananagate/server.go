package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/auth"
	"github.com/AlexKimmel/BananaGate/internal/config"
	"github.com/AlexKimmel/BananaGate/internal/gateway"
	"github.com/AlexKimmel/BananaGate/internal/genai"
	"github.com/AlexKimmel/BananaGate/internal/obs"
	"github.com/AlexKimmel/BananaGate/internal/proxy"
	"github.com/AlexKimmel/BananaGate/internal/ratelimit"
	"github.com/AlexKimmel/BananaGate/internal/ratelimit/memory"
	"github.com/AlexKimmel/BananaGate/internal/ratelimit/remote"
	"github.com/AlexKimmel/BananaGate/internal/routing"
	"github.com/AlexKimmel/BananaGate/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// newHandler assembles the gateway. Sweepers run until ctx ends; the caller
// closes the returned chain.
func newHandler(ctx context.Context, cfg *config.Root, logger zerolog.Logger, reg *prometheus.Registry) (http.Handler, ratelimit.Chain, error) {
	metrics := obs.NewMetrics(reg)

	// admission chain
	chain, sweepers := buildChain(cfg, logger)
	for _, s := range sweepers {
		s.Start(ctx, cfg.Counters.SweepInterval())
	}
	for _, c := range chain {
		w := c.Window()
		logger.Info().Str("window", w.Name).Dur("duration", w.Duration).Int("max", w.Max).Msg("admission window")
	}

	rr := routing.New()
	mux := http.NewServeMux()
	// ops endpoints bypass admission and request metrics
	skip := map[string]struct{}{"/healthz": {}}
	skip[cfg.Observability.PrometheusPath] = struct{}{}

	rr.Add(routing.NewRoute(routing.RouteHealth, "/healthz", true, http.MethodGet, http.MethodHead))
	rr.Add(routing.NewRoute(routing.RouteMetrics, cfg.Observability.PrometheusPath, true, http.MethodGet))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.Handle(cfg.Observability.PrometheusPath, metrics.Handler())

	passcode := auth.NewPasscode(cfg.Auth.Passcode, metrics.OnPasscode)
	rr.Add(routing.NewRoute(routing.RoutePasscode, "/api/verify-passcode", true, http.MethodPost))
	mux.Handle("/api/verify-passcode", passcode.Handler())

	if cfg.Relay.Enabled {
		up, err := url.Parse(genaiBase(cfg))
		if err != nil {
			_ = chain.Close()
			return nil, nil, fmt.Errorf("parse genai base url: %w", err)
		}
		relay := &proxy.Relay{
			Upstream:    up,
			Transport:   proxy.NewHTTPTransport(),
			PlatformKey: cfg.GenAI.APIKey,
			Timeout:     cfg.Relay.Timeout(),
		}
		rr.Add(routing.NewRoute(routing.RouteRelay, proxy.Prefix+"/", false))
		mux.Handle(proxy.Prefix+"/", relay.Handler())
		logger.Info().Str("upstream", up.String()).Bool("platform_key", cfg.GenAI.APIKey != "").Msg("genai relay enabled")
	}

	if cfg.Counters.ServiceEnabled {
		store := memory.New()
		store.Start(ctx, cfg.Counters.SweepInterval())
		skip[remote.IncrPath] = struct{}{}
		rr.Add(routing.NewRoute(routing.RouteCounters, remote.IncrPath, true, http.MethodPost))
		mux.Handle(remote.IncrPath, remote.Handler(store, cfg.Counters.ServiceToken, time.Now))
		logger.Info().Str("path", remote.IncrPath).Msg("counter service enabled")
	}

	rr.Add(routing.NewRoute(routing.RouteStatic, "/", false, http.MethodGet, http.MethodHead))
	mux.Handle("/", web.Dir(cfg.Static.Dir))

	// Admission runs before routing and body checks so unknown paths and
	// oversized bodies still spend the caller's budget.
	handler := gateway.Chain(
		mux,
		obs.Logger(logger),
		metrics.Middleware(skip),
		gateway.Admission(chain, gateway.ClientIP(cfg.Server.TrustedHops), skip, gateway.AdmissionOptions{
			OnLimited: metrics.OnLimited,
			OnError:   metrics.OnLimiterError,
		}),
		gateway.RouteMatcher(rr, nil),
		gateway.BodyLimit(cfg.Server.MaxBody()),
	)
	return handler, chain, nil
}

// buildChain gives every window its own store: a remote counter service when
// configured, otherwise an in-process map whose sweeper the caller starts.
func buildChain(cfg *config.Root, logger zerolog.Logger) (ratelimit.Chain, []*memory.Store) {
	var (
		chain    ratelimit.Chain
		sweepers []*memory.Store
	)
	for _, w := range cfg.Limits.Windows() {
		if cfg.Counters.StoreURL != "" {
			chain = append(chain, ratelimit.NewCounter(w, remote.New(cfg.Counters.StoreURL, cfg.Counters.ServiceToken, cfg.Counters.StoreTimeout())))
			continue
		}
		s := memory.New()
		sweepers = append(sweepers, s)
		chain = append(chain, ratelimit.NewCounter(w, s))
	}
	if cfg.Counters.StoreURL != "" {
		logger.Info().Str("url", cfg.Counters.StoreURL).Msg("using shared counter store")
	}
	return chain, sweepers
}

func genaiBase(cfg *config.Root) string {
	if cfg.GenAI.BaseURL != "" {
		return cfg.GenAI.BaseURL
	}
	return genai.DefaultBaseURL
}
