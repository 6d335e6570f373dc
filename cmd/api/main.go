package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bimakw/lp-zapper/internal/config"
	"github.com/bimakw/lp-zapper/internal/domain/entities"
	"github.com/bimakw/lp-zapper/internal/domain/services"
	"github.com/bimakw/lp-zapper/internal/infrastructure/cache"
	"github.com/bimakw/lp-zapper/internal/infrastructure/devnet"
	"github.com/bimakw/lp-zapper/internal/infrastructure/dex"
	"github.com/bimakw/lp-zapper/internal/infrastructure/ethereum"
	"github.com/bimakw/lp-zapper/internal/infrastructure/events"
	"github.com/bimakw/lp-zapper/internal/infrastructure/logger"
	"github.com/bimakw/lp-zapper/internal/infrastructure/metrics"
	"github.com/bimakw/lp-zapper/internal/presentation/handlers"
)

const (
	version     = "0.3.0"
	serviceName = "lp-zapper"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config/config.yaml)")
	flag.Parse()

	loader, err := config.NewLoader(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(serviceName, logger.Options{
		Dir:        cfg.Log.Dir,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	loader.Watch(func(next *config.Config) {
		if logger.SetLogLevel(next.Log.Level) {
			log.Info("log level changed", zap.String("level", next.Log.Level))
		}
	}, func(err error) {
		log.Warn("ignoring invalid config change", zap.Error(err))
	})

	tp := logger.InitTrace("zapper", serviceName)
	defer tp.Shutdown(context.Background())

	if err := run(cfg, log); err != nil {
		log.Fatal("zapper stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := entities.DefaultRegistry()
	if cfg.TokensFile != "" {
		if err := registry.LoadFromFile(cfg.TokensFile); err != nil {
			return fmt.Errorf("failed to load tokens: %w", err)
		}
	}

	// Redis backs the fee config and event stream when configured
	var (
		store     cache.ConfigStore = cache.NewInMemoryConfigStore()
		publisher events.Multi
	)
	publisher = append(publisher, events.NewLogPublisher(log))
	if cfg.Redis.Address != "" {
		client, err := cache.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, keeping fee config in memory", zap.Error(err))
		} else {
			defer client.Close()
			store = cache.NewRedisConfigStore(client, cfg.Redis.FeeConfigKey)
			publisher = append(publisher, events.NewRedisPublisher(client, cfg.Redis.EventChannel))
			log.Info("connected to redis", zap.String("addr", cfg.Redis.Address))
		}
	}

	// Backend: the in-memory devnet can execute zaps, a live node only previews them
	var (
		chain    dex.Chain
		reader   dex.Reader
		approver handlers.Approver
		probe    handlers.HeadProbe
		backend  string
	)
	if cfg.Devnet.Enabled {
		fixture, err := devnet.LoadFixture(cfg.Devnet.Fixture)
		if err != nil {
			return err
		}
		dn := devnet.NewChain()
		pairs, err := fixture.Apply(ctx, dn, registry)
		if err != nil {
			return fmt.Errorf("failed to apply devnet fixture: %w", err)
		}
		chain, reader, approver, backend = dn, dn, dn, "devnet"
		log.Info("devnet ready", zap.Int("pairs", len(pairs)), zap.Int("tokens", registry.Count()))
	} else {
		client, err := ethereum.NewClient(cfg.Ethereum.RPCURL, cfg.Ethereum.Timeout)
		if err != nil {
			return fmt.Errorf("failed to connect to ethereum: %w", err)
		}
		defer client.Close()
		reader, probe, backend = dex.NewUniswapV2Reader(client), client.BlockNumber, "live"
		log.Info("connected to ethereum", zap.String("chain_id", client.ChainID().String()))
	}

	var fees *services.FeeService
	if cfg.Fee.Enabled {
		fees = services.NewFeeService(store, log.Named("fee"), m)
		loaded, err := fees.Load(ctx)
		if err != nil {
			return err
		}
		if !loaded {
			err := fees.Initialize(ctx, cfg.Fee.OwnerAddress(), cfg.Fee.TreasuryAddress(), cfg.Fee.DevAddress(), cfg.Fee.Rate)
			if err != nil {
				return fmt.Errorf("failed to initialize fees: %w", err)
			}
		}
	}

	opts := []services.ZapOption{
		services.WithReader(reader),
		services.WithRegistry(registry),
		services.WithPublisher(publisher),
		services.WithMetrics(m),
		services.WithLogger(log.Named("zap")),
	}
	if fees != nil {
		opts = append(opts, services.WithFeeService(fees))
	}
	zaps, err := services.NewZapService(services.Core{
		Self:           cfg.Zap.EngineAddress(),
		DefaultRouter:  cfg.Zap.DefaultRouterAddress(),
		DeadlineWindow: cfg.Zap.DeadlineWindow,
		SlippageBps:    cfg.Zap.SlippageBps,
	}, chain, opts...)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	handlers.Register(r,
		handlers.NewHealthHandler(version, backend).WithProbe(probe),
		handlers.NewFeeHandler(fees, registry, log.Named("http")),
		handlers.NewZapHandler(zaps, reader, approver, registry, log.Named("http")),
	)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting zapper api",
			zap.String("version", version),
			zap.String("port", cfg.Server.Port),
			zap.String("backend", backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
