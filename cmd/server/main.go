package main

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/adapter"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/cache"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/config"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/health"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/httpx"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/alphavantage"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/finnhub"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/finnhubadapter"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/yahoo"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log := newLogger(cfg.Server)

	if cfg.Finnhub.Enabled && cfg.Finnhub.APIKey == "" {
		log.Warn("finnhub.enabled=true but FINNHUB_API_KEY not set; skipping")
	}
	if cfg.AlphaVantage.Enabled && cfg.AlphaVantage.APIKey == "" {
		log.Warn("alphavantage.enabled=true but ALPHAVANTAGE_API_KEY not set; skipping")
	}

	providers, err := buildProviders(cfg, log)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}
	if len(providers) == 0 {
		log.Fatal("no providers enabled")
	}

	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		ids = append(ids, p.Name())
	}
	tracker := health.NewWithThreshold(cfg.Health.UnhealthyThreshold, ids...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go tracker.Run(ctx, time.Duration(cfg.Health.DecayIntervalSec)*time.Second)

	var priceCache *cache.Cache
	if cfg.Cache.Enabled {
		priceCache = cache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second, cfg.Cache.MaxEntries)
	}

	ad := adapter.New(adapter.Config{
		Primary:      cfg.Failover.Primary,
		Fallbacks:    cfg.Failover.Fallbacks,
		CacheTTL:     time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		CacheEnabled: cfg.Cache.Enabled,
		SearchLimit:  cfg.Search.MaxResults,
	}, providers, priceCache, tracker, log)

	a := &api{adapter: ad, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/price", a.handlePrice)
	mux.HandleFunc("/api/search", a.handleSearch)
	mux.HandleFunc("/api/providers", a.handleProviders)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(withRequestLog(log, mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+10) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("server stopped")
}

func newLogger(cfg config.Server) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func buildProviders(cfg config.Config, log *logrus.Logger) ([]provider.Provider, error) {
	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	var providers []provider.Provider
	if cfg.Yahoo.Enabled {
		providers = append(providers, yahoo.New(yahoo.Config{
			BaseURL:           cfg.Yahoo.Endpoint,
			RequestsPerSecond: cfg.Yahoo.RequestsPerSecond,
		}, httpClient))
	}
	if cfg.Finnhub.Enabled && cfg.Finnhub.APIKey != "" {
		opts := []finnhub.FinnhubAPIClientOption{
			finnhub.WithHTTPClient(httpClient.HTTP),
		}
		if cfg.Finnhub.Endpoint != "" {
			opts = append(opts, finnhub.WithBaseURL(cfg.Finnhub.Endpoint))
		}
		fhClient, err := finnhub.NewFinnhubAPIClient(cfg.Finnhub.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, finnhubadapter.New(finnhubadapter.Config{
			RequestsPerSecond: cfg.Finnhub.RequestsPerSecond,
		}, fhClient))
	}
	if cfg.AlphaVantage.Enabled && cfg.AlphaVantage.APIKey != "" {
		providers = append(providers, alphavantage.New(alphavantage.Config{
			BaseURL:           cfg.AlphaVantage.Endpoint,
			APIKey:            cfg.AlphaVantage.APIKey,
			RequestsPerSecond: cfg.AlphaVantage.RequestsPerSecond,
		}, httpClient))
	}
	for _, p := range providers {
		log.WithField("provider", p.Name()).Info("provider enabled")
	}
	return providers, nil
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withRequestLog(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}
