package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnichat/internal/chat"
	"omnichat/internal/config"
	"omnichat/internal/httpapi"
	"omnichat/internal/observability"
	"omnichat/internal/upstream"
	"omnichat/internal/upstream/dashscope"
	"omnichat/internal/upstream/gemini"
	"omnichat/internal/upstream/openai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	upstreamHTTPClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}

	adapter, checker, err := newAdapter(context.Background(), cfg, upstreamHTTPClient, metrics)
	if err != nil {
		logger.Error("upstream setup failed", "provider", cfg.Provider, "error", err)
		os.Exit(1)
	}

	chatService := chat.New(adapter, cfg.Model(), cfg.RequestTimeout,
		chat.WithLogger(logger),
		chat.WithBlockObserver(metrics.IncChatBlock),
	)

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Chat:           chatService,
		Upstream:       checker,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       35 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", cfg.ListenAddr,
			"provider", cfg.Provider,
			"model", cfg.Model(),
			"static_dir", cfg.StaticDir,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newAdapter picks the provider adapter. The checker is nil when the provider
// has no cheap readiness probe.
func newAdapter(ctx context.Context, cfg config.Config, httpClient *http.Client, metrics *observability.Metrics) (upstream.Adapter, httpapi.UpstreamChecker, error) {
	observer := metrics.UpstreamObserver(cfg.Provider)
	switch cfg.Provider {
	case config.ProviderDashScope:
		return dashscope.New(cfg.NativeURL, cfg.UpstreamAPIKey, httpClient, dashscope.WithObserver(observer)), nil, nil
	case config.ProviderGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:     cfg.UpstreamAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: httpClient,
			Observer:   observer,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	default:
		client := openai.New(cfg.CompatBaseURL, cfg.UpstreamAPIKey, httpClient, openai.WithObserver(observer))
		return client, client, nil
	}
}
