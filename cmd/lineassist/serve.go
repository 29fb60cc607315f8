package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/lineassist/internal/analysis"
	"github.com/memohai/lineassist/internal/chat"
	"github.com/memohai/lineassist/internal/config"
	"github.com/memohai/lineassist/internal/handlers"
	"github.com/memohai/lineassist/internal/logger"
	"github.com/memohai/lineassist/internal/media"
	"github.com/memohai/lineassist/internal/messenger"
	"github.com/memohai/lineassist/internal/metrics"
	"github.com/memohai/lineassist/internal/server"
	"github.com/memohai/lineassist/internal/version"
	"github.com/memohai/lineassist/internal/webhook"
)

func runServe(v *viper.Viper) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideRegistry,
			provideMetrics,
			provideFetcher,
			provideCompleter,
			provideMessenger,
			provideOrchestrator,
			provideDispatcher,
			provideServerHandler(handlers.NewHealthHandler),
			provideServerHandler(webhook.NewHandler),
			provideServer,
		),
		fx.Invoke(
			logConfigWarnings,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
	return nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func loadConfig(v *viper.Viper) (config.Config, error) {
	cfg, err := config.Load(strings.TrimSpace(v.GetString("config")), v)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func provideFetcher(log *slog.Logger, cfg config.Config) *media.Fetcher {
	return media.NewFetcher(log, media.FetcherConfig{
		Endpoint:    cfg.Line.DataEndpoint,
		AccessToken: cfg.Line.ChannelAccessToken,
		MaxBytes:    cfg.Line.MaxContentBytes,
		Timeout:     cfg.Line.Timeout(),
	})
}

func provideCompleter(log *slog.Logger, cfg config.Config) *chat.OpenAIClient {
	return chat.NewOpenAIClient(log, chat.OpenAIConfig{
		APIKey:           cfg.OpenAI.APIKey,
		BaseURL:          cfg.OpenAI.BaseURL,
		Model:            cfg.OpenAI.Model,
		MaxTokensCeiling: cfg.OpenAI.MaxTokensCeiling,
		Timeout:          cfg.OpenAI.Timeout(),
	})
}

func provideMessenger(log *slog.Logger, cfg config.Config) (*messenger.Messenger, error) {
	return messenger.New(log, cfg.Line.ChannelAccessToken)
}

func provideOrchestrator(log *slog.Logger, fetcher *media.Fetcher, completer *chat.OpenAIClient, msgr *messenger.Messenger, m *metrics.Metrics) *analysis.Orchestrator {
	return analysis.NewOrchestrator(log, fetcher, completer, msgr, m)
}

func provideDispatcher(log *slog.Logger, cfg config.Config, orchestrator *analysis.Orchestrator, m *metrics.Metrics) *webhook.Dispatcher {
	var deduper webhook.Deduper = webhook.NoopDeduper{}
	if cfg.Dispatch.Redelivery == config.RedeliverySkipSeen {
		deduper = webhook.NewMemoryDeduper(cfg.Dispatch.DedupeTTL())
	}
	return webhook.NewDispatcher(log, orchestrator, m, webhook.DispatcherConfig{
		MaxConcurrent: cfg.Dispatch.MaxConcurrentWorkflows,
		Deduper:       deduper,
	})
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	Registry       *prometheus.Registry
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, server.Options{
		Addr:        params.Config.Server.Addr(),
		CORSOrigin:  params.Config.Server.CORSOrigin,
		Development: params.Config.IsDevelopment(),
		Gatherer:    params.Registry,
	}, params.ServerHandlers...)
}

func logConfigWarnings(log *slog.Logger, cfg config.Config) {
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, dispatcher *webhook.Dispatcher, shutdowner fx.Shutdowner, cfg config.Config) {
	log.Info("starting lineassist",
		slog.String("version", version.GetInfo()),
		slog.String("env", cfg.Env),
		slog.String("addr", cfg.Server.Addr()),
		slog.String("model", cfg.OpenAI.Model),
	)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			if err := dispatcher.Wait(ctx); err != nil {
				log.Warn("workflows still running at shutdown", slog.Any("error", err))
			}
			return nil
		},
	})
}
