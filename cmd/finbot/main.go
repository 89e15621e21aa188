package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finbot/internal/agent"
	"finbot/internal/bot"
	"finbot/internal/config"
	"finbot/internal/llm"
	"finbot/internal/storage/sqlite"
	"finbot/internal/tools"
	"finbot/internal/webapi"
	"finbot/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DatabasePath)

	local := llm.NewLocal(cfg.OllamaBaseURL, cfg.OllamaModel)
	paid, err := llm.NewPaid(cfg.FallbackLLMProvider, cfg.FallbackLLMModel, cfg.AnthropicAPIKey, cfg.OpenAIAPIKey)
	if err != nil {
		slog.Error("Failed to configure fallback LLM", "error", err)
		os.Exit(1)
	}
	client := llm.NewFallback(local, paid, cfg.LLMTimeout)
	slog.Info("LLM clients ready",
		"local_model", cfg.OllamaModel,
		"fallback_provider", cfg.FallbackLLMProvider,
		"fallback_model", cfg.FallbackLLMModel,
	)

	convos := agent.NewStore()
	orc := agent.NewOrchestrator(client, convos, store, tools.NewDefault(), cfg.DefaultCurrency, cfg.AssumeHalfSplit)

	tgBot, err := bot.New(cfg, store, orc, convos)
	if err != nil {
		slog.Error("Failed to create Telegram bot", "error", err)
		os.Exit(1)
	}

	server := webapi.New(cfg, store, orc, convos, tgBot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go tgBot.Start()
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web API failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	tgBot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Web API shutdown failed", "error", err)
	}
}
