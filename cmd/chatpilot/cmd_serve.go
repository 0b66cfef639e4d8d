package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chatpilot/internal/agent"
	"github.com/user/chatpilot/internal/autopilot"
	"github.com/user/chatpilot/internal/composer"
	"github.com/user/chatpilot/internal/delivery"
	"github.com/user/chatpilot/internal/httpapi"
	"github.com/user/chatpilot/internal/scheduler"
	"github.com/user/chatpilot/internal/state"
	"github.com/user/chatpilot/internal/suggest"
	"github.com/user/chatpilot/pkg/llm"
	"github.com/user/chatpilot/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chatpilot daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Stores
	convs := state.NewConversationStore(cfg.DataDir)
	contacts := state.NewContactStore(cfg.DataDir)
	agents := state.NewAgentStore(cfg.DataDir)
	registry := agent.NewRegistry(agents)

	// LLM provider + suggestion service
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	sugg, err := suggest.New(provider, cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create suggestion service: %w", err)
	}

	// Delivery registry; the whatsapp handler is a stub, transport lives
	// outside this system.
	deliveryReg := delivery.NewRegistry()
	deliveryReg.Register("whatsapp", delivery.NewWhatsAppStub())

	// Scheduler
	sched := scheduler.New(convs,
		scheduler.WithPollInterval(time.Duration(cfg.Scheduler.PollIntervalSeconds)*time.Second),
		scheduler.WithDelivery(deliveryReg),
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// Autopilot coordinator
	coordinator := autopilot.New(convs, contacts, registry, sugg,
		autopilot.WithThinkingDelay(time.Duration(cfg.Autopilot.ThinkingDelayMS)*time.Millisecond),
		autopilot.WithMaxConcurrent(int64(cfg.Autopilot.MaxConcurrent)),
		autopilot.WithDelivery(deliveryReg),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator.Start(ctx)
	defer coordinator.Stop()

	// Draft composer
	cmp := composer.New(convs, contacts, registry, sugg, sched, deliveryReg)
	cmp.Start(ctx)
	defer cmp.Stop()

	slog.Info("chatpilot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"thinking_delay_ms", cfg.Autopilot.ThinkingDelayMS,
		"whatsapp_provider", cfg.WhatsApp.Provider,
	)

	// HTTP API
	if cfg.HTTP.Enabled {
		apiSrv := httpapi.NewServer(convs, contacts, registry, coordinator, cmp, sched, sugg)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: apiSrv,
		}
		go func() {
			slog.Info("http api started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http api error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	slog.Info("shutting down", "signal", sig)
	return nil
}
