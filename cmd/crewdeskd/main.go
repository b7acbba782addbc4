// Package main runs the crewdesk support chat service: an HTTP server
// that routes customer messages to specialized order, billing, and
// general agents backed by an OpenAI-compatible model.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crewdesk/crewdesk/pkg/agent"
	agentcontext "github.com/crewdesk/crewdesk/pkg/agent/context"
	"github.com/crewdesk/crewdesk/pkg/config"
	"github.com/crewdesk/crewdesk/pkg/llm/openai"
	"github.com/crewdesk/crewdesk/pkg/llm/tokenizer"
	"github.com/crewdesk/crewdesk/pkg/server"
	"github.com/crewdesk/crewdesk/pkg/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Printf("crewdeskd failed: %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	providerOpts := []openai.ProviderOption{openai.WithModel(cfg.LLM.Model)}
	if cfg.LLM.BaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.SummarizationModel != "" {
		providerOpts = append(providerOpts, openai.WithSummarizationModel(cfg.LLM.SummarizationModel))
	}
	provider, err := openai.NewProvider(cfg.LLM.APIKey, providerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	compactor := agentcontext.NewCompactor(provider, agentcontext.Config{
		SummaryTrigger: cfg.Context.SummaryTrigger,
		ContextLimit:   cfg.Context.ContextLimit,
		RecentWindow:   cfg.Context.RecentWindow,
		TruncateLength: cfg.Context.TruncateLength,
	})
	if counter, terr := tokenizer.New(); terr != nil {
		log.Printf("Token counter unavailable, diagnostics will use estimates only: %v", terr)
	} else {
		compactor = compactor.WithTokenCounter(counter)
	}

	routerOpts := []agent.RouterOption{}
	if len(cfg.Router.OrderKeywords) > 0 {
		routerOpts = append(routerOpts, agent.WithOrderKeywords(cfg.Router.OrderKeywords))
	}
	if len(cfg.Router.BillingKeywords) > 0 {
		routerOpts = append(routerOpts, agent.WithBillingKeywords(cfg.Router.BillingKeywords))
	}
	if cfg.LLM.ClassifierEnabled {
		routerOpts = append(routerOpts, agent.WithClassifier(provider))
	}
	router := agent.NewRouter(routerOpts...)
	dispatcher := agent.NewDispatcher(provider, compactor, db)

	handler := server.NewHandler(db, db, router, dispatcher,
		server.WithHistoryWindow(cfg.Server.HistoryWindow),
		server.WithMaxMessageSize(cfg.Server.MaxMessageSize))

	e := echo.New()
	e.HideBanner = true
	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		if serveErr := e.Start(cfg.Server.ListenAddr); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()
	log.Printf("crewdeskd listening on %s", cfg.Server.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
