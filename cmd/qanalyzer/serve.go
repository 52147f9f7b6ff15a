package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/pavelanni/qanalyzer/internal/config"
	"github.com/pavelanni/qanalyzer/internal/handler"
	"github.com/pavelanni/qanalyzer/internal/llm"
	"github.com/pavelanni/qanalyzer/internal/session"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	llmFlags(cmd)
	outputFlags(cmd)
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", config.DefaultAddr, "HTTP listen address")
	f.Duration("session-ttl", config.DefaultSessionTTL, "How long finished sessions and their reports are kept")
	f.Int("max-sessions", config.DefaultMaxSessions, "Maximum number of sessions held at once")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := llm.New(cfg.LLM())
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx); err != nil {
		slog.Warn("LLM endpoint not reachable, analyses will fail until it is", "url", cfg.LLMURL, "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", cfg.LLMURL, "model", client.Model())
	}

	sessions := session.NewStore(cfg.SessionTTL, cfg.MaxSessions)
	h := handler.New(ctx, sessions, client, cfg.Report(""))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	slog.Info("starting server",
		"addr", cfg.Addr,
		"model", cfg.LLMModel,
		"llm_url", cfg.LLMURL,
		"lang", cfg.Lang,
		"output_dir", cfg.OutputDir,
		"session_ttl", cfg.SessionTTL,
		"max_sessions", cfg.MaxSessions,
	)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "error", err)
	}
	// Running analyses stop after their current question and finalize.
	h.Wait()
	return nil
}
