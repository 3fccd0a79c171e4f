package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/app"
	"github.com/Varietyz/banes-lab-bot/internal/config"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/nativelog"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/proctitle"
)

func main() {
	configPath := pflag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	issue := pflag.Bool("issue-token", false, "Register an identity, print a session token for it and exit")
	id := pflag.String("id", "", "Identity id for --issue-token")
	handle := pflag.String("handle", "", "Display handle for --issue-token")
	email := pflag.String("email", "", "Contact address for --issue-token")
	provenance := pflag.String("provenance", "", "Optional provenance hash for --issue-token")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	if *issue {
		token, err := app.IssueToken(context.Background(), cfg, app.TokenRequest{
			ID:         *id,
			Handle:     *handle,
			Email:      *email,
			Provenance: *provenance,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "issue token:", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger, err := nativelog.NewZapLogger(cfg.LogDir(), cfg.IsDev())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("file log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := proctitle.Set("banes-relay"); err != nil {
		logger.Debug("set process title", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}
	application.Start(ctx)

	srv := &http.Server{
		Addr:    application.Addr(),
		Handler: application.Router(),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", app.Version()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server...")
	application.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
