package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/interview-orchestrator/internal/server"
	"github.com/jonathan/interview-orchestrator/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server exposing question import, session, message, status, scoring and WebSocket endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	jwtCfg, err := cfg.Auth.JWT()
	if err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	srv := server.New(a.service, server.Options{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Admin:          cfg.Auth,
		JWT:            jwtCfg,
		RateLimit:      ratelimit.NewConfig(cfg.RateLimit.Enabled, cfg.RateLimit.Limit, cfg.RateLimit.Window),
		Logger:         a.log,
	})
	return srv.Run(ctx)
}
