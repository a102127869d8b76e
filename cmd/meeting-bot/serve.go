package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/qieqieplus/meeting-bot/pkg/bot"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve /start, /join, /leave, /status and /health at --http-addr.

By default one bot runs in this process and is reused for every meeting.
With --supervise each /start or /join spawns a 'meeting-bot run' child, so
several meetings can run at once; the SDK allows one meeting per process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addMeetingFlags(serveCmd)
	serveCmd.Flags().Bool("supervise", false, "run each meeting in its own child process")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervise, _ := cmd.Flags().GetBool("supervise")
	if !supervise {
		log.Info("Starting server with an in-process bot...")
		return runBot(ctx, cfg, true, bot.WithPersistent())
	}

	log.Info("Starting server...")
	sup, err := NewSupervisor(cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.NewHTTPServer(sup, nil),
	}
	serveErr := listenAndServe(ctx, srv)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error during supervisor shutdown: %v", err)
	} else {
		log.Info("Supervisor shut down successfully")
	}

	log.Info("Server shutdown complete.")
	return serveErr
}
