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

	"github.com/qieqieplus/meeting-bot/pkg/audio"
	"github.com/qieqieplus/meeting-bot/pkg/bot"
	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/events"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/server"
	"github.com/qieqieplus/meeting-bot/pkg/storage"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Join or start the configured meeting",
	Long: `Join (or with --start, start) the configured meeting, record what the
recording flags ask for and leave after --leave-time minutes.

SIGINT or SIGTERM leaves the meeting early. With --transcribe the audio is
also streamed on /ws/audio/{meeting_id} at --http-addr.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	addMeetingFlags(runCmd)
	runCmd.Flags().String("config-json", "", "full config as JSON, or - to read it from stdin")
	runCmd.Flags().String("session-id", "", "session ID reported in events")
	_ = runCmd.Flags().MarkHidden("config-json")
	_ = runCmd.Flags().MarkHidden("session-id")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Starting meeting bot (PID: %d)", os.Getpid())

	var opts []bot.Option
	if id := flagString(cmd, "session-id"); id != "" {
		opts = append(opts, bot.WithSessionID(id))
	}
	return runBot(ctx, cfg, false, opts...)
}

// runBot opens the SDK, wires the bot's notifier, store and audio bus, and
// runs it until ctx is done or the bot stops. With serve set the HTTP API
// runs alongside; otherwise it runs only when transcription needs it.
func runBot(ctx context.Context, cfg *config.Config, serve bool, opts ...bot.Option) error {
	notifier, err := events.New(cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Warnf("Failed to close event notifier: %v", err)
		}
	}()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}

	native, err := zoomsdk.OpenNative(cfg.SDK.LibPath)
	if err != nil {
		return fmt.Errorf("failed to open SDK: %w", err)
	}

	audioBus := audio.NewBus()
	defer audioBus.Shutdown()

	opts = append(opts, bot.WithNotifier(notifier), bot.WithAudioBus(audioBus))
	if store != nil {
		opts = append(opts, bot.WithStore(store))
	}
	b := bot.New(cfg, native, opts...)

	if !serve && !cfg.Recording.Transcribe {
		return b.Run(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	ws := server.NewWebSocketServer(audioBus, cfg)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.NewHTTPServer(b, ws),
	}

	g.Go(func() error {
		// stops the HTTP server once the bot is done
		defer cancelRun()
		return b.Run(runCtx)
	})
	g.Go(func() error {
		ws.CleanupLoop(runCtx)
		return nil
	})
	g.Go(func() error {
		return listenAndServe(runCtx, srv)
	})
	return g.Wait()
}

// listenAndServe runs srv until ctx is done, then shuts it down.
func listenAndServe(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error during HTTP server shutdown: %v", err)
		return err
	}
	log.Info("HTTP server shut down successfully")
	return nil
}
