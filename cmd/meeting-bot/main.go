// Command meeting-bot joins or starts a Zoom meeting with the Meeting SDK,
// records raw audio and video, and optionally serves an HTTP API.
//
// Usage:
//
//	meeting-bot [flags] <command>
//
// Commands:
//
//	run    - join or start the configured meeting and leave after the leave time
//	serve  - HTTP API driving an in-process bot, or one child per meeting (--supervise)
//	token  - print a Meeting SDK JWT for the configured credentials
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "meeting-bot",
	Short: "Headless Zoom meeting bot",
	Long: `meeting-bot - joins Zoom meetings through the Meeting SDK.

Configuration is layered, later sources win:
  defaults, the .env file, the YAML file (--config), environment variables,
  then command-line flags.

Examples:
  # Join a meeting and leave after 30 minutes
  meeting-bot run --meeting-id 88104465816 --password secret --leave-time 30

  # Serve the HTTP API with one child process per meeting
  meeting-bot serve --supervise --http-addr :18080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML config file")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file, ignored when missing")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (json, text)")
	pf.String("log-file", "", "also write logs to this rotating file")
	pf.String("client-id", "", "Meeting SDK client ID (ZOOM_CLIENT_ID)")
	pf.String("client-secret", "", "Meeting SDK client secret (ZOOM_CLIENT_SECRET)")
	pf.String("zoom-host", "", "Zoom web domain")
	pf.String("lib-path", "", "path to libzoombot_sdk")

	rootCmd.AddCommand(runCmd, serveCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// addMeetingFlags registers the flags shared by run and serve.
func addMeetingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("meeting-id", "", "meeting number")
	f.String("password", "", "meeting password")
	f.String("display-name", "", "name shown to other participants")
	f.String("zak", "", "ZAK token of the host or a signed-in user")
	f.String("join-token", "", "app privilege token for local recording")
	f.Bool("start", false, "start the meeting instead of joining it")
	f.Int("leave-time", 0, "minutes to stay in the meeting")
	f.Bool("raw-audio", false, "record raw audio")
	f.Bool("raw-video", false, "record raw video")
	f.Bool("separate-participant-audio", false, "record one file per participant")
	f.Bool("transcribe", false, "stream audio to WebSocket clients")
	f.String("audio-dir", "", "audio output directory")
	f.String("audio-file", "", "audio output file name")
	f.String("video-dir", "", "video output directory")
	f.String("video-file", "", "video output file name")
	f.String("http-addr", "", "HTTP listen address")
}

// loadConfig builds the configuration for cmd and sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if raw := flagString(cmd, "config-json"); raw != "" {
		cfg, err = decodeConfig(raw, cmd.InOrStdin())
	} else {
		cfg, err = config.Load(config.LoadOptions{ConfigFile: configFile, EnvFile: envFile})
	}
	if err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)

	log.Setup(log.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
	return cfg, nil
}

// decodeConfig reads a JSON config, from r when raw is "-".
func decodeConfig(raw string, r io.Reader) (*config.Config, error) {
	var dec *json.Decoder
	if raw == "-" {
		dec = json.NewDecoder(r)
	} else {
		dec = json.NewDecoder(strings.NewReader(raw))
	}

	cfg := config.Default()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	setString(cmd, "log-level", &cfg.Log.Level)
	setString(cmd, "log-format", &cfg.Log.Format)
	setString(cmd, "log-file", &cfg.Log.File)
	setString(cmd, "client-id", &cfg.SDK.ClientID)
	setString(cmd, "client-secret", &cfg.SDK.ClientSecret)
	setString(cmd, "zoom-host", &cfg.SDK.ZoomHost)
	setString(cmd, "lib-path", &cfg.SDK.LibPath)

	setString(cmd, "meeting-id", &cfg.Meeting.MeetingID)
	setString(cmd, "password", &cfg.Meeting.Password)
	setString(cmd, "display-name", &cfg.Meeting.DisplayName)
	setString(cmd, "zak", &cfg.Meeting.ZAK)
	setString(cmd, "join-token", &cfg.Meeting.JoinToken)
	setBool(cmd, "start", &cfg.Meeting.Start)
	setInt(cmd, "leave-time", &cfg.Meeting.LeaveTimeMinutes)

	setBool(cmd, "raw-audio", &cfg.Recording.RawAudio)
	setBool(cmd, "raw-video", &cfg.Recording.RawVideo)
	setBool(cmd, "separate-participant-audio", &cfg.Recording.SeparateParticipantAudio)
	setBool(cmd, "transcribe", &cfg.Recording.Transcribe)
	setString(cmd, "audio-dir", &cfg.Recording.AudioDir)
	setString(cmd, "audio-file", &cfg.Recording.AudioFile)
	setString(cmd, "video-dir", &cfg.Recording.VideoDir)
	setString(cmd, "video-file", &cfg.Recording.VideoFile)

	setString(cmd, "http-addr", &cfg.HTTPAddr)
}

// Only flags given on the command line override the loaded config.

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func setString(cmd *cobra.Command, name string, dst *string) {
	if changed(cmd, name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func setBool(cmd *cobra.Command, name string, dst *bool) {
	if changed(cmd, name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

func setInt(cmd *cobra.Command, name string, dst *int) {
	if changed(cmd, name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}
