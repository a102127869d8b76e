package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultZoomHost = "https://zoom.us"

// SDKConfig holds the Meeting SDK app credentials
type SDKConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	ZoomHost     string `yaml:"zoom_host" json:"zoom_host"`
	LibPath      string `yaml:"lib_path" json:"lib_path,omitempty"` // path to the C shim shared library
}

// MeetingConfig describes the meeting to join or start
type MeetingConfig struct {
	MeetingID        string `yaml:"meeting_id" json:"meeting_id"`
	Password         string `yaml:"password" json:"password"`
	DisplayName      string `yaml:"display_name" json:"display_name"`
	ZAK              string `yaml:"zak" json:"zak,omitempty"`
	JoinToken        string `yaml:"join_token" json:"join_token,omitempty"`
	Start            bool   `yaml:"start" json:"start"`
	LeaveTimeMinutes int    `yaml:"leave_time_minutes" json:"leave_time_minutes"`
}

// RecordingConfig controls raw data capture
type RecordingConfig struct {
	RawAudio                 bool   `yaml:"raw_audio" json:"raw_audio"`
	RawVideo                 bool   `yaml:"raw_video" json:"raw_video"`
	SeparateParticipantAudio bool   `yaml:"separate_participant_audio" json:"separate_participant_audio"`
	Transcribe               bool   `yaml:"transcribe" json:"transcribe"`
	AudioDir                 string `yaml:"audio_dir" json:"audio_dir"`
	AudioFile                string `yaml:"audio_file" json:"audio_file"`
	VideoDir                 string `yaml:"video_dir" json:"video_dir"`
	VideoFile                string `yaml:"video_file" json:"video_file"`
}

// WebSocketConfig holds WebSocket-specific configuration
type WebSocketConfig struct {
	WriteTimeout       time.Duration `yaml:"write_timeout" json:"write_timeout"`               // Timeout for writing messages to WebSocket
	ReadTimeout        time.Duration `yaml:"read_timeout" json:"read_timeout"`                 // Timeout for reading messages from WebSocket (keepalive)
	PingInterval       time.Duration `yaml:"ping_interval" json:"ping_interval"`               // Interval for sending ping messages
	AudioFlushInterval time.Duration `yaml:"audio_flush_interval" json:"audio_flush_interval"` // Interval for flushing aggregated audio frames
}

// StorageConfig selects where finished recordings are copied
type StorageConfig struct {
	Type      string `yaml:"type" json:"type"` // "", "local" or "s3"
	LocalDir  string `yaml:"local_dir" json:"local_dir,omitempty"`
	Bucket    string `yaml:"bucket" json:"bucket,omitempty"`
	Prefix    string `yaml:"prefix" json:"prefix,omitempty"`
	Region    string `yaml:"region" json:"region,omitempty"`
	Endpoint  string `yaml:"endpoint" json:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key" json:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key" json:"secret_key,omitempty"`
	PathStyle bool   `yaml:"path_style" json:"path_style,omitempty"`
}

// EventsConfig selects where lifecycle events are delivered
type EventsConfig struct {
	WebhookURL   string   `yaml:"webhook_url" json:"webhook_url,omitempty"`
	WebhookRetry int      `yaml:"webhook_retry" json:"webhook_retry,omitempty"`
	NatsURLs     []string `yaml:"nats_urls" json:"nats_urls,omitempty"`
	NatsUser     string   `yaml:"nats_user" json:"nats_user,omitempty"`
	NatsPassword string   `yaml:"nats_password" json:"nats_password,omitempty"`
	NatsSubject  string   `yaml:"nats_subject" json:"nats_subject,omitempty"`
}

// LogConfig mirrors log.Options
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file,omitempty"`
	MaxSize    int    `yaml:"max_size" json:"max_size,omitempty"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age" json:"max_age,omitempty"`
}

type Config struct {
	SDK       SDKConfig       `yaml:"sdk" json:"sdk"`
	Meeting   MeetingConfig   `yaml:"meeting" json:"meeting"`
	Recording RecordingConfig `yaml:"recording" json:"recording"`

	// Server configuration
	HTTPAddr string `yaml:"http_addr" json:"http_addr"`

	// Audio configuration
	AudioSampleRate int `yaml:"audio_sample_rate" json:"audio_sample_rate"`
	AudioChannels   int `yaml:"audio_channels" json:"audio_channels"`

	WebSocket WebSocketConfig `yaml:"websocket" json:"websocket"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Events    EventsConfig    `yaml:"events" json:"events"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// LoadOptions names the optional files read by Load
type LoadOptions struct {
	ConfigFile string // YAML
	EnvFile    string // dotenv; missing file is not an error
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		SDK: SDKConfig{
			ZoomHost: DefaultZoomHost,
		},
		Meeting: MeetingConfig{
			DisplayName: "Meeting Bot",
		},
		Recording: RecordingConfig{
			AudioDir:  "out",
			AudioFile: "meeting-audio.pcm",
			VideoDir:  "out",
			VideoFile: "meeting-video.yuv",
		},
		HTTPAddr:        ":18080",
		AudioSampleRate: 32000,
		AudioChannels:   1,

		// WebSocket defaults
		WebSocket: WebSocketConfig{
			WriteTimeout:       5 * time.Second,
			ReadTimeout:        3 * time.Minute,
			PingInterval:       60 * time.Second,
			AudioFlushInterval: 100 * time.Millisecond,
		},
		Events: EventsConfig{
			WebhookRetry: 3,
			NatsSubject:  "meetingbot.events",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds a Config from defaults, an optional dotenv file, an optional
// YAML file and the process environment, in that order.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	if opts.ConfigFile != "" {
		if err := cfg.readYAML(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) readYAML(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	envString("ZOOM_CLIENT_ID", &c.SDK.ClientID)
	envString("ZOOM_CLIENT_SECRET", &c.SDK.ClientSecret)
	envString("ZOOM_HOST", &c.SDK.ZoomHost)
	envString("ZOOM_SDK_LIB_PATH", &c.SDK.LibPath)

	envString("MEETING_ID", &c.Meeting.MeetingID)
	envString("MEETING_PASSWORD", &c.Meeting.Password)
	envString("DISPLAY_NAME", &c.Meeting.DisplayName)
	envString("ZOOM_ZAK", &c.Meeting.ZAK)
	envString("ZOOM_JOIN_TOKEN", &c.Meeting.JoinToken)
	envBool("MEETING_START", &c.Meeting.Start)
	envInt("LEAVE_TIME_MINUTES", &c.Meeting.LeaveTimeMinutes)

	envBool("RAW_AUDIO", &c.Recording.RawAudio)
	envBool("RAW_VIDEO", &c.Recording.RawVideo)
	envBool("SEPARATE_PARTICIPANT_AUDIO", &c.Recording.SeparateParticipantAudio)
	envBool("TRANSCRIBE", &c.Recording.Transcribe)
	envString("AUDIO_DIR", &c.Recording.AudioDir)
	envString("AUDIO_FILE", &c.Recording.AudioFile)
	envString("VIDEO_DIR", &c.Recording.VideoDir)
	envString("VIDEO_FILE", &c.Recording.VideoFile)

	envString("HTTP_ADDR", &c.HTTPAddr)
	envInt("AUDIO_SAMPLE_RATE", &c.AudioSampleRate)
	envInt("AUDIO_CHANNELS", &c.AudioChannels)

	// WebSocket configuration from environment variables (timeout values in seconds)
	envSeconds("WEBSOCKET_WRITE_TIMEOUT", &c.WebSocket.WriteTimeout)
	envSeconds("WEBSOCKET_READ_TIMEOUT", &c.WebSocket.ReadTimeout)
	envSeconds("WEBSOCKET_PING_INTERVAL", &c.WebSocket.PingInterval)
	if interval := os.Getenv("WEBSOCKET_AUDIO_FLUSH_INTERVAL"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil {
			c.WebSocket.AudioFlushInterval = time.Duration(ms) * time.Millisecond
		}
	}

	envString("STORAGE_TYPE", &c.Storage.Type)
	envString("STORAGE_LOCAL_DIR", &c.Storage.LocalDir)
	envString("S3_BUCKET", &c.Storage.Bucket)
	envString("S3_PREFIX", &c.Storage.Prefix)
	envString("S3_REGION", &c.Storage.Region)
	envString("S3_ENDPOINT", &c.Storage.Endpoint)
	envString("S3_ACCESS_KEY", &c.Storage.AccessKey)
	envString("S3_SECRET_KEY", &c.Storage.SecretKey)

	envString("WEBHOOK_URL", &c.Events.WebhookURL)
	if urls := os.Getenv("NATS_URLS"); urls != "" {
		c.Events.NatsURLs = strings.Split(urls, ",")
	}
	envString("NATS_USER", &c.Events.NatsUser)
	envString("NATS_PASSWORD", &c.Events.NatsPassword)
	envString("NATS_SUBJECT", &c.Events.NatsSubject)

	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
	envString("LOG_FILE", &c.Log.File)
}

// Validate checks what every command needs before touching the SDK.
func (c *Config) Validate() error {
	if c.SDK.ClientID == "" {
		return ErrMissingClientID
	}
	if c.SDK.ClientSecret == "" {
		return ErrMissingClientSecret
	}
	if c.Meeting.LeaveTimeMinutes <= 0 {
		return ErrInvalidLeaveTime
	}
	return nil
}

// LeaveAfter returns the configured meeting duration.
func (c *Config) LeaveAfter() time.Duration {
	return time.Duration(c.Meeting.LeaveTimeMinutes) * time.Minute
}

// ValidateJoin checks the fields required to join without login.
func (m MeetingConfig) ValidateJoin() error {
	if m.MeetingID == "" {
		return ErrMissingMeetingID
	}
	if m.Password == "" {
		return ErrMissingPassword
	}
	if m.DisplayName == "" {
		return ErrMissingDisplayName
	}
	if _, err := m.MeetingNumber(); err != nil {
		return err
	}
	return nil
}

// MeetingNumber parses the meeting id. Spaces and dashes, as printed in
// invitations, are ignored.
func (m MeetingConfig) MeetingNumber() (uint64, error) {
	id := strings.NewReplacer(" ", "", "-", "").Replace(m.MeetingID)
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMeetingID, m.MeetingID)
	}
	return n, nil
}

// AudioPath returns the mixed audio output path, or "" without a file name.
func (r RecordingConfig) AudioPath() string {
	if r.AudioFile == "" {
		return ""
	}
	return filepath.Join(r.AudioDir, r.AudioFile)
}

// VideoPath returns the raw video output path, or "" without a file name.
func (r RecordingConfig) VideoPath() string {
	if r.VideoFile == "" {
		return ""
	}
	return filepath.Join(r.VideoDir, r.VideoFile)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envSeconds(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(seconds) * time.Second
		}
	}
}
