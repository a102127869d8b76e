package server

import (
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/qieqieplus/meeting-bot/pkg/audio"
)

// WebSocket message types
const (
	MessageTypeAudioFormat = "audio_format"
	MessageTypeError       = "error"
	MessageTypeHeartbeat   = "heartbeat"
)

const (
	defaultQueueSize = 1000
	maxQueueSize     = 10000
)

// AudioFormatMessage describes the PCM in the binary frames that follow it.
// It is sent first and again whenever the format changes.
type AudioFormatMessage struct {
	Type         string `json:"type"`
	MeetingID    string `json:"meeting_id"`
	SampleRate   int    `json:"sample_rate"`
	Channels     int    `json:"channels"`
	SampleFormat string `json:"sample_format"`
}

// ErrorMessage is sent when an error occurs
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// HeartbeatMessage is sent periodically to keep connection alive
type HeartbeatMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// CreateAudioFormatMessage creates the initial audio format message
func CreateAudioFormatMessage(meetingID string, sampleRate, channels int) ([]byte, error) {
	return json.Marshal(AudioFormatMessage{
		Type:         MessageTypeAudioFormat,
		MeetingID:    meetingID,
		SampleRate:   sampleRate,
		Channels:     channels,
		SampleFormat: "s16le",
	})
}

// CreateErrorMessage creates an error message
func CreateErrorMessage(errMsg string, code int) ([]byte, error) {
	return json.Marshal(ErrorMessage{
		Type:  MessageTypeError,
		Error: errMsg,
		Code:  code,
	})
}

// CreateHeartbeatMessage creates a heartbeat message
func CreateHeartbeatMessage(t time.Time) ([]byte, error) {
	return json.Marshal(HeartbeatMessage{
		Type:      MessageTypeHeartbeat,
		Timestamp: t.UnixMilli(),
	})
}

// ConnectionConfig is what a client subscribes to
type ConnectionConfig struct {
	Filter    audio.Filter
	QueueSize int
}

// ParseConnectionConfig builds the subscription for meetingID from query
// parameters: type (repeatable: mixed, one_way, share), user_id
// (repeatable) and queue_size. Unparseable values are ignored.
func ParseConnectionConfig(meetingID string, params url.Values) ConnectionConfig {
	cc := ConnectionConfig{
		Filter:    audio.Filter{MeetingID: meetingID},
		QueueSize: defaultQueueSize,
	}

	for _, v := range params["type"] {
		if t, ok := audio.ParseAudioType(v); ok {
			cc.Filter.Types = append(cc.Filter.Types, t)
		}
	}

	for _, v := range params["user_id"] {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			cc.Filter.UserIDs = append(cc.Filter.UserIDs, id)
		}
	}

	if size, err := strconv.Atoi(params.Get("queue_size")); err == nil && size > 0 {
		cc.QueueSize = min(size, maxQueueSize)
	}

	return cc
}
