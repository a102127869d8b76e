package server

import (
	"encoding/binary"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/qieqieplus/meeting-bot/pkg/audio"
	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketStreamsAudio(t *testing.T) {
	cfg := config.Default()
	cfg.WebSocket.AudioFlushInterval = 10 * time.Millisecond

	bus := audio.NewBus()
	ws := NewWebSocketServer(bus, cfg)
	ts := httptest.NewServer(NewHTTPServer(&fakeController{}, ws))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/audio/881?type=mixed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	kind, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)

	var format AudioFormatMessage
	require.NoError(t, json.Unmarshal(raw, &format))
	assert.Equal(t, "881", format.MeetingID)
	assert.Equal(t, cfg.AudioSampleRate, format.SampleRate)
	assert.Equal(t, 1, ws.ClientCount())

	bus.Publish("other", &audio.Frame{Type: audio.AudioTypeMixed, Data: []byte{9, 9}})
	bus.Publish("881", &audio.Frame{Type: audio.AudioTypeOneWay, UserID: 7, Data: []byte{8, 8}})
	bus.Publish("881", &audio.Frame{Type: audio.AudioTypeMixed, Data: []byte{1, 2}})
	bus.Publish("881", &audio.Frame{Type: audio.AudioTypeMixed, Data: []byte{3, 4}})

	var pcm []byte
	for len(pcm) < 4 {
		kind, raw, err = conn.ReadMessage()
		require.NoError(t, err)
		if kind != websocket.BinaryMessage {
			continue
		}
		require.GreaterOrEqual(t, len(raw), audio.BinaryFrameHeaderSize)
		assert.Equal(t, uint64(audio.AudioTypeMixed), binary.LittleEndian.Uint64(raw[0:8]))
		pcm = append(pcm, raw[audio.BinaryFrameHeaderSize:]...)
	}
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)
}

func TestWebSocketAdvertisesFrameFormat(t *testing.T) {
	cfg := config.Default()
	cfg.WebSocket.AudioFlushInterval = 10 * time.Millisecond

	bus := audio.NewBus()
	ws := NewWebSocketServer(bus, cfg)
	ts := httptest.NewServer(NewHTTPServer(&fakeController{}, ws))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/audio/881"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var formats []AudioFormatMessage
	readUntilAudio := func() []byte {
		for {
			kind, raw, err := conn.ReadMessage()
			require.NoError(t, err)
			if kind == websocket.BinaryMessage {
				return raw[audio.BinaryFrameHeaderSize:]
			}
			var msg AudioFormatMessage
			require.NoError(t, json.Unmarshal(raw, &msg))
			if msg.Type == MessageTypeAudioFormat {
				formats = append(formats, msg)
			}
		}
	}

	// the configured format is advertised once subscribed
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var first AudioFormatMessage
	require.NoError(t, json.Unmarshal(raw, &first))
	require.Equal(t, MessageTypeAudioFormat, first.Type)
	formats = append(formats, first)

	// same format as configured: no new audio_format
	bus.Publish("881", &audio.Frame{Type: audio.AudioTypeMixed, SampleRate: 32000, Channels: 1, Data: []byte{1, 1}})
	assert.Equal(t, []byte{1, 1}, readUntilAudio())
	require.Len(t, formats, 1)

	bus.Publish("881", &audio.Frame{Type: audio.AudioTypeMixed, SampleRate: 16000, Channels: 2, Data: []byte{2, 2}})
	assert.Equal(t, []byte{2, 2}, readUntilAudio())
	require.Len(t, formats, 2)
	assert.Equal(t, 16000, formats[1].SampleRate)
	assert.Equal(t, 2, formats[1].Channels)
}

func TestWebSocketClientCountDropsOnClose(t *testing.T) {
	bus := audio.NewBus()
	ws := NewWebSocketServer(bus, config.Default())
	ts := httptest.NewServer(NewHTTPServer(&fakeController{}, ws))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/audio/881"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	_, _, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, 1, ws.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool {
		return ws.ClientCount() == 0 && bus.SubscriberCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAggregatorFlush(t *testing.T) {
	var agg aggregator
	agg.add(&audio.Frame{Type: audio.AudioTypeOneWay, UserID: 2, Data: []byte{1}})
	agg.add(&audio.Frame{Type: audio.AudioTypeMixed, Data: []byte{2}})
	agg.add(&audio.Frame{Type: audio.AudioTypeOneWay, UserID: 2, Data: []byte{3}})

	var got []audio.Frame
	emit := func(f *audio.Frame) bool {
		got = append(got, audio.Frame{Type: f.Type, UserID: f.UserID, Data: append([]byte(nil), f.Data...)})
		return true
	}
	require.True(t, agg.flush(emit))
	assert.Equal(t, []audio.Frame{
		{Type: audio.AudioTypeOneWay, UserID: 2, Data: []byte{1, 3}},
		{Type: audio.AudioTypeMixed, Data: []byte{2}},
	}, got)

	// nothing pending after a flush
	got = nil
	require.True(t, agg.flush(emit))
	assert.Empty(t, got)
}

func TestAggregatorFlushStopsOnError(t *testing.T) {
	var agg aggregator
	agg.add(&audio.Frame{UserID: 1, Data: []byte{1}})
	agg.add(&audio.Frame{UserID: 2, Data: []byte{2}})

	calls := 0
	ok := agg.flush(func(*audio.Frame) bool {
		calls++
		return false
	})
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}
