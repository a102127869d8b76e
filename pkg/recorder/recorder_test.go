package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qieqieplus/meeting-bot/pkg/audio"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioSinkMixed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewAudioSink(AudioOptions{Path: filepath.Join(dir, "meeting-audio.pcm"), Mixed: true})
	require.NoError(t, err)

	require.NoError(t, sink.Write(&zoomsdk.AudioData{Mixed: true, Data: []byte{1, 2}}))
	require.NoError(t, sink.Write(&zoomsdk.AudioData{Mixed: true, Data: []byte{3, 4}}))
	// one-way frames are ignored in mixed mode
	require.NoError(t, sink.Write(&zoomsdk.AudioData{NodeID: 9, Data: []byte{5}}))
	require.NoError(t, sink.Close())

	want := filepath.Join(dir, "meeting-audio.pcm")
	assert.Equal(t, []string{want}, sink.Files())

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	assert.ErrorIs(t, sink.Write(&zoomsdk.AudioData{Mixed: true, Data: []byte{1}}), ErrClosed)
	assert.NoError(t, sink.Close())
}

func TestAudioSinkSeparateParticipants(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewAudioSink(AudioOptions{Path: filepath.Join(dir, "meeting-audio.pcm")})
	require.NoError(t, err)

	require.NoError(t, sink.Write(&zoomsdk.AudioData{NodeID: 100, Data: []byte{1}}))
	require.NoError(t, sink.Write(&zoomsdk.AudioData{NodeID: 200, Data: []byte{2}}))
	require.NoError(t, sink.Write(&zoomsdk.AudioData{NodeID: 100, Data: []byte{3}}))
	require.NoError(t, sink.Write(&zoomsdk.AudioData{Mixed: true, Data: []byte{4}}))
	require.NoError(t, sink.Close())

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "meeting-audio-100.pcm"),
		filepath.Join(dir, "meeting-audio-200.pcm"),
	}, sink.Files())

	data, err := os.ReadFile(sink.NodePath(100))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3}, data)
}

func TestAudioSinkTranscribe(t *testing.T) {
	bus := audio.NewBus()
	defer bus.Shutdown()
	sub := audio.NewSubscriber("listener", 4, audio.Filter{})
	bus.Subscribe(sub)

	sink, err := NewAudioSink(AudioOptions{
		Path:       filepath.Join(t.TempDir(), "a.pcm"),
		Mixed:      true,
		Transcribe: true,
		Bus:        bus,
		MeetingID:  "123",
	})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write(&zoomsdk.AudioData{Mixed: true, SampleRate: 32000, Channels: 1, Data: []byte{7, 7}}))

	require.Len(t, sub.Channel, 1)
	frame := <-sub.Channel
	assert.Equal(t, audio.AudioTypeMixed, frame.Type)
	assert.Equal(t, 32000, frame.SampleRate)
	assert.Equal(t, []byte{7, 7}, frame.Data)
}

func TestVideoSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewVideoSink(filepath.Join(dir, "meeting-video.yuv"))
	require.NoError(t, err)
	assert.Empty(t, sink.Files())

	frame := &zoomsdk.VideoFrame{Width: 2, Height: 2, Data: make([]byte, 6)}
	require.NoError(t, sink.Write(frame))
	require.NoError(t, sink.Write(frame))
	require.NoError(t, sink.Close())

	assert.Equal(t, 2, sink.Frames())
	info, err := os.Stat(filepath.Join(dir, "meeting-video.yuv"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size())
	assert.ErrorIs(t, sink.Write(frame), ErrClosed)
}

func TestSinksRequireFileName(t *testing.T) {
	_, err := NewAudioSink(AudioOptions{})
	assert.Error(t, err)
	_, err = NewVideoSink("")
	assert.Error(t, err)
}

func TestSinksReplaceEarlierRecording(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "meeting-audio.pcm")
	videoPath := filepath.Join(dir, "meeting-video.yuv")
	require.NoError(t, os.WriteFile(audioPath, []byte("old audio"), 0o644))
	require.NoError(t, os.WriteFile(videoPath, []byte("old video"), 0o644))

	as, err := NewAudioSink(AudioOptions{Path: audioPath, Mixed: true})
	require.NoError(t, err)
	require.NoError(t, as.Write(&zoomsdk.AudioData{Mixed: true, Data: []byte{1}}))
	require.NoError(t, as.Close())

	vs, err := NewVideoSink(videoPath)
	require.NoError(t, err)
	require.NoError(t, vs.Write(&zoomsdk.VideoFrame{Width: 1, Height: 1, Data: []byte{2}}))
	require.NoError(t, vs.Close())

	data, err := os.ReadFile(audioPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
	data, err = os.ReadFile(videoPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, data)
}
