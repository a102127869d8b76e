package bot

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/qieqieplus/meeting-bot/pkg/events"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/recorder"
	"github.com/qieqieplus/meeting-bot/pkg/storage"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
)

// StartRawRecording starts local raw recording and subscribes to the media
// the bot is configured to capture. Without the local recording privilege
// it asks the host for it instead; OnRecordingPrivilege retries once it is
// granted.
func (b *Bot) StartRawRecording() error {
	if err := b.sdk.CanStartRawRecording(); hasError(err, "") {
		log.Info("requesting local recording privilege")
		b.notify(events.Event{Type: events.RecordingPrivilegeRequested})
		return b.sdk.RequestLocalRecordingPrivilege()
	}

	if err := b.sdk.StartRawRecording(); hasError(err, "start raw recording") {
		return err
	}

	cfg := b.config()
	rec := cfg.Recording
	if key := b.currentRecordingKey(); key != "" {
		rec.AudioDir = filepath.Join(rec.AudioDir, key)
		rec.VideoDir = filepath.Join(rec.VideoDir, key)
	}

	if rec.RawVideo {
		if _, err := b.ensureVideoSink(rec.VideoPath()); hasError(err, "create raw video renderer") {
			return err
		}

		uid, err := b.sdk.FirstParticipant()
		if hasError(err, "get first participant") {
			return err
		}
		if err := b.sdk.SubscribeVideo(uid, zoomsdk.Resolution720P); hasError(err, "subscribe to raw video") {
			return err
		}
		b.mu.Lock()
		b.videoSubscribed = true
		b.mu.Unlock()
	}

	if rec.RawAudio {
		opts := recorder.AudioOptions{
			Path:       rec.AudioPath(),
			Mixed:      !rec.SeparateParticipantAudio,
			Transcribe: rec.Transcribe,
			Bus:        b.bus,
			MeetingID:  cfg.Meeting.MeetingID,
		}
		if _, err := b.ensureAudioSink(opts); hasError(err, "create raw audio sink") {
			return err
		}
		if err := b.sdk.SubscribeAudio(); hasError(err, "subscribe to raw audio") {
			return err
		}
		b.mu.Lock()
		b.audioSubscribed = true
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.recording = true
	b.mu.Unlock()
	b.notify(events.Event{Type: events.RecordingStarted})
	return nil
}

func (b *Bot) currentRecordingKey() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordingKey
}

func (b *Bot) ensureVideoSink(file string) (*recorder.VideoSink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.videoSink != nil {
		return b.videoSink, nil
	}
	sink, err := recorder.NewVideoSink(file)
	if err != nil {
		return nil, err
	}
	b.videoSink = sink
	return sink, nil
}

func (b *Bot) ensureAudioSink(opts recorder.AudioOptions) (*recorder.AudioSink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.audioSink != nil {
		return b.audioSink, nil
	}
	sink, err := recorder.NewAudioSink(opts)
	if err != nil {
		return nil, err
	}
	b.audioSink = sink
	return sink, nil
}

// StopRawRecording stops local raw recording. The sinks stay open until
// the meeting ends.
func (b *Bot) StopRawRecording() error {
	err := b.sdk.StopRawRecording()
	if !hasError(err, "stop raw recording") {
		b.mu.Lock()
		b.recording = false
		b.mu.Unlock()
	}
	return err
}

// unsubscribe releases the raw data helpers subscribed so far, whether or
// not recording started completely.
func (b *Bot) unsubscribe() {
	b.mu.Lock()
	audioSub, videoSub := b.audioSubscribed, b.videoSubscribed
	b.audioSubscribed, b.videoSubscribed = false, false
	b.mu.Unlock()

	if audioSub {
		hasError(b.sdk.UnsubscribeAudio(), "unsubscribe from raw audio")
	}
	if videoSub {
		hasError(b.sdk.UnsubscribeVideo(), "unsubscribe from raw video")
	}
}

// closeRecording releases the helpers, closes the sinks and uploads what
// they wrote.
func (b *Bot) closeRecording() {
	b.unsubscribe()

	b.mu.Lock()
	audioSink, videoSink := b.audioSink, b.videoSink
	b.audioSink, b.videoSink = nil, nil
	b.recording = false
	prefix := b.sessionID
	if b.recordingKey != "" {
		prefix = path.Join(prefix, b.recordingKey)
	}
	b.mu.Unlock()

	var files []string
	if audioSink != nil {
		if err := audioSink.Close(); err != nil {
			log.Errorf("failed to close raw audio files: %v", err)
		}
		files = append(files, audioSink.Files()...)
	}
	if videoSink != nil {
		if err := videoSink.Close(); err != nil {
			log.Errorf("failed to close raw video file: %v", err)
		}
		files = append(files, videoSink.Files()...)
	}
	if len(files) == 0 || b.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	keys, err := storage.Upload(ctx, b.store, prefix, files)
	if err != nil {
		log.Errorf("failed to upload recordings: %v", err)
		b.setError(fmt.Errorf("upload recordings: %w", err))
	}
	if len(keys) > 0 {
		b.mu.Lock()
		b.uploaded = append(b.uploaded, keys...)
		b.mu.Unlock()
		b.notify(events.Event{Type: events.Uploaded, Files: keys})
	}
}
