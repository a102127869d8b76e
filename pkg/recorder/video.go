package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
)

// VideoSink writes raw I420 frames to a single file, replacing any earlier
// content.
type VideoSink struct {
	path string

	mu            sync.Mutex
	file          *os.File
	width, height int
	frames        int
	closed        bool
}

func NewVideoSink(path string) (*VideoSink, error) {
	if path == "" {
		return nil, fmt.Errorf("recorder: video file name is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create video directory: %w", err)
	}
	return &VideoSink{path: path}, nil
}

func (s *VideoSink) Write(frame *zoomsdk.VideoFrame) error {
	if frame == nil || len(frame.Data) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		log.Infof("Writing raw video to %s", s.path)
		s.file = f
	}

	if frame.Width != s.width || frame.Height != s.height {
		log.Infof("Raw video resolution %dx%d", frame.Width, frame.Height)
		s.width, s.height = frame.Width, frame.Height
	}

	if _, err := s.file.Write(frame.Data); err != nil {
		return err
	}
	s.frames++
	return nil
}

// Frames returns how many frames were written.
func (s *VideoSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *VideoSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return []string{s.path}
}

func (s *VideoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
