// Package recorder writes raw meeting media delivered by the SDK to disk.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/qieqieplus/meeting-bot/pkg/audio"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
)

var ErrClosed = errors.New("recorder: sink closed")

// AudioOptions configures an AudioSink.
type AudioOptions struct {
	// Path is the mixed stream file. In separate mode each participant is
	// written next to it as "<base>-<node id><ext>".
	Path string
	// Mixed records the single mixed stream only.
	Mixed bool
	// Transcribe publishes every frame to Bus for live consumers.
	Transcribe bool
	Bus        *audio.Bus
	MeetingID  string
}

// AudioSink appends raw S16LE PCM to one or more files.
type AudioSink struct {
	opts AudioOptions

	mu     sync.Mutex
	mixed  *os.File
	nodes  map[uint32]*os.File
	files  []string
	closed bool
}

func NewAudioSink(opts AudioOptions) (*AudioSink, error) {
	if opts.Path == "" {
		return nil, errors.New("recorder: audio file name is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}
	return &AudioSink{
		opts:  opts,
		nodes: make(map[uint32]*os.File),
	}, nil
}

// NodePath returns the file used for one participant in separate mode.
func (s *AudioSink) NodePath(nodeID uint32) string {
	ext := filepath.Ext(s.opts.Path)
	base := strings.TrimSuffix(s.opts.Path, ext)
	return fmt.Sprintf("%s-%d%s", base, nodeID, ext)
}

// Write handles one SDK audio callback. Frames that do not match the
// configured mode are ignored.
func (s *AudioSink) Write(d *zoomsdk.AudioData) error {
	if d == nil || len(d.Data) == 0 {
		return nil
	}
	if d.Mixed != s.opts.Mixed {
		return nil
	}

	s.mu.Lock()
	f, err := s.fileFor(d)
	if err == nil {
		_, err = f.Write(d.Data)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.opts.Transcribe && s.opts.Bus != nil {
		s.opts.Bus.Publish(s.opts.MeetingID, toFrame(d))
	}
	return nil
}

func toFrame(d *zoomsdk.AudioData) *audio.Frame {
	typ := audio.AudioTypeOneWay
	if d.Mixed {
		typ = audio.AudioTypeMixed
	}
	return &audio.Frame{
		Type:       typ,
		UserID:     uint64(d.NodeID),
		SampleRate: d.SampleRate,
		Channels:   d.Channels,
		Data:       d.Data,
	}
}

// fileFor must be called with s.mu held.
func (s *AudioSink) fileFor(d *zoomsdk.AudioData) (*os.File, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if d.Mixed {
		if s.mixed == nil {
			f, err := s.open(s.opts.Path)
			if err != nil {
				return nil, err
			}
			s.mixed = f
		}
		return s.mixed, nil
	}

	f, ok := s.nodes[d.NodeID]
	if !ok {
		var err error
		if f, err = s.open(s.NodePath(d.NodeID)); err != nil {
			return nil, err
		}
		s.nodes[d.NodeID] = f
	}
	return f, nil
}

// open truncates: a sink never appends to an earlier recording.
func (s *AudioSink) open(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	log.Infof("Writing raw audio to %s", path)
	s.files = append(s.files, path)
	return f, nil
}

// Files lists every file written so far.
func (s *AudioSink) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

func (s *AudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.mixed != nil {
		errs = append(errs, s.mixed.Close())
	}
	for _, f := range s.nodes {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
