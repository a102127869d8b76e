package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/qieqieplus/meeting-bot/pkg/bot"
	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/server"
	"github.com/sirupsen/logrus"
)

// ErrMeetingRunning is returned when a child already serves the meeting.
var ErrMeetingRunning = errors.New("meeting already has a running bot")

// defaultGrace is how long a child may outlive its leave time before it
// is stopped, and how long it has to exit after SIGTERM before SIGKILL.
const defaultGrace = time.Minute

// Supervisor runs one 'meeting-bot run' child process per meeting. The SDK
// holds process-global state, so concurrent meetings need separate
// processes.
type Supervisor struct {
	cfg       *config.Config
	workerBin string
	grace     time.Duration
	command   func(ctx context.Context, name string, args ...string) *exec.Cmd

	mu      sync.Mutex
	workers map[string]*workerProcess // by session ID
	wg      sync.WaitGroup
}

// workerProcess is a running child.
type workerProcess struct {
	sessionID string
	meetingID string
	pid       int
	startedAt time.Time
	leaveAt   time.Time

	cmd    *exec.Cmd
	cancel context.CancelFunc
}

var _ server.Controller = (*Supervisor)(nil)

func NewSupervisor(cfg *config.Config) (*Supervisor, error) {
	workerBin, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks if any
	workerBin, err = filepath.EvalSymlinks(workerBin)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable path: %w", err)
	}

	log.Infof("Using worker binary: %s run", workerBin)

	return &Supervisor{
		cfg:       cfg,
		workerBin: workerBin,
		grace:     defaultGrace,
		command:   exec.CommandContext,
		workers:   make(map[string]*workerProcess),
	}, nil
}

// StartMeeting starts the configured meeting in a new child.
func (s *Supervisor) StartMeeting(ctx context.Context) error {
	child := *s.cfg
	child.Meeting.Start = true
	return s.spawn(&child)
}

// JoinMeeting joins the meeting described by req in a new child.
func (s *Supervisor) JoinMeeting(ctx context.Context, req bot.JoinRequest) error {
	child := *s.cfg
	req.Apply(&child.Meeting)
	child.Meeting.Start = false
	if err := child.Meeting.ValidateJoin(); err != nil {
		return err
	}
	return s.spawn(&child)
}

// LeaveMeeting asks the child serving sessionID, or every child when
// sessionID is empty, to leave. It does not wait for the children to exit.
func (s *Supervisor) LeaveMeeting(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	var targets []*workerProcess
	if sessionID == "" {
		for _, w := range s.workers {
			targets = append(targets, w)
		}
	} else if w, ok := s.workers[sessionID]; ok {
		targets = append(targets, w)
	}
	s.mu.Unlock()

	if sessionID != "" && len(targets) == 0 {
		return bot.ErrUnknownSession
	}
	for _, w := range targets {
		log.Infof("Stopping worker process: %s (PID: %d)", w.sessionID, w.pid)
		w.cancel()
	}
	return nil
}

// Snapshots lists the running children, oldest first.
func (s *Supervisor) Snapshots(ctx context.Context) []bot.Snapshot {
	s.mu.Lock()
	workers := make([]*workerProcess, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	slices.SortFunc(workers, func(a, b *workerProcess) int {
		return a.startedAt.Compare(b.startedAt)
	})

	out := make([]bot.Snapshot, 0, len(workers))
	for _, w := range workers {
		startedAt, leaveAt := w.startedAt, w.leaveAt
		out = append(out, bot.Snapshot{
			SessionID: w.sessionID,
			MeetingID: w.meetingID,
			Status:    "running",
			JoinedAt:  &startedAt,
			LeaveAt:   &leaveAt,
		})
	}
	return out
}

// Shutdown stops every child and waits for them to exit or ctx to end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	log.Info("Shutting down supervisor")
	_ = s.LeaveMeeting(ctx, "")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) spawn(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.workers {
		if w.meetingID == cfg.Meeting.MeetingID {
			return fmt.Errorf("%w: %s", ErrMeetingRunning, cfg.Meeting.MeetingID)
		}
	}

	sessionID := uuid.NewString()
	cfg = withSessionOutput(cfg, sessionID)
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal worker config: %w", err)
	}

	lifetime := cfg.LeaveAfter() + s.grace
	ctx, cancel := context.WithTimeout(context.Background(), lifetime)

	// The config carries the client secret, so it goes over stdin rather
	// than the command line.
	cmd := s.command(ctx, s.workerBin, "run", "--config-json", "-", "--session-id", sessionID)
	cmd.Stdin = bytes.NewReader(configJSON)
	cmd.SysProcAttr = childProcAttr()
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = s.grace

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		cancel()
		stdoutW.Close()
		stderrW.Close()
		return fmt.Errorf("failed to start worker process: %w", err)
	}

	now := time.Now()
	w := &workerProcess{
		sessionID: sessionID,
		meetingID: cfg.Meeting.MeetingID,
		pid:       cmd.Process.Pid,
		startedAt: now,
		leaveAt:   now.Add(cfg.LeaveAfter()),
		cmd:       cmd,
		cancel:    cancel,
	}
	s.workers[sessionID] = w

	s.wg.Add(1)
	go s.monitor(w, stdoutR, stderrR, stdoutW, stderrW)

	log.Infof("Successfully spawned worker for meeting: %s (session: %s, PID: %d)", w.meetingID, sessionID, w.pid)
	return nil
}

// withSessionOutput returns a copy of cfg recording under a per-session
// directory, so concurrent children never share output files.
func withSessionOutput(cfg *config.Config, sessionID string) *config.Config {
	child := *cfg
	child.Recording.AudioDir = filepath.Join(cfg.Recording.AudioDir, sessionID)
	child.Recording.VideoDir = filepath.Join(cfg.Recording.VideoDir, sessionID)
	return &child
}

// monitor forwards the child's output to the log and reaps it.
func (s *Supervisor) monitor(w *workerProcess, stdout, stderr io.Reader, writers ...io.Closer) {
	defer s.wg.Done()

	entry := log.WithFields(logrus.Fields{
		"session_id": w.sessionID,
		"meeting_id": w.meetingID,
		"pid":        w.pid,
	})

	var pipes sync.WaitGroup
	pipes.Add(2)
	go forwardLines(&pipes, entry.WithField("stream", "stdout"), stdout)
	go forwardLines(&pipes, entry.WithField("stream", "stderr"), stderr)

	err := w.cmd.Wait()
	w.cancel()
	for _, c := range writers {
		c.Close()
	}
	pipes.Wait()

	s.mu.Lock()
	delete(s.workers, w.sessionID)
	s.mu.Unlock()

	if err != nil {
		entry.Errorf("Worker process exited with error: %v", err)
		return
	}
	entry.Info("Worker process exited normally")
}

func forwardLines(wg *sync.WaitGroup, entry *logrus.Entry, r io.Reader) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Bytes(); len(line) > 0 {
			entry.Info(string(line))
		}
	}
	if err := scanner.Err(); err != nil {
		entry.Warnf("Error reading worker output: %v", err)
		// keep the child from blocking on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}
