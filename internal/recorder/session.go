package recorder

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blablabla-ai/blablabla/internal/capture"
)

// State is the recording lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused // reserved, no transition produces it
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// InvalidStateError reports an operation attempted from the wrong state.
// The state machine rejects such calls rather than queuing them.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s from state %s", e.Op, e.State)
}

const (
	DefaultMaxDuration  = 120 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// CaptureFactory builds a fresh capture for each recording. onError
// receives mid-session device faults.
type CaptureFactory func(onError func(error)) *capture.Capture

// Options tune one session.
type Options struct {
	MaxDuration   time.Duration
	PollInterval  time.Duration
	OnMaxDuration func()
	PreviewDir    string // where preview files land; empty means os.TempDir()
}

// Session is a bounded-duration state machine over the audio capture.
// Elapsed time is recomputed from the start timestamp on every poll, so
// tick jitter never drifts the measured duration. Every exit path —
// stop, timeout, error, reset, teardown — releases the device and timers.
type Session struct {
	newCapture CaptureFactory
	opts       Options

	mu          sync.Mutex
	state       State
	cap         *capture.Capture
	startedAt   time.Time
	duration    time.Duration
	artifact    *capture.Artifact
	previewPath string
	err         error
	stopping    bool
	maxFired    bool
	pollStop    chan struct{}
	pollDone    chan struct{}
	stoppedCh   chan struct{}
}

func NewSession(newCapture CaptureFactory, opts Options) *Session {
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Session{
		newCapture: newCapture,
		opts:       opts,
		stoppedCh:  make(chan struct{}),
	}
}

// Start is valid only from idle. On device failure the session stays idle
// with the typed error surfaced; it never half-enters recording.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return &InvalidStateError{Op: "start recording", State: state}
	}
	s.err = nil
	s.clearArtifactLocked()
	s.mu.Unlock()

	cap := s.newCapture(s.handleDeviceError)
	if err := cap.Open(); err != nil {
		s.setError(err)
		return err
	}
	if err := cap.Start(); err != nil {
		cap.Release()
		s.setError(err)
		return err
	}

	s.mu.Lock()
	s.cap = cap
	s.startedAt = time.Now()
	s.duration = 0
	s.state = StateRecording
	s.stopping = false
	s.maxFired = false
	s.stoppedCh = make(chan struct{})
	s.pollStop = make(chan struct{})
	s.pollDone = make(chan struct{})
	stop, done := s.pollStop, s.pollDone
	s.mu.Unlock()

	go s.poll(stop, done)
	return nil
}

func (s *Session) poll(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != StateRecording || s.stopping {
				s.mu.Unlock()
				return
			}
			elapsed := time.Since(s.startedAt)
			s.duration = elapsed
			fireMax := elapsed >= s.opts.MaxDuration && !s.maxFired
			if fireMax {
				s.maxFired = true
			}
			s.mu.Unlock()

			if fireMax {
				if s.opts.OnMaxDuration != nil {
					s.opts.OnMaxDuration()
				}
				s.Stop()
				return
			}
		}
	}
}

// Stop ends an active recording. The transition to stopped happens once
// the artifact is assembled, not synchronously. Stop is idempotent, which
// makes the timeout-vs-user race harmless: whichever caller arrives first
// wins and the loser is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRecording || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.duration = time.Since(s.startedAt)
	cap := s.cap
	s.cancelPollLocked()
	stopped := s.stoppedCh
	s.mu.Unlock()

	go func() {
		art, err := cap.Stop()

		s.mu.Lock()
		// Only the capture that began this stop may finish it. A reset may
		// have replaced the recording while the device was stopping, and a
		// later recording may itself be stopping by now; the boolean alone
		// cannot tell those generations apart.
		if s.cap != cap || !s.stopping {
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.err = err
		}
		s.artifact = art
		s.state = StateStopped
		s.stopping = false
		close(stopped)
		s.mu.Unlock()
	}()
}

// Reset is the universal cancellation primitive: safe from every state,
// releases the device, cancels the poller, revokes the preview and clears
// artifact, duration and error.
func (s *Session) Reset() {
	s.mu.Lock()
	s.cancelPollLocked()
	cap := s.cap
	s.cap = nil
	s.stopping = false
	s.clearArtifactLocked()
	s.duration = 0
	s.err = nil
	// The stop goroutine is the only other closer and it closes exactly at
	// the stopped transition, so the discarded channel is still open in
	// every other state. Close it, or a parked Stopped() waiter leaks.
	closeStopped := s.state != StateStopped
	stopped := s.stoppedCh
	s.stoppedCh = make(chan struct{})
	s.state = StateIdle
	s.maxFired = false
	s.mu.Unlock()

	if cap != nil {
		cap.Release()
	}
	if closeStopped {
		close(stopped)
	}
}

// Close tears the session down unconditionally. A leaked device handle or
// timer after Close is a defect.
func (s *Session) Close() {
	s.Reset()
}

// Stopped is closed when the current recording's artifact becomes
// available (or the stop is aborted by a reset).
func (s *Session) Stopped() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stoppedCh
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRecording && !s.stopping {
		return time.Since(s.startedAt)
	}
	return s.duration
}

func (s *Session) Artifact() *capture.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Err is the single error slot, overwritten by the most recent failure.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// PreviewPath writes the artifact to a playable temp file and returns its
// location. The file is a derived, revocable view: it is removed exactly
// once when the artifact is replaced or the session resets.
func (s *Session) PreviewPath() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact.Empty() {
		return "", fmt.Errorf("no artifact to preview")
	}
	if s.previewPath != "" {
		return s.previewPath, nil
	}

	dir := s.opts.PreviewDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "blabla-preview-*"+extForMime(s.artifact.MimeType()))
	if err != nil {
		return "", fmt.Errorf("creating preview file: %w", err)
	}
	if _, err := f.Write(s.artifact.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing preview file: %w", err)
	}
	s.previewPath = f.Name()
	return s.previewPath, nil
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	s.err = err
	s.state = StateIdle
	s.mu.Unlock()
}

func (s *Session) handleDeviceError(err error) {
	s.mu.Lock()
	s.err = err
	cap := s.cap
	s.cap = nil
	s.cancelPollLocked()
	s.state = StateIdle
	s.stopping = false
	s.mu.Unlock()

	if cap != nil {
		cap.Release()
	}
}

// cancelPollLocked stops the duration poller; callers hold s.mu.
func (s *Session) cancelPollLocked() {
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
}

// clearArtifactLocked drops the artifact and revokes its preview exactly
// once; callers hold s.mu.
func (s *Session) clearArtifactLocked() {
	s.artifact = nil
	if s.previewPath != "" {
		os.Remove(s.previewPath)
		s.previewPath = ""
	}
}

func extForMime(mime string) string {
	switch mime {
	case "audio/flac":
		return ".flac"
	case "audio/wav":
		return ".wav"
	}
	return ".bin"
}
