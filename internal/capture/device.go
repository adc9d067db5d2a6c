package capture

import "errors"

const (
	Channels      = 1
	BitsPerSample = 16
)

var (
	// ErrUnsupported means the environment has no capture capability at
	// all. Checked before any device request is made.
	ErrUnsupported = errors.New("audio capture is not supported in this environment")

	// ErrDenied means microphone permission was refused.
	ErrDenied = errors.New("microphone access denied, please allow microphone access and try again")

	// ErrNotFound means no input device exists.
	ErrNotFound = errors.New("no microphone found, please connect a microphone and try again")
)

// DeviceError reports a capture hardware fault mid-session.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return "recording failed: " + e.Err.Error() }
func (e *DeviceError) Unwrap() error { return e.Err }

// DataCallback delivers raw little-endian 16-bit mono PCM from the device.
type DataCallback func(pcm []byte, frameCount uint32)

// DeviceOptions are the constraints requested when acquiring the microphone.
type DeviceOptions struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Device is the capture capability boundary. Implementations own the
// platform handle; the capture layer above is testable without hardware.
type Device interface {
	// Open acquires exclusive access to the microphone. Fails with
	// ErrDenied, ErrNotFound or ErrUnsupported.
	Open(opts DeviceOptions) error

	// Start begins delivery of PCM to onData. onError receives hardware
	// faults occurring after a successful start.
	Start(onData DataCallback, onError func(error)) error

	// Stop halts delivery. Safe to call when not started.
	Stop()

	// Close releases the device handle. Idempotent.
	Close()
}
