package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func pcmSamples(n int, seed int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16((seed+i)%1000))
	}
	return pcm
}

func wavCapture(dev Device) *Capture {
	return New(dev, Config{
		SampleRate:       16000,
		PreferredFormats: []string{"audio/wav"},
		ChunkInterval:    5 * time.Millisecond,
	}, nil)
}

func TestArtifactIsOrderedChunkConcat(t *testing.T) {
	dev := &FakeDevice{}
	c := wavCapture(dev)

	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 3; i++ {
		dev.Feed(pcmSamples(800, i*800))
		time.Sleep(15 * time.Millisecond) // let the cutter run
	}

	art, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if art.Empty() {
		t.Fatal("artifact should not be empty")
	}

	var concat []byte
	for _, ch := range c.Chunks() {
		if len(ch) == 0 {
			t.Error("empty chunk was recorded")
		}
		concat = append(concat, ch...)
	}
	if !bytes.Equal(art.Bytes(), concat) {
		t.Errorf("artifact (%d bytes) != concat of %d chunks (%d bytes)",
			len(art.Bytes()), len(c.Chunks()), len(concat))
	}
	if art.MimeType() != "audio/wav" {
		t.Errorf("MimeType = %q, want audio/wav", art.MimeType())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dev := &FakeDevice{}
	c := wavCapture(dev)

	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.Feed(pcmSamples(1600, 0))

	first, err := c.Stop()
	if err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	second, err := c.Stop()
	if err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("second Stop produced a different artifact")
	}
	if dev.CloseCalls != 1 {
		t.Errorf("CloseCalls = %d, want 1 (stop must not double-release)", dev.CloseCalls)
	}
}

type flushFailEncoder struct {
	Encoder
	err error
}

func (e *flushFailEncoder) Flush() error { return e.err }

func TestStopFlushFailureSticksAcrossCalls(t *testing.T) {
	dev := &FakeDevice{}
	c := wavCapture(dev)

	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.Feed(pcmSamples(800, 0))

	c.mu.Lock()
	c.enc = &flushFailEncoder{Encoder: c.enc, err: errors.New("encoder jammed")}
	c.mu.Unlock()

	art, err := c.Stop()
	if err == nil || art != nil {
		t.Fatalf("Stop = (%v, %v), want a flush error and no artifact", art, err)
	}

	// A second Stop must report the same failure, not a nil artifact with
	// a nil error.
	art, err = c.Stop()
	if art != nil {
		t.Errorf("second Stop artifact = %v, want nil", art)
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Errorf("second Stop err = %v, want *DeviceError", err)
	}
}

func TestOpenCapabilityCheckedFirst(t *testing.T) {
	c := New(nil, Config{}, nil)
	if err := c.Open(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Open with no device = %v, want ErrUnsupported", err)
	}
}

func TestOpenDeviceErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
	}{
		{"denied", ErrDenied},
		{"not found", ErrNotFound},
	} {
		t.Run(tt.name, func(t *testing.T) {
			dev := &FakeDevice{OpenErr: tt.err}
			c := wavCapture(dev)
			if err := c.Open(); !errors.Is(err, tt.err) {
				t.Errorf("Open = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestOpenRequestsProcessingConstraints(t *testing.T) {
	dev := &FakeDevice{}
	c := wavCapture(dev)
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	opts := dev.LastOpts
	if !opts.EchoCancellation || !opts.NoiseSuppression || !opts.AutoGainControl {
		t.Errorf("device opened without processing constraints: %+v", opts)
	}
	c.Release()
}

func TestDeviceFaultSurfaces(t *testing.T) {
	dev := &FakeDevice{}
	got := make(chan error, 1)
	c := New(dev, Config{PreferredFormats: []string{"audio/wav"}}, func(err error) {
		got <- err
	})

	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.Fail(errors.New("device unplugged"))

	select {
	case err := <-got:
		var devErr *DeviceError
		if !errors.As(err, &devErr) {
			t.Errorf("err = %v, want *DeviceError", err)
		}
	case <-time.After(time.Second):
		t.Fatal("device fault never surfaced")
	}
	c.Release()
}

func TestReleaseDropsDevice(t *testing.T) {
	dev := &FakeDevice{}
	c := wavCapture(dev)
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.Release()
	if dev.Opened() {
		t.Error("device still open after Release")
	}
	// Release again must be harmless.
	c.Release()
}
