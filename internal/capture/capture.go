package capture

import (
	"sync"
	"time"
)

// DefaultChunkInterval is the cadence at which encoded chunks are cut.
const DefaultChunkInterval = time.Second

// Artifact is the finished, immutable captured-audio payload produced at
// stop time.
type Artifact struct {
	data []byte
	mime string
}

func NewArtifact(data []byte, mime string) *Artifact {
	return &Artifact{data: data, mime: mime}
}

func (a *Artifact) Bytes() []byte    { return a.data }
func (a *Artifact) MimeType() string { return a.mime }
func (a *Artifact) Size() int64      { return int64(len(a.data)) }

func (a *Artifact) Empty() bool { return a == nil || len(a.data) == 0 }

// Config governs one capture.
type Config struct {
	SampleRate       int
	PreferredFormats []string
	ChunkInterval    time.Duration
}

// Capture owns the microphone handle and the encoder session for one
// recording. Chunks are cut from the encoded stream at a fixed cadence and
// kept in arrival order; Stop concatenates them into the final artifact.
type Capture struct {
	dev     Device
	cfg     Config
	onError func(error)

	mu       sync.Mutex
	enc      Encoder
	chunks   [][]byte
	cut      int // encoded bytes already chunked
	open     bool
	stopped  bool
	artifact *Artifact
	stopErr  error
	stopTick chan struct{}
	tickDone chan struct{}
}

// New builds a capture over the given device. A nil onError discards
// mid-session hardware faults.
func New(dev Device, cfg Config, onError func(error)) *Capture {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = DefaultChunkInterval
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Capture{dev: dev, cfg: cfg, onError: onError}
}

// Open negotiates the encoding format and acquires the microphone with
// echo cancellation, noise suppression and auto gain enabled. The
// capability check happens before any device request.
func (c *Capture) Open() error {
	if c.dev == nil {
		return ErrUnsupported
	}

	enc, err := NewEncoder(c.cfg.PreferredFormats, c.cfg.SampleRate)
	if err != nil {
		return err
	}

	if err := c.dev.Open(DeviceOptions{
		SampleRate:       c.cfg.SampleRate,
		Channels:         Channels,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}); err != nil {
		return err
	}

	c.mu.Lock()
	c.enc = enc
	c.chunks = nil
	c.cut = 0
	c.open = true
	c.stopped = false
	c.artifact = nil
	c.mu.Unlock()
	return nil
}

// Start begins encoding and cuts a chunk roughly every ChunkInterval.
func (c *Capture) Start() error {
	if err := c.dev.Start(c.onData, c.onDeviceError); err != nil {
		return err
	}

	c.mu.Lock()
	c.stopTick = make(chan struct{})
	c.tickDone = make(chan struct{})
	stop, done := c.stopTick, c.tickDone
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.ChunkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.cutChunk()
			}
		}
	}()
	return nil
}

func (c *Capture) onData(pcm []byte, _ uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open || c.stopped || c.enc == nil {
		return
	}
	if err := c.enc.EncodePCM(pcm); err != nil {
		go c.onError(&DeviceError{Err: err})
	}
}

func (c *Capture) onDeviceError(err error) {
	c.onError(&DeviceError{Err: err})
}

// cutChunk appends the encoded bytes produced since the last cut. Empty
// cuts are skipped, matching the non-empty-chunk rule.
func (c *Capture) cutChunk() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc == nil {
		return
	}
	buf := c.enc.Buffered()
	if len(buf) > c.cut {
		c.chunks = append(c.chunks, buf[c.cut:])
		c.cut = len(buf)
	}
}

// Stop flushes the encoder, concatenates the buffered chunks into one
// artifact tagged with the negotiated mime type, and releases the device.
// Calling Stop when already stopped returns the same outcome, artifact or
// error, as the first call.
func (c *Capture) Stop() (*Artifact, error) {
	c.mu.Lock()
	if c.stopped {
		a, err := c.artifact, c.stopErr
		c.mu.Unlock()
		return a, err
	}
	c.stopped = true
	stop := c.stopTick
	done := c.tickDone
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	c.dev.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	var art *Artifact
	if c.enc != nil {
		if err := c.enc.Flush(); err != nil {
			c.stopErr = &DeviceError{Err: err}
			c.dev.Close()
			c.open = false
			return nil, c.stopErr
		}
		buf := c.enc.Buffered()
		if len(buf) > c.cut {
			c.chunks = append(c.chunks, buf[c.cut:])
			c.cut = len(buf)
		}

		total := 0
		for _, ch := range c.chunks {
			total += len(ch)
		}
		data := make([]byte, 0, total)
		for _, ch := range c.chunks {
			data = append(data, ch...)
		}
		art = &Artifact{data: data, mime: c.enc.MimeType()}
	}

	c.artifact = art
	c.dev.Close()
	c.open = false
	return art, nil
}

// Chunks exposes the cut chunks in arrival order.
func (c *Capture) Chunks() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Release drops the device and encoder without producing an artifact. Used
// by the reset path and teardown; safe to call in any state.
func (c *Capture) Release() {
	c.mu.Lock()
	stop := c.stopTick
	done := c.tickDone
	c.stopTick = nil
	c.tickDone = nil
	alreadyStopped := c.stopped
	c.stopped = true
	c.open = false
	c.enc = nil
	c.mu.Unlock()

	if stop != nil && !alreadyStopped {
		close(stop)
		<-done
	}
	if c.dev != nil {
		c.dev.Stop()
		c.dev.Close()
	}
}
