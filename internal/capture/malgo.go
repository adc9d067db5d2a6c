package capture

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// SystemDevice is the real microphone, backed by miniaudio.
type SystemDevice struct {
	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	dev      *malgo.Device
	lastOpts DeviceOptions
}

func NewSystemDevice() *SystemDevice {
	return &SystemDevice{}
}

func (d *SystemDevice) Open(opts DeviceOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: %v", ErrDenied, err)
	}
	if len(devices) == 0 {
		ctx.Uninit()
		ctx.Free()
		return ErrNotFound
	}

	d.ctx = ctx
	d.lastOpts = opts
	return nil
}

var _ Device = (*SystemDevice)(nil)

func (d *SystemDevice) Start(onData DataCallback, onError func(error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return ErrUnsupported
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(d.lastOpts.Channels)
	deviceConfig.SampleRate = uint32(d.lastOpts.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			onData(data, frameCount)
		},
		Stop: func() {},
	}

	dev, err := malgo.InitDevice(d.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return &DeviceError{Err: err}
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return &DeviceError{Err: err}
	}
	d.dev = dev
	return nil
}

func (d *SystemDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		d.dev.Stop()
	}
}

func (d *SystemDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		d.dev.Uninit()
		d.dev = nil
	}
	if d.ctx != nil {
		d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
}
