package capture

import "sync"

// FakeDevice drives the capture layer in tests without hardware. Feed
// pushes PCM as if the microphone produced it; Fail injects a mid-session
// hardware fault.
type FakeDevice struct {
	OpenErr error

	mu         sync.Mutex
	opened     bool
	started    bool
	onData     DataCallback
	onError    func(error)
	OpenCalls  int
	StopCalls  int
	CloseCalls int
	LastOpts   DeviceOptions
}

func (f *FakeDevice) Open(opts DeviceOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls++
	f.LastOpts = opts
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.opened = true
	return nil
}

func (f *FakeDevice) Start(onData DataCallback, onError func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.onData = onData
	f.onError = onError
	return nil
}

func (f *FakeDevice) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalls++
	f.started = false
}

func (f *FakeDevice) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CloseCalls++
	f.opened = false
}

func (f *FakeDevice) Feed(pcm []byte) {
	f.mu.Lock()
	cb := f.onData
	started := f.started
	f.mu.Unlock()
	if started && cb != nil {
		cb(pcm, uint32(len(pcm)/2))
	}
}

func (f *FakeDevice) Fail(err error) {
	f.mu.Lock()
	cb := f.onError
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (f *FakeDevice) Opened() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}
