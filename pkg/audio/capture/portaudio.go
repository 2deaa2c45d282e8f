package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/types"
)

const (
	// DefaultSampleRate is the capture rate in Hz. 16 kHz mono matches what
	// the STT providers expect, avoiding a resample stage.
	DefaultSampleRate = 16000

	// DefaultFramesPerBuffer is the number of samples read per frame.
	// 1024 samples at 16 kHz is 64 ms per frame.
	DefaultFramesPerBuffer = 1024
)

// Compile-time assertion that PortAudioDevice satisfies Device.
var _ Device = (*PortAudioDevice)(nil)

// PortAudioDevice captures mono audio from the default system microphone via
// PortAudio. The PortAudio library is initialised once per device lifetime;
// call Close when the device is no longer needed.
type PortAudioDevice struct {
	sampleRate      int
	framesPerBuffer int

	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	pcm     []byte
	running bool
	done    chan struct{}
	exited  chan struct{}
}

// PortAudioOption is a functional option for configuring a PortAudioDevice.
type PortAudioOption func(*PortAudioDevice)

// WithSampleRate sets the capture sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) PortAudioOption {
	return func(d *PortAudioDevice) { d.sampleRate = rate }
}

// WithFramesPerBuffer sets the per-frame sample count. Defaults to 1024.
func WithFramesPerBuffer(n int) PortAudioOption {
	return func(d *PortAudioDevice) { d.framesPerBuffer = n }
}

// NewPortAudio initialises PortAudio and returns a device bound to the
// default input stream. Returns ErrDeviceUnavailable when the host has no
// audio subsystem.
func NewPortAudio(opts ...PortAudioOption) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	d := &PortAudioDevice{
		sampleRate:      DefaultSampleRate,
		framesPerBuffer: DefaultFramesPerBuffer,
	}
	for _, o := range opts {
		o(d)
	}
	d.buffer = make([]float32, d.framesPerBuffer)
	return d, nil
}

// Start opens the default input stream and spawns the delivery goroutine.
func (d *PortAudioDevice) Start(onFrame FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("capture: device already running")
	}

	stream, err := portaudio.OpenDefaultStream(
		1,                     // input channels
		0,                     // output channels
		float64(d.sampleRate), // sample rate
		d.framesPerBuffer,     // frames per buffer
		d.buffer,              // buffer
	)
	if err != nil {
		return fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	d.stream = stream
	d.running = true
	d.done = make(chan struct{})
	d.exited = make(chan struct{})

	go d.deliverLoop(stream, d.done, d.exited, onFrame)
	return nil
}

// deliverLoop reads buffers from the stream and invokes onFrame until the
// device is stopped. The PCM byte buffer is reused across iterations, so
// onFrame must copy data it wants to retain.
func (d *PortAudioDevice) deliverLoop(stream *portaudio.Stream, done, exited chan struct{}, onFrame FrameFunc) {
	defer close(exited)
	start := time.Now()
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Overflows happen when a delivery cycle runs long; skip the
			// frame rather than tearing the stream down.
			if err == portaudio.InputOverflowed {
				continue
			}
			return
		}

		d.mu.Lock()
		if !d.running {
			d.mu.Unlock()
			return
		}
		d.pcm = audio.Float32ToPCM16(d.buffer, d.pcm)
		frame := types.AudioFrame{
			Data:       d.pcm,
			SampleRate: d.sampleRate,
			Channels:   1,
			Timestamp:  time.Since(start),
		}
		d.mu.Unlock()

		onFrame(frame)
	}
}

// Stop closes the input stream. Idempotent.
func (d *PortAudioDevice) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.done)
	stream := d.stream
	exited := d.exited
	d.stream = nil
	d.mu.Unlock()

	// Stopping the stream unblocks a Read in progress. Wait for the delivery
	// goroutine to finish so no frame reaches onFrame after Stop returns.
	stopErr := stream.Stop()
	<-exited
	closeErr := stream.Close()
	if stopErr != nil {
		return fmt.Errorf("capture: stop stream: %w", stopErr)
	}
	return closeErr
}

// Recording reports whether the device is delivering frames.
func (d *PortAudioDevice) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Close stops the device if needed and terminates PortAudio.
func (d *PortAudioDevice) Close() error {
	_ = d.Stop()
	return portaudio.Terminate()
}
