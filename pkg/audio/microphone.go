package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Compile-time assertion that Microphone implements CaptureDevice.
var _ CaptureDevice = (*Microphone)(nil)

// Microphone is a malgo-backed [CaptureDevice]. The miniaudio data callback
// runs on its own OS thread and appends incoming F32 mono samples to a [Ring]
// sized to the configured window length; Drain and Clear operate on that ring.
type Microphone struct {
	mctx *malgo.AllocatedContext
	dev  *malgo.Device
	ring *Ring

	paused atomic.Bool
	quit   atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewMicrophone opens the capture device identified by deviceID (-1 selects
// the system default) recording F32 mono at sampleRate, buffering the most
// recent bufferMs milliseconds. The device starts capturing immediately.
func NewMicrophone(deviceID int, sampleRate, bufferMs int) (*Microphone, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}

	m := &Microphone{
		mctx: mctx,
		ring: NewRing(sampleRate, bufferMs),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	if deviceID >= 0 {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			m.teardownContext()
			return nil, fmt.Errorf("audio: enumerate capture devices: %w", err)
		}
		if deviceID >= len(infos) {
			m.teardownContext()
			return nil, fmt.Errorf("audio: capture device %d not found (%d devices)", deviceID, len(infos))
		}
		id := infos[deviceID].ID
		cfg.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if m.paused.Load() {
				return
			}
			m.ring.Write(BytesToSamples(input))
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		m.teardownContext()
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	m.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		m.teardownContext()
		return nil, fmt.Errorf("audio: start capture device: %w", err)
	}

	return m, nil
}

// Drain copies the most recent ms milliseconds out of the rolling buffer.
func (m *Microphone) Drain(ms int) []float32 {
	return m.ring.ReadLast(ms)
}

// Clear empties the rolling buffer.
func (m *Microphone) Clear() {
	m.ring.Clear()
}

// Pause stops recording. Samples arriving while paused are discarded by the
// data callback rather than buffered.
func (m *Microphone) Pause() error {
	m.paused.Store(true)
	if m.dev == nil {
		return errors.New("audio: device closed")
	}
	return m.dev.Stop()
}

// Resume restarts recording after a Pause.
func (m *Microphone) Resume() error {
	if m.dev == nil {
		return errors.New("audio: device closed")
	}
	if err := m.dev.Start(); err != nil {
		return err
	}
	m.paused.Store(false)
	return nil
}

// PollEvents returns false once a quit has been requested via [Microphone.RequestStop]
// or the device has been closed.
func (m *Microphone) PollEvents() bool {
	return !m.quit.Load()
}

// RequestStop marks the device as quitting; subsequent PollEvents calls return
// false. Safe to call from a signal handler goroutine.
func (m *Microphone) RequestStop() {
	m.quit.Store(true)
}

// Close stops and releases the device. Idempotent.
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		m.quit.Store(true)
		if m.dev != nil {
			m.dev.Uninit()
			m.dev = nil
		}
		m.closeErr = m.teardownContext()
	})
	return m.closeErr
}

func (m *Microphone) teardownContext() error {
	if m.mctx == nil {
		return nil
	}
	err := m.mctx.Uninit()
	m.mctx.Free()
	m.mctx = nil
	return err
}
