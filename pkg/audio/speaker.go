package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Speaker drives an F32 mono output device from a [Player] queue. The
// miniaudio callback pulls samples out of the player and plays silence when
// the queue is empty, so queueing audio is fire-and-forget; use
// [Player.Wait] for completion.
type Speaker struct {
	mctx   *malgo.AllocatedContext
	dev    *malgo.Device
	player *Player

	closeOnce sync.Once
	closeErr  error
}

// NewSpeaker opens the default playback device at sampleRate and starts its
// callback. The returned speaker owns the given player's consumer side.
func NewSpeaker(sampleRate int, player *Player) (*Speaker, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}

	s := &Speaker{mctx: mctx, player: player}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frameCount uint32) {
			block := make([]float32, frameCount)
			player.ReadInto(block)
			copy(output, SamplesToBytes(block))
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		s.teardownContext()
		return nil, fmt.Errorf("audio: init playback device: %w", err)
	}
	s.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		s.teardownContext()
		return nil, fmt.Errorf("audio: start playback device: %w", err)
	}

	return s, nil
}

// Player returns the sample queue feeding this speaker.
func (s *Speaker) Player() *Player { return s.player }

// Close waits for pending audio to finish, then releases the device.
// Idempotent.
func (s *Speaker) Close() error {
	s.closeOnce.Do(func() {
		if s.player != nil {
			s.player.Wait()
		}
		if s.dev != nil {
			s.dev.Uninit()
			s.dev = nil
		}
		s.closeErr = s.teardownContext()
	})
	return s.closeErr
}

func (s *Speaker) teardownContext() error {
	if s.mctx == nil {
		return nil
	}
	err := s.mctx.Uninit()
	s.mctx.Free()
	s.mctx = nil
	return err
}
