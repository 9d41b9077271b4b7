package vadgate

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EnergyEngine is a pure-Go [Engine] backed by RMS energy with hysteresis.
// It needs no model weights or cgo, which keeps the send path dependency-free;
// swap in a model-based engine for noisy environments.
type EnergyEngine struct{}

// NewEnergyEngine returns an [Engine] producing energy gates.
func NewEnergyEngine() *EnergyEngine { return &EnergyEngine{} }

// NewGate implements [Engine].
func (e *EnergyEngine) NewGate(cfg Config) (Gate, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("vadgate: invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("vadgate: invalid frame size %d", cfg.FrameSamples)
	}
	if cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("vadgate: silence threshold %v exceeds speech threshold %v",
			cfg.SilenceThreshold, cfg.SpeechThreshold)
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = 0.015
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = 0.008
	}
	if cfg.SpeechFrames == 0 {
		cfg.SpeechFrames = 3
	}
	if cfg.SilenceFrames == 0 {
		cfg.SilenceFrames = 10
	}
	return &energyGate{cfg: cfg}, nil
}

type energyGate struct {
	cfg          Config
	inSpeech     bool
	speechCount  int
	silenceCount int
	closed       bool
}

var _ Gate = (*energyGate)(nil)

// ProcessFrame implements [Gate]. The hysteresis counters require
// cfg.SpeechFrames consecutive loud frames to start and cfg.SilenceFrames
// consecutive quiet frames to end, so single clicks or brief pauses do not
// flip the state.
func (g *energyGate) ProcessFrame(pcm []byte) (Decision, error) {
	if g.closed {
		return Decision{Type: Silence}, ErrClosed
	}
	if len(pcm) != g.cfg.FrameSamples*2 {
		return Decision{Type: Silence}, fmt.Errorf(
			"vadgate: frame is %d bytes, want %d", len(pcm), g.cfg.FrameSamples*2)
	}

	level := rms(pcm)
	d := Decision{Level: level}

	if g.inSpeech {
		if level < g.cfg.SilenceThreshold {
			g.silenceCount++
			g.speechCount = 0
			if g.silenceCount >= g.cfg.SilenceFrames {
				g.inSpeech = false
				g.silenceCount = 0
				d.Type = SpeechEnd
				return d, nil
			}
		} else {
			g.silenceCount = 0
		}
		d.Type = SpeechContinue
		return d, nil
	}

	if level >= g.cfg.SpeechThreshold {
		g.speechCount++
		g.silenceCount = 0
		if g.speechCount >= g.cfg.SpeechFrames {
			g.inSpeech = true
			g.speechCount = 0
			d.Type = SpeechStart
			return d, nil
		}
	} else {
		g.speechCount = 0
	}
	d.Type = Silence
	return d, nil
}

// Reset implements [Gate].
func (g *energyGate) Reset() {
	g.inSpeech = false
	g.speechCount = 0
	g.silenceCount = 0
}

// Close implements [Gate].
func (g *energyGate) Close() error {
	g.closed = true
	return nil
}

// rms computes the normalised root-mean-square level of little-endian PCM16
// samples, in [0,1].
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
