// Package mock provides a scripted mock implementation of the [vadgate.Gate]
// and [vadgate.Engine] interfaces for unit tests.
package mock

import (
	"sync"

	"github.com/voxtale/voxtale/pkg/vadgate"
)

// Engine is a mock [vadgate.Engine] that hands out a pre-configured Gate.
type Engine struct {
	// GateResult is returned by NewGate. Defaults to a fresh [Gate].
	GateResult vadgate.Gate

	// NewGateError is returned by NewGate when non-nil.
	NewGateError error
}

// NewGate implements [vadgate.Engine].
func (e *Engine) NewGate(cfg vadgate.Config) (vadgate.Gate, error) {
	if e.NewGateError != nil {
		return nil, e.NewGateError
	}
	if e.GateResult != nil {
		return e.GateResult, nil
	}
	return &Gate{}, nil
}

// Gate is a mock [vadgate.Gate] that returns scripted decisions in order.
// When the script is exhausted, ProcessFrame returns SpeechContinue.
type Gate struct {
	mu sync.Mutex

	// Decisions is the script of results, consumed one per ProcessFrame call.
	Decisions []vadgate.Decision

	// ProcessError is returned by every ProcessFrame call when non-nil.
	ProcessError error

	// CallCountProcess records how many times ProcessFrame was called.
	CallCountProcess int

	// CallCountReset records how many times Reset was called.
	CallCountReset int

	next int
}

// ProcessFrame implements [vadgate.Gate].
func (g *Gate) ProcessFrame(pcm []byte) (vadgate.Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CallCountProcess++
	if g.ProcessError != nil {
		return vadgate.Decision{Type: vadgate.Silence}, g.ProcessError
	}
	if g.next < len(g.Decisions) {
		d := g.Decisions[g.next]
		g.next++
		return d, nil
	}
	return vadgate.Decision{Type: vadgate.SpeechContinue}, nil
}

// ProcessCount returns how many times ProcessFrame was called.
func (g *Gate) ProcessCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.CallCountProcess
}

// Reset implements [vadgate.Gate].
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CallCountReset++
}

// Close implements [vadgate.Gate].
func (g *Gate) Close() error { return nil }
