// Package bridge routes model function calls to an application-provided
// executor and feeds the result back into the conversation.
//
// When the model finishes streaming a function call's arguments, the bridge
// invokes the executor, sends the output back as a conversation item, and
// requests a fresh response so the model can speak the result. The executor
// itself is opaque: travel booking, tool lookups, whatever the application
// wires in.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxtale/voxtale/pkg/realtime"
)

// DefaultExecTimeout bounds a single executor invocation.
const DefaultExecTimeout = 30 * time.Second

// Executor runs one function call and returns its output as a string the
// model can consume, typically JSON.
type Executor interface {
	Execute(ctx context.Context, name, arguments string) (string, error)
}

// ExecutorFunc adapts a function to the [Executor] interface.
type ExecutorFunc func(ctx context.Context, name, arguments string) (string, error)

// Execute implements [Executor].
func (f ExecutorFunc) Execute(ctx context.Context, name, arguments string) (string, error) {
	return f(ctx, name, arguments)
}

// FunctionCallBridge connects function-call events to an [Executor] over a
// realtime transport.
type FunctionCallBridge struct {
	transport realtime.Transport
	executor  Executor
	logger    *slog.Logger
	timeout   time.Duration
}

// Option is a functional option for [New].
type Option func(*FunctionCallBridge)

// WithTimeout overrides the per-call executor timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *FunctionCallBridge) { b.timeout = d }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *FunctionCallBridge) { b.logger = l }
}

// New creates a FunctionCallBridge sending executor output over transport.
func New(transport realtime.Transport, executor Executor, opts ...Option) *FunctionCallBridge {
	b := &FunctionCallBridge{
		transport: transport,
		executor:  executor,
		logger:    slog.Default(),
		timeout:   DefaultExecTimeout,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// HandleFunctionCall executes the named function and returns its output to
// the model, then requests a new response. An executor failure is reported
// to the model as an error payload rather than dropped, so the model can
// tell the user the call failed.
func (b *FunctionCallBridge) HandleFunctionCall(ctx context.Context, callID, name, arguments string) error {
	if b.executor == nil {
		return fmt.Errorf("bridge: no executor configured for call %q", name)
	}

	execCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	output, err := b.executor.Execute(execCtx, name, arguments)
	if err != nil {
		b.logger.Warn("function call failed",
			"call_id", callID, "name", name, "error", err)
		output = fmt.Sprintf(`{"error": %q}`, err.Error())
	} else {
		b.logger.Debug("function call executed",
			"call_id", callID, "name", name, "duration", time.Since(start))
	}

	if err := b.transport.CreateFunctionOutput(ctx, callID, output); err != nil {
		return fmt.Errorf("bridge: send function output for %q: %w", name, err)
	}
	if err := b.transport.CreateResponse(ctx); err != nil {
		return fmt.Errorf("bridge: request response after %q: %w", name, err)
	}
	return nil
}
