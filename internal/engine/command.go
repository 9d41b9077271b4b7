package engine

// Command is a side effect the state machine asks the engine to perform.
// The machine never touches the transport or devices itself; it returns
// commands and the engine executes them in order.
type Command interface{ isCommand() }

// SendConfig sends the session.update configuration message.
type SendConfig struct{}

// SignalReady unblocks callers waiting for session setup to complete.
type SignalReady struct{}

// FlushAudio sends any batched-but-unsent audio frames before a commit.
type FlushAudio struct{}

// CommitInput sends input_audio_buffer.commit.
type CommitInput struct{}

// CreateResponse sends response.create.
type CreateResponse struct{}

// CancelResponse sends response.cancel.
type CancelResponse struct{}

// ClearInput sends input_audio_buffer.clear.
type ClearInput struct{}

// StopPlayback halts the output device immediately.
type StopPlayback struct{}

// ClearPlayback discards buffered assistant audio.
type ClearPlayback struct{}

// PlayBuffered hands the accumulated assistant audio to the output device.
type PlayBuffered struct{}

// OpenTurn starts a turn record with the user's transcript.
type OpenTurn struct{ Text string }

// AppendAssistantText appends a streamed fragment to the open turn record.
type AppendAssistantText struct{ Text string }

// FinalizeTurn completes the open turn record.
type FinalizeTurn struct{}

// CallFunction routes a completed function call to the executor bridge.
type CallFunction struct{ CallID, Name, Arguments string }

// NoteRateLimit counts a server rate-limit rejection.
type NoteRateLimit struct{}

// NoteInterruption counts a user barge-in.
type NoteInterruption struct{}

func (SendConfig) isCommand()          {}
func (SignalReady) isCommand()         {}
func (FlushAudio) isCommand()          {}
func (CommitInput) isCommand()         {}
func (CreateResponse) isCommand()      {}
func (CancelResponse) isCommand()      {}
func (ClearInput) isCommand()          {}
func (StopPlayback) isCommand()        {}
func (ClearPlayback) isCommand()       {}
func (PlayBuffered) isCommand()        {}
func (OpenTurn) isCommand()            {}
func (AppendAssistantText) isCommand() {}
func (FinalizeTurn) isCommand()        {}
func (CallFunction) isCommand()        {}
func (NoteRateLimit) isCommand()       {}
func (NoteInterruption) isCommand()    {}
