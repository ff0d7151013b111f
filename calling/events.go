/* SPDX-License-Identifier: MPL-2.0 */

package calling

import "sync"

// ---- Phase & Status Enums ----

// Phase is a state of the call-session state machine.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhasePermissionPending Phase = "permission-pending"
	PhaseTransportInit     Phase = "transport-initializing"
	PhaseDialing           Phase = "dialing"
	PhaseRinging           Phase = "ringing"
	PhaseConnected         Phase = "connected"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
	PhaseBusy              Phase = "busy"
	PhaseNoAnswer          Phase = "no-answer"
	PhaseCanceled          Phase = "canceled"
	PhaseRejected          Phase = "rejected"
	PhasePermissionDenied  Phase = "permission-denied"
)

// Terminal reports whether the phase has no outgoing transition other
// than the reset back to idle.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseBusy, PhaseNoAnswer,
		PhaseCanceled, PhaseRejected, PhasePermissionDenied:
		return true
	}
	return false
}

// Pollable reports whether backend status polling runs in this phase.
// Polling stops the instant the session leaves this set.
func (p Phase) Pollable() bool {
	switch p {
	case PhaseDialing, PhaseRinging, PhaseConnected:
		return true
	}
	return false
}

// CloseReason records why a session reached a terminal phase. It is set
// exactly once, at the transition into the terminal phase.
type CloseReason string

const (
	CloseCompleted        CloseReason = "completed"
	CloseFailed           CloseReason = "failed"
	CloseBusy             CloseReason = "busy"
	CloseNoAnswer         CloseReason = "no-answer"
	CloseCanceled         CloseReason = "canceled"
	CloseRejected         CloseReason = "rejected"
	ClosePermissionDenied CloseReason = "permission-denied"
)

func (r CloseReason) terminalPhase() Phase {
	switch r {
	case CloseCompleted:
		return PhaseCompleted
	case CloseBusy:
		return PhaseBusy
	case CloseNoAnswer:
		return PhaseNoAnswer
	case CloseCanceled:
		return PhaseCanceled
	case CloseRejected:
		return PhaseRejected
	case ClosePermissionDenied:
		return PhasePermissionDenied
	default:
		return PhaseFailed
	}
}

// MicPermission is the tri-state outcome of the microphone gate.
type MicPermission string

const (
	MicPending MicPermission = "pending"
	MicGranted MicPermission = "granted"
	MicDenied  MicPermission = "denied"
)

// CallStatus is the backend call-control status vocabulary, as reported
// by the dial, status, and history endpoints.
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusInitiated  CallStatus = "initiated"
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
	StatusBusy       CallStatus = "busy"
	StatusNoAnswer   CallStatus = "no-answer"
	StatusCanceled   CallStatus = "canceled"
)

// Terminal reports whether the backend considers the call over.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return true
	}
	return false
}

func (s CallStatus) closeReason() CloseReason {
	switch s {
	case StatusCompleted:
		return CloseCompleted
	case StatusBusy:
		return CloseBusy
	case StatusNoAnswer:
		return CloseNoAnswer
	case StatusCanceled:
		return CloseCanceled
	default:
		return CloseFailed
	}
}

// ---- Transport Event Vocabulary ----

// TransportEventKind identifies a lifecycle event emitted by a call
// handle. At most one terminal kind fires per handle.
type TransportEventKind string

const (
	TransportRinging      TransportEventKind = "ringing"
	TransportAccepted     TransportEventKind = "accepted"
	TransportDisconnected TransportEventKind = "disconnected"
	TransportCanceled     TransportEventKind = "canceled"
	TransportRejected     TransportEventKind = "rejected"
	TransportFailed       TransportEventKind = "failed"
)

// Terminal reports whether the event ends the call handle.
func (k TransportEventKind) Terminal() bool {
	switch k {
	case TransportDisconnected, TransportCanceled, TransportRejected, TransportFailed:
		return true
	}
	return false
}

func (k TransportEventKind) closeReason() CloseReason {
	switch k {
	case TransportDisconnected:
		return CloseCompleted
	case TransportCanceled:
		return CloseCanceled
	case TransportRejected:
		return CloseRejected
	default:
		return CloseFailed
	}
}

// TransportEvent is a normalized lifecycle event from the voice transport.
type TransportEvent struct {
	Kind TransportEventKind
}

// ---- Session Event Union ----

// EventSource tags which collaborator produced a session event. The
// reducer treats transport and poller as equally authoritative; the
// first signal for a transition wins regardless of source.
type EventSource string

const (
	SourceGate      EventSource = "gate"
	SourceTransport EventSource = "transport"
	SourcePoller    EventSource = "poller"
	SourceTimer     EventSource = "timer"
	SourceUser      EventSource = "user"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	// Permission gate outcomes
	EventMicGranted EventKind = "mic_granted"
	EventMicDenied  EventKind = "mic_denied"

	// Dial request accepted by the backend; carries the session ID
	EventDialed EventKind = "dialed"

	// Progress signals from either authoritative source
	EventRinging   EventKind = "ringing"
	EventConnected EventKind = "connected"

	// Terminal signal from any source; carries a close reason
	EventTerminal EventKind = "terminal"

	// One-second duration tick while connected
	EventTick EventKind = "tick"

	// User actions
	EventMuteToggle EventKind = "mute_toggle"
	EventHangup     EventKind = "hangup"
)

// SessionEvent is the tagged union consumed by the session reducer.
// Transport events, poller statuses, timer ticks, and user actions are
// all normalized into this one shape before they touch session state.
type SessionEvent struct {
	Source EventSource
	Kind   EventKind

	// SessionID is set on EventDialed.
	SessionID string

	// Reason is set on EventTerminal.
	Reason CloseReason
}

// ---- Session Notification Keys ----

// SessionEventKey identifies notifications emitted by a Session.
type SessionEventKey string

const (
	SessionEventPhaseChange SessionEventKey = "phase_change"
	SessionEventTickSecond  SessionEventKey = "tick"
	SessionEventClosed      SessionEventKey = "closed"
	SessionEventReset       SessionEventKey = "reset"
)

// ---- Event Emitter ----

// EventHandler is a callback function for events
type EventHandler func(data interface{})

// EventEmitter provides a simple event pub/sub system
type EventEmitter struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewEventEmitter creates a new EventEmitter
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		handlers: make(map[string][]EventHandler),
	}
}

// On registers an event handler for a specific event type
func (e *EventEmitter) On(event string, handler EventHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

// Off removes all handlers for a specific event type
func (e *EventEmitter) Off(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, event)
}

// Emit fires an event, calling all registered handlers
func (e *EventEmitter) Emit(event string, data interface{}) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers[event]))
	copy(handlers, e.handlers[event])
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(data)
	}
}
