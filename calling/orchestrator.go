/* SPDX-License-Identifier: MPL-2.0 */

package calling

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrSessionActive is returned by PlaceCall while a previous attempt,
// including the terminal display window before the reset, is still on
// screen.
var ErrSessionActive = errors.New("calling: a call session is already active")

// SessionConfig holds the timing knobs of the session orchestrator
type SessionConfig struct {
	// PollInterval is the backend status polling cadence
	PollInterval time.Duration
	// TickInterval is the duration counter cadence
	TickInterval time.Duration
	// DisplayDelay is how long a terminal outcome stays visible before
	// the session resets to idle
	DisplayDelay time.Duration
	// SetupTimeout bounds token fetch, transport init, and the dial
	// request together
	SetupTimeout time.Duration
	// HangupTimeout bounds the backend hangup notification
	HangupTimeout time.Duration
}

// DefaultSessionConfig returns the default orchestrator timings
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		PollInterval:  2 * time.Second,
		TickInterval:  1 * time.Second,
		DisplayDelay:  2 * time.Second,
		SetupTimeout:  30 * time.Second,
		HangupTimeout: 5 * time.Second,
	}
}

// Session orchestrates one outbound call attempt at a time. All state
// transitions happen on a single goroutine consuming a session event
// channel; the microphone gate, the transport, the status poller, the
// duration timer, and user actions all feed that channel and never
// touch the state directly.
type Session struct {
	mu     sync.RWMutex
	state  CallSession
	config *SessionConfig

	control   *CallControl
	transport Transport
	gate      MicrophoneGate

	// Emitter notifies observers of phase changes, ticks, close, and
	// reset. Handlers run on the session goroutine; keep them short.
	Emitter *EventEmitter

	attempt *attempt
}

// attempt holds the per-call resources of one run of the state machine.
type attempt struct {
	events chan SessionEvent
	done   chan struct{}
	cancel context.CancelFunc

	handle      CallHandle
	pollStop    chan struct{}
	tickStop    chan struct{}
	tickStarted bool
	tornDown    bool
}

// NewSession creates a session orchestrator
func NewSession(control *CallControl, transport Transport, gate MicrophoneGate, config *SessionConfig) *Session {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if gate == nil {
		gate = NewMicrophoneGate()
	}
	return &Session{
		state:     idleSession(),
		config:    config,
		control:   control,
		transport: transport,
		gate:      gate,
		Emitter:   NewEventEmitter(),
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() CallSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return s.Snapshot().Phase
}

// ElapsedSeconds returns the connected duration so far. After the call
// closes it keeps reporting the final duration until the reset.
func (s *Session) ElapsedSeconds() int {
	return s.Snapshot().ElapsedSeconds
}

// IsMuted reports the mute state; only meaningful while connected.
func (s *Session) IsMuted() bool {
	return s.Snapshot().Muted
}

// StatusText renders the current state for display.
func (s *Session) StatusText() string {
	return s.Snapshot().StatusText()
}

// PlaceCall starts an outbound call attempt to target. It returns
// ErrSessionActive if an attempt is already in flight, including the
// terminal display window, and ErrEmptyTarget for a blank target.
func (s *Session) PlaceCall(target string) error {
	if target == "" {
		return ErrEmptyTarget
	}

	s.mu.Lock()
	if s.state.Active() {
		s.mu.Unlock()
		return ErrSessionActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{
		events: make(chan SessionEvent, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.attempt = a
	s.state = idleSession()
	s.state.Target = target
	s.state.Phase = PhasePermissionPending
	snap := s.state
	s.mu.Unlock()

	s.Emitter.Emit(string(SessionEventPhaseChange), snap)

	go s.acquireMicrophone(ctx, a)
	go s.run(ctx, a, target)
	return nil
}

// ToggleMute flips the mute state. Outside the connected phase this is
// a no-op.
func (s *Session) ToggleMute() {
	s.post(SessionEvent{Source: SourceUser, Kind: EventMuteToggle})
}

// Hangup ends the current attempt. From connected it completes the
// call; earlier it cancels the attempt; on an idle or already-closed
// session it does nothing.
func (s *Session) Hangup() {
	s.post(SessionEvent{Source: SourceUser, Kind: EventHangup})
}

// post feeds one event to the running attempt, dropping it if no
// attempt is live.
func (s *Session) post(ev SessionEvent) {
	s.mu.RLock()
	a := s.attempt
	s.mu.RUnlock()
	if a == nil {
		return
	}
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// acquireMicrophone runs the permission gate and reports its outcome.
func (s *Session) acquireMicrophone(ctx context.Context, a *attempt) {
	err := s.gate.AcquireMicrophone(ctx)
	switch {
	case err == nil:
		s.deliver(a, SessionEvent{Source: SourceGate, Kind: EventMicGranted})
	case errors.Is(err, ErrPermissionDenied):
		s.deliver(a, SessionEvent{Source: SourceGate, Kind: EventMicDenied})
	default:
		log.Printf("Microphone gate error: %v", err)
		s.deliver(a, SessionEvent{Source: SourceGate, Kind: EventTerminal, Reason: CloseFailed})
	}
}

// deliver sends an event from a producer goroutine, giving up once the
// attempt is finished.
func (s *Session) deliver(a *attempt, ev SessionEvent) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// run is the single event loop of one attempt. It owns every state
// transition and every effect.
func (s *Session) run(ctx context.Context, a *attempt, target string) {
	for {
		var ev SessionEvent
		select {
		case ev = <-a.events:
		case <-a.done:
			return
		}

		s.mu.Lock()
		prev := s.state
		next, changed := Reduce(prev, ev)
		if changed {
			s.state = next
		}
		s.mu.Unlock()

		if !changed {
			continue
		}

		s.react(ctx, a, prev, next, target)
	}
}

// react runs the effects of one applied transition.
func (s *Session) react(ctx context.Context, a *attempt, prev, next CallSession, target string) {
	if next.Phase != prev.Phase {
		s.Emitter.Emit(string(SessionEventPhaseChange), next)
	}

	switch {
	case next.Phase == PhaseTransportInit && prev.Phase == PhasePermissionPending:
		go s.setup(ctx, a, target)

	case next.Phase == PhaseDialing && prev.Phase == PhaseTransportInit:
		a.pollStop = make(chan struct{})
		go s.poll(ctx, a, next.SessionID)

	case next.Phase == PhaseConnected && !a.tickStarted:
		// Guarded: the timer starts exactly once per attempt
		a.tickStarted = true
		a.tickStop = make(chan struct{})
		go s.tick(a)
	}

	if next.Phase == PhaseConnected && next.Muted != prev.Muted {
		if handle := s.currentHandle(a); handle != nil {
			handle.Mute(next.Muted)
		}
	}

	if next.Phase == PhaseConnected && next.ElapsedSeconds != prev.ElapsedSeconds {
		s.Emitter.Emit(string(SessionEventTickSecond), next.ElapsedSeconds)
	}

	if next.Phase.Terminal() {
		s.teardown(a, next)
	}
}

// setup performs the transport leg of the attempt: capability token,
// transport initialization, the backend dial request, and the transport
// connect. Any failure closes the session as failed.
func (s *Session) setup(ctx context.Context, a *attempt, target string) {
	setupCtx, cancel := context.WithTimeout(ctx, s.config.SetupTimeout)
	defer cancel()

	token, err := s.control.VoiceToken(setupCtx)
	if err != nil {
		log.Printf("Voice token fetch failed: %v", err)
		s.deliver(a, SessionEvent{Source: SourceTransport, Kind: EventTerminal, Reason: CloseFailed})
		return
	}

	if err := s.transport.Initialize(setupCtx, token); err != nil {
		log.Printf("Transport initialization failed: %v", err)
		s.deliver(a, SessionEvent{Source: SourceTransport, Kind: EventTerminal, Reason: CloseFailed})
		return
	}

	dial, err := s.control.Dial(setupCtx, target)
	if err != nil {
		log.Printf("Dial request failed: %v", err)
		s.deliver(a, SessionEvent{Source: SourceTransport, Kind: EventTerminal, Reason: CloseFailed})
		return
	}
	s.deliver(a, SessionEvent{Source: SourceTransport, Kind: EventDialed, SessionID: dial.CallID})

	handle, err := s.transport.Connect(setupCtx, target)
	if err != nil {
		log.Printf("Transport connect failed: %v", err)
		s.deliver(a, SessionEvent{Source: SourceTransport, Kind: EventTerminal, Reason: CloseFailed})
		return
	}

	s.mu.Lock()
	a.handle = handle
	s.mu.Unlock()

	handle.OnEvent(func(te TransportEvent) {
		s.deliver(a, transportSessionEvent(te))
	})
}

// currentHandle reads the attempt's call handle, which the setup
// goroutine publishes under the session lock.
func (s *Session) currentHandle(a *attempt) CallHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return a.handle
}

// transportSessionEvent normalizes a transport lifecycle event into the
// reducer's vocabulary.
func transportSessionEvent(te TransportEvent) SessionEvent {
	ev := SessionEvent{Source: SourceTransport}
	switch te.Kind {
	case TransportRinging:
		ev.Kind = EventRinging
	case TransportAccepted:
		ev.Kind = EventConnected
	default:
		ev.Kind = EventTerminal
		ev.Reason = te.Kind.closeReason()
	}
	return ev
}

// poll asks the backend for call status every PollInterval and feeds
// the answers into the reducer. It exits as soon as the session leaves
// the pollable phases.
func (s *Session) poll(ctx context.Context, a *attempt, callID string) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.pollStop:
			return
		case <-ticker.C:
		}

		if !s.Phase().Pollable() {
			return
		}

		pollCtx, cancel := context.WithTimeout(ctx, s.config.PollInterval)
		status, err := s.control.Status(pollCtx, callID)
		cancel()
		if err != nil {
			// Transient poll failures are tolerated; the transport
			// remains authoritative and the next tick retries.
			log.Printf("Status poll failed for call %s: %v", callID, err)
			continue
		}

		if ev, ok := pollerSessionEvent(status); ok {
			s.deliver(a, ev)
		}
	}
}

// pollerSessionEvent maps a backend status to a session event. Queued
// counts as ringing: the backend has accepted the call and is placing
// it, which is as far as some trunks ever report before the answer.
// Initiated keeps the session in dialing, so it produces nothing.
func pollerSessionEvent(status CallStatus) (SessionEvent, bool) {
	ev := SessionEvent{Source: SourcePoller}
	switch {
	case status == StatusRinging, status == StatusQueued:
		ev.Kind = EventRinging
	case status == StatusInProgress:
		ev.Kind = EventConnected
	case status.Terminal():
		ev.Kind = EventTerminal
		ev.Reason = status.closeReason()
	default:
		return SessionEvent{}, false
	}
	return ev, true
}

// tick advances the duration counter every TickInterval while the
// session stays connected.
func (s *Session) tick(a *attempt) {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.tickStop:
			return
		case <-ticker.C:
			s.deliver(a, SessionEvent{Source: SourceTimer, Kind: EventTick})
		}
	}
}

// teardown releases the attempt's resources. It runs exactly once per
// attempt no matter how many terminal signals arrive: the reducer
// latches the terminal phase, so react reaches here a single time.
func (s *Session) teardown(a *attempt, final CallSession) {
	if a.tornDown {
		return
	}
	a.tornDown = true

	a.cancel()
	if a.pollStop != nil {
		close(a.pollStop)
	}
	if a.tickStop != nil {
		close(a.tickStop)
	}

	// Hanging up an already-ended handle is a no-op inside the handle
	if handle := s.currentHandle(a); handle != nil {
		handle.Hangup()
	}

	// Best-effort backend notification, sent once. The backend treats
	// hangup of a finished call as success.
	if final.SessionID != "" {
		go func(callID string) {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.HangupTimeout)
			defer cancel()
			if err := s.control.Hangup(ctx, callID); err != nil {
				log.Printf("Hangup notification failed for call %s: %v", callID, err)
			}
		}(final.SessionID)
	}

	s.Emitter.Emit(string(SessionEventClosed), final)

	// Keep the outcome visible, then reset to idle
	time.AfterFunc(s.config.DisplayDelay, func() {
		s.finish(a)
	})
}

// finish resets the session to idle and retires the attempt.
func (s *Session) finish(a *attempt) {
	s.mu.Lock()
	if s.attempt == a {
		s.attempt = nil
		s.state = idleSession()
	}
	s.mu.Unlock()

	close(a.done)

	s.Emitter.Emit(string(SessionEventReset), s.Snapshot())
}
