/* SPDX-License-Identifier: MPL-2.0 */

package calling

import (
	"context"
	"log"
	"sync"
)

// Transport abstracts the voice path that carries a call. The Device
// implementation speaks to the voice gateway; tests substitute fakes.
type Transport interface {
	// Initialize prepares the transport with a capability token.
	// Calling it again while ready is a no-op; calling it while a
	// previous Initialize is still in flight joins that attempt.
	Initialize(ctx context.Context, token string) error

	// Connect starts an outbound call and returns its handle.
	Connect(ctx context.Context, target string) (CallHandle, error)

	// Close tears the transport down. Any live handle observes a
	// terminal event first.
	Close() error
}

// CallHandle is one live call on a transport. A handle emits lifecycle
// events in order and delivers at most one terminal event; every signal
// after that is swallowed.
type CallHandle interface {
	// OnEvent registers the event sink. Register before the call can
	// progress; late registrations miss earlier events.
	OnEvent(handler func(TransportEvent))

	// Mute applies the desired mute state to the outgoing audio. It
	// reports whether the state was applied; before the call is
	// accepted or after it ends this is a no-op returning false.
	Mute(on bool) bool

	// Hangup ends the call. Safe to call repeatedly; only the first
	// call on a live handle does anything.
	Hangup()
}

// deviceCall is the Device-backed CallHandle. It owns the per-call
// media engine and enforces the single-terminal-event guarantee.
type deviceCall struct {
	mu sync.Mutex

	device  *Device
	callRef string
	media   *MediaEngine

	handler  func(TransportEvent)
	accepted bool
	terminal bool
}

func newDeviceCall(device *Device, callRef string, media *MediaEngine) *deviceCall {
	return &deviceCall{
		device:  device,
		callRef: callRef,
		media:   media,
	}
}

// OnEvent registers the event sink for this call.
func (c *deviceCall) OnEvent(handler func(TransportEvent)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Mute toggles the outgoing audio. Only effective between accept and
// the terminal event.
func (c *deviceCall) Mute(on bool) bool {
	c.mu.Lock()
	if !c.accepted || c.terminal {
		c.mu.Unlock()
		return false
	}
	media := c.media
	c.mu.Unlock()

	if on {
		media.Mute()
	} else {
		media.Unmute()
	}
	c.device.sendMute(c.callRef, on)
	return true
}

// Hangup sends a bye for this call and reports it disconnected. On an
// already-ended call this does nothing.
func (c *deviceCall) Hangup() {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.device.sendBye(c.callRef)
	c.dispatch(TransportDisconnected)
}

// dispatch delivers one lifecycle event to the sink. Terminal events
// latch: the first one wins, everything after is dropped, including a
// duplicate accept.
func (c *deviceCall) dispatch(kind TransportEventKind) {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return
	}
	if kind == TransportAccepted {
		if c.accepted {
			c.mu.Unlock()
			return
		}
		c.accepted = true
	}
	if kind.Terminal() {
		c.terminal = true
	}
	handler := c.handler
	media := c.media
	c.mu.Unlock()

	if kind.Terminal() {
		if err := media.Close(); err != nil {
			log.Printf("Call %s: media close failed: %v", c.callRef, err)
		}
		c.device.clearActive(c.callRef)
	}

	if handler != nil {
		handler(TransportEvent{Kind: kind})
	}
}

// answer applies the gateway's SDP answer to the media engine.
func (c *deviceCall) answer(sdp string) {
	c.mu.Lock()
	media := c.media
	terminal := c.terminal
	c.mu.Unlock()
	if terminal {
		return
	}
	if err := media.SetRemoteAnswer(sdp); err != nil {
		log.Printf("Call %s: failed to apply SDP answer: %v", c.callRef, err)
		c.dispatch(TransportFailed)
	}
}
