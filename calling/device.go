/* SPDX-License-Identifier: MPL-2.0 */

package calling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrTransportNotReady is returned when a call is attempted before the
// transport finished initializing.
var ErrTransportNotReady = errors.New("calling: transport not initialized")

// ErrCallInProgress is returned when a second concurrent call is
// attempted on the same device.
var ErrCallInProgress = errors.New("calling: another call is already in progress")

// DeviceConfig holds configuration for the voice gateway transport
type DeviceConfig struct {
	// GatewayURL is the websocket URL of the voice gateway
	GatewayURL string
	// HandshakeTimeout bounds the websocket dial
	HandshakeTimeout time.Duration
	// RegisterTimeout bounds the wait for the gateway's registered ack
	RegisterTimeout time.Duration
	// Media configures the per-call media engine
	Media *MediaConfig
	// HTTPTransport, when set, supplies the dial context for the
	// websocket so proxies configured on the HTTP client are honored
	HTTPTransport *http.Transport
}

// DefaultDeviceConfig returns a DeviceConfig with sensible defaults
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		GatewayURL:       "wss://localhost:8443/voice/gateway",
		HandshakeTimeout: 10 * time.Second,
		RegisterTimeout:  15 * time.Second,
		Media:            DefaultMediaConfig(),
	}
}

// gatewayFrame is the JSON wire format on the gateway socket. The Type
// field selects which of the optional fields are meaningful.
type gatewayFrame struct {
	Type    string `json:"type"`
	CallRef string `json:"callRef,omitempty"`
	Target  string `json:"target,omitempty"`
	SDP     string `json:"sdp,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Device is the gateway-backed Transport. It holds one registered
// websocket to the voice gateway and at most one active call.
type Device struct {
	mu     sync.Mutex
	config *DeviceConfig

	// writeMu serializes frame writes; gorilla allows one writer at a time
	writeMu sync.Mutex

	conn        *websocket.Conn
	initialized bool
	initDone    chan struct{}
	initErr     error

	active *deviceCall
}

// NewDevice creates a new voice gateway transport
func NewDevice(config *DeviceConfig) *Device {
	if config == nil {
		config = DefaultDeviceConfig()
	}
	return &Device{config: config}
}

// Initialize registers the device with the voice gateway. The first
// caller performs the handshake; concurrent callers wait for that
// attempt and share its outcome. Once ready, Initialize returns
// immediately until Close.
func (d *Device) Initialize(ctx context.Context, token string) error {
	d.mu.Lock()
	if d.initialized {
		d.mu.Unlock()
		return nil
	}
	if d.initDone != nil {
		done := d.initDone
		d.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		d.mu.Lock()
		err := d.initErr
		d.mu.Unlock()
		return err
	}
	done := make(chan struct{})
	d.initDone = done
	d.mu.Unlock()

	conn, err := d.register(ctx, token)

	d.mu.Lock()
	if err == nil {
		d.conn = conn
		d.initialized = true
		go d.readLoop(conn)
	}
	d.initErr = err
	d.initDone = nil
	d.mu.Unlock()
	close(done)

	return err
}

// register dials the gateway socket and completes the register handshake.
func (d *Device) register(ctx context.Context, token string) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.HandshakeTimeout,
	}
	if d.config.HTTPTransport != nil {
		dialer.NetDialContext = d.config.HTTPTransport.DialContext
	}

	conn, _, err := dialer.DialContext(ctx, d.config.GatewayURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to voice gateway: %w", err)
	}

	if err := conn.WriteJSON(gatewayFrame{Type: "register"}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send register frame: %w", err)
	}

	// The gateway answers register with exactly one ack frame
	conn.SetReadDeadline(time.Now().Add(d.config.RegisterTimeout))
	var ack gatewayFrame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read register ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if ack.Type != "registered" {
		conn.Close()
		return nil, fmt.Errorf("gateway rejected registration: %s %s", ack.Type, ack.Reason)
	}

	return conn, nil
}

// Connect starts an outbound call through the gateway.
func (d *Device) Connect(ctx context.Context, target string) (CallHandle, error) {
	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return nil, ErrTransportNotReady
	}
	if d.active != nil {
		d.mu.Unlock()
		return nil, ErrCallInProgress
	}
	conn := d.conn
	d.mu.Unlock()

	media, err := NewMediaEngine(d.config.Media)
	if err != nil {
		return nil, err
	}
	if _, err := media.AddAudioTrack(); err != nil {
		media.Close()
		return nil, err
	}
	offer, err := media.CreateOffer()
	if err != nil {
		media.Close()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		media.Close()
		return nil, err
	}

	callRef := uuid.New().String()
	call := newDeviceCall(d, callRef, media)

	d.mu.Lock()
	if d.active != nil {
		d.mu.Unlock()
		media.Close()
		return nil, ErrCallInProgress
	}
	d.active = call
	d.mu.Unlock()

	if err := d.writeFrame(conn, gatewayFrame{
		Type:    "invite",
		CallRef: callRef,
		Target:  target,
		SDP:     offer,
	}); err != nil {
		d.clearActive(callRef)
		media.Close()
		return nil, fmt.Errorf("failed to send invite: %w", err)
	}

	return call, nil
}

// Close tears down the gateway socket. A live call observes a failure
// event before the socket drops.
func (d *Device) Close() error {
	d.mu.Lock()
	conn := d.conn
	active := d.active
	d.conn = nil
	d.initialized = false
	d.active = nil
	d.mu.Unlock()

	if active != nil {
		active.dispatch(TransportFailed)
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readLoop dispatches gateway frames to the active call until the
// socket closes.
func (d *Device) readLoop(conn *websocket.Conn) {
	for {
		var frame gatewayFrame
		if err := conn.ReadJSON(&frame); err != nil {
			d.mu.Lock()
			stale := d.conn != conn
			active := d.active
			if !stale {
				d.conn = nil
				d.initialized = false
				d.active = nil
			}
			d.mu.Unlock()
			if !stale {
				if active != nil {
					log.Printf("Voice gateway socket closed mid-call: %v", err)
					active.dispatch(TransportFailed)
				}
			}
			return
		}

		call := d.activeFor(frame.CallRef)
		if call == nil {
			continue
		}

		switch frame.Type {
		case "answer":
			call.answer(frame.SDP)
		case "ringing":
			call.dispatch(TransportRinging)
		case "accepted":
			call.dispatch(TransportAccepted)
		case "disconnected":
			call.dispatch(TransportDisconnected)
		case "canceled":
			call.dispatch(TransportCanceled)
		case "rejected":
			call.dispatch(TransportRejected)
		default:
			log.Printf("Voice gateway: ignoring frame type %q", frame.Type)
		}
	}
}

// activeFor returns the active call if the frame's reference matches.
func (d *Device) activeFor(callRef string) *deviceCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil || d.active.callRef != callRef {
		return nil
	}
	return d.active
}

// clearActive drops the active call slot if it still holds callRef.
func (d *Device) clearActive(callRef string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil && d.active.callRef == callRef {
		d.active = nil
	}
}

// writeFrame sends one frame under the write lock.
func (d *Device) writeFrame(conn *websocket.Conn, frame gatewayFrame) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (d *Device) sendMute(callRef string, on bool) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return
	}
	if err := d.writeFrame(conn, gatewayFrame{Type: "mute", CallRef: callRef, Muted: on}); err != nil {
		log.Printf("Voice gateway: mute frame failed: %v", err)
	}
}

func (d *Device) sendBye(callRef string) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return
	}
	if err := d.writeFrame(conn, gatewayFrame{Type: "bye", CallRef: callRef}); err != nil {
		log.Printf("Voice gateway: bye frame failed: %v", err)
	}
}
