/* SPDX-License-Identifier: MPL-2.0 */

// Package calling provides the outbound voice call stack: the backend
// call-control client, the voice gateway transport, and the session
// orchestrator that drives one call from dial to teardown.
package calling

import (
	"github.com/securedash/dialer-go-sdk/dialersdk"
)

// Config holds configuration for the Calling client
type Config struct {
	// Session configures the orchestrator timings
	Session *SessionConfig
	// Device configures the voice gateway transport
	Device *DeviceConfig
	// Gate overrides the microphone permission gate
	Gate MicrophoneGate
}

// DefaultConfig returns the default Calling configuration
func DefaultConfig() *Config {
	return &Config{
		Session: DefaultSessionConfig(),
		Device:  DefaultDeviceConfig(),
	}
}

// Client is the top-level Calling client that aggregates the
// call-control API, the transport, and the session orchestrator.
type Client struct {
	core   *dialersdk.Client
	config *Config

	callControl *CallControl
	device      *Device
	session     *Session
}

// New creates a new Calling client.
func New(core *dialersdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		core:   core,
		config: config,
	}
}

// CallControl returns the backend call-control API client.
func (c *Client) CallControl() *CallControl {
	if c.callControl == nil {
		c.callControl = NewCallControl(c.core)
	}
	return c.callControl
}

// Device returns the voice gateway transport.
func (c *Client) Device() *Device {
	if c.device == nil {
		c.device = NewDevice(c.config.Device)
	}
	return c.device
}

// Session returns the call session orchestrator. One session exists
// per client; it runs one call attempt at a time.
func (c *Client) Session() *Session {
	if c.session == nil {
		c.session = NewSession(c.CallControl(), c.Device(), c.config.Gate, c.config.Session)
	}
	return c.session
}
