/* SPDX-License-Identifier: MPL-2.0 */

package calling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/securedash/dialer-go-sdk/dialersdk"
)

// ErrEmptyTarget is returned when Dial is called without a destination.
var ErrEmptyTarget = errors.New("calling: dial target is empty")

// CallControl is the backend call-control API client. It drives the
// PSTN leg of a call: dialing, status, hangup, the voice capability
// token, and call history.
type CallControl struct {
	core *dialersdk.Client
}

// NewCallControl creates a new call-control client
func NewCallControl(core *dialersdk.Client) *CallControl {
	return &CallControl{core: core}
}

// DialRequest is the body of the dial endpoint
type DialRequest struct {
	PhoneNumber string `json:"phone_number"`
	VoiceSDK    bool   `json:"voice_sdk"`
}

// DialResponse is returned when the backend accepts a dial request
type DialResponse struct {
	CallID string     `json:"call_id"`
	Status CallStatus `json:"status"`
}

// Dial asks the backend to place an outbound call to target. The
// returned CallID identifies the call for Status and Hangup. VoiceSDK
// is always set: audio rides the device transport, not a callback leg.
func (c *CallControl) Dial(ctx context.Context, target string) (*DialResponse, error) {
	if target == "" {
		return nil, ErrEmptyTarget
	}

	resp, err := c.core.RequestWithRetry(ctx, http.MethodPost, "voice/calls/dial", nil, &DialRequest{
		PhoneNumber: target,
		VoiceSDK:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("dial request failed: %w", err)
	}

	var dial DialResponse
	if err := dialersdk.ParseResponse(resp, &dial); err != nil {
		return nil, err
	}
	if dial.CallID == "" {
		return nil, fmt.Errorf("dial response missing call_id")
	}
	return &dial, nil
}

// Hangup asks the backend to end the call. Hanging up a call that has
// already ended is not an error; the backend answers 404 for unknown
// or finished calls and that is treated as success.
func (c *CallControl) Hangup(ctx context.Context, callID string) error {
	resp, err := c.core.RequestWithContext(ctx, http.MethodPost, "voice/calls/"+callID+"/hangup", nil, nil)
	if err != nil {
		return fmt.Errorf("hangup request failed: %w", err)
	}
	if err := dialersdk.Drain(resp); err != nil {
		if dialersdk.IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// statusEnvelope tolerates both response shapes the backend has used:
// a flat {"status": ...} and a wrapped {"call": {"status": ...}}.
type statusEnvelope struct {
	Status CallStatus `json:"status"`
	Call   *struct {
		Status CallStatus `json:"status"`
	} `json:"call"`
}

// Status fetches the backend's current view of the call.
func (c *CallControl) Status(ctx context.Context, callID string) (CallStatus, error) {
	resp, err := c.core.RequestWithContext(ctx, http.MethodGet, "voice/calls/"+callID, nil, nil)
	if err != nil {
		return "", fmt.Errorf("status request failed: %w", err)
	}

	var env statusEnvelope
	if err := dialersdk.ParseResponse(resp, &env); err != nil {
		return "", err
	}
	if env.Call != nil && env.Call.Status != "" {
		return env.Call.Status, nil
	}
	if env.Status == "" {
		return "", fmt.Errorf("status response missing status field")
	}
	return env.Status, nil
}

// VoiceToken fetches a short-lived capability token for the voice
// transport.
func (c *CallControl) VoiceToken(ctx context.Context) (string, error) {
	resp, err := c.core.RequestWithRetry(ctx, http.MethodGet, "voice/token", nil, nil)
	if err != nil {
		return "", fmt.Errorf("voice token request failed: %w", err)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := dialersdk.ParseResponse(resp, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("voice token response missing token")
	}
	return body.Token, nil
}

// CallRecord is one entry of the call history
type CallRecord struct {
	ID              string     `json:"id"`
	PhoneNumber     string     `json:"phone_number"`
	ContactName     string     `json:"contact_name,omitempty"`
	Direction       string     `json:"direction"`
	Status          CallStatus `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	StartedAt       time.Time  `json:"started_at"`
}

// HistoryOptions are the optional filters of the history endpoint
type HistoryOptions struct {
	// Limit caps the number of records returned, newest first
	Limit int
	// Direction filters by "inbound" or "outbound"
	Direction string
}

// historyEnvelope matches the history endpoint's list wrapper
type historyEnvelope struct {
	Calls []CallRecord `json:"calls"`
}

// History lists past calls, newest first.
func (c *CallControl) History(ctx context.Context, options *HistoryOptions) ([]CallRecord, error) {
	params := url.Values{}
	if options != nil {
		if options.Limit > 0 {
			params.Set("limit", strconv.Itoa(options.Limit))
		}
		if options.Direction != "" {
			params.Set("direction", options.Direction)
		}
	}

	resp, err := c.core.RequestWithRetry(ctx, http.MethodGet, "voice/calls/history", params, nil)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}

	var env historyEnvelope
	if err := dialersdk.ParseResponse(resp, &env); err != nil {
		return nil, err
	}
	return env.Calls, nil
}
