/* SPDX-License-Identifier: MPL-2.0 */

package calling

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// ErrPermissionDenied is returned by a MicrophoneGate when capture
// access is refused. The session maps it to the permission-denied
// phase instead of a generic failure.
var ErrPermissionDenied = errors.New("calling: microphone permission denied")

// MicrophoneGate acquires capture permission before any transport work
// begins. Implementations must release whatever they probe before
// returning; the call handle opens its own capture track later.
type MicrophoneGate interface {
	AcquireMicrophone(ctx context.Context) error
}

// trackProbeGate is the default gate. It verifies that a local PCMU
// track can be constructed, which is the same operation the media
// engine performs when the call connects. Track construction is pure
// allocation, so this gate effectively always grants; an OS-level
// capture permission check needs a platform binding and belongs in a
// custom MicrophoneGate supplied through Config.Gate.
type trackProbeGate struct{}

// NewMicrophoneGate returns the default microphone gate.
func NewMicrophoneGate() MicrophoneGate {
	return trackProbeGate{}
}

func (trackProbeGate) AcquireMicrophone(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
		"audio",
		"mic-probe",
	); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return nil
}

// StaticGate always answers with a fixed outcome. Used for headless
// deployments where capture policy is decided by configuration.
type StaticGate struct {
	Allow bool
}

func (g StaticGate) AcquireMicrophone(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.Allow {
		return ErrPermissionDenied
	}
	return nil
}
