/* SPDX-License-Identifier: MPL-2.0 */

package calling

import "fmt"

// CallSession is an immutable snapshot of one outbound call attempt.
// The reducer takes a snapshot and an event and returns the next
// snapshot; nothing else mutates these fields.
type CallSession struct {
	// SessionID is the backend call-control identifier, assigned when
	// the dial request is accepted. Empty before that.
	SessionID string

	// Target is the dialed address (E.164 number or contact address).
	Target string

	// DisplayName is an optional contact name resolved for the target.
	DisplayName string

	Phase         Phase
	MicPermission MicPermission

	// Muted is only meaningful while the session is connected.
	Muted bool

	// ElapsedSeconds counts whole seconds since the session entered
	// the connected phase. It freezes at its last value when the
	// session closes and only returns to zero on reset to idle.
	ElapsedSeconds int

	// CloseReason is empty until the session enters a terminal phase,
	// then set exactly once.
	CloseReason CloseReason
}

// idleSession is the template every new attempt starts from and every
// finished attempt resets back to.
func idleSession() CallSession {
	return CallSession{
		Phase:         PhaseIdle,
		MicPermission: MicPending,
	}
}

// Active reports whether an attempt is in flight, including terminal
// phases still displaying their outcome before the reset.
func (s CallSession) Active() bool {
	return s.Phase != PhaseIdle
}

// StatusText renders the session for display. The microphone gate
// outcome takes precedence over the phase label.
func (s CallSession) StatusText() string {
	if s.MicPermission == MicDenied {
		return "Microphone access denied"
	}
	switch s.Phase {
	case PhasePermissionPending:
		return "Requesting microphone access..."
	case PhaseTransportInit:
		return "Initializing voice connection..."
	case PhaseDialing:
		return "Dialing..."
	case PhaseRinging:
		return "Ringing..."
	case PhaseConnected:
		return "Connected - " + FormatDuration(s.ElapsedSeconds)
	case PhaseCompleted:
		return "Call Ended"
	case PhaseFailed:
		return "Call Failed"
	case PhaseBusy:
		return "Line Busy"
	case PhaseNoAnswer:
		return "No Answer"
	case PhaseCanceled:
		return "Call Canceled"
	case PhaseRejected:
		return "Call Rejected"
	default:
		return ""
	}
}

// FormatDuration renders a second count as zero-padded MM:SS.
// Minutes are not capped at 59, so 3700 seconds renders as "61:40".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
