/* SPDX-License-Identifier: MPL-2.0 */

package calling

// Reduce is the session transition function. It is pure: given a
// snapshot and one event it returns the next snapshot and whether
// anything changed. Duplicate or stale signals fall through without
// effect, which is what makes the dual transport/poller feed safe:
// whichever source reports a transition first wins, and the echo from
// the other source is discarded here.
func Reduce(s CallSession, ev SessionEvent) (CallSession, bool) {
	if s.Phase.Terminal() || s.Phase == PhaseIdle {
		return s, false
	}

	switch ev.Kind {
	case EventMicGranted:
		if s.Phase != PhasePermissionPending {
			return s, false
		}
		s.MicPermission = MicGranted
		s.Phase = PhaseTransportInit
		return s, true

	case EventMicDenied:
		if s.Phase != PhasePermissionPending {
			return s, false
		}
		s.MicPermission = MicDenied
		return closeSession(s, ClosePermissionDenied)

	case EventDialed:
		if s.Phase != PhaseTransportInit {
			return s, false
		}
		s.SessionID = ev.SessionID
		s.Phase = PhaseDialing
		return s, true

	case EventRinging:
		// Ringing only moves the session forward from dialing. Once
		// connected, a late poller "ringing" is stale and dropped.
		if s.Phase != PhaseDialing {
			return s, false
		}
		s.Phase = PhaseRinging
		return s, true

	case EventConnected:
		if s.Phase != PhaseDialing && s.Phase != PhaseRinging {
			return s, false
		}
		s.Phase = PhaseConnected
		s.ElapsedSeconds = 0
		return s, true

	case EventTick:
		if s.Phase != PhaseConnected {
			return s, false
		}
		s.ElapsedSeconds++
		return s, true

	case EventMuteToggle:
		// Mute is only defined while connected; everywhere else the
		// toggle is a silent no-op.
		if s.Phase != PhaseConnected {
			return s, false
		}
		s.Muted = !s.Muted
		return s, true

	case EventHangup:
		// A user hangup from connected is a normal completion; earlier
		// in the attempt it is a cancellation.
		if s.Phase == PhaseConnected {
			return closeSession(s, CloseCompleted)
		}
		return closeSession(s, CloseCanceled)

	case EventTerminal:
		return closeSession(s, ev.Reason)
	}

	return s, false
}

// closeSession moves the session into the terminal phase for reason. The
// elapsed counter keeps its last value so the final duration stays
// visible until the reset.
func closeSession(s CallSession, reason CloseReason) (CallSession, bool) {
	s.CloseReason = reason
	s.Phase = reason.terminalPhase()
	return s, true
}
