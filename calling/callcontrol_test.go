/* SPDX-License-Identifier: MPL-2.0 */

package calling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/securedash/dialer-go-sdk/dialersdk"
)

func newTestControl(t *testing.T, handler http.Handler) (*CallControl, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := dialersdk.DefaultConfig()
	config.BaseURL = server.URL
	config.MaxRetries = 0
	core, err := dialersdk.NewClient("test-token", config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return NewCallControl(core), server
}

func TestDial(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/voice/calls/dial" {
				t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			}
			var req DialRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if req.PhoneNumber != "+15551234567" {
				t.Errorf("Expected phone number in body, got %q", req.PhoneNumber)
			}
			if !req.VoiceSDK {
				t.Error("Expected voice_sdk to be set")
			}
			json.NewEncoder(w).Encode(DialResponse{CallID: "call-42", Status: StatusQueued})
		}))

		dial, err := control.Dial(context.Background(), "+15551234567")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if dial.CallID != "call-42" {
			t.Errorf("Expected call-42, got %q", dial.CallID)
		}
		if dial.Status != StatusQueued {
			t.Errorf("Expected queued, got %s", dial.Status)
		}
	})

	t.Run("empty target", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("No request should be sent for an empty target")
		}))
		if _, err := control.Dial(context.Background(), ""); !errors.Is(err, ErrEmptyTarget) {
			t.Errorf("Expected ErrEmptyTarget, got %v", err)
		}
	})

	t.Run("missing call_id", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		if _, err := control.Dial(context.Background(), "+15550000000"); err == nil {
			t.Error("Expected an error for a dial response without call_id")
		}
	})

	t.Run("backend error", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "outbound calling disabled"}`))
		}))
		_, err := control.Dial(context.Background(), "+15550000000")
		if !dialersdk.IsForbidden(err) {
			t.Errorf("Expected a forbidden error, got %v", err)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Run("flat shape", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/voice/calls/call-42" {
				t.Errorf("Unexpected path: %s", r.URL.Path)
			}
			w.Write([]byte(`{"status": "ringing"}`))
		}))
		status, err := control.Status(context.Background(), "call-42")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if status != StatusRinging {
			t.Errorf("Expected ringing, got %s", status)
		}
	})

	t.Run("wrapped shape", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"call": {"status": "in-progress"}}`))
		}))
		status, err := control.Status(context.Background(), "call-42")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if status != StatusInProgress {
			t.Errorf("Expected in-progress, got %s", status)
		}
	})

	t.Run("missing status", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		if _, err := control.Status(context.Background(), "call-42"); err == nil {
			t.Error("Expected an error for a response without status")
		}
	})
}

func TestHangup(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/voice/calls/call-42/hangup" {
				t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
			}
			w.Write([]byte(`{}`))
		}))
		if err := control.Hangup(context.Background(), "call-42"); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("already ended", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "call not found"}`))
		}))
		if err := control.Hangup(context.Background(), "call-42"); err != nil {
			t.Errorf("Hangup of a finished call must succeed, got %v", err)
		}
	})

	t.Run("server error surfaces", func(t *testing.T) {
		control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "boom"}`))
		}))
		if err := control.Hangup(context.Background(), "call-42"); err == nil {
			t.Error("Expected a server error to surface")
		}
	})
}

func TestVoiceToken(t *testing.T) {
	control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/token" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"token": "cap-token"}`))
	}))

	token, err := control.VoiceToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if token != "cap-token" {
		t.Errorf("Expected cap-token, got %q", token)
	}
}

func TestHistory(t *testing.T) {
	control, _ := newTestControl(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voice/calls/history" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("Expected limit=5, got %q", r.URL.Query().Get("limit"))
		}
		if r.URL.Query().Get("direction") != "outbound" {
			t.Errorf("Expected direction=outbound, got %q", r.URL.Query().Get("direction"))
		}
		w.Write([]byte(`{"calls": [
			{"id": "c1", "phone_number": "+15551230001", "status": "completed", "duration_seconds": 42},
			{"id": "c2", "phone_number": "+15551230002", "status": "no-answer", "duration_seconds": 0}
		]}`))
	}))

	records, err := control.History(context.Background(), &HistoryOptions{Limit: 5, Direction: "outbound"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != "c1" || records[0].Status != StatusCompleted {
		t.Errorf("Unexpected first record: %+v", records[0])
	}
	if records[1].DurationSeconds != 0 || records[1].Status != StatusNoAnswer {
		t.Errorf("Unexpected second record: %+v", records[1])
	}
}
