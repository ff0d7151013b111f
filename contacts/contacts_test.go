/* SPDX-License-Identifier: MPL-2.0 */

package contacts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/securedash/dialer-go-sdk/dialersdk"
)

func newTestContacts(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := dialersdk.DefaultConfig()
	config.BaseURL = server.URL
	core, err := dialersdk.NewClient("test-token", config)
	if err != nil {
		t.Fatalf("Failed to create core client: %v", err)
	}
	return New(core, nil)
}

func TestList(t *testing.T) {
	client := newTestContacts(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts" || r.Method != http.MethodGet {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("search"); got != "ali" {
			t.Errorf("Expected search=ali, got %q", got)
		}
		if got := r.URL.Query().Get("max"); got != "5" {
			t.Errorf("Expected max=5, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]string{
				{"id": "c1", "name": "Alice", "phone_number": "+15551234567"},
				{"id": "c2", "name": "Alina", "phone_number": "+15557654321"},
			},
		})
	}))

	items, err := client.List(context.Background(), &ListOptions{Search: "ali", Max: 5})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 contacts, got %d", len(items))
	}
	if items[0].Name != "Alice" || items[0].PhoneNumber != "+15551234567" {
		t.Errorf("Unexpected first contact: %+v", items[0])
	}
}

func TestGet(t *testing.T) {
	client := newTestContacts(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contacts/c1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Contact{ID: "c1", Name: "Alice", PhoneNumber: "+15551234567"})
	}))

	contact, err := client.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if contact.ID != "c1" || contact.Name != "Alice" {
		t.Errorf("Unexpected contact: %+v", contact)
	}

	if _, err := client.Get(context.Background(), ""); err == nil {
		t.Error("Expected an error for empty contactID")
	}
}

func TestCreate(t *testing.T) {
	client := newTestContacts(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/contacts" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var in Contact
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		in.ID = "c9"
		json.NewEncoder(w).Encode(in)
	}))

	created, err := client.Create(context.Background(), &Contact{Name: "Bob", PhoneNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID != "c9" || created.Name != "Bob" {
		t.Errorf("Unexpected created contact: %+v", created)
	}

	if _, err := client.Create(context.Background(), &Contact{PhoneNumber: "+1555"}); err == nil {
		t.Error("Expected an error for missing name")
	}
	if _, err := client.Create(context.Background(), &Contact{Name: "Bob"}); err == nil {
		t.Error("Expected an error for missing phone number")
	}
}

func TestUpdate(t *testing.T) {
	client := newTestContacts(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/contacts/c1" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(Contact{ID: "c1", Name: "Alice B", PhoneNumber: "+15551234567"})
	}))

	updated, err := client.Update(context.Background(), "c1", &Contact{Name: "Alice B"})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "Alice B" {
		t.Errorf("Unexpected updated contact: %+v", updated)
	}
}

func TestDelete(t *testing.T) {
	deleted := false
	client := newTestContacts(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/contacts/c1" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Expected the delete request to reach the backend")
	}

	if err := client.Delete(context.Background(), ""); err == nil {
		t.Error("Expected an error for empty contactID")
	}
}

func TestFindByNumber(t *testing.T) {
	client := newTestContacts(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]string{
				{"id": "c1", "name": "Alice", "phone_number": "+15551234567"},
				{"id": "c2", "name": "Alice work", "phone_number": "+155512345678"},
			},
		})
	}))

	t.Run("exact match", func(t *testing.T) {
		contact, err := client.FindByNumber(context.Background(), "+15551234567")
		if err != nil {
			t.Fatalf("FindByNumber failed: %v", err)
		}
		if contact == nil || contact.ID != "c1" {
			t.Errorf("Expected c1, got %+v", contact)
		}
	})

	t.Run("no exact match", func(t *testing.T) {
		contact, err := client.FindByNumber(context.Background(), "+15559999999")
		if err != nil {
			t.Fatalf("FindByNumber failed: %v", err)
		}
		if contact != nil {
			t.Errorf("Expected nil for an unknown number, got %+v", contact)
		}
	})

	t.Run("empty number", func(t *testing.T) {
		if _, err := client.FindByNumber(context.Background(), ""); err == nil {
			t.Error("Expected an error for empty number")
		}
	})
}
