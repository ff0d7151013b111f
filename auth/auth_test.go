/* SPDX-License-Identifier: MPL-2.0 */

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/securedash/dialer-go-sdk/dialersdk"
)

func newTestAuth(t *testing.T, handler http.Handler) (*Client, *dialersdk.Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := dialersdk.DefaultConfig()
	config.BaseURL = server.URL
	core, err := dialersdk.NewClient("", config)
	if err != nil {
		t.Fatalf("Failed to create core client: %v", err)
	}
	return New(core, nil), core
}

func TestBufferCodec(t *testing.T) {
	data := []byte{0x00, 0x01, 0xfe, 0xff, 0x7f}
	encoded := BufferEncode(data)

	decoded, err := BufferDecode(encoded)
	if err != nil {
		t.Fatalf("BufferDecode failed: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("Roundtrip mismatch: %v != %v", decoded, data)
	}

	// Padded input from older backends still decodes
	if _, err := BufferDecode("aGVsbG8="); err != nil {
		t.Errorf("Padded base64url should decode, got %v", err)
	}
}

func TestCredentialRoundtrip(t *testing.T) {
	cred, err := NewCredential("operator")
	if err != nil {
		t.Fatalf("NewCredential failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sub", "credential.json")
	if err := cred.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadCredential(path)
	if err != nil {
		t.Fatalf("LoadCredential failed: %v", err)
	}
	if loaded.ID != cred.ID {
		t.Errorf("ID mismatch: %q != %q", loaded.ID, cred.ID)
	}
	if loaded.UserHandle != "operator" {
		t.Errorf("UserHandle mismatch: %q", loaded.UserHandle)
	}
	if !loaded.Key.Equal(cred.Key) {
		t.Error("Private key did not roundtrip")
	}
	if loaded.KeyFingerprint() != cred.KeyFingerprint() {
		t.Error("Fingerprint mismatch after reload")
	}
}

func TestSignAssertion(t *testing.T) {
	cred, err := NewCredential("operator")
	if err != nil {
		t.Fatalf("NewCredential failed: %v", err)
	}

	options := &assertionOptions{Challenge: "challenge-123", RPID: "dialer.local"}
	assertion, err := signAssertion(cred, options)
	if err != nil {
		t.Fatalf("signAssertion failed: %v", err)
	}

	if assertion.ID != cred.ID || assertion.Type != "public-key" {
		t.Errorf("Unexpected assertion envelope: %+v", assertion)
	}

	// The signature must verify against the credential's public key
	jws, err := jose.ParseSigned(assertion.Response.Signature, []jose.SignatureAlgorithm{jose.ES256})
	if err != nil {
		t.Fatalf("Failed to parse signature: %v", err)
	}
	payload, err := jws.Verify(cred.Key.Public())
	if err != nil {
		t.Fatalf("Signature did not verify: %v", err)
	}

	var clientData map[string]string
	if err := json.Unmarshal(payload, &clientData); err != nil {
		t.Fatalf("Failed to decode client data: %v", err)
	}
	if clientData["challenge"] != "challenge-123" {
		t.Errorf("Expected the challenge in the signed payload, got %q", clientData["challenge"])
	}
	if clientData["type"] != "webauthn.get" {
		t.Errorf("Expected webauthn.get, got %q", clientData["type"])
	}
}

func TestLogin(t *testing.T) {
	cred, err := NewCredential("operator")
	if err != nil {
		t.Fatalf("NewCredential failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/options", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"challenge": "challenge-xyz",
			"rpId":      "dialer.local",
		})
	})
	mux.HandleFunc("/auth/login/verify", func(w http.ResponseWriter, r *http.Request) {
		var assertion assertionResponse
		if err := json.NewDecoder(r.Body).Decode(&assertion); err != nil {
			t.Fatalf("Failed to decode assertion: %v", err)
		}
		jws, err := jose.ParseSigned(assertion.Response.Signature, []jose.SignatureAlgorithm{jose.ES256})
		if err != nil {
			t.Fatalf("Backend could not parse signature: %v", err)
		}
		if _, err := jws.Verify(cred.Key.Public()); err != nil {
			t.Fatalf("Backend could not verify signature: %v", err)
		}
		json.NewEncoder(w).Encode(verifyResult{Verified: true, Token: "bearer-token", UserName: "Operator"})
	})

	client, core := newTestAuth(t, mux)
	if err := client.Login(context.Background(), cred); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if client.Token() != "bearer-token" {
		t.Errorf("Expected bearer-token, got %q", client.Token())
	}
	if core.GetAccessToken() != "bearer-token" {
		t.Error("Login must install the token on the core client")
	}
	if client.UserName() != "Operator" {
		t.Errorf("Expected Operator, got %q", client.UserName())
	}
	if client.Expired() {
		t.Error("A token without exp must not report expired")
	}
}

func TestRegister(t *testing.T) {
	cred, err := NewCredential("operator")
	if err != nil {
		t.Fatalf("NewCredential failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/register/options", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode options request: %v", err)
		}
		if body["user_name"] != "operator" {
			t.Errorf("Expected user_name=operator, got %q", body["user_name"])
		}
		json.NewEncoder(w).Encode(map[string]any{"challenge": "reg-challenge", "rpId": "dialer.local"})
	})
	mux.HandleFunc("/auth/register/verify", func(w http.ResponseWriter, r *http.Request) {
		var registration registrationResponse
		if err := json.NewDecoder(r.Body).Decode(&registration); err != nil {
			t.Fatalf("Failed to decode registration: %v", err)
		}

		// The backend verifies the proof with the submitted public key
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(registration.Response.PublicKey); err != nil {
			t.Fatalf("Failed to parse submitted public key: %v", err)
		}
		jws, err := jose.ParseSigned(registration.Response.Signature, []jose.SignatureAlgorithm{jose.ES256})
		if err != nil {
			t.Fatalf("Failed to parse proof: %v", err)
		}
		payload, err := jws.Verify(jwk.Key)
		if err != nil {
			t.Fatalf("Proof did not verify with the submitted key: %v", err)
		}
		var clientData map[string]string
		if err := json.Unmarshal(payload, &clientData); err != nil {
			t.Fatalf("Failed to decode client data: %v", err)
		}
		if clientData["challenge"] != "reg-challenge" || clientData["type"] != "webauthn.create" {
			t.Errorf("Unexpected client data: %v", clientData)
		}
		json.NewEncoder(w).Encode(verifyResult{Verified: true})
	})

	client, _ := newTestAuth(t, mux)
	if err := client.Register(context.Background(), cred); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestLoginRejected(t *testing.T) {
	cred, err := NewCredential("operator")
	if err != nil {
		t.Fatalf("NewCredential failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/options", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"challenge": "c", "rpId": "dialer.local"})
	})
	mux.HandleFunc("/auth/login/verify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(verifyResult{Verified: false})
	})

	client, core := newTestAuth(t, mux)
	if err := client.Login(context.Background(), cred); err == nil {
		t.Error("Expected an error for a rejected assertion")
	}
	if core.GetAccessToken() != "" {
		t.Error("No token may be installed after a rejected login")
	}
}

func TestValidate(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		client, _ := newTestAuth(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("No request should be made without a token")
		}))
		ok, err := client.Validate(context.Background())
		if err != nil || ok {
			t.Errorf("Expected (false, nil), got (%v, %v)", ok, err)
		}
	})

	t.Run("expired token cleared", func(t *testing.T) {
		client, core := newTestAuth(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "token expired"}`))
		}))
		client.token = "stale"
		core.SetAccessToken("stale")

		ok, err := client.Validate(context.Background())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if ok {
			t.Error("Expected the token to be invalid")
		}
		if client.Token() != "" || core.GetAccessToken() != "" {
			t.Error("A rejected token must be cleared everywhere")
		}
	})

	t.Run("valid token", func(t *testing.T) {
		client, _ := newTestAuth(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"valid": true}`))
		}))
		client.token = "good"

		ok, err := client.Validate(context.Background())
		if err != nil || !ok {
			t.Errorf("Expected (true, nil), got (%v, %v)", ok, err)
		}
	})
}

func TestTokenExpiry(t *testing.T) {
	cred, err := NewCredential("operator")
	if err != nil {
		t.Fatalf("NewCredential failed: %v", err)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: cred.Key}, nil)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.Signed(signer).Claims(jwt.Claims{Expiry: jwt.NewNumericDate(exp)}).Serialize()
	if err != nil {
		t.Fatalf("Failed to build token: %v", err)
	}

	got := tokenExpiry(token)
	if !got.Equal(exp) {
		t.Errorf("Expected expiry %v, got %v", exp, got)
	}

	if !tokenExpiry("not-a-jwt").IsZero() {
		t.Error("Opaque tokens must report zero expiry")
	}
}
