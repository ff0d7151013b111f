/* SPDX-License-Identifier: MPL-2.0 */

// Package auth implements passkey login against the backend: it fetches
// an assertion challenge, signs it with the local credential, exchanges
// the assertion for a bearer token, and keeps that token on the core
// client.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/securedash/dialer-go-sdk/dialersdk"
)

// Config holds configuration for the Auth plugin
type Config struct {
	// AssertionTimeout bounds one full login ceremony
	AssertionTimeout time.Duration
}

// DefaultConfig returns the default Auth configuration
func DefaultConfig() *Config {
	return &Config{
		AssertionTimeout: 60 * time.Second,
	}
}

// Client is the Auth API client
type Client struct {
	core   *dialersdk.Client
	config *Config

	mu       sync.RWMutex
	token    string
	expiry   time.Time
	userName string
}

// New creates a new Auth plugin
func New(core *dialersdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{core: core, config: config}
}

// assertionOptions is the backend's challenge for a login ceremony
type assertionOptions struct {
	Challenge        string `json:"challenge"`
	RPID             string `json:"rpId"`
	Timeout          int    `json:"timeout"`
	AllowCredentials []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"allowCredentials"`
}

// assertionResponse is the signed assertion sent back for verification
type assertionResponse struct {
	ID       string `json:"id"`
	RawID    string `json:"rawId"`
	Type     string `json:"type"`
	Response struct {
		ClientDataJSON    string `json:"clientDataJSON"`
		AuthenticatorData string `json:"authenticatorData"`
		Signature         string `json:"signature"`
		UserHandle        string `json:"userHandle"`
	} `json:"response"`
}

// verifyResult is the backend's answer to a successful verification
type verifyResult struct {
	Verified bool   `json:"verified"`
	Token    string `json:"token"`
	UserName string `json:"user_name"`
}

// Login runs the passkey ceremony with the given credential. On
// success the bearer token is installed on the core client so every
// subsequent API call is authenticated.
func (c *Client) Login(ctx context.Context, cred *Credential) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.AssertionTimeout)
	defer cancel()

	options, err := c.loginOptions(ctx)
	if err != nil {
		return err
	}

	assertion, err := signAssertion(cred, options)
	if err != nil {
		return err
	}

	result, err := c.verify(ctx, assertion)
	if err != nil {
		return err
	}
	if !result.Verified || result.Token == "" {
		return fmt.Errorf("auth: backend did not verify the assertion")
	}

	expiry := tokenExpiry(result.Token)

	c.mu.Lock()
	c.token = result.Token
	c.expiry = expiry
	c.userName = result.UserName
	c.mu.Unlock()

	c.core.SetAccessToken(result.Token)
	return nil
}

// loginOptions fetches the assertion challenge.
func (c *Client) loginOptions(ctx context.Context) (*assertionOptions, error) {
	resp, err := c.core.RequestWithContext(ctx, http.MethodPost, "auth/login/options", nil, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login options: %w", err)
	}

	var options assertionOptions
	if err := dialersdk.ParseResponse(resp, &options); err != nil {
		return nil, err
	}
	if options.Challenge == "" {
		return nil, fmt.Errorf("auth: login options missing challenge")
	}
	return &options, nil
}

// verify submits the signed assertion.
func (c *Client) verify(ctx context.Context, assertion *assertionResponse) (*verifyResult, error) {
	resp, err := c.core.RequestWithContext(ctx, http.MethodPost, "auth/login/verify", nil, assertion)
	if err != nil {
		return nil, fmt.Errorf("failed to verify assertion: %w", err)
	}

	var result verifyResult
	if err := dialersdk.ParseResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// signAssertion produces the assertion for the challenge. The client
// data is signed as a compact JWS with the credential's ES256 key; the
// backend verifies the signature against the registered public key.
func signAssertion(cred *Credential, options *assertionOptions) (*assertionResponse, error) {
	clientData, err := json.Marshal(map[string]string{
		"type":      "webauthn.get",
		"challenge": options.Challenge,
		"rpId":      options.RPID,
	})
	if err != nil {
		return nil, err
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: cred.Key}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create assertion signer: %w", err)
	}
	jws, err := signer.Sign(clientData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign assertion: %w", err)
	}
	compact, err := jws.CompactSerialize()
	if err != nil {
		return nil, err
	}

	assertion := &assertionResponse{
		ID:    cred.ID,
		RawID: cred.ID,
		Type:  "public-key",
	}
	assertion.Response.ClientDataJSON = BufferEncode(clientData)
	assertion.Response.AuthenticatorData = cred.KeyFingerprint()
	assertion.Response.Signature = compact
	assertion.Response.UserHandle = BufferEncode([]byte(cred.UserHandle))
	return assertion, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend is the authority, the client only schedules around it.
func tokenExpiry(token string) time.Time {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256, jose.RS256, jose.ES256})
	if err != nil {
		return time.Time{}
	}
	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return time.Time{}
	}
	if claims.Expiry == nil {
		return time.Time{}
	}
	return claims.Expiry.Time()
}

// Validate asks the backend whether the current token is still good.
func (c *Client) Validate(ctx context.Context) (bool, error) {
	if c.Token() == "" {
		return false, nil
	}

	resp, err := c.core.RequestWithContext(ctx, http.MethodGet, "auth/validate", nil, nil)
	if err != nil {
		return false, fmt.Errorf("validate request failed: %w", err)
	}
	if err := dialersdk.Drain(resp); err != nil {
		if dialersdk.IsAuthError(err) {
			c.clear()
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Logout discards the session on both sides. A backend error still
// clears the local token.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.core.RequestWithContext(ctx, http.MethodPost, "auth/logout", nil, nil)
	c.clear()
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return dialersdk.Drain(resp)
}

// Token returns the current bearer token, empty when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// UserName returns the display name of the logged-in account.
func (c *Client) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userName
}

// Expired reports whether the token's exp claim has passed. Tokens
// without a readable exp claim never report expired locally.
func (c *Client) Expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return true
	}
	if c.expiry.IsZero() {
		return false
	}
	return time.Now().After(c.expiry)
}

func (c *Client) clear() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.userName = ""
	c.mu.Unlock()
	c.core.SetAccessToken("")
}
