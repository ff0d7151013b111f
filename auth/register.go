/* SPDX-License-Identifier: MPL-2.0 */

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/securedash/dialer-go-sdk/dialersdk"
)

// registrationOptions is the backend's challenge for a registration
// ceremony
type registrationOptions struct {
	Challenge string `json:"challenge"`
	RPID      string `json:"rpId"`
	User      struct {
		Name string `json:"name"`
	} `json:"user"`
}

// registrationResponse carries the new public key plus a proof of
// possession over the challenge
type registrationResponse struct {
	ID       string `json:"id"`
	RawID    string `json:"rawId"`
	Type     string `json:"type"`
	Response struct {
		ClientDataJSON string          `json:"clientDataJSON"`
		PublicKey      json.RawMessage `json:"publicKey"`
		Signature      string          `json:"signature"`
		UserHandle     string          `json:"userHandle"`
	} `json:"response"`
}

// Register enrolls a freshly generated credential with the backend:
// fetch a challenge, sign it with the new key, and submit the public
// key alongside the proof. The backend stores the key by fingerprint
// for later login ceremonies.
func (c *Client) Register(ctx context.Context, cred *Credential) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.AssertionTimeout)
	defer cancel()

	resp, err := c.core.RequestWithContext(ctx, http.MethodPost, "auth/register/options", nil, map[string]any{
		"user_name": cred.UserHandle,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch registration options: %w", err)
	}

	var options registrationOptions
	if err := dialersdk.ParseResponse(resp, &options); err != nil {
		return err
	}
	if options.Challenge == "" {
		return fmt.Errorf("auth: registration options missing challenge")
	}

	registration, err := buildRegistration(cred, &options)
	if err != nil {
		return err
	}

	resp, err = c.core.RequestWithContext(ctx, http.MethodPost, "auth/register/verify", nil, registration)
	if err != nil {
		return fmt.Errorf("failed to verify registration: %w", err)
	}

	var result verifyResult
	if err := dialersdk.ParseResponse(resp, &result); err != nil {
		return err
	}
	if !result.Verified {
		return fmt.Errorf("auth: backend did not accept the registration")
	}
	return nil
}

// buildRegistration signs the registration client data and attaches the
// public half of the credential key as a JWK.
func buildRegistration(cred *Credential, options *registrationOptions) (*registrationResponse, error) {
	clientData, err := json.Marshal(map[string]string{
		"type":      "webauthn.create",
		"challenge": options.Challenge,
		"rpId":      options.RPID,
	})
	if err != nil {
		return nil, err
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: cred.Key}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registration signer: %w", err)
	}
	jws, err := signer.Sign(clientData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign registration: %w", err)
	}
	compact, err := jws.CompactSerialize()
	if err != nil {
		return nil, err
	}

	publicJWK := jose.JSONWebKey{Key: cred.Key.Public(), KeyID: cred.KeyFingerprint(), Algorithm: string(jose.ES256)}
	publicKey, err := publicJWK.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	registration := &registrationResponse{
		ID:    cred.ID,
		RawID: cred.ID,
		Type:  "public-key",
	}
	registration.Response.ClientDataJSON = BufferEncode(clientData)
	registration.Response.PublicKey = publicKey
	registration.Response.Signature = compact
	registration.Response.UserHandle = BufferEncode([]byte(cred.UserHandle))
	return registration, nil
}
