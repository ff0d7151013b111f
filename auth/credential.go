/* SPDX-License-Identifier: MPL-2.0 */

package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// Credential is a locally held passkey: a P-256 keypair plus the
// identifiers the backend registered it under.
type Credential struct {
	// ID is the base64url credential ID presented to the backend
	ID string
	// UserHandle identifies the account the credential belongs to
	UserHandle string
	// Key is the ES256 signing key
	Key *ecdsa.PrivateKey
}

// NewCredential generates a fresh passkey credential.
func NewCredential(userHandle string) (*Credential, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate credential key: %w", err)
	}
	return &Credential{
		ID:         BufferEncode([]byte(uuid.New().String())),
		UserHandle: userHandle,
		Key:        key,
	}, nil
}

// credentialFile is the on-disk form. The key travels as a JWK so the
// file stays portable across tooling.
type credentialFile struct {
	ID         string          `json:"id"`
	UserHandle string          `json:"userHandle"`
	Key        json.RawMessage `json:"key"`
}

// Save writes the credential to path with owner-only permissions.
func (c *Credential) Save(path string) error {
	jwk := jose.JSONWebKey{Key: c.Key, KeyID: c.ID, Algorithm: string(jose.ES256), Use: "sig"}
	keyJSON, err := jwk.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal credential key: %w", err)
	}

	data, err := json.MarshalIndent(credentialFile{
		ID:         c.ID,
		UserHandle: c.UserHandle,
		Key:        keyJSON,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadCredential reads a credential previously written by Save.
func LoadCredential(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}

	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(file.Key); err != nil {
		return nil, fmt.Errorf("failed to parse credential key: %w", err)
	}
	key, ok := jwk.Key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("credential key is not an EC private key")
	}

	return &Credential{
		ID:         file.ID,
		UserHandle: file.UserHandle,
		Key:        key,
	}, nil
}

// KeyFingerprint returns the base64url SHA-256 of the public key,
// matching how the backend indexes registered credentials.
func (c *Credential) KeyFingerprint() string {
	pub := elliptic.MarshalCompressed(elliptic.P256(), c.Key.PublicKey.X, c.Key.PublicKey.Y)
	sum := sha256.Sum256(pub)
	return BufferEncode(sum[:])
}

// BufferEncode encodes bytes as unpadded base64url, the encoding used
// throughout the passkey ceremony.
func BufferEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// BufferDecode decodes unpadded base64url, tolerating padded input.
func BufferDecode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
