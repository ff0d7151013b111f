/* SPDX-License-Identifier: MPL-2.0 */

// Package dialer is the top-level client for the dialer backend. It
// aggregates the auth, contacts, and calling plugins over one core
// HTTP client.
package dialer

import (
	"github.com/securedash/dialer-go-sdk/auth"
	"github.com/securedash/dialer-go-sdk/calling"
	"github.com/securedash/dialer-go-sdk/contacts"
	"github.com/securedash/dialer-go-sdk/dialersdk"
)

// Client is the top-level client for the dialer API
type Client struct {
	// Core client shared by every plugin
	core *dialersdk.Client

	// Plugins
	authClient     *auth.Client
	contactsClient *contacts.Client
	callingClient  *calling.Client
}

// NewClient creates a new dialer client. The access token may be empty;
// the Auth plugin installs one after a successful login.
func NewClient(accessToken string, config *dialersdk.Config) (*Client, error) {
	core, err := dialersdk.NewClient(accessToken, config)
	if err != nil {
		return nil, err
	}

	return &Client{core: core}, nil
}

// Auth returns the Auth plugin
func (c *Client) Auth() *auth.Client {
	if c.authClient == nil {
		c.authClient = auth.New(c.core, nil)
	}
	return c.authClient
}

// Contacts returns the Contacts plugin
func (c *Client) Contacts() *contacts.Client {
	if c.contactsClient == nil {
		c.contactsClient = contacts.New(c.core, nil)
	}
	return c.contactsClient
}

// Calling returns the Calling plugin
func (c *Client) Calling() *calling.Client {
	if c.callingClient == nil {
		c.callingClient = calling.New(c.core, nil)
	}
	return c.callingClient
}

// CallingWith returns the Calling plugin built with a custom
// configuration. Panics if the default plugin was already created.
func (c *Client) CallingWith(config *calling.Config) *calling.Client {
	if c.callingClient != nil {
		panic("dialer: calling plugin already initialized")
	}
	c.callingClient = calling.New(c.core, config)
	return c.callingClient
}

// Core returns the underlying core client
func (c *Client) Core() *dialersdk.Client {
	return c.core
}
