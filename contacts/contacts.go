/* SPDX-License-Identifier: MPL-2.0 */

// Package contacts provides the phone book API client.
package contacts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/securedash/dialer-go-sdk/dialersdk"
)

// Contact represents one phone book entry
type Contact struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	Email       string     `json:"email,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Created     *time.Time `json:"created_at,omitempty"`
	Updated     *time.Time `json:"updated_at,omitempty"`
}

// ListOptions contains the options for listing contacts
type ListOptions struct {
	// Search filters by name or number substring
	Search string
	// Max caps the number of returned contacts
	Max int
}

// contactsPage matches the list endpoint's wrapper
type contactsPage struct {
	Items []Contact `json:"contacts"`
}

// Config holds the configuration for the Contacts plugin
type Config struct{}

// DefaultConfig returns the default configuration for the Contacts plugin
func DefaultConfig() *Config {
	return &Config{}
}

// Client is the contacts API client
type Client struct {
	core   *dialersdk.Client
	config *Config
}

// New creates a new Contacts plugin
func New(core *dialersdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		core:   core,
		config: config,
	}
}

// List returns contacts matching the options, sorted by name.
func (c *Client) List(ctx context.Context, options *ListOptions) ([]Contact, error) {
	params := url.Values{}
	if options != nil {
		if options.Search != "" {
			params.Set("search", options.Search)
		}
		if options.Max > 0 {
			params.Set("max", strconv.Itoa(options.Max))
		}
	}

	resp, err := c.core.RequestWithRetry(ctx, http.MethodGet, "contacts", params, nil)
	if err != nil {
		return nil, err
	}

	var page contactsPage
	if err := dialersdk.ParseResponse(resp, &page); err != nil {
		return nil, err
	}

	return page.Items, nil
}

// Get returns a single contact by ID
func (c *Client) Get(ctx context.Context, contactID string) (*Contact, error) {
	if contactID == "" {
		return nil, fmt.Errorf("contactID is required")
	}

	resp, err := c.core.RequestWithContext(ctx, http.MethodGet, "contacts/"+contactID, nil, nil)
	if err != nil {
		return nil, err
	}

	var contact Contact
	if err := dialersdk.ParseResponse(resp, &contact); err != nil {
		return nil, err
	}

	return &contact, nil
}

// Create adds a new contact
func (c *Client) Create(ctx context.Context, contact *Contact) (*Contact, error) {
	if contact.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if contact.PhoneNumber == "" {
		return nil, fmt.Errorf("phoneNumber is required")
	}

	resp, err := c.core.RequestWithContext(ctx, http.MethodPost, "contacts", nil, contact)
	if err != nil {
		return nil, err
	}

	var result Contact
	if err := dialersdk.ParseResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Update modifies an existing contact
func (c *Client) Update(ctx context.Context, contactID string, contact *Contact) (*Contact, error) {
	if contactID == "" {
		return nil, fmt.Errorf("contactID is required")
	}

	resp, err := c.core.RequestWithContext(ctx, http.MethodPut, "contacts/"+contactID, nil, contact)
	if err != nil {
		return nil, err
	}

	var result Contact
	if err := dialersdk.ParseResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Delete removes a contact
func (c *Client) Delete(ctx context.Context, contactID string) error {
	if contactID == "" {
		return fmt.Errorf("contactID is required")
	}

	resp, err := c.core.RequestWithContext(ctx, http.MethodDelete, "contacts/"+contactID, nil, nil)
	if err != nil {
		return err
	}

	return dialersdk.Drain(resp)
}

// FindByNumber returns the contact whose phone number matches exactly,
// or nil when the number is unknown.
func (c *Client) FindByNumber(ctx context.Context, phoneNumber string) (*Contact, error) {
	if phoneNumber == "" {
		return nil, fmt.Errorf("phoneNumber is required")
	}

	items, err := c.List(ctx, &ListOptions{Search: phoneNumber})
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].PhoneNumber == phoneNumber {
			return &items[i], nil
		}
	}
	return nil, nil
}
