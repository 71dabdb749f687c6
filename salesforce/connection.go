package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Credentials are the session-scoped tokens a Connection operates with.
type Credentials struct {
	AccessToken    string
	RefreshToken   string
	InstanceURL    string
	UserID         string
	OrganizationID string
}

// RefreshFunc observes access-token rotation. It runs synchronously, before
// the provider call that triggered the refresh returns to its caller.
type RefreshFunc func(accessToken string)

// Connection is a live provider connection bound to one session's
// credentials. An expired access token is rotated transparently on the next
// call via the refresh-token grant.
type Connection struct {
	client    *Client
	onRefresh RefreshFunc

	mu    sync.Mutex
	creds Credentials
}

// Connection binds credentials to the client. onRefresh may be nil.
func (c *Client) Connection(creds Credentials, onRefresh RefreshFunc) *Connection {
	return &Connection{client: c, creds: creds, onRefresh: onRefresh}
}

// AccessToken returns the current access token, including rotations observed
// during this connection's lifetime.
func (conn *Connection) AccessToken() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return conn.creds.AccessToken
}

// Identity is the provider's description of the authenticated user.
type Identity struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
}

// Identity fetches the identity record for the connection's user.
func (conn *Connection) Identity(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := conn.getJSON(ctx, conn.identityURL(), &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (conn *Connection) identityURL() string {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	return fmt.Sprintf("%s/id/%s/%s", conn.client.loginURL, conn.creds.OrganizationID, conn.creds.UserID)
}

func (conn *Connection) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := conn.get(ctx, rawURL)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if err := conn.refresh(ctx); err != nil {
			return err
		}
		if resp, err = conn.get(ctx, rawURL); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("salesforce: GET %s: unexpected status %s", rawURL, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("salesforce: GET %s: decode response: %w", rawURL, err)
	}
	return nil
}

func (conn *Connection) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("salesforce: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken())
	req.Header.Set("Accept", "application/json")
	return conn.client.httpClient.Do(req)
}

// refresh rotates the access token via the refresh-token grant and notifies
// the observer before returning. Only the access token changes; a failed
// refresh propagates without retrying.
func (conn *Connection) refresh(ctx context.Context) error {
	conn.mu.Lock()
	refreshToken := conn.creds.RefreshToken
	conn.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, conn.client.httpClient)
	source := conn.client.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return fmt.Errorf("salesforce: token refresh: %w", err)
	}

	conn.mu.Lock()
	conn.creds.AccessToken = token.AccessToken
	conn.mu.Unlock()

	log.Debug().Msg("salesforce: access token rotated")
	if conn.onRefresh != nil {
		conn.onRefresh(token.AccessToken)
	}
	return nil
}
