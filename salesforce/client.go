package salesforce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultLoginURL is the production Salesforce login host.
const DefaultLoginURL = "https://login.salesforce.com"

// Every authorization requests API access plus a refresh token.
var oauthScopes = []string{"api", "refresh_token"}

// Config carries the provider endpoint parameters. It is passed explicitly to
// New rather than held in package state.
type Config struct {
	LoginURL     string // Defaults to DefaultLoginURL
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Client is the OAuth2 adapter for Salesforce: authorization-URL construction,
// code exchange, and connection building. Safe for concurrent use.
type Client struct {
	oauth      oauth2.Config
	loginURL   string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	loginURL := strings.TrimSuffix(cfg.LoginURL, "/")
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	return &Client{
		loginURL: loginURL,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       oauthScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   loginURL + "/services/oauth2/authorize",
				TokenURL:  loginURL + "/services/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthorizationURL builds the provider login URL carrying the opaque state.
func (c *Client) AuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// AuthResult is the outcome of a successful code exchange. UserID and
// OrganizationID are parsed from the identity URL in the token response.
type AuthResult struct {
	AccessToken    string
	RefreshToken   string
	InstanceURL    string
	IdentityURL    string
	UserID         string
	OrganizationID string
}

// Authorize exchanges a one-time authorization code for tokens. A code that
// has already been redeemed is rejected by the token endpoint.
func (c *Client) Authorize(ctx context.Context, code string) (*AuthResult, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("salesforce: code exchange: %w", err)
	}

	result := &AuthResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	result.InstanceURL, _ = token.Extra("instance_url").(string)
	result.IdentityURL, _ = token.Extra("id").(string)
	result.UserID, result.OrganizationID = parseIdentityURL(result.IdentityURL)
	return result, nil
}

// parseIdentityURL splits an identity URL of the form
// https://login.salesforce.com/id/<orgID>/<userID>.
func parseIdentityURL(raw string) (userID, orgID string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "id" {
		return "", ""
	}
	return parts[2], parts[1]
}
