package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthorizeURL = "https://discord.com/oauth2/authorize"
	defaultTokenURL     = "https://discord.com/api/oauth2/token"
	defaultAPIBaseURL   = "https://discord.com/api/v10"
)

// OAuthClient drives the authorization-code flow used for account linking.
// Only the identify scope is requested; the backend never reads guild or
// message data on behalf of the user.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string

	HTTPClient *http.Client
}

// TokenResponse is the provider token-endpoint reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// Identity is the linked user as seen by /users/@me.
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// NewOAuthClient builds an OAuth client for the given app credentials.
func NewOAuthClient(clientID, clientSecret, redirectURI string) *OAuthClient {
	return &OAuthClient{
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: strings.TrimSpace(clientSecret),
		RedirectURI:  strings.TrimSpace(redirectURI),
		AuthorizeURL: defaultAuthorizeURL,
		TokenURL:     defaultTokenURL,
		APIBaseURL:   defaultAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// AuthorizeURLWithState returns the provider authorize redirect target.
func (c *OAuthClient) AuthorizeURLWithState(state string) (string, error) {
	if c.ClientID == "" {
		return "", errors.New("DISCORD_CLIENT_ID is not configured")
	}
	if c.RedirectURI == "" {
		return "", errors.New("discord redirect URI is not configured")
	}
	u, err := url.Parse(c.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorize URL: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("scope", "identify")
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCode trades the authorization code for tokens. Single attempt;
// the user can always restart the flow from the success page.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, errors.New("DISCORD_CLIENT_ID/DISCORD_CLIENT_SECRET are not configured")
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}

	form := url.Values{}
	form.Set("code", strings.TrimSpace(code))
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("redirect_uri", c.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discord token exchange failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("discord token exchange returned empty access_token")
	}
	return &out, nil
}

// GetIdentity resolves the authenticated user via /users/@me.
func (c *OAuthClient) GetIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errors.New("access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.APIBaseURL, "/")+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("discord identity request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var raw struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errors.New("discord identity response missing user id")
	}

	return &Identity{
		UserID:   strings.TrimSpace(raw.ID),
		Username: strings.TrimSpace(raw.Username),
		Email:    strings.TrimSpace(raw.Email),
	}, nil
}
