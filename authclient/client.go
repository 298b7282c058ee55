// Package authclient wraps the identity provider's redirect-based login,
// logout, and token primitives behind the portal's simplified contract.
// The session is an explicit state machine driven by discrete calls
// rather than framework lifecycle hooks.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// State is the session state.
//
// Anonymous -> Pending (silent check issued) -> Authenticated or Anonymous.
// Authenticated -> LoggingOut -> Anonymous.
type State int

const (
	StateAnonymous State = iota
	StatePending
	StateAuthenticated
	StateLoggingOut
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePending:
		return "pending"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging_out"
	default:
		return "unknown"
	}
}

// ErrLoginRequired is reported when the provider refuses a silent
// re-authentication. The session fails closed to Anonymous; the caller
// is expected to retry with an interactive login.
var ErrLoginRequired = errors.New("login required")

// Profile is the subset of provider identity the application consumes
type Profile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// Options configures a Client
type Options struct {
	// Domain is the provider domain, with or without a scheme. A scheme
	// is honored as-is so tests can point at a local server.
	Domain       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Audience     string
	Scope        string

	// HTTPClient overrides the default 10s-timeout client
	HTTPClient *http.Client

	// Now overrides the clock (testing)
	Now func() time.Time
}

// Client is a provider session. All methods are safe for concurrent use.
type Client struct {
	opts       Options
	httpClient *http.Client
	now        func() time.Time

	mu           sync.Mutex
	state        State
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	profile      *Profile

	refreshGroup singleflight.Group
}

// New creates a Client in the Anonymous state
func New(opts Options) (*Client, error) {
	if opts.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if opts.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if opts.Scope == "" {
		opts.Scope = "openid profile email"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		opts:       opts,
		httpClient: httpClient,
		now:        now,
		state:      StateAnonymous,
	}, nil
}

func (c *Client) baseURL() string {
	if strings.HasPrefix(c.opts.Domain, "http://") || strings.HasPrefix(c.opts.Domain, "https://") {
		return c.opts.Domain
	}
	return "https://" + c.opts.Domain
}

// Login builds the provider authorize URL the caller must redirect the
// browser to. With silent=true the provider is asked to reuse an
// existing session (prompt=none); it answers the redirect with
// error=login_required when there is none, which the caller feeds to
// HandleCallbackError. redirectPath, when non-empty, overrides the
// configured post-login redirect URI.
func (c *Client) Login(silent bool, redirectPath string) string {
	redirectURI := c.opts.RedirectURI
	if redirectPath != "" {
		redirectURI = redirectPath
	}

	prompt := "login"
	if silent {
		prompt = "none"
	}

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.opts.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", c.opts.Scope)
	params.Set("prompt", prompt)
	if c.opts.Audience != "" {
		params.Set("audience", c.opts.Audience)
	}

	c.mu.Lock()
	if silent {
		c.state = StatePending
	}
	c.mu.Unlock()

	return c.baseURL() + "/authorize?" + params.Encode()
}

// tokenResponse is the provider token endpoint's wire shape
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// HandleCallback completes a login by exchanging the authorization code
// for tokens. On success the session is Authenticated; on failure it
// falls back to Anonymous.
func (c *Client) HandleCallback(ctx context.Context, code string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.opts.ClientID)
	form.Set("code", code)
	form.Set("redirect_uri", c.opts.RedirectURI)
	if c.opts.ClientSecret != "" {
		form.Set("client_secret", c.opts.ClientSecret)
	}

	token, err := c.requestToken(ctx, form)
	if err != nil {
		c.mu.Lock()
		c.clearSessionLocked()
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.installTokenLocked(token)
	c.mu.Unlock()
	return nil
}

// HandleCallbackError consumes a provider error returned on the redirect
// (the error query parameter). A refused silent check fails closed: the
// session transitions to Anonymous and ErrLoginRequired is returned so
// the caller can retry with an interactive login. Any other provider
// error also lands in Anonymous.
func (c *Client) HandleCallbackError(providerError string) error {
	c.mu.Lock()
	c.clearSessionLocked()
	c.mu.Unlock()

	switch providerError {
	case "login_required", "interaction_required", "consent_required":
		return ErrLoginRequired
	default:
		return fmt.Errorf("authentication failed: %s", providerError)
	}
}

// GetToken returns a currently valid access token, refreshing it when
// expired. With no active session it returns ("", nil), not an error.
// Concurrent callers needing a refresh share a single provider call.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return "", nil
	}
	if c.tokenValidLocked() {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if refreshToken == "" {
		// Expired with no way to refresh: the session is over
		c.mu.Lock()
		c.clearSessionLocked()
		c.mu.Unlock()
		return "", nil
	}

	// Serialize concurrent refresh attempts for this session
	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		c.mu.Lock()
		if c.tokenValidLocked() {
			// Another caller already refreshed
			c.mu.Unlock()
			return nil, nil
		}
		rt := c.refreshToken
		c.mu.Unlock()

		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("client_id", c.opts.ClientID)
		form.Set("refresh_token", rt)
		if c.opts.ClientSecret != "" {
			form.Set("client_secret", c.opts.ClientSecret)
		}

		token, err := c.requestToken(ctx, form)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.installTokenLocked(token)
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		// A failed refresh degrades to unauthenticated rather than
		// surfacing an error to every caller
		c.mu.Lock()
		c.clearSessionLocked()
		c.mu.Unlock()
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return "", nil
	}
	return c.accessToken, nil
}

// Logout terminates the local session and returns the provider logout
// URL the caller should redirect the browser to. Provider-side session
// termination is best-effort.
func (c *Client) Logout(returnTo string) string {
	c.mu.Lock()
	c.state = StateLoggingOut
	c.clearSessionLocked()
	c.mu.Unlock()

	params := url.Values{}
	params.Set("client_id", c.opts.ClientID)
	if returnTo != "" {
		params.Set("returnTo", returnTo)
	}
	return c.baseURL() + "/v2/logout?" + params.Encode()
}

// IsAuthenticated reports whether the session holds a provider identity
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAuthenticated
}

// State returns the current session state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the current profile, or nil when anonymous
func (c *Client) User() *Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return nil
	}
	profile := *c.profile
	return &profile
}

// tokenValidLocked reports whether the cached access token is still
// usable, with a small leeway so callers never receive a token about to
// expire mid-request. Caller must hold c.mu.
func (c *Client) tokenValidLocked() bool {
	if c.accessToken == "" {
		return false
	}
	return c.now().Add(30 * time.Second).Before(c.expiresAt)
}

// clearSessionLocked drops all session material. Caller must hold c.mu.
func (c *Client) clearSessionLocked() {
	c.state = StateAnonymous
	c.accessToken = ""
	c.refreshToken = ""
	c.expiresAt = time.Time{}
	c.profile = nil
}

// installTokenLocked stores a token response and moves the session to
// Authenticated. Caller must hold c.mu.
func (c *Client) installTokenLocked(token *tokenResponse) {
	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}
	c.expiresAt = c.tokenExpiry(token)
	if profile := profileFromIDToken(token.IDToken); profile != nil {
		c.profile = profile
	}
	c.state = StateAuthenticated
}

// tokenExpiry derives the access token expiry, preferring the exp claim
// of a JWT access token over the coarser expires_in hint
func (c *Client) tokenExpiry(token *tokenResponse) time.Time {
	if claims, err := parseUnverifiedClaims(token.AccessToken); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if token.ExpiresIn > 0 {
		return c.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	// No expiry information: treat as short-lived
	return c.now().Add(time.Minute)
}

func parseUnverifiedClaims(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	// Signature verification is the resource server's concern; the
	// adapter only inspects claims of tokens it received over TLS
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// profileFromIDToken extracts the identity claims the application uses
func profileFromIDToken(idToken string) *Profile {
	if idToken == "" {
		return nil
	}
	claims, err := parseUnverifiedClaims(idToken)
	if err != nil {
		return nil
	}

	profile := &Profile{}
	if sub, ok := claims["sub"].(string); ok {
		profile.ID = sub
	}
	if email, ok := claims["email"].(string); ok {
		profile.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		profile.Name = name
	}
	if picture, ok := claims["picture"].(string); ok {
		profile.Picture = picture
	}
	if profile.ID == "" {
		return nil
	}
	return profile
}

// requestToken posts to the provider token endpoint
func (c *Client) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL()+"/oauth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call token endpoint: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}

	return &token, nil
}
