package github

// OAuth 2.0 against GitHub.  GitHub issues no ID token, so after the code
// exchange the caller fetches the user and email list through the regular
// API client.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authEndpoint  = "https://github.com/login/oauth/authorize"
	tokenEndpoint = "https://github.com/login/oauth/access_token"
)

// OAuth is the GitHub OAuth 2.0 client.
type OAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	tokenURL string
	http     *http.Client
}

// NewOAuth creates a new GitHub OAuth client.
func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return &OAuth{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"user:email", "read:user"},
		tokenURL:     tokenEndpoint,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether OAuth credentials were provided.
func (g *OAuth) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// AuthURL builds the authorization URL users are redirected to.
func (g *OAuth) AuthURL(state string) string {
	u, _ := url.Parse(authEndpoint)
	q := u.Query()
	q.Set("client_id", g.ClientID)
	q.Set("redirect_uri", g.RedirectURL)
	q.Set("scope", strings.Join(g.Scopes, " "))
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Exchange trades the callback code for an access token.
func (g *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", g.ClientID)
	form.Set("client_secret", g.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth exchange: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("oauth exchange decode: %w", err)
	}
	if body.Error != "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: body.ErrorDescription}
	}
	if body.AccessToken == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "no access token in response"}
	}
	return body.AccessToken, nil
}
