// Package github is a narrow client for the parts of the GitHub REST API
// this service consumes: repository metadata for syncing, hook management
// and the user endpoints used by the OAuth flow.  Provider-side failures
// are reported as *APIError so callers can tell them apart from transport
// errors.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiBase = "https://api.github.com"

// APIError is a non-2xx response from GitHub.  StatusCode carries the
// HTTP status, Message the provider's error description when present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %d %s", e.StatusCode, e.Message)
}

// Repo is the repository shape returned by the API, limited to the fields
// the service stores.
type Repo struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	Visibility    string    `json:"visibility"`
	DefaultBranch string    `json:"default_branch"`
	Language      string    `json:"language"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	OpenIssues    int       `json:"open_issues_count"`
	Watchers      int       `json:"watchers_count"`
	UpdatedAt     time.Time `json:"updated_at"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Branch is one entry of the branches listing.
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

// Contributor is one entry of the contributors listing.
type Contributor struct {
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
}

// Hook is a webhook as configured on the GitHub side.
type Hook struct {
	ID     int64    `json:"id"`
	Active bool     `json:"active"`
	Events []string `json:"events"`
}

// User is the authenticated-user shape used by the OAuth flow.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Email is one entry of the user emails listing.
type Email struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Client calls the GitHub API on behalf of one user token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given OAuth access token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: apiBase,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the client at a different API root.  Tests only.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUser returns the authenticated user.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListEmails returns the authenticated user's email addresses.
func (c *Client) ListEmails(ctx context.Context) ([]Email, error) {
	var out []Email
	if err := c.do(ctx, http.MethodGet, "/user/emails", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRepository fetches current metadata for owner/name.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repo, error) {
	var r Repo
	if err := c.do(ctx, http.MethodGet, "/repos/"+owner+"/"+name, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListBranches returns the branches of a repository.
func (c *Client) ListBranches(ctx context.Context, owner, name string) ([]Branch, error) {
	var out []Branch
	if err := c.do(ctx, http.MethodGet, "/repos/"+owner+"/"+name+"/branches", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListContributors returns the contributors of a repository.
func (c *Client) ListContributors(ctx context.Context, owner, name string) ([]Contributor, error) {
	var out []Contributor
	if err := c.do(ctx, http.MethodGet, "/repos/"+owner+"/"+name+"/contributors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLanguages returns the byte counts per language of a repository.
func (c *Client) GetLanguages(ctx context.Context, owner, name string) (map[string]int64, error) {
	out := map[string]int64{}
	if err := c.do(ctx, http.MethodGet, "/repos/"+owner+"/"+name+"/languages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWebhooks returns the hooks configured on a repository.
func (c *Client) ListWebhooks(ctx context.Context, owner, name string) ([]Hook, error) {
	var out []Hook
	if err := c.do(ctx, http.MethodGet, "/repos/"+owner+"/"+name+"/hooks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateWebhook registers a JSON webhook delivering the given events to
// url, signed with secret.
func (c *Client) CreateWebhook(ctx context.Context, owner, name, url, secret string, events []string) (*Hook, error) {
	if len(events) == 0 {
		events = []string{"push", "pull_request", "issues"}
	}
	body := map[string]any{
		"name":   "web",
		"active": true,
		"events": events,
		"config": map[string]string{
			"url":          url,
			"content_type": "json",
			"secret":       secret,
			"insecure_ssl": "0",
		},
	}
	var h Hook
	if err := c.do(ctx, http.MethodPost, "/repos/"+owner+"/"+name+"/hooks", body, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteWebhook removes a hook from a repository.
func (c *Client) DeleteWebhook(ctx context.Context, owner, name string, hookID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/repos/%s/%s/hooks/%d", owner, name, hookID), nil, nil)
}
