package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the upstream agent platform: OAuth token exchange,
// profile reads, and the streaming chat/act endpoints.
type Client struct {
	apiBase     string
	oauthURL    string
	appID       string
	appSecret   string
	redirectURI string
	http        *http.Client
}

func New(apiBase, oauthURL, appID, appSecret, redirectURI string, timeout time.Duration) *Client {
	return &Client{
		apiBase:     strings.TrimRight(apiBase, "/"),
		oauthURL:    strings.TrimRight(oauthURL, "/"),
		appID:       appID,
		appSecret:   appSecret,
		redirectURI: redirectURI,
		http:        &http.Client{Timeout: timeout},
	}
}

// StatusError reports a non-2xx upstream response. Body is truncated so
// error logs stay readable.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}

func newStatusError(status int, body []byte) *StatusError {
	const max = 512
	s := string(body)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return &StatusError{Status: status, Body: s}
}

// Token is an OAuth token pair from the exchange or refresh endpoints.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserInfo is the owner profile behind an access token.
type UserInfo struct {
	ID     string
	Name   string
	Avatar string
}

// AuthURL builds the URL the browser is sent to for the OAuth grant.
func (c *Client) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.appID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	return c.oauthURL + "/authorize?" + q.Encode()
}

// ExchangeToken trades an authorization code for a token pair.
func (c *Client) ExchangeToken(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.appID)
	form.Set("client_secret", c.appSecret)
	form.Set("redirect_uri", c.redirectURI)
	return c.tokenRequest(ctx, form)
}

// RefreshToken trades a refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.appID)
	form.Set("client_secret", c.appSecret)
	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var tok Token
	if err := json.Unmarshal(unwrapData(body), &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &tok, nil
}

// UserInfo fetches the owner profile for an access token. Field names
// vary across platform versions, so each field is tried in a fixed order.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	body, err := c.get(ctx, "/user/info", accessToken)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID        string `json:"id"`
		UserID    string `json:"user_id"`
		Name      string `json:"name"`
		Nickname  string `json:"nickname"`
		Avatar    string `json:"avatar"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(unwrapData(body), &raw); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	info := &UserInfo{ID: raw.ID, Name: raw.Name, Avatar: raw.Avatar}
	if info.ID == "" {
		info.ID = raw.UserID
	}
	if info.Name == "" {
		info.Name = raw.Nickname
	}
	if info.Avatar == "" {
		info.Avatar = raw.AvatarURL
	}
	if info.ID == "" {
		return nil, fmt.Errorf("user info response missing id")
	}
	return info, nil
}

// Shades fetches the owner's trait tags. Tags may arrive as strings or
// as objects carrying a name field.
func (c *Client) Shades(ctx context.Context, accessToken string) ([]string, error) {
	body, err := c.get(ctx, "/user/shades", accessToken)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(unwrapData(body), &items); err != nil {
		return nil, fmt.Errorf("decode shades: %w", err)
	}

	tags := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				tags = append(tags, s)
			}
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Name != "" {
			tags = append(tags, obj.Name)
		}
	}
	return tags, nil
}

// SoftMemory fetches the owner's free-form memory text.
func (c *Client) SoftMemory(ctx context.Context, accessToken string) (string, error) {
	body, err := c.get(ctx, "/user/softmemory", accessToken)
	if err != nil {
		return "", err
	}

	var s string
	if err := json.Unmarshal(unwrapData(body), &s); err == nil {
		return s, nil
	}
	var obj struct {
		Content string `json:"content"`
		Memory  string `json:"memory"`
	}
	if err := json.Unmarshal(unwrapData(body), &obj); err != nil {
		return "", fmt.Errorf("decode soft memory: %w", err)
	}
	if obj.Content != "" {
		return obj.Content, nil
	}
	return obj.Memory, nil
}

func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, body)
	}
	return body, nil
}

// unwrapData peels the platform's response envelope. Payloads arrive as
// {"result":{"data":...}}, {"data":...}, or bare, checked in that order.
func unwrapData(body []byte) json.RawMessage {
	var envelope struct {
		Result struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Result.Data) > 0 {
			return envelope.Result.Data
		}
		if len(envelope.Data) > 0 {
			return envelope.Data
		}
	}
	return body
}
