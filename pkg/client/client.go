// Package client talks to the LoreWiki API and keeps a session's role cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dimitrije/lorewiki-api/pkg/dto"
)

const apiPrefix = "/api/v1"

// Client calls the HTTP API with the current access token. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	sink    ErrorSink

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithErrorSink reports every failed write to sink.
func WithErrorSink(sink ErrorSink) Option {
	return func(c *Client) { c.sink = sink }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

func (c *Client) Signup(ctx context.Context, req dto.SignupRequest) (*dto.TokenResponse, error) {
	return c.authenticate(ctx, "/auth/signup", req)
}

// Login accepts an email or a display name.
func (c *Client) Login(ctx context.Context, login, password string) (*dto.TokenResponse, error) {
	return c.authenticate(ctx, "/auth/login", dto.LoginRequest{Login: login, Password: password})
}

// ExchangeCode trades an OAuth callback code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*dto.TokenResponse, error) {
	return c.authenticate(ctx, "/auth/exchange", dto.ExchangeCodeRequest{Code: code})
}

// Refresh rotates the refresh token. The new access token carries the
// role currently held in the claim store.
func (c *Client) Refresh(ctx context.Context) (*dto.TokenResponse, error) {
	_, refresh := c.Tokens()
	if refresh == "" {
		return nil, &Error{Kind: KindUnauthenticated, Status: http.StatusUnauthorized, Message: "no refresh token"}
	}
	return c.authenticate(ctx, "/auth/refresh", dto.RefreshTokenRequest{RefreshToken: refresh})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*dto.TokenResponse, error) {
	var tokens dto.TokenResponse
	if err := c.do(ctx, http.MethodPost, path, body, &tokens); err != nil {
		return nil, err
	}
	c.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	return &tokens, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, refresh := c.Tokens()
	err := c.do(ctx, http.MethodPost, "/auth/logout", dto.RefreshTokenRequest{RefreshToken: refresh}, nil)
	c.SetTokens("", "")
	return err
}

func (c *Client) Me(ctx context.Context) (*dto.ProfileResponse, error) {
	var p dto.ProfileResponse
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureMe creates the caller's profile record when it is missing.
func (c *Client) EnsureMe(ctx context.Context) (*dto.ProfileResponse, error) {
	var p dto.ProfileResponse
	if err := c.do(ctx, http.MethodPost, "/users/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req dto.UpdateProfileRequest) (*dto.ProfileResponse, error) {
	var p dto.ProfileResponse
	if err := c.write(ctx, http.MethodPatch, "/users/me", "update_profile", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UploadAvatar(ctx context.Context, data []byte, contentType string) (*dto.ProfileResponse, error) {
	var p dto.ProfileResponse
	if err := c.upload(ctx, "/users/me/avatar", "upload_avatar", data, contentType, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

type PageQuery struct {
	Tag   string
	Query string
}

func (c *Client) ListPages(ctx context.Context, q PageQuery) ([]dto.PageResponse, error) {
	v := url.Values{}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	path := "/pages"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var pages []dto.PageResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Client) Page(ctx context.Context, slug string) (*dto.PageResponse, error) {
	var p dto.PageResponse
	if err := c.do(ctx, http.MethodGet, pagePath(slug), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ViewPage(ctx context.Context, slug string) (int64, error) {
	var resp dto.ViewCountResponse
	if err := c.do(ctx, http.MethodPost, pagePath(slug)+"/view", nil, &resp); err != nil {
		return 0, err
	}
	return resp.ViewCount, nil
}

// Permissions asks the server which actions the caller may take on slug.
func (c *Client) Permissions(ctx context.Context, slug string) (*dto.PermissionsResponse, error) {
	var resp dto.PermissionsResponse
	if err := c.do(ctx, http.MethodGet, pagePath(slug)+"/permissions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreatePage(ctx context.Context, req dto.CreatePageRequest) (*dto.PageResponse, error) {
	var p dto.PageResponse
	if err := c.write(ctx, http.MethodPost, "/pages", "create_page", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdatePage(ctx context.Context, slug string, req dto.UpdatePageRequest) (*dto.PageResponse, error) {
	var p dto.PageResponse
	if err := c.write(ctx, http.MethodPatch, pagePath(slug), "update_page", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePage(ctx context.Context, slug string) error {
	return c.write(ctx, http.MethodDelete, pagePath(slug), "delete_page", nil, nil)
}

func (c *Client) PublishPage(ctx context.Context, slug string) (*dto.PageResponse, error) {
	var p dto.PageResponse
	if err := c.write(ctx, http.MethodPost, pagePath(slug)+"/publish", "publish_page", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UnpublishPage(ctx context.Context, slug string) (*dto.PageResponse, error) {
	var p dto.PageResponse
	if err := c.write(ctx, http.MethodPost, pagePath(slug)+"/unpublish", "unpublish_page", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UploadHeaderImage(ctx context.Context, slug string, data []byte, contentType string) (*dto.PageResponse, error) {
	var p dto.PageResponse
	if err := c.upload(ctx, pagePath(slug)+"/header-image", "upload_header_image", data, contentType, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SetRole(ctx context.Context, targetID, role string) (*dto.ProfileResponse, error) {
	var p dto.ProfileResponse
	if err := c.do(ctx, http.MethodPost, "/admin/roles", dto.SetRoleRequest{TargetID: targetID, Role: role}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) MakeFirstAdmin(ctx context.Context) (*dto.ProfileResponse, error) {
	var p dto.ProfileResponse
	if err := c.do(ctx, http.MethodPost, "/admin/bootstrap", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SyncUsers(ctx context.Context) (int64, error) {
	var resp dto.SyncUsersResponse
	if err := c.do(ctx, http.MethodPost, "/admin/sync-users", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Generate streams the assistant's reply into w as it arrives.
func (c *Client) Generate(ctx context.Context, prompt string, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodPost, "/assistant/generate", dto.GenerateRequest{Prompt: prompt})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("assistant stream interrupted: %w", err)
	}
	return nil
}

func pagePath(slug string) string {
	return "/pages/" + url.PathEscape(slug)
}

// write is do for mutating calls: failures also go to the error sink.
func (c *Client) write(ctx context.Context, method, path, op string, body, out any) error {
	err := c.do(ctx, method, path, body, out)
	return c.report(path, op, err)
}

func (c *Client) upload(ctx context.Context, path, op string, data []byte, contentType string, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err == nil {
		req.Header.Set("Content-Type", contentType)
		err = c.roundTrip(req, out)
	}
	return c.report(path, op, err)
}

func (c *Client) report(path, op string, err error) error {
	if err == nil {
		return nil
	}
	werr := &WriteError{Path: path, Operation: op, Kind: KindOf(err), Err: err}
	if c.sink != nil {
		c.sink.Report(werr)
	}
	return werr
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp, out)
}

// send returns a response with a 2xx status or an error.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.exchange(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if access, _ := c.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	return req, nil
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.exchange(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp, out)
}

func (c *Client) exchange(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return resp, nil
}

func apiError(resp *http.Response) error {
	var body dto.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
		if body.Message == "" {
			body.Message = http.StatusText(resp.StatusCode)
		}
	}
	return &Error{
		Kind:    kindFor(body.Code, resp.StatusCode),
		Status:  resp.StatusCode,
		Message: body.Message,
	}
}

func decodeBody(resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
