// Package client talks to a Le Mystere server over its JSON API. Client
// implements the workflow store interfaces and Session implements
// workflow.IdentityProvider, so the admin workflows can run against a live
// server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/eringen/lemystere"
)

const (
	csrfCookie = "_csrf"
	csrfHeader = "X-CSRF-Token"
)

// Client is an API client holding one cookie session. It is safe for
// concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. A cookie jar is added
// when hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base url %q must be absolute", baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// endpoint appends segments to the base path. Each segment is escaped on
// its own, so a slash or dot inside an id stays part of that id.
func (c *Client) endpoint(segments ...string) string {
	u := *c.base
	raw := u.EscapedPath()
	for _, s := range segments {
		u.Path += "/" + s
		raw += "/" + url.PathEscape(s)
	}
	u.RawPath = raw
	return u.String()
}

// checkKey rejects ids and slugs that cannot name a single resource.
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return fmt.Errorf("client: key %q: %w", key, lemystere.ErrNotFound)
	}
	return nil
}

// csrfToken returns the token from the _csrf cookie, fetching the session
// once to obtain it when the jar has none yet.
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if tok := c.cookie(csrfCookie); tok != "" {
		return tok, nil
	}
	if _, err := c.SessionInfo(ctx); err != nil {
		return "", err
	}
	return c.cookie(csrfCookie), nil
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// do sends a request and decodes a 2xx JSON response into out. Non-2xx
// responses become *lemystere.APIError.
func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, target, reader, contentType, func(resp *http.Response) error {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func (c *Client) send(ctx context.Context, method, target string, body io.Reader, contentType string, handle func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method != http.MethodGet && method != http.MethodHead {
		tok, err := c.csrfToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set(csrfHeader, tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	return handle(resp)
}

func decodeError(resp *http.Response) error {
	var envelope struct {
		Error *lemystere.APIError `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == nil {
		return &lemystere.APIError{Status: resp.StatusCode, Code: "http_error", Message: http.StatusText(resp.StatusCode)}
	}
	envelope.Error.Status = resp.StatusCode
	return envelope.Error
}

// --- Session ---

// SessionInfo returns the server's view of the current session.
func (c *Client) SessionInfo(ctx context.Context) (lemystere.SessionInfo, error) {
	var info lemystere.SessionInfo
	err := c.do(ctx, http.MethodGet, c.endpoint("api", "session"), nil, &info)
	return info, err
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (lemystere.SessionInfo, error) {
	var info lemystere.SessionInfo
	err := c.do(ctx, http.MethodPost, c.endpoint("api", "session"),
		lemystere.Credentials{Email: email, Password: password}, &info)
	return info, err
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.endpoint("api", "session"), nil, nil)
}

// --- Events ---

// ListEvents returns every event ordered by start time.
func (c *Client) ListEvents(ctx context.Context) ([]lemystere.Event, error) {
	var events []lemystere.Event
	err := c.do(ctx, http.MethodGet, c.endpoint("api", "events"), nil, &events)
	return events, err
}

// CreateEvent creates an event from d. A blank EndAt is sent as null.
func (c *Client) CreateEvent(ctx context.Context, d lemystere.EventDraft) (lemystere.Event, error) {
	var ev lemystere.Event
	err := c.do(ctx, http.MethodPost, c.endpoint("api", "events"), d, &ev)
	return ev, err
}

// DeleteEvent deletes the event with id.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if err := checkKey(id); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, c.endpoint("api", "events", id), nil, nil)
}

// --- Posts ---

// ListPosts returns post summaries, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]lemystere.PostItem, error) {
	var items []lemystere.PostItem
	err := c.do(ctx, http.MethodGet, c.endpoint("api", "posts"), nil, &items)
	return items, err
}

// CreatePost creates a post. A taken slug yields an error matching
// lemystere.ErrSlugConflict.
func (c *Client) CreatePost(ctx context.Context, d lemystere.PostDraft) (lemystere.Post, error) {
	var p lemystere.Post
	err := c.do(ctx, http.MethodPost, c.endpoint("api", "posts"), d, &p)
	return p, err
}

// GetPost fetches a post by id.
func (c *Client) GetPost(ctx context.Context, id string) (lemystere.Post, error) {
	var p lemystere.Post
	if err := checkKey(id); err != nil {
		return p, err
	}
	err := c.do(ctx, http.MethodGet, c.endpoint("api", "posts", "id", id), nil, &p)
	return p, err
}

// GetPostBySlug fetches a post by its public slug.
func (c *Client) GetPostBySlug(ctx context.Context, slug string) (lemystere.Post, error) {
	var p lemystere.Post
	if err := checkKey(slug); err != nil {
		return p, err
	}
	err := c.do(ctx, http.MethodGet, c.endpoint("api", "posts", slug), nil, &p)
	return p, err
}

// UpdatePost replaces the mutable fields of the post with id.
func (c *Client) UpdatePost(ctx context.Context, id string, d lemystere.PostDraft) (lemystere.Post, error) {
	var p lemystere.Post
	if err := checkKey(id); err != nil {
		return p, err
	}
	err := c.do(ctx, http.MethodPatch, c.endpoint("api", "posts", "id", id), d, &p)
	return p, err
}

// DeletePost deletes the post with slug.
func (c *Client) DeletePost(ctx context.Context, slug string) error {
	if err := checkKey(slug); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, c.endpoint("api", "posts", slug), nil, nil)
}

// --- Admin tools ---

// Preview renders Markdown on the server and returns the HTML fragment.
func (c *Client) Preview(ctx context.Context, content string) (string, error) {
	data, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return "", err
	}
	var html string
	err = c.send(ctx, http.MethodPost, c.endpoint("api", "preview"), bytes.NewReader(data), "application/json",
		func(resp *http.Response) error {
			b, err := io.ReadAll(resp.Body)
			html = string(b)
			return err
		})
	return html, err
}

// UploadImage uploads an image read from r under filename.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (lemystere.Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return lemystere.Upload{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return lemystere.Upload{}, err
	}
	if err := mw.Close(); err != nil {
		return lemystere.Upload{}, err
	}
	var up lemystere.Upload
	err = c.send(ctx, http.MethodPost, c.endpoint("api", "uploads"), &buf, mw.FormDataContentType(),
		func(resp *http.Response) error {
			return json.NewDecoder(resp.Body).Decode(&up)
		})
	return up, err
}

// IsAuthError reports whether err is a 401 or 403 from the server.
func IsAuthError(err error) bool {
	return errors.Is(err, lemystere.ErrUnauthorized) || errors.Is(err, lemystere.ErrForbidden)
}
