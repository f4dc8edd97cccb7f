// Package client implements the StudyShare REST API client. Every
// authenticated call carries the stored bearer token; a 401 response
// demotes the session exactly like local expiry detection (the token is
// cleared and ErrUnauthorized returned).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/studyshare/internal/errs"
	"github.com/and161185/studyshare/internal/model"
)

// TokenSource is the slice of the token store the client needs.
type TokenSource interface {
	Get() (string, bool)
	Clear() error
}

// Client talks to the StudyShare backend over HTTP/JSON.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  TokenSource
	log     *zap.Logger
}

// New constructs a Client. baseURL includes the API prefix, e.g.
// "https://host/api". The logger may be nil.
func New(baseURL string, timeout time.Duration, tokens TokenSource, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		log:     log,
	}
}

func (c *Client) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, err
	}
	if tok, ok := c.tokens.Get(); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if rid, err := uuid.NewV4(); err == nil {
		req.Header.Set("X-Request-Id", rid.String())
	}
	return req, nil
}

// do executes req and decodes a JSON body into out (skipped when out is
// nil). Transport and status failures are mapped to the errs sentinels;
// no raw *url.Error ever escapes this layer.
func (c *Client) do(req *http.Request, out any) error {
	c.log.Debug("api call", zap.String("method", req.Method), zap.String("url", req.URL.Path))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		// Server rejection of the credential is equivalent to local
		// expiry detection: purge and demote.
		_ = c.tokens.Clear()
		return errs.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return errs.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return errs.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", errs.ErrUnavailable, serverMessage(resp))
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, serverMessage(resp))
	}
}

// serverMessage extracts the backend's {"message": ...} error body.
func serverMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Message != "" {
		return body.Message
	}
	return resp.Status
}

type authResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. The caller decides
// whether to persist it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fmt.Errorf("validation: empty email/password")
	}
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var out authResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Register creates an account and returns the issued bearer token.
func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	if name == "" || email == "" || password == "" {
		return "", fmt.Errorf("validation: empty name/email/password")
	}
	body, _ := json.Marshal(map[string]string{"name": name, "email": email, "password": password})
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	var out authResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Me fetches the authoritative user profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := c.do(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Resources fetches the full resource list. An empty list is a valid
// success result, not an error.
func (c *Client) Resources(ctx context.Context) ([]model.Resource, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/resources", nil)
	if err != nil {
		return nil, err
	}
	rs := []model.Resource{}
	if err := c.do(req, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Download streams the resource's file content into w and returns the
// suggested filename (Content-Disposition, falling back to the fileUrl
// basename passed by the caller via the resource, or "").
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/resources/"+id+"/download", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp); err != nil {
		return "", err
	}
	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}
	return name, nil
}

// Delete removes a resource. Ownership/admin rights are enforced
// server-side; a rejection surfaces as ErrForbidden.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/resources/"+id, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// SubmitRating submits or updates the caller's rating for a resource.
func (c *Client) SubmitRating(ctx context.Context, id string, value int) error {
	if value < 1 || value > 5 {
		return fmt.Errorf("validation: rating value %d out of range 1..5", value)
	}
	body, _ := json.Marshal(map[string]int{"value": value})
	req, err := c.newRequest(ctx, http.MethodPost, "/rating/"+id, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// MyRating returns the caller's own rating for a resource. ErrNotFound
// means the caller has not rated it.
func (c *Client) MyRating(ctx context.Context, id string) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/rating/my/"+id, nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Value int `json:"value"`
	}
	if err := c.do(req, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

// Dashboard fetches the three server-ranked lists concurrently. Server
// order is preserved; ranking semantics are opaque to the client.
func (c *Client) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	var d model.Dashboard
	g, ctx := errgroup.WithContext(ctx)
	fetch := func(p string, dst *[]model.Resource) func() error {
		return func() error {
			req, err := c.newRequest(ctx, http.MethodGet, p, nil)
			if err != nil {
				return err
			}
			return c.do(req, dst)
		}
	}
	g.Go(fetch("/resources/dashboard/top-rated", &d.TopRated))
	g.Go(fetch("/resources/dashboard/most-downloaded", &d.MostDownloaded))
	g.Go(fetch("/resources/dashboard/recent", &d.Recent))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// FileBaseName returns the last path segment of a resource fileUrl, used
// as the download filename fallback.
func FileBaseName(fileURL string) string {
	if fileURL == "" {
		return ""
	}
	return path.Base(fileURL)
}
