package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"probloom-client/internal/domain"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
)

// StatusError reports a non-2xx response. A 404 unwraps to domain.ErrNotFound.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// Client talks to the problem REST backend. Session and CSRF cookies are kept
// in a cookie jar; the CSRF cookie is echoed as a header on unsafe requests.
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// FetchCSRFToken primes the cookie jar with the backend's CSRF cookie.
func (c *Client) FetchCSRFToken(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/token/", nil, nil)
}

func (c *Client) ListProblemSets(ctx context.Context) ([]domain.ProblemSet, error) {
	var out []domain.ProblemSet
	if err := c.do(ctx, http.MethodGet, "/api/problem/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProblemSet(ctx context.Context, id int) (domain.ProblemSetDetail, error) {
	var out domain.ProblemSetDetail
	err := c.do(ctx, http.MethodGet, problemSetPath(id), nil, &out)
	return out, err
}

func (c *Client) ListSolvers(ctx context.Context, problemSetID int) ([]domain.Solver, error) {
	var out []domain.Solver
	if err := c.do(ctx, http.MethodGet, "/api/solved/"+strconv.Itoa(problemSetID)+"/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProblemSet(ctx context.Context, draft domain.ProblemSetDraft) (domain.ProblemSet, error) {
	var out domain.ProblemSet
	err := c.do(ctx, http.MethodPost, "/api/problem/", draft, &out)
	return out, err
}

func (c *Client) EditProblemSet(ctx context.Context, id int, draft domain.ProblemSetDraft) (domain.ProblemSetDetail, error) {
	body := struct {
		ID int `json:"id"`
		domain.ProblemSetDraft
	}{ID: id, ProblemSetDraft: draft}
	var out domain.ProblemSetDetail
	err := c.do(ctx, http.MethodPut, problemSetPath(id), body, &out)
	return out, err
}

func (c *Client) DeleteProblemSet(ctx context.Context, id int) (domain.ProblemSet, error) {
	var out domain.ProblemSet
	err := c.do(ctx, http.MethodDelete, problemSetPath(id), nil, &out)
	return out, err
}

func (c *Client) CreateProblem(ctx context.Context, draft domain.ProblemDraft) (domain.Problem, error) {
	var out domain.Problem
	err := c.do(ctx, http.MethodPost, "/api/problems/", draft, &out)
	return out, err
}

func (c *Client) GetProblem(ctx context.Context, id int) (domain.Problem, error) {
	var out domain.Problem
	err := c.do(ctx, http.MethodGet, problemPath(id), nil, &out)
	return out, err
}

func (c *Client) UpdateProblem(ctx context.Context, id int, draft domain.ProblemDraft) (domain.Problem, error) {
	var out domain.Problem
	err := c.do(ctx, http.MethodPut, problemPath(id), draft, &out)
	return out, err
}

func (c *Client) DeleteProblem(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, problemPath(id), nil, nil)
}

func problemSetPath(id int) string {
	return "/api/problem/" + strconv.Itoa(id) + "/"
}

func problemPath(id int) string {
	return "/api/problems/" + strconv.Itoa(id) + "/"
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	target := c.base.ResolveReference(&url.URL{Path: path})

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if unsafeMethod(method) {
		if token := c.csrfToken(target); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) csrfToken(target *url.URL) string {
	for _, cookie := range c.http.Jar.Cookies(target) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

func unsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
