package gitlab_http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
)

// Client talks to the GitLab REST API below baseUrl, e.g.
// https://gitlab.example.com/api/v4. One Client is built per run and never
// shared between runs.
type Client struct {
	baseUrl string
	token   string
	hc      *http.Client
}

func New(baseUrl string, token string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseUrl: trimSlash(baseUrl),
		token:   token,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseUrl+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// post sends form as application/x-www-form-urlencoded, or an empty JSON
// request when form is nil.
func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	var body io.Reader
	contentType := "application/json"
	if form != nil {
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")

	uri := req.URL.String()

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &domain.APIRequestError{Method: req.Method, URI: uri, Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &domain.APIRequestError{
			Method:     req.Method,
			URI:        uri,
			StatusCode: resp.StatusCode,
			Reason:     reason(resp),
		}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", req.Method, uri, err)
	}
	return b, nil
}

func reason(resp *http.Response) string {
	r := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if r == "" {
		r = http.StatusText(resp.StatusCode)
	}
	return r
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
