// Package remote is the HTTP client for the FileFighter FileSystem service
// (metadata and folders) and FileHandler service (file content).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/filefighter/ftpfighter/pkg/metrics"
)

const (
	// HeaderPath carries the virtual path an operation applies to.
	HeaderPath = "X-FF-PATH"

	// HeaderParentPath and HeaderRelativePath locate an upload.
	HeaderParentPath   = "X-FF-PARENT-PATH"
	HeaderRelativePath = "X-FF-RELATIVE-PATH"

	// TokenCookie is the cookie the authenticate endpoint returns the bearer token in.
	TokenCookie = "token"

	defaultRequestTimeout = 30 * time.Second
	defaultUserAgent      = "ftpfighter"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

const (
	serviceFileSystem  = "filesystem"
	serviceFileHandler = "filehandler"

	outcomeOK        = "ok"
	outcomeRejected  = "rejected"
	outcomeTransport = "transport_error"
)

// Config configures a Client.
type Config struct {
	// FileSystemURL is the base URL of the FileSystem service (e.g., http://localhost:8080/api)
	FileSystemURL string

	// FileHandlerURL is the base URL of the FileHandler service (e.g., http://localhost:5000/data)
	FileHandlerURL string

	// RequestTimeout bounds metadata calls. Content streams are bounded only
	// by their context. Default: 30s
	RequestTimeout time.Duration

	// UserAgent is sent with every request. Default: "ftpfighter"
	UserAgent string

	// Metrics receives one observation per call. Nil disables observation.
	Metrics metrics.RemoteMetrics
}

// Client talks to both FileFighter services. It holds no per-user state and
// is safe for concurrent use by all connections.
type Client struct {
	fsURL     string
	fhURL     string
	api       *http.Client
	data      *http.Client
	userAgent string
	metrics   metrics.RemoteMetrics
}

// New validates cfg and creates a Client.
func New(cfg Config) (*Client, error) {
	fsURL, err := baseURL(cfg.FileSystemURL)
	if err != nil {
		return nil, fmt.Errorf("filesystem service url: %w", err)
	}
	fhURL, err := baseURL(cfg.FileHandlerURL)
	if err != nil {
		return nil, fmt.Errorf("filehandler service url: %w", err)
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopRemoteMetrics()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		fsURL:     fsURL,
		fhURL:     fhURL,
		api:       &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
		data:      &http.Client{Transport: transport},
		userAgent: cfg.UserAgent,
		metrics:   cfg.Metrics,
	}, nil
}

func baseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute http(s) url", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// call describes one HTTP exchange with a remote service.
type call struct {
	service string
	op      string
	method  string
	url     string
	token   string
	headers map[string]string
	body    io.Reader
	ctype   string

	// stream selects the client without an overall timeout
	stream bool

	basicUser string
	basicPass string
}

// send performs the exchange and returns the response whatever its status.
// Only transport failures are returned as errors.
func (c *Client) send(ctx context.Context, cl call) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, cl.body)
	if err != nil {
		return nil, &TransportError{Op: cl.op, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if cl.ctype != "" {
		req.Header.Set("Content-Type", cl.ctype)
	}
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if cl.basicUser != "" {
		req.SetBasicAuth(cl.basicUser, cl.basicPass)
	}

	httpClient := c.api
	if cl.stream {
		httpClient = c.data
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveCall(cl.service, cl.op, outcomeTransport, time.Since(start))
		return nil, &TransportError{Op: cl.op, Err: err}
	}

	outcome := outcomeOK
	if !success(resp.StatusCode) {
		outcome = outcomeRejected
	}
	c.metrics.ObserveCall(cl.service, cl.op, outcome, time.Since(start))

	return resp, nil
}

// do is send plus status handling: a non-2xx response becomes a
// *ResponseError, or a *TransportError when its body is not an error document.
func (c *Client) do(ctx context.Context, cl call) (*http.Response, error) {
	resp, err := c.send(ctx, cl)
	if err != nil {
		return nil, err
	}
	if !success(resp.StatusCode) {
		return nil, decodeError(cl.op, resp)
	}
	return resp, nil
}

// doJSON performs the exchange and decodes a successful body into out.
func (c *Client) doJSON(ctx context.Context, cl call, out any) error {
	resp, err := c.do(ctx, cl)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: cl.op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// jsonBody encodes v for a request body.
func jsonBody(op string, v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	return bytes.NewReader(data), nil
}

func decodeError(op string, resp *http.Response) error {
	defer drainAndClose(resp.Body)

	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %d: %w", resp.StatusCode, err)}
	}

	return &ResponseError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     body.Status,
		Message:    body.Message,
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}

func success(code int) bool {
	return code >= 200 && code < 300
}
