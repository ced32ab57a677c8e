package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zotero-sync/core/metrics"
	"zotero-sync/core/utils"

	"go.uber.org/zap"
)

const (
	headerAPIKey          = "Zotero-API-Key"
	headerAPIVersion      = "Zotero-API-Version"
	headerTotalResults    = "Total-Results"
	headerLastModified    = "Last-Modified-Version"
	headerIfUnmodifiedVer = "If-Unmodified-Since-Version"
)

// Client talks to the Zotero Web API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewClient creates a client with the transport timeouts from the configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   WriteChunkSize,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	return NewClientWithHTTP(cfg.BaseURL, &http.Client{Transport: transport}, logger)
}

// NewClientWithHTTP creates a client on top of an existing http.Client.
func NewClientWithHTTP(baseURL string, hc *http.Client, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.zotero.org"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  logger,
	}
}

// WithMetrics attaches a metrics collector.
func (c *Client) WithMetrics(m *metrics.Collector) *Client {
	c.metrics = m
	return c
}

// request is one call to the remote.
type request struct {
	method   string
	endpoint string
	query    url.Values
	apiKey   string
	body     any
	header   http.Header
}

// response is a fully read remote answer.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, r request) (*response, error) {
	u := c.baseURL + "/" + strings.TrimLeft(r.endpoint, "/")
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, &ValidationError{Field: "body", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, &NetworkError{Method: r.method, URL: u, Err: err}
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.apiKey != "" {
		req.Header.Set(headerAPIKey, r.apiKey)
	}
	req.Header.Set(headerAPIVersion, "3")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: r.method, URL: u, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: r.method, URL: u, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("Zotero API call",
		zap.String("method", r.method),
		zap.String("endpoint", r.endpoint),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &response{status: resp.StatusCode, header: resp.Header, body: data}, &NetworkError{
			Method:     r.method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// PageRequest describes one window of a list endpoint.
type PageRequest struct {
	// Endpoint is the path under the API root, e.g. "users/111/items".
	Endpoint string
	APIKey   string
	// Start is the offset of the window.
	Start int
	// Limit defaults to PageLimit.
	Limit int
	// Since filters to entities modified after this version when > 0.
	Since int
}

// Page is one window of entities and its pagination metadata.
type Page struct {
	Data                []json.RawMessage
	TotalResults        int
	LastModifiedVersion int
}

// FetchPage requests a single page of a list endpoint.
func (c *Client) FetchPage(ctx context.Context, pr PageRequest) (Page, error) {
	limit := pr.Limit
	if limit <= 0 || limit > PageLimit {
		limit = PageLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if pr.Start > 0 {
		q.Set("start", strconv.Itoa(pr.Start))
	}
	if pr.Since > 0 {
		q.Set("since", strconv.Itoa(pr.Since))
	}

	c.metrics.ObservePageFetch(pr.Endpoint)

	resp, err := c.do(ctx, request{method: http.MethodGet, endpoint: pr.Endpoint, query: q, apiKey: pr.APIKey})
	if err != nil {
		return Page{}, err
	}

	var data []json.RawMessage
	if len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, &data); err != nil {
			return Page{}, &ValidationError{Field: "page", Value: pr.Endpoint, Err: err}
		}
	}

	return Page{
		Data:                data,
		TotalResults:        utils.ToInt(resp.header.Get(headerTotalResults)),
		LastModifiedVersion: utils.ToInt(resp.header.Get(headerLastModified)),
	}, nil
}

// FetchDeleted returns the keys deleted from a library since the given version.
func (c *Client) FetchDeleted(ctx context.Context, apiKey string, lib Library, since int) (DeletionSet, int, error) {
	q := url.Values{}
	q.Set("since", strconv.Itoa(since))
	resp, err := c.do(ctx, request{method: http.MethodGet, endpoint: lib.Path + "/deleted", query: q, apiKey: apiKey})
	if err != nil {
		return DeletionSet{}, 0, err
	}
	var set DeletionSet
	if err := json.Unmarshal(resp.body, &set); err != nil {
		return DeletionSet{}, 0, &ValidationError{Field: "deleted", Value: lib.Path, Err: err}
	}
	return set, utils.ToInt(resp.header.Get(headerLastModified)), nil
}

// DeleteTags removes tags from a library, guarded by the library version.
// A version mismatch yields a *ConflictError. The new library version is returned.
func (c *Client) DeleteTags(ctx context.Context, apiKey string, lib Library, tags []string, version int) (int, error) {
	if len(tags) == 0 {
		return version, nil
	}
	if len(tags) > TagDeleteLimit {
		return 0, &ValidationError{Field: "tags", Value: strconv.Itoa(len(tags)), Err: fmt.Errorf("at most %d tags per call", TagDeleteLimit)}
	}
	q := url.Values{}
	q.Set("tag", strings.Join(tags, " || "))
	h := http.Header{}
	h.Set(headerIfUnmodifiedVer, strconv.Itoa(version))

	resp, err := c.do(ctx, request{method: http.MethodDelete, endpoint: lib.Path + "/tags", query: q, apiKey: apiKey, header: h})
	if err != nil {
		if resp != nil && resp.status == http.StatusPreconditionFailed {
			return 0, &ConflictError{Version: version, Message: strings.TrimSpace(string(resp.body))}
		}
		return 0, err
	}
	return utils.ToInt(resp.header.Get(headerLastModified)), nil
}
