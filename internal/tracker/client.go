// Package tracker implements the asset-tracker client (spec C6): a
// best-effort lookup/post contract against an external HTTP service that
// never fails the crawl on its own account.
package tracker

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

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/annaglyph/qc-asset-tracker/internal/logging"
)

// sharedTransport pools connections across Client instances the way a
// long-running crawl reuses one client for its whole run.
var sharedTransport = func() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 64
	t.MaxIdleConnsPerHost = 8
	t.IdleConnTimeout = 90 * time.Second
	return t
}()

// LookupResult is what a tracker lookup resolves to for one asset path.
type LookupResult struct {
	AssetID   *string
	StatusTag string
	HTTPCode  int
}

// PostResult is the payload posted back to the tracker once an asset has
// a non-pending verdict and a resolved asset id (spec.md §6).
type PostResult struct {
	AssetID     string `json:"asset_id"`
	QCID        string `json:"qc_id"`
	QCResult    string `json:"qc_result"`
	ContentHash string `json:"content_hash"`
	Operator    string `json:"operator"`
	QCTime      string `json:"qc_time"`
}

// Config parameterizes a Client.
type Config struct {
	BaseURL         string
	BearerToken     string
	Timeout         time.Duration
	RequestsPerSec  float64
	Burst           int
}

// Client is the tracker's HTTP surface. It is safe for concurrent use by
// multiple crawl workers; its rate limiter and 401/403 dedup state are
// shared across every call.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *logging.Logger

	authFailureOnce sync.Once
}

// New constructs a Client. A zero RequestsPerSec disables pacing (an
// unlimited rate.Limiter).
func New(cfg Config, logger *logging.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
		burst = cfg.Burst
		if burst <= 0 {
			burst = 1
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		bearerToken: cfg.BearerToken,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: sharedTransport,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Lookup resolves assetPath to a tracker asset id. It never returns an
// error to the caller in the normal sense: tracker failures are reported
// through the returned LookupResult's StatusTag/HTTPCode so that the
// caller can record them in tracker_status without aborting the crawl
// (spec.md §6, "Tracker failures are recorded ... never fail the crawl").
func (c *Client) Lookup(ctx context.Context, assetPath string) LookupResult {
	if c == nil {
		return LookupResult{StatusTag: "disabled"}
	}

	body, code, err := c.do(ctx, http.MethodGet, "/asset/asset-search", url.Values{"path": {assetPath}}, nil)
	if err != nil {
		return c.classifyError(err, code)
	}

	var decoded struct {
		AssetID string `json:"asset_id"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.WarnOnce("tracker-decode", errors.Wrap(err, "unable to decode tracker lookup response"))
		return LookupResult{StatusTag: "error", HTTPCode: code}
	}
	if decoded.AssetID == "" {
		return LookupResult{StatusTag: "not_found", HTTPCode: code}
	}
	return LookupResult{AssetID: &decoded.AssetID, StatusTag: "ok", HTTPCode: code}
}

// PostResult reports a completed verdict to the tracker. Failures are
// logged (deduplicated per spec.md §7) and swallowed; the return value
// tells the caller what to stamp into tracker_status.
func (c *Client) PostResult(ctx context.Context, result PostResult) LookupResult {
	if c == nil {
		return LookupResult{StatusTag: "disabled"}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.WarnOnce("tracker-encode", errors.Wrap(err, "unable to encode tracker post payload"))
		return LookupResult{StatusTag: "error"}
	}

	_, code, err := c.do(ctx, http.MethodPost, "/asset/qc", nil, payload)
	if err != nil {
		return c.classifyError(err, code)
	}
	return LookupResult{StatusTag: "ok", HTTPCode: code}
}

// classifyError turns a transport or HTTP-status error into a
// LookupResult, deduplicating the noisy 401/403 warning per spec.md §7
// ("log the first occurrence of each distinct tracker error class and
// suppress repeats").
func (c *Client) classifyError(err error, code int) LookupResult {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.authFailureOnce.Do(func() {
			c.logger.Warn(errors.Wrap(err, "tracker rejected credentials, further 401/403 responses this run are suppressed"))
		})
		// Both map onto the "unauthorized" status tag: spec.md §4.6's
		// lookup result enum is ok|unauthorized|not_found|error, with no
		// separate slot for 403.
		return LookupResult{StatusTag: "unauthorized", HTTPCode: code}
	case http.StatusNotFound:
		return LookupResult{StatusTag: "not_found", HTTPCode: code}
	default:
		c.logger.WarnOnce("tracker-error", err)
		return LookupResult{StatusTag: "error", HTTPCode: code}
	}
}

// do executes one rate-limited request and returns the response body,
// status code, and a non-nil error for any non-2xx response or transport
// failure.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, errors.Wrap(err, "rate limit wait failed")
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "unable to build request for %s", endpoint)
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "request to %s failed", endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrapf(err, "unable to read response from %s", endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, resp.StatusCode, fmt.Errorf("tracker request to %s returned status %d", endpoint, resp.StatusCode)
	}
	return respBody, resp.StatusCode, nil
}
