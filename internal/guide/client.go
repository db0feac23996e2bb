package guide

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hass-tools/freely-split/internal/constants"
	"github.com/ubuntu/decorate"
)

// maxPayloadSize bounds the size of a guide payload read from the API.
const maxPayloadSize = 64 << 20

// Client queries the guide API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type options struct {
	baseURL string
	timeout time.Duration
	// Private members exported for tests.
	httpClient *http.Client
}

// Options represents an optional function to override Client default values.
type Options func(*options)

// WithBaseURL sets the guide API endpoint.
func WithBaseURL(u string) Options {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithTimeout sets the overall timeout of a guide request.
func WithTimeout(d time.Duration) Options {
	return func(o *options) {
		o.timeout = d
	}
}

// New returns a new guide API client.
func New(args ...Options) (Client, error) {
	opts := options{
		baseURL: constants.DefaultAPIURL,
		timeout: constants.DefaultTimeout,
	}
	for _, opt := range args {
		opt(&opts)
	}
	slog.Debug("Creating new guide client", "url", opts.baseURL, "timeout", opts.timeout)

	u, err := url.Parse(opts.baseURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse guide API URL %s: %v", opts.baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Client{}, fmt.Errorf("guide API URL %s should use http or https", opts.baseURL)
	}
	if opts.timeout < 0 {
		return Client{}, fmt.Errorf("timeout cannot be negative, got %v", opts.timeout)
	}

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.timeout}
	}

	return Client{
		baseURL:    u.String(),
		httpClient: httpClient,
	}, nil
}

// Fetch downloads the guide of the network nid starting at the UNIX timestamp start.
//
// The payload is returned as is, after checking it is valid JSON.
func (c Client) Fetch(ctx context.Context, nid string, start int64) (resp Response, err error) {
	defer decorate.OnError(&err, "could not fetch guide for network %q", nid)

	if nid == "" {
		return Response{}, ErrEmptyNID
	}
	if start <= 0 {
		return Response{}, fmt.Errorf("%w: %d", ErrInvalidStart, start)
	}

	u, err := c.url(nid, start)
	if err != nil {
		return Response{}, err
	}

	slog.Info("Fetching guide", "url", u)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constants.UserAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send HTTP request: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxPayloadSize+1))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %v", err)
	}
	if len(data) > maxPayloadSize {
		return Response{}, fmt.Errorf("%w: payload larger than %d bytes", ErrInvalidPayload, maxPayloadSize)
	}
	if !json.Valid(data) {
		return Response{}, fmt.Errorf("%w: response is not valid JSON", ErrInvalidPayload)
	}
	slog.Debug("Guide fetched", "bytes", len(data))

	return Response{NID: nid, Start: start, Data: data}, nil
}

// url returns the guide URL for nid and start, keeping any query parameter of the base URL.
func (c Client) url(nid string, start int64) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse guide API URL %s: %v", c.baseURL, err)
	}
	q := u.Query()
	q.Set("nid", nid)
	q.Set("start", strconv.FormatInt(start, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
