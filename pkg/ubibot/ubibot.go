package ubibot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://webapi.ubibot.com"
	DefaultTimeout = 10 * time.Second
)

type Client struct {
	client     *http.Client
	log        *zap.Logger
	baseURL    *url.URL
	accountKey string
	timeout    time.Duration
}

type Option func(c *Client) error

func NewClient(opts ...Option) (*Client, error) {
	base, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		log:     zap.L(),
		baseURL: base,
		timeout: DefaultTimeout,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}

	// apply the options
	for _, o := range opts {
		err := o(c)
		if err != nil {
			return nil, err
		}
	}

	if c.accountKey == "" {
		return nil, ErrMissingAccountKey
	}

	return c, nil
}

func WithAccountKey(key string) Option {
	return func(c *Client) error {
		c.accountKey = key
		return nil
	}
}

func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base url %q: scheme and host are required", raw)
		}
		c.baseURL = u
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.client = hc
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.log = l
		return nil
	}
}

// ListChannels returns every channel registered to the account.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var data channelsResponse
	if err := c.get(ctx, "list_channels", "channels", nil, &data); err != nil {
		return nil, err
	}
	return data.Channels, nil
}

// FetchFeed returns up to limit recent feed entries of a channel, newest
// first as the API orders them.
func (c *Client) FetchFeed(ctx context.Context, channelID ChannelID, limit int) ([]Payload, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("results", strconv.Itoa(limit))
	}

	var data feedResponse
	path := "channels/" + url.PathEscape(string(channelID)) + "/data"
	if err := c.get(ctx, "fetch_feed", path, params, &data); err != nil {
		return nil, err
	}
	return data.Feeds, nil
}

func (c *Client) endpoint(path string, params url.Values) *url.URL {
	u := c.baseURL.JoinPath(path)
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("account_key", c.accountKey)
	u.RawQuery = q.Encode()
	return u
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.endpoint(path, params)
	safeURL := redact(u)
	start := time.Now()
	defer func() {
		UpstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	c.log.Debug("calling ubibot api", zap.String("op", op), zap.String("url", safeURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		c.log.Error("cannot create request", zap.String("op", op), zap.Error(err))
		UpstreamRequests.WithLabelValues(op, "request").Inc()
		return &UpstreamError{Op: op, URL: safeURL, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// url.Error embeds the full URL, account key included
		if ue, ok := err.(*url.Error); ok {
			err = ue.Err
		}
		c.log.Error("error calling ubibot api", zap.String("op", op), zap.String("url", safeURL), zap.Error(err))
		UpstreamRequests.WithLabelValues(op, "transport").Inc()
		return &UpstreamError{Op: op, URL: safeURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error("unexpected status from ubibot api",
			zap.String("op", op),
			zap.String("url", safeURL),
			zap.Int("status", resp.StatusCode),
		)
		UpstreamRequests.WithLabelValues(op, "status").Inc()
		return &UpstreamError{Op: op, URL: safeURL, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		c.log.Error("error decoding ubibot response", zap.String("op", op), zap.Error(err))
		UpstreamRequests.WithLabelValues(op, "decode").Inc()
		return &UpstreamError{Op: op, URL: safeURL, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if f, ok := out.(interface{ failure() error }); ok {
		if err := f.failure(); err != nil {
			c.log.Error("ubibot api reported an error", zap.String("op", op), zap.Error(err))
			UpstreamRequests.WithLabelValues(op, "api_error").Inc()
			return &UpstreamError{Op: op, URL: safeURL, Err: err}
		}
	}

	UpstreamRequests.WithLabelValues(op, "ok").Inc()
	return nil
}
