// Package marketapi is the typed client for the live feed and the historical
// backend. Every call resolves its bearer token through the token manager.
package marketapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"MarketSync/internal/domain/models"
	"MarketSync/internal/domain/repository"
	icache "MarketSync/internal/service/cache"
	xhttp "MarketSync/pkg/http"
	"MarketSync/pkg/logger"
)

var (
	ErrAuthFailure = errors.New("auth failure")
	ErrStaleToken  = errors.New("token rejected")
	ErrTransient   = errors.New("transient fetch failure")
	ErrDecode      = errors.New("decode failure")

	// ErrUnavailable is returned by the on-demand historical lookups when the
	// backend could not be read, so callers can tell an outage from an empty answer.
	ErrUnavailable = errors.New("upstream unavailable")
)

// TokenSource is the slice of the token manager the client needs.
type TokenSource interface {
	Token(ctx context.Context, kind models.TokenKind) (string, error)
	Invalidate(ctx context.Context, kind models.TokenKind)
}

type Endpoints struct {
	HistoricalBase string
	LiveData       string
	MarketStatus   string
}

type Client struct {
	http      *xhttp.Client
	tokens    TokenSource
	endpoints Endpoints
	details   *icache.TTLCache[*models.Prediction]
	log       *logger.Logger
	metrics   repository.Metrics
}

type ClientOption func(*Client)

func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m repository.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithDetailCacheTTL sets how long a per-symbol prediction detail is reused.
func WithDetailCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.details = icache.NewTTLCache[*models.Prediction](ttl) }
}

func NewClient(hc *xhttp.Client, tokens TokenSource, ep Endpoints, opts ...ClientOption) *Client {
	c := &Client{
		http:      hc,
		tokens:    tokens,
		endpoints: ep,
		details:   icache.NewTTLCache[*models.Prediction](30 * time.Second),
		log:       logger.Nop(),
		metrics:   repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs an authenticated GET and decodes the JSON body into T.
// The returned error wraps exactly one of ErrAuthFailure, ErrStaleToken,
// ErrTransient or ErrDecode. A 401 invalidates the token that was used.
func Fetch[T any](ctx context.Context, c *Client, rawURL string, kind models.TokenKind) (*T, error) {
	label := endpointLabel(rawURL)
	start := time.Now()

	token, err := c.tokens.Token(ctx, kind)
	if err != nil {
		c.metrics.RecordFetch(label, "auth", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s: %w", ErrAuthFailure, label, err)
	}

	var out T
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    rawURL,
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		},
	}, &out)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		c.metrics.RecordFetch(label, "ok", elapsed)
		return &out, nil
	case xhttp.StatusCode(err) == http.StatusUnauthorized:
		c.tokens.Invalidate(ctx, kind)
		c.metrics.RecordFetch(label, "stale", elapsed)
		return nil, fmt.Errorf("%w: %s: %w", ErrStaleToken, label, err)
	case errors.Is(err, xhttp.ErrDecode):
		c.metrics.RecordFetch(label, "decode", elapsed)
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, label, err)
	default:
		c.metrics.RecordFetch(label, "transient", elapsed)
		return nil, fmt.Errorf("%w: %s: %w", ErrTransient, label, err)
	}
}

// Request is Fetch with failures folded into a nil result. Only an auth failure
// is returned as an error, since it must fail the whole cycle; everything else
// is logged and reported as nil so one bad endpoint cannot break a poll tick.
func Request[T any](ctx context.Context, c *Client, rawURL string, kind models.TokenKind) (*T, error) {
	out, err := Fetch[T](ctx, c, rawURL, kind)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, ErrAuthFailure) {
		c.log.Error("request rejected", logger.String("kind", kind.String()), logger.Error(err))
		return nil, err
	}
	c.log.Warn("request failed", logger.String("kind", kind.String()), logger.Error(err))
	return nil, nil
}

func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}

func withQuery(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}
