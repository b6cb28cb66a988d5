// Package relay fetches resources the page itself may not read because of
// cross-origin restrictions and returns them as data URIs.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mcqsolver/internal/raster"
)

// DefaultUserAgent mimics a mobile Chrome so origins that reject unknown
// clients still serve the image.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 6.0; Nexus 5 Build/MRA58N) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Mobile Safari/537.36"

var (
	ErrInvalidURL = errors.New("relay: only absolute http(s) urls can be fetched")
	// ErrTooLarge means the upstream body exceeded Config.MaxBytes. Reading
	// stops at the limit.
	ErrTooLarge = errors.New("relay: response body too large")
)

// Request and Response are the wire contract of the relay endpoint.
type Request struct {
	URL string `json:"url"`
}

type Response struct {
	DataURL string `json:"dataUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Config struct {
	UserAgent string
	Timeout   time.Duration
	// RPS paces outgoing fetches; 0 disables pacing.
	RPS      float64
	CacheMB  int
	MaxBytes int64
	Retries  int
}

func DefaultConfig() Config {
	return Config{
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
		RPS:       5,
		CacheMB:   32,
		MaxBytes:  20 << 20,
		Retries:   2,
	}
}

// Client performs relay fetches. It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	cache   *lru
	max     int64
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	std := retryClient.StandardClient()
	std.Jar, _ = cookiejar.New(nil)

	rc := resty.NewWithClient(std).
		SetTimeout(cfg.Timeout).
		SetResponseBodyLimit(int(cfg.MaxBytes)).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		http:    rc,
		limiter: limiter,
		cache:   newLRU(int64(cfg.CacheMB) << 20),
		max:     cfg.MaxBytes,
		log:     log.With(zap.String("component", "relay")),
	}
}

// FetchBytes downloads rawURL and returns its body and sniffed media type.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", ErrInvalidURL
	}
	key := u.String()
	if data, mime, ok := c.cache.get(key); ok {
		return data, mime, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(key)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return nil, "", fmt.Errorf("relay fetch %s: %w (limit %d bytes)", u.Host, ErrTooLarge, c.max)
	}
	if err != nil {
		return nil, "", fmt.Errorf("relay fetch %s: %w", u.Host, err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("relay fetch %s: status %d", u.Host, resp.StatusCode())
	}
	data := resp.Body()
	mime := mediaType(resp.Header(), data)
	c.log.Debug("fetched",
		zap.String("host", u.Host),
		zap.Int("bytes", len(data)),
		zap.String("mime", mime),
		zap.Duration("took", time.Since(start)))
	c.cache.put(key, data, mime)
	return data, mime, nil
}

// Fetch returns rawURL as a base64 data URI.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	data, mime, err := c.FetchBytes(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return raster.DataURI(mime, data), nil
}

// Handle answers one relay request; failures are reported in the response.
func (c *Client) Handle(ctx context.Context, req Request) Response {
	uri, err := c.Fetch(ctx, req.URL)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{DataURL: uri}
}

// mediaType prefers the sniffed type and falls back to the declared one.
func mediaType(h http.Header, data []byte) string {
	sniffed := mimetype.Detect(data)
	if sniffed != nil && !sniffed.Is("application/octet-stream") && !sniffed.Is("text/plain") {
		return sniffed.String()
	}
	if ct := strings.TrimSpace(h.Get("Content-Type")); ct != "" {
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = strings.TrimSpace(ct[:i])
		}
		return ct
	}
	return sniffed.String()
}
