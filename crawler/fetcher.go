// Package crawler fetches pages for the content store: a polite HTTP
// fetcher, homepage link discovery and a bounded batch crawl per entity.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"geo-insights/models"
)

var (
	ErrFetch       = errors.New("crawler: fetch failed")
	ErrDisallowed  = errors.New("disallowed by robots.txt")
	ErrContentType = errors.New("irrelevant content type")
)

// FetchError means no page is available for URL. It matches ErrFetch.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// PageFetcher is what the batch crawl and discovery need from a fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (models.RawPage, error)
}

type FetcherConfig struct {
	UserAgent     string
	Timeout       time.Duration
	RateLimit     float64 // requests per second across all hosts
	Burst         int
	MaxBodyBytes  int64
	RespectRobots bool
}

func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent:     "GEO-Platform/geo-crawler-v1 (Content Analysis Bot)",
		Timeout:       10 * time.Second,
		RateLimit:     1,
		Burst:         1,
		MaxBodyBytes:  5 << 20,
		RespectRobots: true,
	}
}

type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     FetcherConfig
	logger  *zap.Logger

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	def := DefaultFetcherConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		cfg:     cfg,
		logger:  logger,
		robots:  make(map[string]*robotstxt.Group),
	}
}

// Fetch performs one rate-limited GET. Any failure, including a non-2xx
// status, comes back as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (models.RawPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: err}
	}
	if u.Host == "" {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: errors.New("missing host")}
	}

	if f.cfg.RespectRobots && !f.allowed(ctx, u) {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: ErrDisallowed}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: err}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.RawPage{}, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isRelevantContent(contentType) {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %s", ErrContentType, contentType)}
	}

	var body io.Reader = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes)
	if decoded, err := charset.NewReader(body, contentType); err == nil {
		body = decoded
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return models.RawPage{}, &FetchError{URL: rawURL, Err: err}
	}

	elapsed := time.Since(start)
	f.logger.Debug("Fetched page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", elapsed))

	var finalURL string
	if resp.Request != nil && resp.Request.URL.String() != rawURL {
		finalURL = resp.Request.URL.String()
	}

	return models.RawPage{
		URL:          rawURL,
		FinalURL:     finalURL,
		StatusCode:   resp.StatusCode,
		ContentType:  contentType,
		Body:         data,
		ResponseTime: elapsed,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// allowed consults the host's robots.txt, fetched once per host. An
// unreachable robots.txt allows everything.
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	host := u.Scheme + "://" + u.Host

	f.mu.Lock()
	group, ok := f.robots[host]
	f.mu.Unlock()
	if !ok {
		group = f.loadRobots(ctx, host)
		f.mu.Lock()
		f.robots[host] = group
		f.mu.Unlock()
	}
	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (f *Fetcher) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("robots.txt unavailable", zap.String("host", host), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		f.logger.Warn("Ignoring malformed robots.txt", zap.String("host", host), zap.Error(err))
		return nil
	}
	return data.FindGroup(f.cfg.UserAgent)
}

// Close releases idle keep-alive connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

func isRelevantContent(contentType string) bool {
	relevantTypes := []string{
		"text/html",
		"application/xhtml+xml",
		"text/plain",
	}

	contentType = strings.ToLower(contentType)
	for _, relevantType := range relevantTypes {
		if strings.Contains(contentType, relevantType) {
			return true
		}
	}
	return false
}
