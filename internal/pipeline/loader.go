package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/util"
	"github.com/ppiankov/claimlens/internal/worker"
)

const (
	loadAttempts  = 3
	loadBaseDelay = 500 * time.Millisecond
)

// loadSleepFunc is replaced in tests
var loadSleepFunc = time.Sleep

// StatusError is a non-2xx response from a remote evidence source
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Status)
}

// Retryable reports whether the server may succeed on a later attempt
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Loader reads evidence bytes from local files and http(s) URLs
type Loader struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
}

// NewLoader creates a loader. Remote hosts are limited to 2 requests per second.
func NewLoader(cfg model.LoaderConfig) *Loader {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Loader{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.Proxy, cfg.Proxy, os.Getenv("NO_PROXY")),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		limiter:   worker.NewLimiter(2, 2),
	}
}

// Load returns the bytes of source, a file path or an http(s) URL.
// Content larger than the configured limit fails with model.ErrPayloadTooLarge.
func (l *Loader) Load(ctx context.Context, source string) ([]byte, error) {
	if isRemote(source) {
		return l.fetchWithRetry(ctx, source)
	}
	return l.readFile(source)
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return l.readLimited(f)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("over %d bytes: %w", l.maxBytes, model.ErrPayloadTooLarge)
	}
	return data, nil
}

// fetchWithRetry retries transient failures with exponential backoff
func (l *Loader) fetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < loadAttempts; attempt++ {
		if attempt > 0 {
			delay := loadBaseDelay * time.Duration(1<<(attempt-1))
			slog.Debug("retrying evidence fetch", "url", rawURL, "attempt", attempt+1, "delay", delay, "error", lastErr)
			loadSleepFunc(delay)
		}

		data, err := l.fetch(ctx, rawURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !isRetryableLoadError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if host, err := worker.HostKey(rawURL); err == nil {
		if err := l.limiter.Wait(ctx, host); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if resp.ContentLength > l.maxBytes {
		return nil, fmt.Errorf("content length %d over %d bytes: %w", resp.ContentLength, l.maxBytes, model.ErrPayloadTooLarge)
	}
	return l.readLimited(resp.Body)
}

// isRetryableLoadError reports whether a failed fetch is worth another attempt:
// 429 and 5xx responses and network errors, but not cancellation.
func isRetryableLoadError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
