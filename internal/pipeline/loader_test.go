package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader(maxBytes int64) *Loader {
	return NewLoader(model.LoaderConfig{MaxBytes: maxBytes, Timeout: 5 * time.Second, UserAgent: "test-agent"})
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := loadSleepFunc
	loadSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { loadSleepFunc = orig })
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bill.txt")
	require.NoError(t, os.WriteFile(path, []byte("Invoice #123"), 0o600))

	data, err := testLoader(1<<20).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Invoice #123", string(data))

	_, err = testLoader(1<<20).Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_FileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0o600))

	_, err := testLoader(10).Load(context.Background(), path)
	assert.ErrorIs(t, err, model.ErrPayloadTooLarge)
}

func TestLoader_URLSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = fmt.Fprint(w, "receipt body")
	}))
	defer server.Close()

	data, err := testLoader(1<<20).Load(context.Background(), server.URL+"/receipt.txt")
	require.NoError(t, err)
	assert.Equal(t, "receipt body", string(data))
}

func TestLoader_TransientThenSuccess(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	data, err := testLoader(1<<20).Load(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(data))
	assert.EqualValues(t, 3, attempts.Load())
}

func TestLoader_429Retried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	_, err := testLoader(1<<20).Load(context.Background(), server.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestLoader_PermanentFailure(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testLoader(1<<20).Load(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, "unexpected status: 404 404 Not Found", err.Error())
	assert.EqualValues(t, 1, attempts.Load())
}

func TestLoader_AllRetriesExhausted(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testLoader(1<<20).Load(context.Background(), server.URL)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.EqualValues(t, loadAttempts, attempts.Load())
}

func TestLoader_URLTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, strings.Repeat("y", 64))
	}))
	defer server.Close()

	_, err := testLoader(16).Load(context.Background(), server.URL)
	assert.ErrorIs(t, err, model.ErrPayloadTooLarge)
}

func TestIsRetryableLoadError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{StatusCode: 503}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"401", &StatusError{StatusCode: 401}, false},
		{"connection refused", fmt.Errorf("fetch: %w", &net.OpError{Op: "dial", Err: errors.New("connection refused")}), true},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"plain", errors.New("create request: invalid URL"), false},
		{"too large", fmt.Errorf("read: %w", model.ErrPayloadTooLarge), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableLoadError(tt.err))
		})
	}
}
