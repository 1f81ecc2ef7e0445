package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/trip-planner/internal/infra/config"
)

const (
	retryBodyLimit     = 1 << 20
	retryAttemptHeader = "X-Retry-Attempts"
)

var errBodyTooLarge = errors.New("request body exceeds retry limit")

// withRetry replays POST requests that end in a transient 5xx. Paths under an excluded prefix
// create sessions or advance conversations and are never replayed.
func withRetry(handler http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return handler
	}
	excluded := make([]string, 0, len(cfg.Exclude))
	for _, prefix := range cfg.Exclude {
		if p := strings.TrimRight(strings.TrimSpace(prefix), "/"); p != "" {
			excluded = append(excluded, p)
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || isExcluded(r.URL.Path, excluded) {
			handler.ServeHTTP(w, r)
			return
		}
		payload, err := readRequestBody(r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			return
		}

		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			if attempt > 1 && !waitBackoff(r, cfg.BaseBackoff<<(attempt-2)) {
				http.Error(w, "request cancelled", http.StatusServiceUnavailable)
				return
			}

			buffered := newBufferedResponse(w)
			replay := r.Clone(r.Context())
			replay.Body = io.NopCloser(bytes.NewReader(payload))
			replay.ContentLength = int64(len(payload))

			handler.ServeHTTP(buffered, replay)
			if !buffered.transient() || attempt == cfg.MaxAttempts {
				if attempt > 1 {
					buffered.header.Set(retryAttemptHeader, strconv.Itoa(attempt))
				}
				buffered.flushTo()
				return
			}
			logger.Warn("transient failure, replaying request", "path", r.URL.Path, "status", buffered.status, "attempt", attempt)
		}
	})
}

func isExcluded(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func waitBackoff(r *http.Request, delay time.Duration) bool {
	if delay <= 0 {
		return r.Context().Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-r.Context().Done():
		return false
	case <-timer.C:
		return true
	}
}

func readRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, retryBodyLimit+1))
	if err != nil {
		return nil, err
	}
	if len(data) > retryBodyLimit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// bufferedResponse holds one attempt's response until the retry loop decides to keep it.
type bufferedResponse struct {
	dst    http.ResponseWriter
	header http.Header
	body   bytes.Buffer
	status int
}

func newBufferedResponse(dst http.ResponseWriter) *bufferedResponse {
	return &bufferedResponse{dst: dst, header: make(http.Header)}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) Flush() {}

func (b *bufferedResponse) transient() bool {
	switch b.status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (b *bufferedResponse) flushTo() {
	dst := b.dst.Header()
	for k := range dst {
		dst.Del(k)
	}
	for k, values := range b.header {
		dst[k] = append([]string(nil), values...)
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	b.dst.WriteHeader(status)
	if b.body.Len() > 0 {
		_, _ = b.dst.Write(b.body.Bytes())
	}
}
