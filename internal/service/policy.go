package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"fetch-proxy-go/internal/config"
	"fetch-proxy-go/internal/model"
)

// suspiciousBodyLimit is the size under which a 2xx body is checked for an
// error marker.
const suspiciousBodyLimit = 500

// RetryPolicy bounds the attempt loop.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	Deadline       time.Duration
}

// NewRetryPolicy builds the policy from the forward section of the config.
func NewRetryPolicy(cfg *config.ForwardConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout.Duration,
		BackoffBase:    cfg.BackoffBase.Duration,
		Deadline:       cfg.Deadline.Duration,
	}
}

// Delay returns the backoff to wait after a failed attempt. It grows
// linearly with the attempt number; timeouts wait twice as long and
// network errors one and a half times.
func (p RetryPolicy) Delay(attempt int, kind model.OutcomeKind) time.Duration {
	scale := time.Duration(attempt) * p.BackoffBase
	switch kind {
	case model.OutcomeTimeout:
		return 2 * scale
	case model.OutcomeNetworkError:
		return scale * 3 / 2
	default:
		return scale
	}
}

// looksLikeErrorPage flags short 2xx bodies mentioning "error", which is
// what most anti-bot interstitials look like.
func looksLikeErrorPage(body []byte) bool {
	return len(body) < suspiciousBodyLimit && bytes.Contains(bytes.ToLower(body), []byte("error"))
}

var transientMarkers = []string{
	"network",
	"connection reset",
	"broken pipe",
	"timeout",
	"econnreset",
	"etimedout",
}

// isTransientNetworkError reports whether a transport failure is worth
// retrying. Refused connections and DNS failures are not.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}

	// The *url.Error text embeds the target URL, which must not decide
	// whether a failure is retried.
	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}

	msg := strings.ToLower(cause.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
