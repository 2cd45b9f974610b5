// Package service implements the request-forwarding pipeline: target
// validation, browser header construction and the retrying attempt loop.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"fetch-proxy-go/internal/client"
	"fetch-proxy-go/internal/config"
	"fetch-proxy-go/internal/metrics"
	"fetch-proxy-go/internal/model"
)

// Fetcher performs a single outbound GET and buffers the response.
type Fetcher interface {
	Fetch(ctx context.Context, target string, header http.Header) (*model.FetchResult, error)
}

// Forwarder runs the attempt loop for one ForwardRequest at a time. It holds
// no per-request state and is safe for concurrent use.
type Forwarder struct {
	fetcher Fetcher
	policy  RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewForwarder creates a Forwarder. The metrics parameter is optional.
func NewForwarder(f Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	return &Forwarder{
		fetcher: f,
		policy:  NewRetryPolicy(&cfg.Forward),
		logger:  logger.With("component", "forwarder"),
		metrics: m,
		sleep:   sleepContext,
	}
}

// Policy returns the retry policy in effect.
func (f *Forwarder) Policy() RetryPolicy {
	return f.policy
}

// Forward fetches fr.TargetURL and returns the envelope for the caller.
//
// Upstream failures that the loop resolves (exhausted 5xx, 4xx, timeouts) are
// returned as envelopes. A non-nil error means validation failed
// (ErrMissingParameter, ErrInvalidURL) or the loop was aborted by a failure it
// does not retry (*ForwardError); use ErrorEnvelope to render it.
func (f *Forwarder) Forward(ctx context.Context, fr *model.ForwardRequest) (*model.ResponseEnvelope, error) {
	target, err := ParseTarget(fr.TargetURL)
	if err != nil {
		return nil, err
	}
	header := BrowserHeaders(target)

	loopCtx, cancel := context.WithTimeout(ctx, f.policy.Deadline)
	defer cancel()

	state := &model.RetryState{}
	for state.Attempt = 1; state.Attempt <= f.policy.MaxAttempts; state.Attempt++ {
		attempt := state.Attempt
		final := attempt == f.policy.MaxAttempts
		logger := f.logger.With("host", target.Host, "attempt", attempt)

		outcome, err := f.attempt(loopCtx, target.String(), header)
		if err != nil {
			return nil, err
		}
		f.recordOutcome(outcome.Kind)
		logger.Debug("attempt finished", "outcome", outcome.Kind, "status", outcome.StatusCode)

		switch outcome.Kind {
		case model.OutcomeSuccess:
			return successEnvelope(outcome, attempt), nil

		case model.OutcomeSuspiciousBody:
			if final {
				logger.Warn("accepting suspicious body on final attempt", "bytes", len(outcome.Body))
				return successEnvelope(outcome, attempt), nil
			}
			state.LastError = fmt.Errorf("suspicious %d-byte body", len(outcome.Body))

		case model.OutcomeUpstreamError:
			if outcome.StatusCode < http.StatusInternalServerError || final {
				return upstreamErrorEnvelope(outcome.StatusCode, attempt), nil
			}
			state.LastError = fmt.Errorf("upstream returned HTTP %d", outcome.StatusCode)

		case model.OutcomeTimeout:
			if final {
				return timeoutEnvelope(attempt), nil
			}
			state.LastError = fmt.Errorf("attempt timed out after %s", f.policy.AttemptTimeout)

		case model.OutcomeNetworkError:
			if final || !isTransientNetworkError(outcome.Err) {
				return nil, &ForwardError{Kind: KindNetwork, Err: outcome.Err}
			}
			state.LastError = outcome.Err
		}

		delay := f.policy.Delay(attempt, outcome.Kind)
		logger.Warn("retrying",
			"outcome", outcome.Kind,
			"err", state.LastError,
			"backoff", delay,
		)
		f.recordRetry(outcome.Kind)

		if err := f.sleep(loopCtx, delay); err != nil {
			if ctx.Err() != nil {
				return nil, &ForwardError{Kind: KindClientClosed, Err: ctx.Err()}
			}
			// The per-request deadline ran out while backing off.
			return timeoutEnvelope(attempt), nil
		}
	}

	return exhaustedEnvelope(state.LastError, f.policy.MaxAttempts), nil
}

// attempt performs one bounded fetch and classifies the result. The attempt
// context is released on every return path.
func (f *Forwarder) attempt(ctx context.Context, target string, header http.Header) (*model.AttemptOutcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.policy.AttemptTimeout)
	defer cancel()

	res, err := f.fetcher.Fetch(attemptCtx, target, header)
	if err != nil {
		switch {
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			return &model.AttemptOutcome{Kind: model.OutcomeTimeout, Err: err}, nil
		case ctx.Err() != nil:
			return nil, &ForwardError{Kind: KindClientClosed, Err: ctx.Err()}
		case errors.Is(err, client.ErrBodyTooLarge), errors.Is(err, client.ErrDecodeBody):
			return nil, &ForwardError{Kind: KindUnclassified, Err: err}
		default:
			return &model.AttemptOutcome{Kind: model.OutcomeNetworkError, Err: err}, nil
		}
	}

	return classify(res), nil
}

// classify maps a completed response onto an attempt outcome. Content-Encoding
// is still present only for codings the client could not undo.
func classify(res *model.FetchResult) *model.AttemptOutcome {
	o := &model.AttemptOutcome{
		StatusCode:      res.StatusCode,
		ContentType:     res.Header.Get("Content-Type"),
		CacheControl:    res.Header.Get("Cache-Control"),
		ContentEncoding: res.Header.Get("Content-Encoding"),
		Body:            res.Body,
	}

	switch {
	case res.StatusCode < 200 || res.StatusCode > 299:
		o.Kind = model.OutcomeUpstreamError
	case looksLikeErrorPage(res.Body):
		o.Kind = model.OutcomeSuspiciousBody
	default:
		o.Kind = model.OutcomeSuccess
	}
	return o
}

func (f *Forwarder) recordOutcome(kind model.OutcomeKind) {
	if f.metrics != nil {
		f.metrics.AttemptOutcomes.WithLabelValues(kind.String()).Inc()
	}
}

func (f *Forwarder) recordRetry(kind model.OutcomeKind) {
	if f.metrics != nil {
		f.metrics.Retries.WithLabelValues(kind.String()).Inc()
	}
}
