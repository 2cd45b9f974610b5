// Package model defines shared types for the proxy.
package model

import (
	"net/http"
)

// ForwardRequest is the only input a caller can supply: the target to fetch.
type ForwardRequest struct {
	TargetURL string
}

// OutcomeKind classifies the result of a single forwarding attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeUpstreamError
	OutcomeTimeout
	OutcomeNetworkError
	OutcomeSuspiciousBody
)

// String returns the label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeUpstreamError:
		return "upstream_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeSuspiciousBody:
		return "suspicious_body"
	default:
		return "unknown"
	}
}

// AttemptOutcome is the classified result of one attempt. Which fields are
// meaningful depends on Kind: StatusCode for Success and UpstreamError,
// ContentType/CacheControl/ContentEncoding/Body for Success and
// SuspiciousBody, Err for NetworkError. ContentEncoding is set only when the
// body is still encoded.
type AttemptOutcome struct {
	Kind            OutcomeKind
	StatusCode      int
	ContentType     string
	CacheControl    string
	ContentEncoding string
	Body            []byte
	Err             error
}

// RetryState tracks progress through the attempt loop for one request.
type RetryState struct {
	Attempt   int
	LastError error
}

// FetchResult is a fully buffered, decoded upstream response.
type FetchResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ResponseEnvelope is the final response returned to the caller.
type ResponseEnvelope struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
