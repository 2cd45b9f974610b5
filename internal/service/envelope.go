package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"fetch-proxy-go/internal/model"
)

// HeaderAttempts reports how many attempts a successful response took.
const HeaderAttempts = "X-Proxy-Attempts"

const defaultContentType = "text/html"

// Error messages of the response contract.
const (
	msgMissingParameter = "Missing ?url= parameter"
	msgInvalidURL       = "Invalid URL provided"
	msgTimeout          = "Request timeout after multiple attempts"
	msgExhausted        = "All retry attempts failed"
)

// errorBody is the JSON shape of every non-2xx envelope.
type errorBody struct {
	Error     string `json:"error"`
	Status    int    `json:"status,omitempty"`
	Timeout   bool   `json:"timeout,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"lastError,omitempty"`
	Type      string `json:"type,omitempty"`
}

// CORSHeader returns the cross-origin headers every response carries.
func CORSHeader() http.Header {
	return http.Header{
		"Access-Control-Allow-Origin":  {"*"},
		"Access-Control-Allow-Methods": {"GET, OPTIONS"},
		"Access-Control-Allow-Headers": {"Content-Type"},
	}
}

func successEnvelope(o *model.AttemptOutcome, attempt int) *model.ResponseEnvelope {
	h := CORSHeader()
	contentType := o.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	h.Set("Content-Type", contentType)
	h.Set(HeaderAttempts, strconv.Itoa(attempt))
	if o.CacheControl != "" {
		h.Set("Cache-Control", o.CacheControl)
	}
	if o.ContentEncoding != "" {
		h.Set("Content-Encoding", o.ContentEncoding)
	}

	return &model.ResponseEnvelope{
		StatusCode: http.StatusOK,
		Header:     h,
		Body:       o.Body,
	}
}

func upstreamErrorEnvelope(status, attempts int) *model.ResponseEnvelope {
	return jsonEnvelope(http.StatusBadGateway, errorBody{
		Error:    fmt.Sprintf("Upstream returned HTTP %d", status),
		Status:   status,
		Attempts: attempts,
	})
}

func timeoutEnvelope(attempts int) *model.ResponseEnvelope {
	return jsonEnvelope(http.StatusGatewayTimeout, errorBody{
		Error:    msgTimeout,
		Timeout:  true,
		Attempts: attempts,
	})
}

func exhaustedEnvelope(lastErr error, attempts int) *model.ResponseEnvelope {
	body := errorBody{Error: msgExhausted, Attempts: attempts}
	if lastErr != nil {
		body.LastError = lastErr.Error()
	}
	return jsonEnvelope(http.StatusBadGateway, body)
}

// ErrorEnvelope converts an error returned by Forward into the response the
// caller receives. Validation errors become 400s; everything else is a 500
// naming the failure kind.
func ErrorEnvelope(err error) *model.ResponseEnvelope {
	switch {
	case errors.Is(err, ErrMissingParameter):
		return jsonEnvelope(http.StatusBadRequest, errorBody{Error: msgMissingParameter})
	case errors.Is(err, ErrInvalidURL):
		return jsonEnvelope(http.StatusBadRequest, errorBody{Error: msgInvalidURL})
	}

	var fe *ForwardError
	if errors.As(err, &fe) {
		return jsonEnvelope(http.StatusInternalServerError, errorBody{
			Error: fe.Err.Error(),
			Type:  string(fe.Kind),
		})
	}
	return jsonEnvelope(http.StatusInternalServerError, errorBody{
		Error: err.Error(),
		Type:  string(KindUnclassified),
	})
}

func jsonEnvelope(status int, body errorBody) *model.ResponseEnvelope {
	h := CORSHeader()
	h.Set("Content-Type", "application/json")

	data, err := json.Marshal(body)
	if err != nil {
		// errorBody holds only strings, ints and bools.
		data = []byte(`{"error":"internal error"}`)
	}

	return &model.ResponseEnvelope{
		StatusCode: status,
		Header:     h,
		Body:       data,
	}
}
