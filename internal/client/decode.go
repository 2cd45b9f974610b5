package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrDecodeBody is returned when a Content-Encoding the proxy advertised
// cannot be undone.
var ErrDecodeBody = errors.New("decode upstream body")

// decodeBody undoes the Content-Encoding chain of a response so the body can
// be inspected and relayed as-is. Encodings are applied in header order, so
// they are removed in reverse. On success Content-Encoding and Content-Length
// are dropped from header. Unknown encodings leave body and header untouched.
func decodeBody(header http.Header, body []byte, limit int64) ([]byte, error) {
	raw := header.Get("Content-Encoding")
	if raw == "" {
		return body, nil
	}

	codings := strings.Split(raw, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		if !supportedEncoding(strings.TrimSpace(codings[i])) {
			return body, nil
		}
	}

	out := body
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		decoded, err := decodeOne(coding, out, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecodeBody, coding, err)
		}
		out = decoded
	}

	header.Del("Content-Encoding")
	header.Del("Content-Length")
	return out, nil
}

func supportedEncoding(coding string) bool {
	switch strings.ToLower(coding) {
	case "", "identity", "gzip", "x-gzip", "deflate", "br", "zstd":
		return true
	default:
		return false
	}
}

func decodeOne(coding string, body []byte, limit int64) ([]byte, error) {
	var r io.Reader
	switch coding {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer func() { _ = zr.Close() }()
		r = zr
	case "deflate":
		// "deflate" is zlib-wrapped per RFC 9110, but some servers send raw DEFLATE.
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(body))
			defer func() { _ = fr.Close() }()
			r = fr
		} else {
			defer func() { _ = zr.Close() }()
			r = zr
		}
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", coding)
	}

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, ErrBodyTooLarge
	}
	return out, nil
}
