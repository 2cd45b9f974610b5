package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserHeaders(t *testing.T) {
	u, err := url.Parse("https://example.com/path")
	require.NoError(t, err)

	h := BrowserHeaders(u)
	assert.Contains(t, h.Get("User-Agent"), "Chrome/124")
	assert.Equal(t, "gzip, deflate, br, zstd", h.Get("Accept-Encoding"))
	assert.Equal(t, "document", h.Get("Sec-Fetch-Dest"))
	assert.Equal(t, "?1", h.Get("Sec-Fetch-User"))
	assert.Equal(t, "1", h.Get("Upgrade-Insecure-Requests"))
	assert.Empty(t, h.Get("Referer"))
}

func TestBrowserHeaders_ReturnsCopy(t *testing.T) {
	u, err := url.Parse("https://portal.gov.uk/")
	require.NoError(t, err)

	h := BrowserHeaders(u)
	h.Set("User-Agent", "mutated")

	assert.NotEqual(t, "mutated", browserHeaders.Get("User-Agent"))
	assert.Empty(t, browserHeaders.Get("Referer"))
}

func TestBrowserHeaders_GovernmentReferer(t *testing.T) {
	tests := []struct {
		target  string
		referer string
	}{
		{"https://www.usa.gov/benefits", "https://www.usa.gov/"},
		{"https://services.example.gov.in/form?id=1", "https://services.example.gov.in/"},
		{"https://www.Tax.GOV.uk/", "https://www.Tax.GOV.uk/"},
		{"https://portal.govt.nz/", "https://portal.govt.nz/"},
		{"http://data.gov:8080/x", "http://data.gov:8080/"},
		{"https://gov.example.com/", ""},
		{"https://governor.example.com/", ""},
		{"https://example.com/.gov/", ""},
		{"https://mygov.in/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			u, err := url.Parse(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.referer, BrowserHeaders(u).Get("Referer"))
		})
	}
}
