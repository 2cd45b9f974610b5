package service

import (
	"net/http"
	"net/url"
	"strings"
)

// browserHeaders is the outbound header set of a desktop Chrome on Windows.
// Some targets refuse requests that lack the fetch metadata or client hints.
var browserHeaders = http.Header{
	"User-Agent":                {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"},
	"Accept":                    {"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
	"Accept-Language":           {"en-IN,en-US;q=0.9,en;q=0.8,hi;q=0.7"},
	"Accept-Encoding":           {"gzip, deflate, br, zstd"},
	"Connection":                {"keep-alive"},
	"Cache-Control":             {"no-cache"},
	"Pragma":                    {"no-cache"},
	"Sec-Ch-Ua":                 {`"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`},
	"Sec-Ch-Ua-Mobile":          {"?0"},
	"Sec-Ch-Ua-Platform":        {`"Windows"`},
	"Sec-Fetch-Dest":            {"document"},
	"Sec-Fetch-Mode":            {"navigate"},
	"Sec-Fetch-Site":            {"none"},
	"Sec-Fetch-User":            {"?1"},
	"Upgrade-Insecure-Requests": {"1"},
	"Dnt":                       {"1"},
}

// BrowserHeaders returns a fresh copy of the browser header set for target.
// Government hosts additionally get a Referer of their own origin root.
func BrowserHeaders(target *url.URL) http.Header {
	h := browserHeaders.Clone()
	if isGovernmentHost(target.Hostname()) {
		h.Set("Referer", target.Scheme+"://"+target.Host+"/")
	}
	return h
}

// isGovernmentHost reports whether host contains ".gov", which covers .gov
// as well as country forms such as .gov.in, .gov.uk and .govt.nz.
func isGovernmentHost(host string) bool {
	return strings.Contains(strings.ToLower(host), ".gov")
}
