package app

import (
	"net"
	"net/http"
	"time"
)

const defaultUserAgent = "ptsnap/1.0 (+https://github.com/hyperifyio/ptsnap)"

// newHTTPClient returns the client shared by page fetches and the OpenAI
// transport. Model calls can take a while, so the overall timeout is
// generous while dialing and TLS stay short.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   120 * time.Second,
	}
}
