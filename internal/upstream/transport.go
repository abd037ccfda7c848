package upstream

import (
	"net"
	"net/http"
	"time"
)

// NewTransport returns a pooled transport with conservative dial and TLS
// timeouts.
func NewTransport(maxIdleConns, maxIdleConnsPerHost int) *http.Transport {
	if maxIdleConns <= 0 {
		maxIdleConns = 100
	}
	if maxIdleConnsPerHost <= 0 {
		maxIdleConnsPerHost = 100
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Truncate limits s to maxLen bytes for logging.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
