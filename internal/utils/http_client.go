package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient returns a pooled client. A zero timeout means no client-side
// deadline, which streaming requests rely on.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
