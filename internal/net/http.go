// Package net holds the shared HTTP transport used by the remote adapters
// (speech synthesis, OpenAI-compatible scene description).
package net

import (
	"net/http"
	"time"

	"VisionAssist/internal/config"
)

var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          config.MaxIdleConns,
	MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
	IdleConnTimeout:       config.IdleConnTimeout * time.Second,
	TLSHandshakeTimeout:   config.TLSHandshakeTimeout * time.Second,
	ExpectContinueTimeout: config.ExpectContinueTimeout * time.Second,
}

// NewOptimizedClient returns a client sharing one pooled transport
func NewOptimizedClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport,
	}
}
