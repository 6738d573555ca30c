// Package httpserver configures the process's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. The write timeout leaves room for archive
// searches over wide created-at windows.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
