// Package httpserver builds the listening server for the public API.
package httpserver

import (
	"net/http"
	"time"

	"bloodlink/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	// writeSlack leaves room to flush a timeout response after the request deadline fires.
	writeSlack        = 5 * time.Second
)

// New builds the server for cfg. Read and write deadlines follow the per-request timeout
// so a handler cancelled by the timeout middleware can still answer.
func New(cfg config.Server, handler http.Handler) *http.Server {
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       requestTimeout / 2,
		WriteTimeout:      requestTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
	}
}
