package httpserver

import (
	"net/http"

	"rentgate/internal/platform/config"
)

// New builds the gateway's HTTP server. Zero timeouts in cfg leave the
// corresponding limit off.
func New(addr string, handler http.Handler, cfg config.HTTP) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
