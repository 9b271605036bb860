package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// HTTPServer serves the web API on its own listener.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// HTTPOptions are the timeouts applied to the web listener.
type HTTPOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewHTTPServer binds address for handler.
func NewHTTPServer(address string, handler http.Handler, opts HTTPOptions) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	return &HTTPServer{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown is invoked. A clean shutdown returns nil.
func (s *HTTPServer) Start() error {
	if s.server == nil || s.listener == nil {
		return fmt.Errorf("http server not initialised")
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, closing connections when ctx ends.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return err
	}
	return nil
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
