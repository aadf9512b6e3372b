// Copyright 2022 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package server runs an HTTP handler on a TCP listener until told to stop.

Binding the listener happens synchronously in Run, so that bind failures
surface immediately, before any ready notification.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout limits how long in-flight requests may take to
// finish when stopping the server.
const DefaultShutdownTimeout = 3 * time.Second

// Server serves an http.Handler.
type Server struct {
	handler         http.Handler
	addr            string
	lg              *zap.Logger
	ready           ReadyFunc
	shutdownTimeout time.Duration
}

// ReadyFunc gets called with the listening address as soon as the server
// accepts connections.
type ReadyFunc func(addr net.Addr)

// Option sets optional properties at the time of creating a Server.
type Option func(*Server)

// WithAddr sets the TCP listening address; it defaults to ":3000".
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithLogger sets the logger; it defaults to a no-op logger.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Server) {
		s.lg = lg
	}
}

// WithReadyFunc sets the function to call once the server listens.
func WithReadyFunc(ready ReadyFunc) Option {
	return func(s *Server) {
		s.ready = ready
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New returns a new Server for the specified handler, but doesn't start it
// yet.
func New(handler http.Handler, opts ...Option) *Server {
	s := &Server{
		handler:         handler,
		addr:            ":3000",
		lg:              zap.NewNop(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run binds the listener and serves until ctx gets cancelled, then shuts down
// gracefully. Connections still open when the shutdown timeout expires get
// closed forcibly. Run returns nil after such a regular shutdown, otherwise
// the bind or serve error.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on the specified listener until ctx gets cancelled, then
// shuts down gracefully. The listener is always closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:  s.handler,
		ErrorLog: zap.NewStdLog(s.lg.Named("http")),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		s.lg.Debug("shutting down", zap.Stringer("addr", ln.Addr()))

		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(ctx) //nolint:contextcheck // fresh context for graceful shutdown
		if errors.Is(err, context.DeadlineExceeded) {
			// connections still open, such as browser preconnects or slow
			// downloads; stopping is what was asked for, so cut them off.
			s.lg.Warn("graceful shutdown timed out, closing remaining connections",
				zap.Duration("timeout", s.shutdownTimeout))
			_ = srv.Close()
			return nil
		}
		if err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		s.lg.Info("listen and serve", zap.Stringer("addr", ln.Addr()))
		if s.ready != nil {
			s.ready(ln.Addr())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve failed: %w", err)
		}
		return nil
	})
	return eg.Wait()
}
