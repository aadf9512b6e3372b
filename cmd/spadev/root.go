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

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/thediveo/spadev"
	"github.com/thediveo/spadev/internal/config"
	"github.com/thediveo/spadev/internal/logger"
	"github.com/thediveo/spadev/internal/server"
)

// newRootCmd returns the spadev command with its flags registered.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spadev",
		Short: "Serve a built single page application for development",
		Long: `spadev serves a pre-built single page application with client-side
routes falling back to the index document, and caching disabled on every
response.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// Execute runs the spadev command, logging any error and exiting with status
// 1 in that case.
func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		l, logErr := errorLogger(cmd.Flags())
		if logErr != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		l.Error("spadev failed", zap.Error(err))
		_ = l.Sync()
		os.Exit(1)
	}
}

// errorLogger returns a logger for reporting a failed command, configured
// the same way as the failed command's logger. If the configuration itself
// is at fault, it falls back to a debug console logger.
func errorLogger(flags *pflag.FlagSet) (*zap.Logger, error) {
	if cfg, err := config.Load(".", flags); err == nil {
		if l, err := logger.New(cfg.Log); err == nil {
			return l, nil
		}
	}
	return logger.New(logger.Config{Level: "debug", Format: "console"})
}

// interruptContext returns a context that gets cancelled on the first SIGINT
// or SIGTERM. Any further such signal then gets the default treatment again,
// so a second Ctrl-C kills a lengthy shutdown.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
		}
		// restore the default handling before anyone sees ctx done.
		signal.Stop(sigs)
		cancel()
	}()
	return ctx, cancel
}

// serve loads the configuration, then serves the SPA until interrupted.
func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(".", cmd.Flags())
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)

	exeDir, err := config.ExecutableDir()
	if err != nil {
		return err
	}
	root, err := cfg.ResolveRoot(exeDir)
	if err != nil {
		return fmt.Errorf("cannot resolve root directory: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		lg.Warn("root directory not accessible, serving anyway", zap.String("root", root))
	}
	lg.Debug("configuration",
		zap.String("root", root),
		zap.String("index", cfg.Index),
		zap.String("static-prefix", cfg.StaticPrefix),
		zap.Bool("rewrite-base", cfg.RewriteBase))

	opts := []spadev.SPAHandlerOption{spadev.WithStaticPrefix(cfg.StaticPrefix)}
	if cfg.RewriteBase {
		opts = append(opts, spadev.WithBaseRewriting())
	}
	handler := spadev.NoCache(
		logger.Middleware(lg, spadev.NewSPAHandler(os.DirFS(root), cfg.Index, opts...)))

	ctx, cancel := interruptContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	srv := server.New(handler,
		server.WithAddr(net.JoinHostPort("", strconv.Itoa(cfg.Port))),
		server.WithLogger(lg),
		server.WithReadyFunc(func(addr net.Addr) {
			port := cfg.Port
			if tcpaddr, ok := addr.(*net.TCPAddr); ok {
				port = tcpaddr.Port
			}
			fmt.Fprintf(out, "\n✅ Server running at http://localhost:%d\n\n", port)
		}))
	if err := srv.Run(ctx); err != nil {
		return err
	}
	fmt.Fprint(out, "\n\n❌ Server stopped\n\n")
	return nil
}
