package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"

	"github.com/baiirun/taskflow/internal/auth"
	"github.com/baiirun/taskflow/internal/httpapi"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if a.cfg.Auth.JWTSecret == "" {
					return errors.New("auth.jwt_secret is required to serve (set TASKFLOW_AUTH_JWT_SECRET)")
				}
				if addr == "" {
					addr = a.cfg.HTTP.Addr
				}

				tokens := auth.NewTokenManager(auth.TokenConfig{
					Secret: a.cfg.Auth.JWTSecret,
					TTL:    a.cfg.Auth.TokenTTL,
				})
				server := httpapi.NewServer(a.svc, tokens, httpapi.Options{
					CORSOrigins: a.cfg.HTTP.CORS,
					Logger:      a.logger,
				})

				return serveUntilShutdown(cmd.Context(),
					func(ctx context.Context) error { return server.Run(ctx, addr) },
					func(stop gfshutdown.Operation) <-chan int {
						return gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout,
							map[string]gfshutdown.Operation{"http": stop})
					})
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

// serveUntilShutdown runs run until it returns on its own or until the
// registered shutdown operation cancels it. Only the shutdown operation waits
// on run once shutdown has started.
func serveUntilShutdown(
	ctx context.Context,
	run func(context.Context) error,
	register func(stop gfshutdown.Operation) <-chan int,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	done := make(chan struct{})
	stopping := make(chan struct{})
	go func() {
		runErr = run(ctx)
		close(done)
	}()

	wait := register(func(context.Context) error {
		close(stopping)
		cancel()
		<-done
		return runErr
	})

	exit := func(code int) error {
		if code != 0 {
			return fmt.Errorf("shutdown finished with exit code %d", code)
		}
		return nil
	}

	select {
	case <-done:
		select {
		case <-stopping:
			return exit(<-wait)
		default:
			// Run returned before any shutdown, usually a listen failure.
			return runErr
		}
	case code := <-wait:
		return exit(code)
	}
}
