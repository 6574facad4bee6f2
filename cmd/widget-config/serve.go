package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sardine-ai/go-widget-config/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configuration bridge over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.cfg.Repository.Watch {
				watching, err := s.controller.Watch()
				if err != nil {
					return err
				}
				if !watching {
					logrus.WithField("type", s.cfg.Repository.Type).Warn("repository cannot be watched, relying on refresh")
				}
			}
			if addr == "" {
				addr = s.cfg.Server.Addr
			}
			return serve(ctx, s, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// serve runs the HTTP server until ctx ends or the listener fails.
func serve(ctx context.Context, s *session, addr string) error {
	srv := server.NewServer(s.controller)
	srv.AuthKey = s.cfg.Server.AuthKey

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
