package main

import (
	"context"
	"io"

	"github.com/sardine-ai/go-widget-config/client"
	"github.com/sardine-ai/go-widget-config/config"
	"github.com/sardine-ai/go-widget-config/source"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "widget-config",
		Short:         "Serve and edit widget configuration",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file (defaults to an in-memory store)")

	root.AddCommand(
		newServeCommand(&configPath),
		newGetCommand(&configPath),
		newSetCommand(&configPath),
		newClearCommand(&configPath),
		newSeedCommand(&configPath),
	)
	return root
}

// session is a controller opened from the configuration file for the
// lifetime of one command.
type session struct {
	cfg        config.Config
	repository source.Repository
	controller *client.Controller
}

// openSession loads the configuration at path and opens its repository.
// One-shot commands pass background false so that no refresh goroutine is
// started.
func openSession(ctx context.Context, path string, background bool) (*session, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyLogLevel()

	repository, err := source.New(ctx, cfg.Repository)
	if err != nil {
		return nil, err
	}

	interval := cfg.RefreshInterval
	if !background {
		interval = 0
	}
	return &session{
		cfg:        cfg,
		repository: repository,
		controller: client.NewController(ctx, repository, interval),
	}, nil
}

func (s *session) Close() {
	s.controller.Close()
	if closer, ok := s.repository.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Warn("error closing repository")
		}
	}
}
