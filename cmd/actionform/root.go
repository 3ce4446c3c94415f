// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/actionform/pkg/backend"
	"github.com/united-manufacturing-hub/actionform/pkg/config"
	"github.com/united-manufacturing-hub/actionform/pkg/logger"
	"github.com/united-manufacturing-hub/actionform/pkg/metrics"
	"github.com/united-manufacturing-hub/actionform/pkg/sentry"
)

// version is overwritten at build time via -ldflags.
var version = sentry.DefaultAppVersion

type rootOptions struct {
	configPath string
	logLevel   string

	cfg config.Config
	log *zap.SugaredLogger
}

func newRootCommand() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "actionform",
		Short:         "Log shop-floor actions against the plant backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", os.Getenv("ACTIONFORM_CONFIG"),
		"Path to the YAML configuration file.")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "",
		"Log level (debug, info, warn, error). Defaults to LOGGING_LEVEL.")

	cmd.AddCommand(newTemplatesCommand(o))
	cmd.AddCommand(newSubmitCommand(o))

	return cmd
}

func (o *rootOptions) setup() error {
	if o.logLevel != "" {
		logger.InitializeWithLevel(o.logLevel)
	} else {
		logger.Initialize()
	}
	o.log = logger.For(logger.ComponentCLI)

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	o.cfg = cfg

	sentry.InitSentry(cfg.Sentry.DSN, cfg.Version, o.log)

	return nil
}

// run wires the backend client and the metrics endpoint around fn and
// cancels on SIGINT or SIGTERM.
func (o *rootOptions) run(fn func(ctx context.Context, client *backend.Client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.cfg.Metrics.Addr != "" {
		server := metrics.SetupMetricsEndpoint(o.cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				o.log.Warnw("failed to shut down metrics server", "error", err)
			}
		}()
	}
	defer sentry.Flush(2 * time.Second)
	defer func() { _ = logger.Sync() }()

	client := backend.New(o.cfg.API, o.cfg.Plant, logger.For(logger.ComponentBackend))

	if err := fn(ctx, client); err != nil {
		o.log.Debugw("command failed", "error", err)

		return err
	}

	return nil
}
