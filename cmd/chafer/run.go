// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/chafer-dev/chafer/event"
	"github.com/chafer-dev/chafer/internal/config"
	"github.com/chafer-dev/chafer/internal/logging"
	"github.com/chafer-dev/chafer/internal/observability"
	"github.com/chafer-dev/chafer/pkg/errutil"
	"github.com/chafer-dev/chafer/plugin"
)

// NewRunCmd creates the run subcommand: load all plugins and optionally
// dispatch one event.
func NewRunCmd() *cobra.Command {
	var (
		eventName string
		eventArgs []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load all plugins and optionally dispatch an event",
		Long: `Load every eligible plugin from the configured directory, then
dispatch the event given with --event (with --arg values as positional
arguments) and report the loaded plugins.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logging.SetDefault("chafer", version, cfg.Log.Format, cfg.Log.Level)

			return runRuntime(cmd, cfg, eventName, eventArgs)
		},
	}

	cmd.Flags().StringVar(&eventName, "event", "", "event to dispatch after loading")
	cmd.Flags().StringArrayVar(&eventArgs, "arg", nil, "positional argument for --event (repeatable)")
	return cmd
}

func runRuntime(cmd *cobra.Command, cfg *config.Config, eventName string, eventArgs []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	events := event.NewRegistry(cfg.Events.AllowUnregistered, cfg.Events.Declare...)

	opts := []plugin.Option{
		plugin.WithLoadPath(cfg.Registry.Path),
		plugin.WithEventRegistry(events),
	}
	for name, values := range cfg.Shared {
		opts = append(opts, plugin.WithSharedData(plugin.NewData(name, values)))
	}
	if len(cfg.Registry.Patterns) > 0 {
		opts = append(opts, plugin.WithPatterns(cfg.Registry.Patterns...))
	}

	var ready atomic.Bool
	var obs *observability.Server
	if cfg.Metrics.Addr != "" {
		obs = observability.NewServer(cfg.Metrics.Addr, ready.Load)
		opts = append(opts, plugin.WithRecorder(obs.Metrics()))
		events.SetRecorder(obs.Metrics())
		if _, err := obs.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obs.Stop(stopCtx); err != nil {
				errutil.LogError(slog.Default(), "failed to stop observability server", err)
			}
		}()
	}

	registry, err := plugin.NewRegistry(cfg.Registry.Name, opts...)
	if err != nil {
		return err
	}
	defer registry.Close()

	if err := registry.LoadAll(ctx); err != nil {
		errutil.LogError(slog.Default(), "plugin load failed", err)
		return err
	}
	ready.Store(true)

	for _, inst := range registry.Instances() {
		cmd.Printf("loaded %s\n", inst)
	}

	if eventName != "" {
		args := make([]any, len(eventArgs))
		for i, a := range eventArgs {
			args[i] = a
		}
		if err := events.Dispatch(ctx, eventName, args...); err != nil {
			errutil.LogError(slog.Default(), "dispatch failed", err)
			return err
		}
		cmd.Printf("dispatched %q to %d listener(s)\n", eventName, events.ListenerCount(eventName))
	}
	return nil
}

// NewListCmd creates the list subcommand: load plugins and print their
// descriptors.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Load all plugins and print their metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			logging.SetDefault("chafer", version, cfg.Log.Format, cfg.Log.Level)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			registry, err := plugin.NewRegistry(cfg.Registry.Name,
				plugin.WithLoadPath(cfg.Registry.Path))
			if err != nil {
				return err
			}
			defer registry.Close()

			if err := registry.LoadAll(ctx); err != nil {
				return err
			}

			for _, inst := range registry.Instances() {
				desc := inst.Descriptor()
				cmd.Printf("%-20s %-10s %-20s %s\n",
					desc.Name, orDash(desc.Version), orDash(desc.Author),
					fmt.Sprintf("deps=%d", len(desc.Dependencies)))
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
