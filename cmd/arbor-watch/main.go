// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// arbor-watch is a terminal UI over the realtime sync core: a live
// view of conversations, messages, presence, and the unread badge,
// kept current by the event stream with REST refetch on invalidation.
//
// The data path is the production wiring end to end — stream client,
// router, reconciler, presence tracker, cache store — with the TUI as
// a passive reader of the store. Watching arbor-watch against a portal
// is the quickest way to see reconnect and reconciliation behavior.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arbor-works/arbor/cache"
	"github.com/arbor-works/arbor/lib/config"
	"github.com/arbor-works/arbor/portalapi"
	"github.com/arbor-works/arbor/realtime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "arbor-watch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var logOutput string

	flagSet := pflag.NewFlagSet("arbor-watch", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $ARBOR_CONFIG)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logging to stderr would corrupt the alt-screen display, so the
	// default sink is a discard handler; --log-output captures records
	// to a file for post-mortem debugging.
	logger := slog.New(slog.DiscardHandler)
	if logOutput != "" {
		file, err := os.Create(logOutput)
		if err != nil {
			return fmt.Errorf("cannot open log file %s: %w", logOutput, err)
		}
		defer file.Close()
		logger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	tokens := cfg.TokenSource()

	apiClient, err := portalapi.NewClient(portalapi.ClientConfig{
		BaseURL: cfg.Portal.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	session, err := portalapi.NewSession(apiClient, tokens)
	if err != nil {
		return err
	}

	store := cache.NewStore()
	reconciler := cache.NewReconciler(store, logger)
	presence := cache.NewPresenceTracker(nil, logger)

	router := realtime.NewRouter(logger)
	cache.Bind(router, reconciler, presence)

	stream, err := realtime.NewClient(realtime.Config{
		StreamURL: cfg.StreamURL(),
		Tokens:    tokens,
		Logger:    logger,
		Reconnect: realtime.ReconnectConfig{
			BaseDelay:   cfg.Reconnect.BaseDelay.Std(),
			MaxDelay:    cfg.Reconnect.MaxDelay.Std(),
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
	})
	if err != nil {
		return err
	}

	model := newModel(session, store, presence)
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Stream callbacks run on the stream's dispatch goroutine; Send is
	// safe from any goroutine and keeps all model mutation inside the
	// tea event loop.
	store.OnInvalidate(func(inv cache.Invalidation) {
		program.Send(invalidationMsg{inv})
	})
	stream.Subscribe(newStreamSubscriber(program, router))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := stream.Start(ctx); err != nil {
		return err
	}
	defer stream.Stop()

	_, err = program.Run()
	return err
}

// frameSink is the slice of *tea.Program the stream wiring needs.
type frameSink interface {
	Send(msg tea.Msg)
}

// newStreamSubscriber bridges stream callbacks into the tea event
// loop. The frame is dispatched into the router before any UI message
// is sent, so a roster refresh triggered by presenceChangedMsg reads
// the already-updated tracker state.
func newStreamSubscriber(sink frameSink, router *realtime.Router) realtime.SubscriberFuncs {
	return realtime.SubscriberFuncs{
		OnStatus: func(status realtime.Status) {
			sink.Send(streamStatusMsg{status})
		},
		OnFrame: func(frame realtime.Frame) {
			router.StreamFrame(frame)
			if frame.Type == realtime.EventUserOnline || frame.Type == realtime.EventUserOffline {
				sink.Send(presenceChangedMsg{})
			}
		},
		OnError: func(err error) {
			sink.Send(streamErrorMsg{err})
		},
	}
}
