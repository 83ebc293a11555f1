// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// arbor-tail connects to the portal event stream and prints each event
// frame to stdout as it arrives. It is the debugging companion to the
// realtime client: what arbor-tail prints is exactly what the router
// would dispatch, after envelope unwrapping.
//
// Configuration comes from the standard config file (ARBOR_CONFIG or
// --config); --url and --token override it for ad-hoc use against a
// development portal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/arbor-works/arbor/lib/config"
	"github.com/arbor-works/arbor/lib/credential"
	"github.com/arbor-works/arbor/realtime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "arbor-tail: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var urlOverride string
	var tokenOverride string
	var asJSON bool
	var verbose bool

	flagSet := pflag.NewFlagSet("arbor-tail", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $ARBOR_CONFIG)")
	flagSet.StringVar(&urlOverride, "url", "", "event stream URL (overrides config)")
	flagSet.StringVar(&tokenOverride, "token", "", "bearer token (overrides config)")
	flagSet.BoolVar(&asJSON, "json", false, "print one JSON object per frame")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	streamURL, tokens, logLevel, reconnect, err := resolveOptions(configPath, urlOverride, tokenOverride)
	if err != nil {
		return err
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	terminal := make(chan error, 1)
	client, err := realtime.NewClient(realtime.Config{
		StreamURL: streamURL,
		Tokens:    tokens,
		Logger:    logger,
		Reconnect: reconnect,
	})
	if err != nil {
		return err
	}

	client.Subscribe(realtime.SubscriberFuncs{
		OnStatus: func(status realtime.Status) {
			logger.Info("stream status", "status", status)
		},
		OnFrame: func(frame realtime.Frame) {
			printFrame(frame, asJSON)
		},
		OnError: func(err error) {
			var authErr *realtime.AuthError
			if errors.As(err, &authErr) || realtime.IsExhausted(err) {
				select {
				case terminal <- err:
				default:
				}
				return
			}
			logger.Warn("stream error", "error", err)
		},
	})

	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-terminal:
		return err
	}
}

// resolveOptions merges the config file with command-line overrides.
// With both --url and --token given, no config file is needed at all.
func resolveOptions(configPath, urlOverride, tokenOverride string) (string, credential.TokenSource, slog.Level, realtime.ReconnectConfig, error) {
	if urlOverride != "" && tokenOverride != "" {
		return urlOverride, credential.Static(tokenOverride), slog.LevelInfo, realtime.ReconnectConfig{}, nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return "", nil, 0, realtime.ReconnectConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, 0, realtime.ReconnectConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	streamURL := cfg.StreamURL()
	if urlOverride != "" {
		streamURL = urlOverride
	}
	tokens := cfg.TokenSource()
	if tokenOverride != "" {
		tokens = credential.Static(tokenOverride)
	}
	reconnect := realtime.ReconnectConfig{
		BaseDelay:   cfg.Reconnect.BaseDelay.Std(),
		MaxDelay:    cfg.Reconnect.MaxDelay.Std(),
		MaxAttempts: cfg.Reconnect.MaxAttempts,
	}
	return streamURL, tokens, cfg.LogLevel(), reconnect, nil
}

// printFrame writes one frame to stdout. In JSON mode the frame is a
// single object per line for piping into jq; otherwise a terse
// human-readable form.
func printFrame(frame realtime.Frame, asJSON bool) {
	if asJSON {
		encoded, err := json.Marshal(map[string]any{
			"type": frame.Type,
			"data": frame.Data,
			"id":   frame.ID,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "arbor-tail: encoding frame: %v\n", err)
			return
		}
		fmt.Println(string(encoded))
		return
	}
	if frame.ID != "" {
		fmt.Printf("%s [%s] %v\n", frame.Type, frame.ID, frame.Data)
		return
	}
	fmt.Printf("%s %v\n", frame.Type, frame.Data)
}
