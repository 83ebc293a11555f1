// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

package realtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/arbor-works/arbor/lib/credential"
)

// Status is the connection state exposed to UI status indicators.
type Status string

const (
	// StatusDisconnected: no connection and no attempt in flight.
	StatusDisconnected Status = "disconnected"
	// StatusConnecting: a connection attempt is in flight.
	StatusConnecting Status = "connecting"
	// StatusConnected: the stream is open and delivering events.
	StatusConnected Status = "connected"
	// StatusError: terminal failure — authentication rejected or the
	// reconnect budget exhausted. Recovery requires a fresh Start.
	StatusError Status = "error"
)

// Subscriber receives stream notifications. All methods are invoked
// synchronously from the stream's dispatch goroutine, in delivery
// order; implementations must not block for long and must hand off to
// their own goroutine if they need to.
type Subscriber interface {
	// StreamStatus reports connection state transitions.
	StreamStatus(status Status)

	// StreamFrame delivers one parsed event frame.
	StreamFrame(frame Frame)

	// StreamError reports connection and protocol errors. Transient
	// reconnectable failures arrive as *ConnectionError; fatal
	// conditions as *AuthError or *ExhaustedError.
	StreamError(err error)
}

// SubscriberFuncs adapts plain functions to the Subscriber interface.
// Nil fields are skipped.
type SubscriberFuncs struct {
	OnStatus func(Status)
	OnFrame  func(Frame)
	OnError  func(error)
}

// StreamStatus implements Subscriber.
func (s SubscriberFuncs) StreamStatus(status Status) {
	if s.OnStatus != nil {
		s.OnStatus(status)
	}
}

// StreamFrame implements Subscriber.
func (s SubscriberFuncs) StreamFrame(frame Frame) {
	if s.OnFrame != nil {
		s.OnFrame(frame)
	}
}

// StreamError implements Subscriber.
func (s SubscriberFuncs) StreamError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}

// Config holds construction parameters for a stream Client.
type Config struct {
	// StreamURL is the authenticated streaming GET endpoint
	// (e.g. "https://portal.example.com/api/events/stream"). Required.
	StreamURL string

	// Tokens supplies the bearer credential per connection attempt.
	// Required.
	Tokens credential.TokenSource

	// HTTPClient is used for the streaming request. If nil,
	// http.DefaultClient is used. The client must not set a global
	// timeout — the stream is expected to stay open indefinitely.
	HTTPClient *http.Client

	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger

	// Clock drives reconnect timers. If nil, the real clock. Tests
	// inject clockwork.NewFakeClock to step backoff deterministically.
	Clock clockwork.Clock

	// Reconnect tunes the backoff policy; zero fields take defaults.
	Reconnect ReconnectConfig
}

// Client owns one logical streaming connection to the portal's event
// endpoint: connect, parse, dispatch, reconnect. Unlike the usual
// process-wide singleton connection object, Client is an explicit
// owned instance — create one per authenticated portal session, and
// as many independent ones in tests as needed.
//
// Lifecycle: Start opens the connection (idempotent while running);
// Stop cancels the in-flight read and waits for the dispatch goroutine
// to exit, so no subscriber callback fires after Stop returns. All
// frame parsing and subscriber dispatch happens on a single goroutine
// per connection attempt, preserving delivery order end to end.
type Client struct {
	streamURL  string
	tokens     credential.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	policy     *ReconnectPolicy

	mu          sync.Mutex
	status      Status
	subscribers []Subscriber
	parent      context.Context
	cancel      context.CancelFunc
	attemptDone chan struct{}
	running     bool
	stopping    bool
	lastEventID string
}

// NewClient creates a stream client. It performs no I/O; call Start.
func NewClient(config Config) (*Client, error) {
	if config.StreamURL == "" {
		return nil, fmt.Errorf("realtime: StreamURL is required")
	}
	if config.Tokens == nil {
		return nil, fmt.Errorf("realtime: Tokens is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		streamURL:  config.StreamURL,
		tokens:     config.Tokens,
		httpClient: httpClient,
		logger:     logger,
		policy:     NewReconnectPolicy(clock, config.Reconnect),
		status:     StatusDisconnected,
	}, nil
}

// Subscribe attaches a subscriber. Subscribers are notified in
// registration order. Attach everything before Start — subscriptions
// added mid-stream only see subsequent notifications.
func (c *Client) Subscribe(subscriber Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, subscriber)
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Attempts returns the current consecutive reconnect-failure count.
func (c *Client) Attempts() int { return c.policy.Attempts() }

// Start opens the streaming connection. No-op if a connection or
// attempt is already active. ctx is the parent for the whole stream:
// cancelling it tears the connection down silently, like Stop.
//
// A missing credential fails immediately with *AuthError — returned
// and reported to subscribers — without any network I/O. Network and
// HTTP-status failures are not returned from Start; they surface to
// subscribers as the reconnect policy works through its budget.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running || c.stopping {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.parent = ctx
	c.mu.Unlock()

	// A fresh Start is a fresh logical connection: clear any stale
	// backoff state so a manual restart after exhaustion gets a full
	// attempt budget.
	c.policy.Reset()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		authErr := &AuthError{Err: err}
		c.failTerminal(authErr)
		return authErr
	}

	c.startAttempt(ctx, token)
	return nil
}

// Stop tears down the connection: cancels the in-flight stream read,
// stops any pending reconnect timer, and waits for the dispatch
// goroutine to exit. After Stop returns, no subscriber callback will
// fire. Idempotent. Status moves to disconnected without a
// notification — the caller initiated the teardown and already knows.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return
	}
	c.stopping = true
	cancel := c.cancel
	done := c.attemptDone
	c.cancel = nil
	c.attemptDone = nil
	c.mu.Unlock()

	c.policy.Cancel()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.running = false
	c.stopping = false
	c.status = StatusDisconnected
	c.mu.Unlock()
}

// startAttempt launches the read loop goroutine for one connection
// attempt. Refuses when the client is stopping or no longer running —
// a reconnect timer that fired just before Stop must not revive the
// connection after Stop has returned.
func (c *Client) startAttempt(ctx context.Context, token string) {
	c.mu.Lock()
	if c.stopping || !c.running {
		c.mu.Unlock()
		return
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	previous := c.cancel
	c.cancel = cancel
	done := make(chan struct{})
	c.attemptDone = done
	c.mu.Unlock()

	// The previous attempt has already ended; releasing its cancel
	// drops the registration on the parent context.
	if previous != nil {
		previous()
	}

	go func() {
		defer close(done)
		c.runAttempt(attemptCtx, token)
	}()
}

// runAttempt performs one connection attempt and, on success, runs the
// read loop until the stream ends. All subscriber callbacks for this
// attempt happen on this goroutine.
func (c *Client) runAttempt(ctx context.Context, token string) {
	c.setStatus(StatusConnecting)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL, nil)
	if err != nil {
		c.failTerminal(&ConnectionError{Op: "connect", Err: err})
		return
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "text/event-stream")
	request.Header.Set("Cache-Control", "no-cache")
	request.Header.Set("Accept-Encoding", "zstd, gzip")
	if cursor := c.cursor(); cursor != "" {
		request.Header.Set("Last-Event-ID", cursor)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			c.teardownSilently()
			return
		}
		c.handleFailure(&ConnectionError{Op: "connect", Err: err})
		return
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		response.Body.Close()
		// A non-success status is a connection failure, not a protocol
		// error: the endpoint was reachable but refused the stream.
		c.handleFailure(&ConnectionError{Op: "connect", StatusCode: response.StatusCode})
		return
	}

	body, err := decodeBody(response)
	if err != nil {
		response.Body.Close()
		c.handleFailure(&ConnectionError{Op: "connect", Err: err})
		return
	}
	defer body.Close()

	c.policy.Reset()
	c.setStatus(StatusConnected)
	c.logger.Info("event stream connected", "url", c.streamURL)

	parser := NewParser()
	buffer := make([]byte, 8192)
	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			for _, frame := range parser.Feed(buffer[:n]) {
				if fatal := c.deliver(frame); fatal {
					c.failTerminal(nil)
					return
				}
			}
			c.rememberCursor(parser.LastEventID())
		}
		if readErr != nil {
			if ctx.Err() != nil {
				c.teardownSilently()
				return
			}
			// Server closed or the network dropped. A frame that never
			// received its terminating blank line is still delivered.
			for _, frame := range parser.Flush() {
				if fatal := c.deliver(frame); fatal {
					c.failTerminal(nil)
					return
				}
			}
			c.rememberCursor(parser.LastEventID())
			c.handleFailure(&ConnectionError{Op: "read", Err: readErr})
			return
		}
	}
}

// deliver forwards one frame to subscribers and post-processes error
// frames. Returns true when the frame is a fatal authentication error,
// in which case the caller must tear the stream down without
// scheduling a reconnect.
func (c *Client) deliver(frame Frame) (fatal bool) {
	for _, subscriber := range c.snapshotSubscribers() {
		subscriber.StreamFrame(frame)
	}

	if frame.Type != EventError {
		return false
	}

	message := errorMessage(frame.Data)
	if errorKind(frame.Data) == ErrorKindAuthentication {
		c.logger.Warn("stream reported authentication failure", "message", message)
		c.notifyError(&AuthError{Reason: message})
		return true
	}

	if message == "" {
		message = "unspecified server error"
	}
	c.notifyError(fmt.Errorf("realtime: server reported error: %s", message))
	return false
}

// handleFailure processes a recoverable stream failure: report it,
// drop to disconnected, and schedule the next attempt. When the
// reconnect budget is exhausted the failure becomes terminal.
func (c *Client) handleFailure(connErr *ConnectionError) {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.notifyError(connErr)
	c.setStatus(StatusDisconnected)

	delay, err := c.policy.Schedule(c.reconnect)
	if err != nil {
		c.failTerminal(err)
		return
	}
	c.logger.Debug("reconnect scheduled",
		"delay", delay,
		"attempt", c.policy.Attempts(),
		"cause", connErr.Error(),
	)
}

// reconnect runs from the backoff timer: fetch a fresh token (it may
// have been refreshed since the last attempt) and open a new attempt.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.stopping || !c.running {
		c.mu.Unlock()
		return
	}
	ctx := c.parent
	c.mu.Unlock()

	token, err := c.tokens.Token(ctx)

	// Stop may have torn the client down while the token fetch was in
	// flight. Neither a new attempt nor a failure report may escape a
	// Stop that has already returned.
	c.mu.Lock()
	if c.stopping || !c.running {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err != nil {
		c.failTerminal(&AuthError{Err: err})
		return
	}
	c.startAttempt(ctx, token)
}

// failTerminal moves the client into the terminal error state: no
// reconnect, status error, running cleared. err may be nil when the
// failure was already reported to subscribers (fatal auth frame).
func (c *Client) failTerminal(err error) {
	c.policy.Cancel()
	if err != nil {
		c.notifyError(err)
	}
	c.setStatus(StatusError)
	c.mu.Lock()
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// teardownSilently handles caller-initiated cancellation (Stop or
// parent context). No subscriber callbacks — an aborted read is not a
// network error and must not trigger reconnect scheduling.
func (c *Client) teardownSilently() {
	c.mu.Lock()
	if c.stopping {
		// Stop owns the state transition and is waiting on this
		// goroutine's exit.
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.cancel = nil
	c.status = StatusDisconnected
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// setStatus updates the connection state and notifies subscribers of
// the transition. Unchanged states are not re-announced.
func (c *Client) setStatus(status Status) {
	c.mu.Lock()
	if c.status == status || c.stopping {
		c.mu.Unlock()
		return
	}
	c.status = status
	subscribers := make([]Subscriber, len(c.subscribers))
	copy(subscribers, c.subscribers)
	c.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber.StreamStatus(status)
	}
}

// notifyError reports an error to all subscribers.
func (c *Client) notifyError(err error) {
	for _, subscriber := range c.snapshotSubscribers() {
		subscriber.StreamError(err)
	}
}

func (c *Client) snapshotSubscribers() []Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	subscribers := make([]Subscriber, len(c.subscribers))
	copy(subscribers, c.subscribers)
	return subscribers
}

func (c *Client) cursor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

func (c *Client) rememberCursor(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastEventID = id
}

// decodeBody wraps the response body with the decoder matching its
// Content-Encoding. The stream endpoint may compress with zstd or gzip
// when the request advertises support; both decoders stream, so
// incremental chunk delivery is preserved.
func decodeBody(response *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(response.Header.Get("Content-Encoding")) {
	case "", "identity":
		return response.Body, nil
	case "zstd":
		decoder, err := zstd.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("initializing zstd decoder: %w", err)
		}
		return &compositeCloser{Reader: decoder.IOReadCloser(), underlying: response.Body}, nil
	case "gzip":
		reader, err := gzip.NewReader(response.Body)
		if err != nil {
			return nil, fmt.Errorf("initializing gzip decoder: %w", err)
		}
		return &compositeCloser{Reader: reader, underlying: response.Body}, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", response.Header.Get("Content-Encoding"))
	}
}

// compositeCloser closes both the decompression layer and the
// underlying response body.
type compositeCloser struct {
	io.Reader
	underlying io.Closer
}

func (c *compositeCloser) Close() error {
	if closer, ok := c.Reader.(io.Closer); ok {
		closer.Close()
	}
	return c.underlying.Close()
}
