package chat

import (
	"context"
	"time"

	"github.com/fpang/gemini-media-chat/internal/keypool"
	"github.com/fpang/gemini-media-chat/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// SessionOptions configures the model and generation behavior of a session.
type SessionOptions struct {
	Model             string
	SystemInstruction string
	// ResponseMIMEType tags the expected reply format (default application/json).
	ResponseMIMEType string
	// ResponseSchema optionally constrains replies to a structured shape.
	ResponseSchema *genai.Schema
	Tools          []*genai.Tool
	ThinkingConfig *genai.ThinkingConfig
}

// Session wraps one live chat handle bound to one credential from the pool.
// It holds at most one handle: Initialize discards the previous one, which is
// never reused after replacement. Not safe for concurrent use.
type Session struct {
	opts    SessionOptions
	pool    *keypool.Pool
	connect connectFunc

	remote  remote
	handle  chatHandle
	history []*genai.Content
}

// NewSession creates a Session drawing credentials from pool. No remote call
// is made until Initialize.
func NewSession(pool *keypool.Pool, opts SessionOptions) *Session {
	if opts.ResponseMIMEType == "" {
		opts.ResponseMIMEType = "application/json"
	}
	return &Session{
		opts:    opts,
		pool:    pool,
		connect: connectGemini,
	}
}

// ApplyOverrides replaces the session's instruction, schema, or response MIME
// type for subsequent turns. Empty/nil values leave the current setting alone.
func (s *Session) ApplyOverrides(systemInstruction string, schema *genai.Schema, responseMIMEType string) {
	if systemInstruction != "" {
		s.opts.SystemInstruction = systemInstruction
	}
	if schema != nil {
		s.opts.ResponseSchema = schema
	}
	if responseMIMEType != "" {
		s.opts.ResponseMIMEType = responseMIMEType
	}
}

// Initialize acquires the next credential from the pool and opens a fresh
// chat handle carrying the accumulated history. Any previous handle is
// discarded. Fails with a session_init ChatError if the remote rejects the
// handshake.
func (s *Session) Initialize(ctx context.Context) error {
	// Carry history forward from the handle being replaced.
	if s.handle != nil {
		s.history = s.handle.History()
	}

	key := s.pool.Next()
	r, err := s.connect(ctx, key)
	if err != nil {
		return &ChatError{Kind: KindSessionInit, Segment: -1, Err: err}
	}

	handle, err := r.CreateChat(ctx, s.opts.Model, s.generateConfig(), s.history)
	if err != nil {
		return &ChatError{Kind: KindSessionInit, Segment: -1, Err: err}
	}

	s.remote = r
	s.handle = handle

	log.Info().
		Str("model", s.opts.Model).
		Int("history_turns", len(s.history)).
		Msg("Chat session initialized")

	return nil
}

// Ready reports whether the session has a live chat handle.
func (s *Session) Ready() bool {
	return s.handle != nil
}

// History returns the conversation turns accumulated so far.
func (s *Session) History() []*genai.Content {
	if s.handle != nil {
		return s.handle.History()
	}
	return s.history
}

// SendTurn sends one turn and returns the reply text, racing the remote call
// against a hard wall-clock deadline. The deadline is independent of any
// transport-level timeout: if it fires first the in-flight call is abandoned
// (cancelled best-effort, its eventual result discarded) and a timeout
// ChatError is returned. Each call starts a fresh goroutine, so retries never
// stack onto an earlier in-flight call.
func (s *Session) SendTurn(ctx context.Context, parts []genai.Part, timeout time.Duration) (string, error) {
	handle := s.handle

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	// Buffered so the abandoned call can complete without a receiver.
	ch := make(chan outcome, 1)

	start := time.Now()
	go func() {
		text, err := handle.Send(callCtx, parts)
		ch <- outcome{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		elapsed := time.Since(start)
		m := metrics.New("GeminiMediaChat").
			Dimension("Operation", "sendTurn").
			Metric("GeminiApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Count("GeminiApiCalls")
		if out.err != nil {
			m.Count("GeminiApiErrors")
		}
		m.Flush()

		if out.err != nil {
			return "", out.err
		}
		log.Debug().
			Int("reply_length", len(out.text)).
			Dur("duration", elapsed).
			Msg("Turn reply received")
		return out.text, nil

	case <-timer.C:
		metrics.New("GeminiMediaChat").
			Dimension("Operation", "sendTurn").
			Count("GeminiApiTimeouts").
			Flush()
		log.Error().Dur("timeout", timeout).Msg("Turn timed out waiting for reply")
		return "", &ChatError{Kind: KindTimeout, Segment: -1, Err: context.DeadlineExceeded}
	}
}

// DeleteRemoteFiles best-effort deletes every file the service has stored for
// the current credential. Failures are logged and swallowed: this is cleanup,
// not correctness.
func (s *Session) DeleteRemoteFiles(ctx context.Context) {
	if s.remote == nil {
		return
	}

	names, err := s.remote.ListFiles(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list remote files for cleanup")
	}
	for _, name := range names {
		if err := s.remote.DeleteFile(ctx, name); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Failed to delete remote file")
			continue
		}
		log.Debug().Str("file", name).Msg("Remote file deleted")
	}
}
