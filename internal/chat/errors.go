package chat

import (
	"errors"
	"fmt"

	"github.com/fpang/gemini-media-chat/internal/filehandler"
	"github.com/fpang/gemini-media-chat/internal/keypool"
	"google.golang.org/genai"
)

// ErrorKind categorizes failures so the controller's retry policy can match
// on structure instead of error-message substrings.
type ErrorKind int

const (
	// KindUnknown is any unrecognized remote or transport error. Never retried.
	KindUnknown ErrorKind = iota
	// KindConfiguration means no credentials were configured. Fatal.
	KindConfiguration
	// KindSessionInit means the remote rejected the session handshake.
	KindSessionInit
	// KindQuotaExhausted means the current credential is over quota.
	// Recovered by rotating to the next credential.
	KindQuotaExhausted
	// KindTransientUnavailable is a transient service-unavailable condition.
	// Recovered once per segment with a fixed backoff.
	KindTransientUnavailable
	// KindTimeout means the bounded wait for a reply expired.
	KindTimeout
	// KindMediaProcessingFailed means the uploaded file reached the FAILED state.
	KindMediaProcessingFailed
	// KindMediaProcessingTimeout means the upload never became ACTIVE in budget.
	KindMediaProcessingTimeout
	// KindCompressionFailed means the external transcoder reported failure.
	KindCompressionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindSessionInit:
		return "session_init"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindTransientUnavailable:
		return "transient_unavailable"
	case KindTimeout:
		return "timeout"
	case KindMediaProcessingFailed:
		return "media_processing_failed"
	case KindMediaProcessingTimeout:
		return "media_processing_timeout"
	case KindCompressionFailed:
		return "compression_failed"
	default:
		return "unknown"
	}
}

// ChatError is the classified failure surfaced by the controller. Segment is
// the 0-based index the failure occurred on, or -1 when not segment-scoped.
type ChatError struct {
	Kind    ErrorKind
	Segment int
	Err     error
}

func (e *ChatError) Error() string {
	if e.Segment >= 0 {
		return fmt.Sprintf("segment %d: %s: %v", e.Segment, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// Classify maps an error to the taxonomy. Remote errors are matched on the
// structured *genai.APIError code and status, never on message text.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return chatErr.Kind
	}
	if errors.Is(err, keypool.ErrNoCredentials) {
		return KindConfiguration
	}
	if errors.Is(err, filehandler.ErrTranscodeFailed) {
		return KindCompressionFailed
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED":
			return KindQuotaExhausted
		case apiErr.Code == 503 || apiErr.Status == "UNAVAILABLE":
			return KindTransientUnavailable
		}
	}

	return KindUnknown
}

// classified wraps err in a ChatError for segment, preserving an existing
// ChatError's kind and attaching the segment if it lacked one.
func classified(err error, kind ErrorKind, segment int) *ChatError {
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		if chatErr.Segment < 0 {
			chatErr.Segment = segment
		}
		return chatErr
	}
	return &ChatError{Kind: kind, Segment: segment, Err: err}
}
