// Package config resolves runtime tunables from the environment.
//
// All values are optional except GEMINI_API_KEYS; every numeric tunable has a
// default chosen for the Gemini free tier. The loading mechanism is
// intentionally flat: read once at startup, pass the resulting value around.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Default model. Can be overridden via GEMINI_MODEL.
const DefaultModel = "gemini-2.5-flash"

// Defaults for the partitioning and upload tunables.
const (
	// DefaultMaxChunkMinutes is the per-request video budget, derived from the
	// model context window divided by the estimated per-second token cost.
	DefaultMaxChunkMinutes = 40

	// DefaultSizeCeilingBytes is the hard per-file upload ceiling (1 GiB).
	DefaultSizeCeilingBytes = int64(1) << 30

	// DefaultTargetSizeMB is the transcode target when a file exceeds the ceiling.
	DefaultTargetSizeMB = 400

	// DefaultAudioBitrateKb is the fixed audio bitrate assumed by the
	// size-targeting formula and requested from the encoder.
	DefaultAudioBitrateKb = 128

	// DefaultTargetHeight is the output height for size-capped transcodes.
	DefaultTargetHeight = 480

	DefaultUploadPollInterval = 5 * time.Second
	DefaultUploadMaxWait      = 10 * time.Minute
	DefaultSendTimeout        = 5 * time.Minute
	DefaultRetryBackoff       = 50 * time.Second
)

// Config carries every tunable the orchestration layer consumes.
type Config struct {
	// APIKeys is the ordered credential list from GEMINI_API_KEYS (comma-separated).
	APIKeys []string

	// Model is the Gemini model identifier.
	Model string

	// TempOutput is the root directory for segment and transcode outputs.
	TempOutput string

	MaxChunkMinutes  int
	SizeCeilingBytes int64
	TargetSizeMB     int
	AudioBitrateKb   int
	TargetHeight     int

	UploadPollInterval time.Duration
	UploadMaxWait      time.Duration
	SendTimeout        time.Duration
	RetryBackoff       time.Duration

	// ThreadReplies controls whether each multi-part prompt carries the
	// previous segment's reply for narrative continuity.
	ThreadReplies bool
}

// Load reads the configuration from the environment. It never fails: an empty
// key list is reported later by the key pool, so a media-less dry run still works.
func Load() *Config {
	cfg := &Config{
		APIKeys:            ParseKeys(os.Getenv("GEMINI_API_KEYS")),
		Model:              envOr("GEMINI_MODEL", DefaultModel),
		TempOutput:         envOr("TEMP_OUTPUT", "tempOutput"),
		MaxChunkMinutes:    envInt("GEMINI_MAX_CHUNK_MINUTES", DefaultMaxChunkMinutes),
		SizeCeilingBytes:   int64(envInt("GEMINI_SIZE_CEILING_MB", 1024)) * 1024 * 1024,
		TargetSizeMB:       envInt("GEMINI_TARGET_SIZE_MB", DefaultTargetSizeMB),
		AudioBitrateKb:     envInt("GEMINI_AUDIO_BITRATE_KB", DefaultAudioBitrateKb),
		TargetHeight:       envInt("GEMINI_TARGET_HEIGHT", DefaultTargetHeight),
		UploadPollInterval: envSeconds("GEMINI_UPLOAD_POLL_SECONDS", DefaultUploadPollInterval),
		UploadMaxWait:      envSeconds("GEMINI_UPLOAD_MAX_WAIT_SECONDS", DefaultUploadMaxWait),
		SendTimeout:        envSeconds("GEMINI_SEND_TIMEOUT_SECONDS", DefaultSendTimeout),
		RetryBackoff:       envSeconds("GEMINI_RETRY_BACKOFF_SECONDS", DefaultRetryBackoff),
		ThreadReplies:      os.Getenv("GEMINI_THREAD_REPLIES") != "0",
	}

	log.Debug().
		Int("api_keys", len(cfg.APIKeys)).
		Str("model", cfg.Model).
		Str("temp_output", cfg.TempOutput).
		Int("max_chunk_minutes", cfg.MaxChunkMinutes).
		Int64("size_ceiling_bytes", cfg.SizeCeilingBytes).
		Bool("thread_replies", cfg.ThreadReplies).
		Msg("Configuration loaded")

	return cfg
}

// ParseKeys splits a comma-separated credential list, trimming whitespace and
// dropping empty entries while preserving order.
func ParseKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("var", name).Str("value", v).Int("default", fallback).Msg("Ignoring invalid value, using default")
		return fallback
	}
	return n
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("var", name).Str("value", v).Msg("Ignoring invalid value, using default")
		return fallback
	}
	return time.Duration(n) * time.Second
}
