package config

import (
	"testing"
	"time"
)

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "key-a", []string{"key-a"}},
		{"multiple", "key-a,key-b,key-c", []string{"key-a", "key-b", "key-c"}},
		{"whitespace", " key-a , key-b ", []string{"key-a", "key-b"}},
		{"empty entries", "key-a,,key-b,", []string{"key-a", "key-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKeys(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseKeys(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseKeys(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("TEMP_OUTPUT", "")
	t.Setenv("GEMINI_THREAD_REPLIES", "")

	cfg := Load()

	if cfg.Model != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, cfg.Model)
	}
	if cfg.TempOutput != "tempOutput" {
		t.Errorf("expected default temp output, got %q", cfg.TempOutput)
	}
	if cfg.MaxChunkMinutes != DefaultMaxChunkMinutes {
		t.Errorf("expected default chunk minutes %d, got %d", DefaultMaxChunkMinutes, cfg.MaxChunkMinutes)
	}
	if cfg.SizeCeilingBytes != DefaultSizeCeilingBytes {
		t.Errorf("expected default size ceiling %d, got %d", DefaultSizeCeilingBytes, cfg.SizeCeilingBytes)
	}
	if !cfg.ThreadReplies {
		t.Error("expected reply threading on by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "a,b")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_MAX_CHUNK_MINUTES", "25")
	t.Setenv("GEMINI_SEND_TIMEOUT_SECONDS", "120")
	t.Setenv("GEMINI_THREAD_REPLIES", "0")

	cfg := Load()

	if len(cfg.APIKeys) != 2 {
		t.Errorf("expected 2 keys, got %d", len(cfg.APIKeys))
	}
	if cfg.Model != "gemini-2.5-pro" {
		t.Errorf("expected model override, got %q", cfg.Model)
	}
	if cfg.MaxChunkMinutes != 25 {
		t.Errorf("expected chunk minutes 25, got %d", cfg.MaxChunkMinutes)
	}
	if cfg.SendTimeout != 120*time.Second {
		t.Errorf("expected send timeout 120s, got %v", cfg.SendTimeout)
	}
	if cfg.ThreadReplies {
		t.Error("expected reply threading off")
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("GEMINI_MAX_CHUNK_MINUTES", "not-a-number")
	cfg := Load()
	if cfg.MaxChunkMinutes != DefaultMaxChunkMinutes {
		t.Errorf("expected fallback %d, got %d", DefaultMaxChunkMinutes, cfg.MaxChunkMinutes)
	}
}
