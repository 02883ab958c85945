package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestNew_SourceDimension(t *testing.T) {
	initOnce.Do(func() {}) // Reset once
	sourceName = "chat-worker"

	r := New("GeminiMediaChat")
	if r.namespace != "GeminiMediaChat" {
		t.Errorf("expected namespace GeminiMediaChat, got %s", r.namespace)
	}
	if r.dimensions["Source"] != "chat-worker" {
		t.Errorf("expected Source dimension chat-worker, got %s", r.dimensions["Source"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	sourceName = "" // Clear for test isolation

	rec := New("GeminiMediaChat")
	rec.Dimension("Operation", "sendTurn")
	rec.Metric("GeminiApiLatencyMs", 1234.5, UnitMilliseconds)
	rec.Count("GeminiApiCalls")
	rec.Property("runId", "abc-123")
	rec.Flush()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, buf.String())
	}

	awsDir, ok := doc["_aws"].(map[string]interface{})
	if !ok {
		t.Fatal("missing or malformed _aws directive in EMF output")
	}
	if _, ok := awsDir["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}

	cwArr, ok := awsDir["CloudWatchMetrics"].([]interface{})
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	cw := cwArr[0].(map[string]interface{})
	if cw["Namespace"] != "GeminiMediaChat" {
		t.Errorf("expected namespace GeminiMediaChat, got %v", cw["Namespace"])
	}

	if doc["Operation"] != "sendTurn" {
		t.Errorf("expected Operation dimension sendTurn, got %v", doc["Operation"])
	}
	if doc["GeminiApiLatencyMs"] != 1234.5 {
		t.Errorf("expected GeminiApiLatencyMs 1234.5, got %v", doc["GeminiApiLatencyMs"])
	}
	if doc["runId"] != "abc-123" {
		t.Errorf("expected runId property abc-123, got %v", doc["runId"])
	}
}

func TestRecorder_EmptyFlushIsSilent(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	New("GeminiMediaChat").Dimension("Operation", "noop").Flush()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.Len() != 0 {
		t.Errorf("expected no output for metric-less flush, got %q", buf.String())
	}
}
