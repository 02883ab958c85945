package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/genai"
)

func newTestGate(svc *fakeService, pollInterval, maxWait time.Duration) (*UploadGate, *[]time.Duration) {
	remote, _ := svc.connect(context.Background(), "key")
	gate := newUploadGate(remote, pollInterval, maxWait)
	var slept []time.Duration
	gate.sleep = func(d time.Duration) { slept = append(slept, d) }
	return gate, &slept
}

func TestAwaitActiveBecomesActiveAfterPolls(t *testing.T) {
	svc := &fakeService{
		pollStates: []genai.FileState{genai.FileStateProcessing, genai.FileStateActive},
	}
	gate, slept := newTestGate(svc, 5*time.Second, time.Minute)

	file := &UploadedFile{Name: "files/abc", State: genai.FileStateProcessing}
	if err := gate.AwaitActive(context.Background(), file); err != nil {
		t.Fatalf("AwaitActive() error = %v", err)
	}
	if file.State != genai.FileStateActive {
		t.Errorf("State = %v, want ACTIVE", file.State)
	}
	if len(*slept) != 2 {
		t.Errorf("slept %d times, want 2", len(*slept))
	}
	for _, d := range *slept {
		if d != 5*time.Second {
			t.Errorf("slept %v, want fixed 5s interval", d)
		}
	}
}

func TestAwaitActiveAlreadyActiveSkipsPolling(t *testing.T) {
	svc := &fakeService{}
	gate, slept := newTestGate(svc, time.Second, time.Minute)

	file := &UploadedFile{Name: "files/abc", State: genai.FileStateActive}
	if err := gate.AwaitActive(context.Background(), file); err != nil {
		t.Fatalf("AwaitActive() error = %v", err)
	}
	if len(*slept) != 0 {
		t.Errorf("slept %d times, want 0", len(*slept))
	}
}

func TestAwaitActiveFailedState(t *testing.T) {
	svc := &fakeService{
		pollStates: []genai.FileState{genai.FileStateFailed},
	}
	gate, _ := newTestGate(svc, time.Second, time.Minute)

	file := &UploadedFile{Name: "files/abc", State: genai.FileStateProcessing}
	err := gate.AwaitActive(context.Background(), file)
	if Classify(err) != KindMediaProcessingFailed {
		t.Fatalf("AwaitActive() error = %v, want media_processing_failed", err)
	}
}

func TestAwaitActiveWaitBudgetExhausted(t *testing.T) {
	// The remote never leaves PROCESSING; the gate must give up after the
	// budget instead of polling forever.
	svc := &fakeService{
		pollStates: []genai.FileState{
			genai.FileStateProcessing, genai.FileStateProcessing, genai.FileStateProcessing,
			genai.FileStateProcessing, genai.FileStateProcessing, genai.FileStateProcessing,
		},
	}
	gate, slept := newTestGate(svc, 5*time.Second, 15*time.Second)

	file := &UploadedFile{Name: "files/stuck", State: genai.FileStateProcessing}
	err := gate.AwaitActive(context.Background(), file)
	if Classify(err) != KindMediaProcessingTimeout {
		t.Fatalf("AwaitActive() error = %v, want media_processing_timeout", err)
	}
	if len(*slept) != 3 {
		t.Errorf("polled %d times, want 3 (15s budget / 5s interval)", len(*slept))
	}
}

func TestAwaitActiveHonorsContextCancellation(t *testing.T) {
	svc := &fakeService{
		pollStates: []genai.FileState{genai.FileStateProcessing, genai.FileStateProcessing},
	}
	gate, _ := newTestGate(svc, time.Second, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	file := &UploadedFile{Name: "files/abc", State: genai.FileStateProcessing}
	err := gate.AwaitActive(ctx, file)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitActive() error = %v, want context.Canceled", err)
	}
}

func TestUploadRecordsPath(t *testing.T) {
	svc := &fakeService{uploadState: genai.FileStateProcessing}
	gate, _ := newTestGate(svc, time.Second, time.Minute)

	file, err := gate.Upload(context.Background(), "/tmp/clip_part01_0-60.mp4")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if file.State != genai.FileStateProcessing {
		t.Errorf("State = %v, want PROCESSING", file.State)
	}
	if len(svc.uploads) != 1 || svc.uploads[0] != "/tmp/clip_part01_0-60.mp4" {
		t.Errorf("uploads = %v, want the segment path", svc.uploads)
	}
}
