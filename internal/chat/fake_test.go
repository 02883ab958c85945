package chat

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// fakeService scripts the remote side for session/controller tests. One
// service is shared across every connect so tests can assert on the full
// sequence of credentials, uploads, polls, and turns.
type fakeService struct {
	connects  []string
	sendCalls []string // prompt text of each turn, in order
	deletes   []string
	uploads   []string
	listNames []string

	// send scripts turn outcomes by call index; nil means reply-<call>.
	send func(call int, parts []genai.Part) (string, error)

	uploadState genai.FileState
	pollStates  []genai.FileState
	pollIdx     int

	connectErr error
	chatErr    error
	listErr    error
	deleteErr  error
}

func (s *fakeService) connect(ctx context.Context, key string) (remote, error) {
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	s.connects = append(s.connects, key)
	return &fakeRemote{svc: s}, nil
}

type fakeRemote struct {
	svc *fakeService
}

func (r *fakeRemote) CreateChat(ctx context.Context, model string, cfg *genai.GenerateContentConfig, history []*genai.Content) (chatHandle, error) {
	if r.svc.chatErr != nil {
		return nil, r.svc.chatErr
	}
	return &fakeHandle{svc: r.svc, history: history}, nil
}

func (r *fakeRemote) UploadFile(ctx context.Context, path string) (*UploadedFile, error) {
	r.svc.uploads = append(r.svc.uploads, path)
	state := r.svc.uploadState
	if state == "" {
		state = genai.FileStateActive
	}
	return &UploadedFile{
		Name:     fmt.Sprintf("files/fake-%d", len(r.svc.uploads)),
		URI:      fmt.Sprintf("uri://fake-%d", len(r.svc.uploads)),
		MIMEType: "video/mp4",
		State:    state,
	}, nil
}

func (r *fakeRemote) FileState(ctx context.Context, name string) (genai.FileState, error) {
	if r.svc.pollIdx < len(r.svc.pollStates) {
		state := r.svc.pollStates[r.svc.pollIdx]
		r.svc.pollIdx++
		return state, nil
	}
	return genai.FileStateActive, nil
}

func (r *fakeRemote) ListFiles(ctx context.Context) ([]string, error) {
	if r.svc.listErr != nil {
		return nil, r.svc.listErr
	}
	return r.svc.listNames, nil
}

func (r *fakeRemote) DeleteFile(ctx context.Context, name string) error {
	if r.svc.deleteErr != nil {
		return r.svc.deleteErr
	}
	r.svc.deletes = append(r.svc.deletes, name)
	return nil
}

type fakeHandle struct {
	svc     *fakeService
	history []*genai.Content
}

func (h *fakeHandle) Send(ctx context.Context, parts []genai.Part) (string, error) {
	call := len(h.svc.sendCalls)
	h.svc.sendCalls = append(h.svc.sendCalls, parts[0].Text)
	if h.svc.send != nil {
		return h.svc.send(call, parts)
	}
	return fmt.Sprintf("reply-%d", call), nil
}

func (h *fakeHandle) History() []*genai.Content {
	return h.history
}
