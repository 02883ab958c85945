package chat

import (
	"context"
	"fmt"
	"os"

	"github.com/fpang/gemini-media-chat/internal/filehandler"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// UploadedFile is the remote handle returned by an upload: identifier, URI,
// and processing state. It becomes unusable once the owning session is discarded.
type UploadedFile struct {
	Name     string
	URI      string
	MIMEType string
	State    genai.FileState
}

// remote abstracts the slice of the Gemini surface the session and upload
// gate drive, so tests can substitute a scripted service.
type remote interface {
	CreateChat(ctx context.Context, model string, cfg *genai.GenerateContentConfig, history []*genai.Content) (chatHandle, error)
	UploadFile(ctx context.Context, path string) (*UploadedFile, error)
	FileState(ctx context.Context, name string) (genai.FileState, error)
	ListFiles(ctx context.Context) ([]string, error)
	DeleteFile(ctx context.Context, name string) error
}

// chatHandle is one live multi-turn conversation bound to one credential.
type chatHandle interface {
	Send(ctx context.Context, parts []genai.Part) (string, error)
	History() []*genai.Content
}

// connectFunc opens a remote for one credential.
type connectFunc func(ctx context.Context, apiKey string) (remote, error)

// geminiRemote adapts *genai.Client to the remote interface.
type geminiRemote struct {
	client *genai.Client
}

// connectGemini builds a Gemini API client for the given credential.
func connectGemini(ctx context.Context, apiKey string) (remote, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiRemote{client: client}, nil
}

func (g *geminiRemote) CreateChat(ctx context.Context, model string, cfg *genai.GenerateContentConfig, history []*genai.Content) (chatHandle, error) {
	chat, err := g.client.Chats.Create(ctx, model, cfg, history)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

func (g *geminiRemote) UploadFile(ctx context.Context, path string) (*UploadedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	file, err := g.client.Files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType: filehandler.MIMEType(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	log.Debug().
		Str("name", file.Name).
		Str("uri", file.URI).
		Str("state", string(file.State)).
		Msg("File uploaded to Gemini")

	return &UploadedFile{
		Name:     file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    file.State,
	}, nil
}

func (g *geminiRemote) FileState(ctx context.Context, name string) (genai.FileState, error) {
	file, err := g.client.Files.Get(ctx, name, nil)
	if err != nil {
		return genai.FileStateUnspecified, fmt.Errorf("failed to get file state: %w", err)
	}
	return file.State, nil
}

func (g *geminiRemote) ListFiles(ctx context.Context) ([]string, error) {
	var names []string
	for file, err := range g.client.Files.All(ctx) {
		if err != nil {
			return names, fmt.Errorf("failed to list files: %w", err)
		}
		names = append(names, file.Name)
	}
	return names, nil
}

func (g *geminiRemote) DeleteFile(ctx context.Context, name string) error {
	if _, err := g.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// geminiChat adapts *genai.Chat to chatHandle.
type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) Send(ctx context.Context, parts []genai.Part) (string, error) {
	resp, err := c.chat.SendMessage(ctx, parts...)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("received empty response from Gemini API")
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("response contained no text")
	}
	return text, nil
}

func (c *geminiChat) History() []*genai.Content {
	return c.chat.History(false)
}
