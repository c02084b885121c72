// Package transcribe turns voice notes into text with Whisper.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// AudioTranscriber is the part of *openai.Client used here.
type AudioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

type Client struct {
	client AudioTranscriber
}

func NewClient(apiKey string) *Client {
	return &Client{client: openai.NewClient(apiKey)}
}

func NewWithTranscriber(t AudioTranscriber) *Client {
	return &Client{client: t}
}

// Transcribe reads the audio from r. name is only used for its extension,
// which tells the service the audio format.
func (c *Client) Transcribe(ctx context.Context, name string, r io.Reader) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: name,
		Reader:   r,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", name, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// IsAudio reports whether an attachment looks like a voice note.
func IsAudio(contentType, filename string) bool {
	if strings.HasPrefix(contentType, "audio/") {
		return true
	}
	lower := strings.ToLower(filename)
	for _, ext := range []string{".ogg", ".oga", ".mp3", ".m4a", ".wav", ".webm"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
