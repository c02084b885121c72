package transcribe

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWhisper struct {
	got  openai.AudioRequest
	body string
	err  error
}

func (f *fakeWhisper) CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.got = req
	b, _ := io.ReadAll(req.Reader)
	f.body = string(b)
	return openai.AudioResponse{Text: "  Rahul paid 500 \n"}, f.err
}

func TestTranscribe(t *testing.T) {
	f := &fakeWhisper{}
	text, err := NewWithTranscriber(f).Transcribe(context.Background(), "voice-message.ogg", strings.NewReader("OggS"))
	require.NoError(t, err)
	assert.Equal(t, "Rahul paid 500", text)
	assert.Equal(t, openai.Whisper1, f.got.Model)
	assert.Equal(t, "voice-message.ogg", f.got.FilePath)
	assert.Equal(t, "OggS", f.body)

	f.err = errors.New("quota")
	_, err = NewWithTranscriber(f).Transcribe(context.Background(), "a.ogg", strings.NewReader(""))
	assert.ErrorContains(t, err, "quota")
}

func TestIsAudio(t *testing.T) {
	tests := []struct {
		contentType, name string
		want              bool
	}{
		{"audio/ogg", "voice-message.ogg", true},
		{"", "memo.M4A", true},
		{"image/png", "receipt.png", false},
		{"", "notes.txt", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAudio(tt.contentType, tt.name), tt.name)
	}
}
