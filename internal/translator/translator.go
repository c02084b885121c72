// Package translator asks an OpenAI-compatible chat model to interpret a message.
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/intent"
	"github.com/thedatamonk/spendly/internal/metrics"
	"github.com/thedatamonk/spendly/internal/present"
)

// DefaultBaseURL points at OpenRouter.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// ChatCompleter is the part of *openai.Client the translator uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Translator struct {
	client ChatCompleter
	model  string
	logger *zap.Logger
}

// NewClient builds a go-openai client for the given endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg.BaseURL = baseURL
	return openai.NewClientWithConfig(cfg)
}

func New(client ChatCompleter, model string, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{client: client, model: model, logger: logger}
}

func (t *Translator) Translate(ctx context.Context, req intent.Request) (intent.Result, error) {
	start := time.Now()
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Messages:    buildMessages(req),
		Temperature: 0.1,
	})
	if err != nil {
		metrics.RecordTranslation("error", time.Since(start))
		t.logger.Error("chat completion failed", zap.Error(err))
		return intent.Result{}, fmt.Errorf("%w: %v", intent.ErrTranslate, err)
	}
	if len(resp.Choices) == 0 {
		metrics.RecordTranslation("error", time.Since(start))
		return intent.Result{}, fmt.Errorf("%w: empty completion", intent.ErrTranslate)
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	t.logger.Debug("translator raw response", zap.String("raw", raw))

	var w intent.Wire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		metrics.RecordTranslation("malformed", time.Since(start))
		t.logger.Error("decode translator response", zap.Error(err))
		return intent.Result{}, fmt.Errorf("%w: decode response: %v", intent.ErrTranslate, err)
	}
	res, err := w.Result()
	if err != nil {
		metrics.RecordTranslation("malformed", time.Since(start))
		return intent.Result{}, err
	}
	metrics.RecordTranslation("ok", time.Since(start))
	return res, nil
}

func buildMessages(req intent.Request) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: systemPrompt}}
	if len(req.Active) > 0 {
		var b strings.Builder
		b.WriteString("Active obligations:\n")
		for _, o := range req.Active {
			fmt.Fprintf(&b, "- %s: %s remaining (%s, total %s, %s)",
				o.PersonName, present.FormatINR(o.RemainingAmount), o.Kind,
				present.FormatINR(o.TotalAmount), o.Direction)
			if o.Note != "" {
				b.WriteString(", " + o.Note)
			}
			b.WriteByte('\n')
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: b.String()})
	}
	for _, h := range req.History {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})
}

// stripFences drops markdown fence lines some models wrap around JSON.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(strings.TrimSpace(l), "```") {
			kept = append(kept, l)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
