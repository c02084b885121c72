package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/engine"
	"github.com/thedatamonk/spendly/internal/transcribe"
)

const (
	msgVoiceUnavailable = "Voice notes aren't enabled. Please type your message instead."
	msgVoiceFailed      = "Couldn't make out that voice note. Please try again or type it."
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.selfID = event.User.ID
	b.logger.Info("connected", zap.String("user", event.User.Username))

	if err := b.registerCommands(event.User.ID); err != nil {
		b.logger.Error("failed to register commands", zap.Error(err))
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	b.handleMessage(context.Background(), m.Message)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.handleInteraction(context.Background(), i.Interaction)
}

func (b *Bot) handleMessage(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	text, ok := b.addressedText(m)
	if !ok {
		return
	}
	log := b.logger.With(zap.String("channel", m.ChannelID), zap.String("user", m.Author.ID))
	out := &channelResponder{out: b.out, channelID: m.ChannelID}

	if err := b.out.typing(m.ChannelID); err != nil {
		log.Debug("typing indicator", zap.Error(err))
	}

	if text == "" {
		att := voiceAttachment(m.Attachments)
		if att == nil {
			return
		}
		transcript, reply := b.transcribe(ctx, att)
		if reply != "" {
			if _, err := out.Reply(ctx, engine.Reply{Text: reply}); err != nil {
				log.Error("failed to reply", zap.Error(err))
			}
			return
		}
		log.Info("voice note transcribed", zap.String("attachment", att.Filename))
		text = transcript
	}

	if err := b.engine.HandleText(ctx, conversationID(m.ChannelID, m.Author.ID), out, text); err != nil {
		log.Error("failed to handle message", zap.Error(err))
	}
}

func (b *Bot) handleInteraction(ctx context.Context, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		user := interactionUser(i)
		if user == nil {
			return
		}
		token := componentToken(i.MessageComponentData())
		out := newInteractionResponder(b.out, i)
		if err := b.engine.HandleToken(ctx, conversationID(i.ChannelID, user.ID), out, token); err != nil {
			b.logger.Error("failed to handle button",
				zap.String("channel", i.ChannelID),
				zap.String("user", user.ID),
				zap.String("token", token),
				zap.Error(err),
			)
		}
	}
}

// addressedText returns the message text when the message is meant for the
// bot: any direct message, or a guild message that mentions it.
func (b *Bot) addressedText(m *discordgo.Message) (string, bool) {
	content := strings.TrimSpace(m.Content)
	if m.GuildID == "" {
		return content, true
	}
	for _, u := range m.Mentions {
		if u.ID == b.selfID {
			content = strings.ReplaceAll(content, "<@"+b.selfID+">", "")
			content = strings.ReplaceAll(content, "<@!"+b.selfID+">", "")
			return strings.TrimSpace(content), true
		}
	}
	return "", false
}

// transcribe downloads and transcribes a voice note. When the note cannot
// be used it returns the reply to send instead.
func (b *Bot) transcribe(ctx context.Context, att *discordgo.MessageAttachment) (string, string) {
	if b.transcriber == nil {
		return "", msgVoiceUnavailable
	}
	body, err := b.download(ctx, att.URL)
	if err != nil {
		b.logger.Warn("download voice note", zap.String("attachment", att.Filename), zap.Error(err))
		return "", msgVoiceFailed
	}
	defer body.Close()

	text, err := b.transcriber.Transcribe(ctx, att.Filename, io.LimitReader(body, maxAttachmentSize))
	if err != nil || text == "" {
		b.logger.Warn("transcribe voice note", zap.String("attachment", att.Filename), zap.Error(err))
		return "", msgVoiceFailed
	}
	return text, ""
}

func (b *Bot) download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

func voiceAttachment(atts []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, att := range atts {
		if transcribe.IsAudio(att.ContentType, att.Filename) {
			return att
		}
	}
	return nil
}

func interactionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
