// Package bot connects the conversation engine to Discord.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/engine"
	"github.com/thedatamonk/spendly/internal/ledger"
	"github.com/thedatamonk/spendly/internal/transcribe"
)

const maxAttachmentSize = 25 << 20

type transcriber interface {
	Transcribe(ctx context.Context, name string, r io.Reader) (string, error)
}

type Bot struct {
	session     *discordgo.Session
	out         messenger
	engine      *engine.Engine
	store       ledger.Store
	transcriber transcriber
	http        *http.Client
	logger      *zap.Logger
	selfID      string
}

// New creates the Discord session. tr may be nil, in which case voice notes
// are answered with a request to type instead.
func New(token string, eng *engine.Engine, store ledger.Store, tr *transcribe.Client, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := newBot(sessionMessenger{s: session}, eng, store, logger)
	bot.session = session
	if tr != nil {
		bot.transcriber = tr
	}

	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return bot, nil
}

func newBot(out messenger, eng *engine.Engine, store ledger.Store, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		out:    out,
		engine: eng,
		store:  store,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger.Named("bot"),
	}
}

// Run keeps the gateway connection open until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.logger.Info("Discord bot is running")
	<-ctx.Done()
	return b.session.Close()
}

// conversationID keys session state by channel and user, so two people in
// one channel never share a pending confirmation.
func conversationID(channelID, userID string) string {
	return channelID + ":" + userID
}
