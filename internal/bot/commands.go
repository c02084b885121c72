package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/ledger"
	"github.com/thedatamonk/spendly/internal/present"
)

const helpText = "**Spendly** keeps track of who owes whom.\n\n" +
	"Just tell me what happened:\n" +
	"• \"Rahul owes me 1067 for dinner\"\n" +
	"• \"Split 3200 between Amit and Priya\"\n" +
	"• \"Sunita took an advance of 5800, she'll repay 1000 a month\"\n" +
	"• \"I owe Rahul 5000\"\n" +
	"• \"Rahul paid 500\" or \"Shivam settled up\"\n" +
	"• \"How much does Sunita owe me?\"\n\n" +
	"I'll always ask before changing anything. Voice notes work too.\n\n" +
	"Commands: `/pending` `/settled` `/help`"

func slashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "pending",
			Description: "Show all pending obligations",
		},
		{
			Name:        "settled",
			Description: "Show settled obligations",
		},
		{
			Name:        "help",
			Description: "How to use Spendly",
		},
	}
}

func (b *Bot) registerCommands(appID string) error {
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, "", slashCommands()); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info("registered application commands")
	return nil
}

// commandReply renders the answer to a slash command.
func (b *Bot) commandReply(ctx context.Context, name string) string {
	switch name {
	case "pending":
		obs, err := b.store.List(ctx, ledger.Active)
		if err != nil {
			b.logger.Error("list pending", zap.Error(err))
			return fmt.Sprintf("Something went wrong: %v", err)
		}
		return present.PendingSummary(obs)
	case "settled":
		obs, err := b.store.List(ctx, ledger.Settled)
		if err != nil {
			b.logger.Error("list settled", zap.Error(err))
			return fmt.Sprintf("Something went wrong: %v", err)
		}
		return present.SettledSummary(obs)
	case "help":
		return helpText
	}
	return "Unknown command."
}

func (b *Bot) handleCommand(ctx context.Context, i *discordgo.Interaction) {
	name := i.ApplicationCommandData().Name
	parts := splitMessage(b.commandReply(ctx, name))

	err := b.out.respond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: parts[0]},
	})
	if err != nil {
		b.logger.Error("respond to command", zap.String("command", name), zap.Error(err))
		return
	}
	for _, part := range parts[1:] {
		if _, err := b.out.send(i.ChannelID, &discordgo.MessageSend{Content: part}); err != nil {
			b.logger.Error("send command output", zap.String("command", name), zap.Error(err))
			return
		}
	}
}
