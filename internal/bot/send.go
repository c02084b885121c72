package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/thedatamonk/spendly/internal/engine"
)

const (
	maxMessageLen    = 2000
	maxButtonsPerRow = 5
	maxRows          = 5
	maxMenuOptions   = 25

	menuPrefix = "menu:"
)

// messenger is the part of the Discord REST surface the adapter needs.
type messenger interface {
	send(channelID string, m *discordgo.MessageSend) (*discordgo.Message, error)
	edit(m *discordgo.MessageEdit) error
	respond(i *discordgo.Interaction, r *discordgo.InteractionResponse) error
	typing(channelID string) error
}

type sessionMessenger struct {
	s *discordgo.Session
}

func (m sessionMessenger) send(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return m.s.ChannelMessageSendComplex(channelID, data)
}

func (m sessionMessenger) edit(data *discordgo.MessageEdit) error {
	_, err := m.s.ChannelMessageEditComplex(data)
	return err
}

func (m sessionMessenger) respond(i *discordgo.Interaction, r *discordgo.InteractionResponse) error {
	return m.s.InteractionRespond(i, r)
}

func (m sessionMessenger) typing(channelID string) error {
	return m.s.ChannelTyping(channelID)
}

// channelResponder posts replies as new messages in a channel.
type channelResponder struct {
	out       messenger
	channelID string
}

func (c *channelResponder) Reply(ctx context.Context, r engine.Reply) (string, error) {
	return c.sendParts(splitMessage(r.Text), components(r.Prompt))
}

// sendParts posts each part in order. Buttons go on the last part, whose ID
// is returned when there are buttons.
func (c *channelResponder) sendParts(parts []string, comps []discordgo.MessageComponent) (string, error) {
	var last *discordgo.Message
	for i, part := range parts {
		data := &discordgo.MessageSend{Content: part}
		if i == len(parts)-1 && len(comps) > 0 {
			data.Components = comps
		}
		msg, err := c.out.send(c.channelID, data)
		if err != nil {
			return "", err
		}
		last = msg
	}
	if len(comps) == 0 || last == nil {
		return "", nil
	}
	return last.ID, nil
}

// Retract strips the buttons from an earlier message and keeps its text.
func (c *channelResponder) Retract(ctx context.Context, ref string) error {
	return c.out.edit(&discordgo.MessageEdit{
		ID:         ref,
		Channel:    c.channelID,
		Components: []discordgo.MessageComponent{},
	})
}

// interactionResponder answers a button press by rewriting the message that
// carried the button. Anything beyond the first reply goes to the channel.
type interactionResponder struct {
	channelResponder
	interaction *discordgo.Interaction
	answered    bool
}

func newInteractionResponder(out messenger, i *discordgo.Interaction) *interactionResponder {
	return &interactionResponder{
		channelResponder: channelResponder{out: out, channelID: i.ChannelID},
		interaction:      i,
	}
}

func (r *interactionResponder) Reply(ctx context.Context, rep engine.Reply) (string, error) {
	if r.answered {
		return r.channelResponder.Reply(ctx, rep)
	}
	r.answered = true

	parts := splitMessage(rep.Text)
	comps := components(rep.Prompt)
	inline := []discordgo.MessageComponent{}
	if len(parts) == 1 && len(comps) > 0 {
		inline = comps
	}
	err := r.out.respond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    parts[0],
			Components: inline,
		},
	})
	if err != nil {
		return "", err
	}
	if len(parts) > 1 {
		return r.sendParts(parts[1:], comps)
	}
	if len(comps) > 0 && r.interaction.Message != nil {
		return r.interaction.Message.ID, nil
	}
	return "", nil
}

// components lays prompt options out as button rows. When there are more
// options than buttons fit, the choices move into select menus and the
// cancel button gets a row of its own.
func components(p *engine.Prompt) []discordgo.MessageComponent {
	if p == nil || len(p.Options) == 0 {
		return nil
	}
	if len(p.Options) <= maxButtonsPerRow*maxRows {
		return buttonRows(p.Options)
	}

	var choices, controls []engine.Option
	for _, opt := range p.Options {
		if opt.Token == engine.TokenChoiceCancel || opt.Token == engine.TokenCancel {
			controls = append(controls, opt)
		} else {
			choices = append(choices, opt)
		}
	}

	var rows []discordgo.MessageComponent
	for i := 0; i < len(choices) && len(rows) < maxRows-1; i += maxMenuOptions {
		chunk := choices[i:min(i+maxMenuOptions, len(choices))]
		options := make([]discordgo.SelectMenuOption, 0, len(chunk))
		for _, opt := range chunk {
			options = append(options, discordgo.SelectMenuOption{Label: opt.Label, Value: opt.Token})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    menuPrefix + strconv.Itoa(len(rows)),
				Placeholder: fmt.Sprintf("Choose %d-%d of %d", i+1, i+len(chunk), len(choices)),
				Options:     options,
			},
		}})
	}
	return append(rows, buttonRows(controls)...)
}

func buttonRows(opts []engine.Option) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for _, opt := range opts {
		row = append(row, discordgo.Button{
			Label:    opt.Label,
			Style:    buttonStyle(opt.Token),
			CustomID: opt.Token,
		})
		if len(row) == maxButtonsPerRow {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

// componentToken is the engine token an interaction carries: the picked
// value for a select menu, the custom ID for a button.
func componentToken(data discordgo.MessageComponentInteractionData) string {
	if strings.HasPrefix(data.CustomID, menuPrefix) && len(data.Values) > 0 {
		return data.Values[0]
	}
	return data.CustomID
}

func buttonStyle(token string) discordgo.ButtonStyle {
	switch token {
	case engine.TokenConfirm:
		return discordgo.SuccessButton
	case engine.TokenCancel:
		return discordgo.DangerButton
	case engine.TokenChoiceCancel:
		return discordgo.SecondaryButton
	default:
		return discordgo.PrimaryButton
	}
}

// splitMessage breaks text into parts Discord accepts, preferring line breaks.
// It always returns at least one part.
func splitMessage(text string) []string {
	if text == "" {
		return []string{"…"}
	}
	var parts []string
	var buf strings.Builder
	bufLen := 0
	flush := func() {
		if buf.Len() > 0 {
			parts = append(parts, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > maxMessageLen {
			flush()
			parts = append(parts, string(runes[:maxMessageLen]))
			runes = runes[maxMessageLen:]
		}
		n := len(runes)
		sep := 0
		if bufLen > 0 {
			sep = 1
		}
		if bufLen+sep+n > maxMessageLen {
			flush()
			sep = 0
		}
		if sep == 1 {
			buf.WriteString("\n")
		}
		buf.WriteString(string(runes))
		bufLen += sep + n
	}
	flush()
	if len(parts) == 0 {
		return []string{"…"}
	}
	return parts
}
