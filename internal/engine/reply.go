package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/thedatamonk/spendly/internal/ledger"
	"github.com/thedatamonk/spendly/internal/present"
)

// Affordance tokens. Adapters hand them back verbatim when the user picks an option.
const (
	TokenConfirm      = "confirm:yes"
	TokenCancel       = "confirm:no"
	TokenChoiceCancel = "choice:cancel"

	choicePrefix = "choice:"
)

func ChoiceToken(i int) string { return choicePrefix + strconv.Itoa(i) }

// parseChoice returns the index carried by a choice token.
func parseChoice(token string) (int, bool) {
	rest, ok := strings.CutPrefix(token, choicePrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil {
		return -1, true
	}
	return i, true
}

type Option struct {
	Token string
	Label string
}

// Prompt is an interactive affordance attached to a reply.
type Prompt struct {
	Options []Option
}

type Reply struct {
	Text   string
	Prompt *Prompt
}

// Responder delivers replies for one conversation. Reply returns a reference
// to the sent message when it carries a prompt; Retract removes a prompt's
// options from an earlier message.
type Responder interface {
	Reply(ctx context.Context, r Reply) (string, error)
	Retract(ctx context.Context, ref string) error
}

func confirmPrompt() *Prompt {
	return &Prompt{Options: []Option{
		{Token: TokenConfirm, Label: "Yes ✓"},
		{Token: TokenCancel, Label: "No ✗"},
	}}
}

func choicePrompt(candidates []ledger.Obligation) *Prompt {
	opts := make([]Option, 0, len(candidates)+1)
	for i, c := range candidates {
		opts = append(opts, Option{Token: ChoiceToken(i), Label: present.CandidateLine(c)})
	}
	opts = append(opts, Option{Token: TokenChoiceCancel, Label: "Cancel"})
	return &Prompt{Options: opts}
}
