// Package engine resolves translated chat messages into ledger changes. It
// owns the clarification loop, the confirm/cancel handshake and the
// disambiguation step when a name matches several open obligations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/intent"
	"github.com/thedatamonk/spendly/internal/ledger"
	"github.com/thedatamonk/spendly/internal/metrics"
	"github.com/thedatamonk/spendly/internal/present"
	"github.com/thedatamonk/spendly/internal/session"
)

const (
	msgNotUnderstood   = "I couldn't understand that. Could you rephrase?"
	msgNothingPending  = "Nothing to confirm. Send a new message."
	msgCancelled       = "Cancelled."
	msgSessionExpired  = "Session expired. Send a new message."
	msgInvalidChoice   = "Invalid choice. Send a new message to start over."
	msgPromptExpired   = "This prompt has expired. Send a new message."
	msgMissingFields   = "Missing person or amount. Please try again."
	msgNoPerson        = "Couldn't tell who this is about. Please try again."
	msgUnknownAction   = "I'm not sure what to do with that."
	msgDefaultConfirm  = "Should I go ahead?"
	msgCandidateGone   = "That obligation no longer exists."
	msgSomethingFailed = "Something went wrong: %v"
)

// MissingFieldError reports an add intent without persons or amount.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing " + e.Field
}

type Engine struct {
	translator intent.Translator
	store      ledger.Store
	sessions   *session.Manager
	logger     *zap.Logger
	newGroupID func() string
}

func New(tr intent.Translator, store ledger.Store, sessions *session.Manager, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		translator: tr,
		store:      store,
		sessions:   sessions,
		logger:     logger,
		newGroupID: uuid.NewString,
	}
}

// HandleText runs one free-text turn for the conversation.
func (e *Engine) HandleText(ctx context.Context, conv string, out Responder, text string) error {
	log := e.logger.With(zap.String("conversation", conv))
	return e.sessions.Do(ctx, conv, func(turn *session.Turn) error {
		if turn.PromptRef != "" && turn.HasPending() {
			if err := out.Retract(ctx, turn.PromptRef); err != nil {
				log.Warn("retract stale prompt", zap.Error(err))
			}
		}
		turn.ClearPending()

		active, err := e.store.List(ctx, ledger.Active)
		if err != nil {
			metrics.RecordTurn("text", "store_error")
			return e.say(ctx, out, fmt.Sprintf(msgSomethingFailed, err))
		}

		res, err := e.translator.Translate(ctx, intent.Request{Message: text, Active: active, History: turn.History})
		if err != nil {
			log.Warn("translate failed", zap.Error(err))
			metrics.RecordTurn("text", "translate_error")
			return e.say(ctx, out, msgNotUnderstood)
		}
		log.Info("translated", zap.String("action", res.Intent.Action()), zap.Bool("ambiguous", res.Ambiguous))

		if res.Ambiguous {
			question := res.Question
			if question == "" {
				question = res.Message
			}
			turn.AppendHistory(intent.RoleUser, text)
			turn.AppendHistory(intent.RoleAssistant, question)
			metrics.RecordTurn("text", "clarify")
			return e.say(ctx, out, question)
		}

		turn.ClearHistory()
		switch in := res.Intent.(type) {
		case intent.Chitchat, intent.OffTopic:
			metrics.RecordTurn("text", "conversation")
			return e.say(ctx, out, res.Message)
		case intent.Query:
			metrics.RecordTurn("text", "query")
			return e.say(ctx, out, e.answer(ctx, in))
		case intent.Mutation:
			msg := res.Message
			if msg == "" {
				msg = msgDefaultConfirm
			}
			ref, err := out.Reply(ctx, Reply{Text: msg, Prompt: confirmPrompt()})
			if err != nil {
				return err
			}
			turn.SetPending(in, ref)
			metrics.RecordTurn("text", "confirm")
			return nil
		default:
			metrics.RecordTurn("text", "unknown")
			return e.say(ctx, out, msgUnknownAction)
		}
	})
}

// HandleToken runs a turn for an affordance the user selected.
func (e *Engine) HandleToken(ctx context.Context, conv string, out Responder, token string) error {
	log := e.logger.With(zap.String("conversation", conv), zap.String("token", token))
	return e.sessions.Do(ctx, conv, func(turn *session.Turn) error {
		switch token {
		case TokenCancel:
			turn.ClearPending()
			turn.ClearHistory()
			metrics.RecordTurn("token", "cancel")
			return e.say(ctx, out, msgCancelled)

		case TokenConfirm:
			pending := turn.Pending
			if pending == nil {
				metrics.RecordTurn("token", "nothing_pending")
				return e.say(ctx, out, msgNothingPending)
			}
			turn.ClearPending()
			turn.ClearHistory()
			if err := turn.Commit(ctx); err != nil {
				return e.say(ctx, out, fmt.Sprintf(msgSomethingFailed, err))
			}
			log.Info("confirmed", zap.String("action", pending.Action()))
			metrics.RecordTurn("token", "confirmed")
			return e.confirm(ctx, turn, out, pending)
		}

		idx, ok := parseChoice(token)
		if !ok {
			metrics.RecordTurn("token", "expired")
			return e.say(ctx, out, msgPromptExpired)
		}
		choice := turn.Choice
		if choice == nil {
			metrics.RecordTurn("token", "expired")
			return e.say(ctx, out, msgSessionExpired)
		}
		turn.ClearPending()
		if err := turn.Commit(ctx); err != nil {
			return e.say(ctx, out, fmt.Sprintf(msgSomethingFailed, err))
		}
		if token == TokenChoiceCancel {
			metrics.RecordTurn("token", "cancel")
			return e.say(ctx, out, msgCancelled)
		}
		if idx < 0 || idx >= len(choice.Candidates) {
			metrics.RecordTurn("token", "invalid_choice")
			return e.say(ctx, out, msgInvalidChoice)
		}

		o, err := e.store.Get(ctx, choice.Candidates[idx].ID)
		if errors.Is(err, ledger.ErrNotFound) {
			return e.say(ctx, out, msgCandidateGone)
		}
		if err != nil {
			return e.say(ctx, out, fmt.Sprintf(msgSomethingFailed, err))
		}
		// Settled since the prompt went out; it is no longer a candidate.
		if o.Status == ledger.Settled {
			return e.say(ctx, out, msgCandidateGone)
		}
		log.Info("choice resolved", zap.String("obligation_id", o.ID), zap.String("action", choice.Intent.Action()))
		metrics.RecordTurn("token", "chosen")
		line, err := e.applyOne(ctx, choice.Intent, o)
		if err != nil {
			return e.say(ctx, out, fmt.Sprintf(msgSomethingFailed, err))
		}
		return e.say(ctx, out, line)
	})
}

func (e *Engine) confirm(ctx context.Context, turn *session.Turn, out Responder, pending intent.Mutation) error {
	if add, ok := pending.(intent.Add); ok {
		text, err := e.add(ctx, add)
		var missing *MissingFieldError
		if errors.As(err, &missing) {
			text = msgMissingFields
		}
		return e.say(ctx, out, text)
	}

	if len(pending.Targets()) == 0 {
		return e.say(ctx, out, msgNoPerson)
	}
	var lines []string
	for _, person := range pending.Targets() {
		matches, err := e.store.ListByPerson(ctx, person, ledger.Active)
		if err != nil {
			lines = append(lines, fmt.Sprintf(msgSomethingFailed, err))
			break
		}
		if len(matches) == 0 {
			lines = append(lines, fmt.Sprintf("No active obligation found for %s.", person))
			continue
		}
		if len(matches) > 1 {
			lines = append(lines, fmt.Sprintf("%s has %d active obligations. Which one?", person, len(matches)))
			ref, err := out.Reply(ctx, Reply{Text: strings.Join(lines, "\n"), Prompt: choicePrompt(matches)})
			if err != nil {
				return err
			}
			turn.SetChoice(session.Choice{Intent: pending, Candidates: matches, Person: person}, ref)
			return nil
		}
		line, err := e.applyOne(ctx, pending, matches[0])
		if err != nil {
			lines = append(lines, fmt.Sprintf(msgSomethingFailed, err))
			break
		}
		lines = append(lines, line)
	}
	return e.say(ctx, out, strings.Join(lines, "\n"))
}

// add creates one obligation per person. On a store failure the text lists
// what was created before it.
func (e *Engine) add(ctx context.Context, a intent.Add) (string, error) {
	if len(a.Persons) == 0 {
		return "", &MissingFieldError{Field: "persons"}
	}
	if a.Amount == nil || *a.Amount <= 0 {
		return "", &MissingFieldError{Field: "amount"}
	}
	group := ""
	if a.Kind != ledger.Recurring && len(a.Persons) > 1 {
		group = e.newGroupID()
	}

	created := make([]string, 0, len(a.Persons))
	for _, person := range a.Persons {
		o, err := e.store.Create(ctx, ledger.Obligation{
			PersonName:       person,
			Direction:        a.Direction,
			Kind:             a.Kind,
			TotalAmount:      *a.Amount,
			ExpectedPerCycle: a.ExpectedPerCycle,
			Note:             a.Note,
			GroupID:          group,
		})
		if err != nil {
			metrics.RecordMutation("create", "error")
			text := fmt.Sprintf(msgSomethingFailed, err)
			if len(created) > 0 {
				text = "Added: " + strings.Join(created, ", ") + "\n" + text
			}
			return text, err
		}
		metrics.RecordMutation("create", "ok")
		e.logger.Info("obligation created", zap.String("obligation_id", o.ID), zap.String("person", o.PersonName))
		created = append(created, fmt.Sprintf("%s (%s)", o.PersonName, present.FormatINR(o.TotalAmount)))
	}
	return "Done! Added: " + strings.Join(created, ", "), nil
}

// applyOne applies a settle, edit or delete to exactly one obligation.
func (e *Engine) applyOne(ctx context.Context, m intent.Mutation, o ledger.Obligation) (string, error) {
	op := m.Action()
	line, err := e.mutate(ctx, m, o)
	if err != nil {
		metrics.RecordMutation(op, "error")
		e.logger.Error("mutation failed", zap.String("action", op), zap.String("obligation_id", o.ID), zap.Error(err))
		return "", err
	}
	metrics.RecordMutation(op, "ok")
	e.logger.Info("mutation applied", zap.String("action", op), zap.String("obligation_id", o.ID))
	return line, nil
}

func (e *Engine) mutate(ctx context.Context, m intent.Mutation, o ledger.Obligation) (string, error) {
	switch in := m.(type) {
	case intent.Settle:
		p, err := ledger.Pay(ctx, e.store, o, in.Amount, in.Note)
		if err != nil {
			return "", err
		}
		if p.Partial {
			return fmt.Sprintf("%s: paid %s, %s remaining.", o.PersonName,
				present.FormatINR(p.Paid), present.FormatINR(p.Obligation.RemainingAmount)), nil
		}
		return fmt.Sprintf("%s: settled %s!", o.PersonName, present.FormatINR(p.Paid)), nil

	case intent.Edit:
		changes := in.Changes()
		if changes.Empty() {
			return fmt.Sprintf("Nothing to change for %s.", o.PersonName), nil
		}
		updated, err := e.store.Edit(ctx, o.ID, changes)
		if err != nil {
			return "", err
		}
		line := fmt.Sprintf("Updated %s: total %s, %s remaining", updated.PersonName,
			present.FormatINR(updated.TotalAmount), present.FormatINR(updated.RemainingAmount))
		if updated.ExpectedPerCycle != nil {
			line += fmt.Sprintf(", %s per cycle", present.FormatINR(*updated.ExpectedPerCycle))
		}
		return line + ".", nil

	case intent.Delete:
		if err := e.store.Delete(ctx, o.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted obligation for %s.", o.PersonName), nil
	}
	return msgUnknownAction, nil
}

// answer summarises active obligations, narrowed to the named persons if any.
func (e *Engine) answer(ctx context.Context, q intent.Query) string {
	if len(q.Persons) == 0 {
		obs, err := e.store.List(ctx, ledger.Active)
		if err != nil {
			return fmt.Sprintf(msgSomethingFailed, err)
		}
		return present.PendingSummary(obs)
	}
	seen := make(map[string]bool)
	var obs []ledger.Obligation
	for _, person := range q.Persons {
		matches, err := e.store.ListByPerson(ctx, person, ledger.Active)
		if err != nil {
			return fmt.Sprintf(msgSomethingFailed, err)
		}
		for _, o := range matches {
			if !seen[o.ID] {
				seen[o.ID] = true
				obs = append(obs, o)
			}
		}
	}
	if len(obs) == 0 {
		return fmt.Sprintf("No pending obligations for %s.", q.Persons[0])
	}
	return present.PendingSummary(obs)
}

func (e *Engine) say(ctx context.Context, out Responder, text string) error {
	_, err := out.Reply(ctx, Reply{Text: text})
	return err
}
