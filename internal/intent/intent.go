// Package intent defines the structured interpretation of a chat message:
// one Go type per action, each carrying only the fields that action uses.
package intent

import (
	"context"
	"errors"

	"github.com/thedatamonk/spendly/internal/ledger"
)

// ErrTranslate marks a translator failure (unreachable service or malformed output).
var ErrTranslate = errors.New("translate message")

// Intent is one of Add, Settle, Edit, Delete, Query, Chitchat, OffTopic or Unknown.
type Intent interface {
	Action() string
}

// Mutation is an intent that changes the ledger and needs confirmation.
type Mutation interface {
	Intent
	Targets() []string
}

type Add struct {
	Persons          []string
	Direction        ledger.Direction
	Amount           *float64
	Kind             ledger.Kind
	ExpectedPerCycle *float64
	Note             string
}

type Settle struct {
	Persons []string
	Amount  *float64
	Note    string
}

// Edit changes only the fields that are present. Amount is the new total.
type Edit struct {
	Persons          []string
	Amount           *float64
	ExpectedPerCycle *float64
	Note             *string
}

type Delete struct {
	Persons []string
}

type Query struct {
	Persons []string
}

type Chitchat struct{}

type OffTopic struct{}

// Unknown carries an action value the engine does not handle.
type Unknown struct {
	Name string
}

func (Add) Action() string       { return "add" }
func (Settle) Action() string    { return "settle" }
func (Edit) Action() string      { return "edit" }
func (Delete) Action() string    { return "delete" }
func (Query) Action() string     { return "query" }
func (Chitchat) Action() string  { return "chitchat" }
func (OffTopic) Action() string  { return "off_topic" }
func (u Unknown) Action() string { return u.Name }

func (a Add) Targets() []string    { return a.Persons }
func (s Settle) Targets() []string { return s.Persons }
func (e Edit) Targets() []string   { return e.Persons }
func (d Delete) Targets() []string { return d.Persons }

// Changes maps the edit onto ledger field replacements.
func (e Edit) Changes() ledger.Changes {
	return ledger.Changes{
		TotalAmount:      e.Amount,
		ExpectedPerCycle: e.ExpectedPerCycle,
		Note:             e.Note,
	}
}

// Result is a translated message.
type Result struct {
	Intent Intent
	// Message is the confirmation or conversational text to show the user.
	Message  string
	Question string
	// Ambiguous means more detail is needed; Question asks for it.
	Ambiguous bool
}

// HistoryEntry is one role-tagged line of conversation.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is what a Translator receives for one message.
type Request struct {
	Message string
	Active  []ledger.Obligation
	History []HistoryEntry
}

// Translator turns free text into a Result. Failures wrap ErrTranslate.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
