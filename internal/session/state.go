// Package session keeps the short-lived per-conversation state of the chat
// engine: recent history and whatever interaction is waiting for an answer.
package session

import (
	"encoding/json"

	"github.com/thedatamonk/spendly/internal/intent"
	"github.com/thedatamonk/spendly/internal/ledger"
)

// MaxHistory bounds the history kept for the translator.
const MaxHistory = 10

// Choice is a suspended disambiguation: the action to apply, the candidate
// snapshot shown to the user, and the person whose name matched them all.
type Choice struct {
	Intent     intent.Mutation
	Candidates []ledger.Obligation
	Person     string
}

// State is one conversation's memory. At most one of Pending and Choice is set.
type State struct {
	History   []intent.HistoryEntry
	Pending   intent.Mutation
	Choice    *Choice
	PromptRef string
}

// AppendHistory adds an entry and evicts the oldest beyond MaxHistory.
func (s *State) AppendHistory(role, content string) {
	s.History = append(s.History, intent.HistoryEntry{Role: role, Content: content})
	if n := len(s.History); n > MaxHistory {
		s.History = append([]intent.HistoryEntry(nil), s.History[n-MaxHistory:]...)
	}
}

func (s *State) ClearHistory() { s.History = nil }

func (s *State) SetPending(m intent.Mutation, promptRef string) {
	s.Pending = m
	s.Choice = nil
	s.PromptRef = promptRef
}

func (s *State) SetChoice(c Choice, promptRef string) {
	s.Choice = &c
	s.Pending = nil
	s.PromptRef = promptRef
}

// ClearPending drops any pending confirmation or choice and its prompt reference.
func (s *State) ClearPending() {
	s.Pending = nil
	s.Choice = nil
	s.PromptRef = ""
}

func (s *State) HasPending() bool {
	return s.Pending != nil || s.Choice != nil
}

func (s *State) empty() bool {
	return len(s.History) == 0 && !s.HasPending() && s.PromptRef == ""
}

type stateJSON struct {
	History   []intent.HistoryEntry `json:"history,omitempty"`
	Pending   *intent.Parsed        `json:"pending_action,omitempty"`
	Choice    *choiceJSON           `json:"pending_choice,omitempty"`
	PromptRef string                `json:"pending_prompt_ref,omitempty"`
}

type choiceJSON struct {
	Intent     intent.Parsed       `json:"action"`
	Candidates []ledger.Obligation `json:"candidates"`
	Person     string              `json:"person"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{History: s.History, PromptRef: s.PromptRef}
	if s.Pending != nil {
		p := intent.Encode(s.Pending)
		out.Pending = &p
	}
	if s.Choice != nil {
		out.Choice = &choiceJSON{
			Intent:     intent.Encode(s.Choice.Intent),
			Candidates: s.Choice.Candidates,
			Person:     s.Choice.Person,
		}
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = State{History: in.History, PromptRef: in.PromptRef}
	if in.Pending != nil {
		if m, ok := in.Pending.Intent().(intent.Mutation); ok {
			s.Pending = m
		}
	}
	if in.Choice != nil {
		if m, ok := in.Choice.Intent.Intent().(intent.Mutation); ok {
			s.Choice = &Choice{Intent: m, Candidates: in.Choice.Candidates, Person: in.Choice.Person}
		}
	}
	return nil
}
