package intent

import (
	"fmt"

	"github.com/thedatamonk/spendly/internal/ledger"
)

// Direction values used on the wire by the translator.
const (
	WireOwesMe = "owes_me"
	WireIOwe   = "i_owe"
)

// Parsed is the flat JSON form of an intent, as emitted by the translator and
// kept in session storage.
type Parsed struct {
	Action             string   `json:"action"`
	Persons            []string `json:"persons"`
	Direction          string   `json:"direction,omitempty"`
	Amount             *float64 `json:"amount"`
	ObligationType     string   `json:"obligation_type,omitempty"`
	ExpectedPerCycle   *float64 `json:"expected_per_cycle"`
	Note               *string  `json:"note"`
	IsAmbiguous        bool     `json:"is_ambiguous"`
	ClarifyingQuestion *string  `json:"clarifying_question"`
}

// Wire is the full translator response envelope.
type Wire struct {
	Parsed               *Parsed `json:"parsed"`
	ConfirmationMessage  string  `json:"confirmation_message"`
	RequiresConfirmation bool    `json:"requires_confirmation"`
}

// Result converts the envelope into a typed Result. A missing parsed block
// is a translator failure.
func (w Wire) Result() (Result, error) {
	if w.Parsed == nil {
		return Result{}, fmt.Errorf("%w: no parsed intent", ErrTranslate)
	}
	r := Result{
		Intent:    w.Parsed.Intent(),
		Message:   w.ConfirmationMessage,
		Ambiguous: w.Parsed.IsAmbiguous,
	}
	if w.Parsed.ClarifyingQuestion != nil {
		r.Question = *w.Parsed.ClarifyingQuestion
	}
	return r, nil
}

// ToWire is the inverse of Wire.Result.
func ToWire(r Result) Wire {
	p := Encode(r.Intent)
	p.IsAmbiguous = r.Ambiguous
	if r.Question != "" {
		q := r.Question
		p.ClarifyingQuestion = &q
	}
	_, mutates := r.Intent.(Mutation)
	return Wire{Parsed: &p, ConfirmationMessage: r.Message, RequiresConfirmation: mutates}
}

// Intent builds the typed variant for the action named in p.
func (p Parsed) Intent() Intent {
	note := ""
	if p.Note != nil {
		note = *p.Note
	}
	switch p.Action {
	case "add":
		return Add{
			Persons:          p.Persons,
			Direction:        decodeDirection(p.Direction),
			Amount:           p.Amount,
			Kind:             decodeKind(p.ObligationType),
			ExpectedPerCycle: p.ExpectedPerCycle,
			Note:             note,
		}
	case "settle":
		return Settle{Persons: p.Persons, Amount: p.Amount, Note: note}
	case "edit":
		return Edit{Persons: p.Persons, Amount: p.Amount, ExpectedPerCycle: p.ExpectedPerCycle, Note: p.Note}
	case "delete":
		return Delete{Persons: p.Persons}
	case "query":
		return Query{Persons: p.Persons}
	case "chitchat":
		return Chitchat{}
	case "off_topic":
		return OffTopic{}
	default:
		return Unknown{Name: p.Action}
	}
}

// Encode flattens a typed intent.
func Encode(in Intent) Parsed {
	p := Parsed{Action: in.Action(), Persons: []string{}}
	switch v := in.(type) {
	case Add:
		p.Persons = v.Persons
		p.Direction = encodeDirection(v.Direction)
		p.Amount = v.Amount
		p.ObligationType = string(v.Kind)
		p.ExpectedPerCycle = v.ExpectedPerCycle
		if v.Note != "" {
			p.Note = &v.Note
		}
	case Settle:
		p.Persons = v.Persons
		p.Amount = v.Amount
		if v.Note != "" {
			p.Note = &v.Note
		}
	case Edit:
		p.Persons = v.Persons
		p.Amount = v.Amount
		p.ExpectedPerCycle = v.ExpectedPerCycle
		p.Note = v.Note
	case Delete:
		p.Persons = v.Persons
	case Query:
		p.Persons = v.Persons
	}
	if p.Persons == nil {
		p.Persons = []string{}
	}
	return p
}

func decodeDirection(s string) ledger.Direction {
	switch s {
	case WireIOwe, string(ledger.OwnerOwes):
		return ledger.OwnerOwes
	default:
		return ledger.OwedToOwner
	}
}

func encodeDirection(d ledger.Direction) string {
	if d == ledger.OwnerOwes {
		return WireIOwe
	}
	return WireOwesMe
}

// decodeKind maps anything but a known kind to "", which the ledger stores
// as one-time.
func decodeKind(s string) ledger.Kind {
	switch k := ledger.Kind(s); k {
	case ledger.OneTime, ledger.Recurring:
		return k
	}
	return ""
}
