package intent

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thedatamonk/spendly/internal/ledger"
)

const dinnerSplit = `{
  "parsed": {
    "action": "add",
    "persons": ["Rahul", "Priya"],
    "direction": "owes_me",
    "amount": 1067,
    "obligation_type": "one_time",
    "expected_per_cycle": null,
    "note": "Dinner split",
    "is_ambiguous": false,
    "clarifying_question": null
  },
  "confirmation_message": "Dinner split: Rahul owes ₹1,067, Priya owes ₹1,067. Should I log this?",
  "requires_confirmation": true
}`

func TestWireResultAdd(t *testing.T) {
	var w Wire
	require.NoError(t, json.Unmarshal([]byte(dinnerSplit), &w))

	r, err := w.Result()
	require.NoError(t, err)
	add, ok := r.Intent.(Add)
	require.True(t, ok, "got %T", r.Intent)
	assert.Equal(t, []string{"Rahul", "Priya"}, add.Persons)
	assert.Equal(t, ledger.OwedToOwner, add.Direction)
	assert.Equal(t, ledger.OneTime, add.Kind)
	require.NotNil(t, add.Amount)
	assert.Equal(t, 1067.0, *add.Amount)
	assert.Equal(t, "Dinner split", add.Note)
	assert.False(t, r.Ambiguous)
	assert.Contains(t, r.Message, "Should I log this?")
}

func TestParsedIntentVariants(t *testing.T) {
	amount := 1500.0
	tests := []struct {
		name   string
		parsed Parsed
		want   Intent
	}{
		{
			name:   "i owe maps to owner owes",
			parsed: Parsed{Action: "add", Persons: []string{"Rahul"}, Direction: "i_owe", Amount: &amount},
			want:   Add{Persons: []string{"Rahul"}, Direction: ledger.OwnerOwes, Amount: &amount},
		},
		{
			name:   "edit keeps only present fields",
			parsed: Parsed{Action: "edit", Persons: []string{"Sunita"}, ExpectedPerCycle: &amount},
			want:   Edit{Persons: []string{"Sunita"}, ExpectedPerCycle: &amount},
		},
		{
			name:   "settle without amount",
			parsed: Parsed{Action: "settle", Persons: []string{"Shivam"}},
			want:   Settle{Persons: []string{"Shivam"}},
		},
		{name: "query", parsed: Parsed{Action: "query", Persons: []string{}}, want: Query{Persons: []string{}}},
		{name: "chitchat", parsed: Parsed{Action: "chitchat"}, want: Chitchat{}},
		{name: "off topic", parsed: Parsed{Action: "off_topic"}, want: OffTopic{}},
		{name: "unknown action", parsed: Parsed{Action: "transfer"}, want: Unknown{Name: "transfer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.parsed.Intent())
		})
	}
}

func TestWireWithoutParsedIsTranslateError(t *testing.T) {
	_, err := Wire{ConfirmationMessage: "hm"}.Result()
	assert.ErrorIs(t, err, ErrTranslate)
}

func TestToWireKeepsAmbiguity(t *testing.T) {
	in := Result{
		Intent:    Add{Persons: []string{}},
		Message:   "I need a bit more info to log this.",
		Ambiguous: true,
		Question:  "Who did you pay, and how much was it?",
	}
	w := ToWire(in)
	require.NotNil(t, w.Parsed)
	assert.True(t, w.Parsed.IsAmbiguous)
	assert.Equal(t, WireOwesMe, w.Parsed.Direction)

	back, err := w.Result()
	require.NoError(t, err)
	assert.Equal(t, in.Question, back.Question)
	assert.True(t, back.Ambiguous)
}

func TestParsedIntentUnknownKindFallsBackToOneTime(t *testing.T) {
	amount := 100.0
	tests := []struct {
		kind string
		want ledger.Kind
	}{
		{"recurring", ledger.Recurring},
		{"one_time", ledger.OneTime},
		{"monthly", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			in := Parsed{Action: "add", Persons: []string{"Rahul"}, Amount: &amount, ObligationType: tt.kind}.Intent()
			add, ok := in.(Add)
			require.True(t, ok, "got %T", in)
			assert.Equal(t, tt.want, add.Kind)

			o := ledger.Prepare(ledger.Obligation{PersonName: "Rahul", Kind: add.Kind, TotalAmount: amount}, time.Now())
			assert.Contains(t, []ledger.Kind{ledger.OneTime, ledger.Recurring}, o.Kind)
		})
	}
}
