// Package present renders ledger data as chat text.
package present

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/thedatamonk/spendly/internal/ledger"
)

var printer = message.NewPrinter(language.English)

// FormatINR renders whole rupees without decimals and anything else with two.
func FormatINR(amount float64) string {
	if amount == math.Trunc(amount) {
		return printer.Sprintf("₹%d", int64(amount))
	}
	return printer.Sprintf("₹%.2f", amount)
}

// PendingSummary lists active obligations with their remaining amounts and a total.
func PendingSummary(obs []ledger.Obligation) string {
	if len(obs) == 0 {
		return "No pending obligations! You're all clear."
	}
	var b strings.Builder
	b.WriteString("**Pending obligations:**\n\n")
	total := 0.0
	for i, o := range obs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, pendingLine(o))
		total += o.RemainingAmount
	}
	fmt.Fprintf(&b, "\n**Total pending: %s**", FormatINR(total))
	return b.String()
}

func pendingLine(o ledger.Obligation) string {
	line := fmt.Sprintf("**%s** owes you %s", o.PersonName, FormatINR(o.RemainingAmount))
	if o.Direction == ledger.OwnerOwes {
		line = fmt.Sprintf("You owe **%s** %s", o.PersonName, FormatINR(o.RemainingAmount))
	}
	if o.Kind == ledger.Recurring {
		line += " (recurring)"
	}
	if o.Note != "" {
		line += " | " + o.Note
	}
	return line
}

// SettledSummary lists settled obligations with their totals.
func SettledSummary(obs []ledger.Obligation) string {
	if len(obs) == 0 {
		return "No settled obligations yet."
	}
	var b strings.Builder
	b.WriteString("**Settled obligations:**\n\n")
	for i, o := range obs {
		fmt.Fprintf(&b, "%d. **%s** %s", i+1, o.PersonName, FormatINR(o.TotalAmount))
		if o.Note != "" {
			b.WriteString(" | " + o.Note)
		}
		if i < len(obs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// maxLabel is the longest button label Discord accepts.
const maxLabel = 80

// CandidateLine is the one-line label of a disambiguation choice.
func CandidateLine(o ledger.Obligation) string {
	line := fmt.Sprintf("%s of %s left (%s)", FormatINR(o.RemainingAmount), FormatINR(o.TotalAmount), kindLabel(o.Kind))
	if o.Note != "" {
		line += " " + o.Note
	}
	if r := []rune(line); len(r) > maxLabel {
		line = string(r[:maxLabel-1]) + "…"
	}
	return line
}

func kindLabel(k ledger.Kind) string {
	if k == ledger.Recurring {
		return "recurring"
	}
	return "one-time"
}
