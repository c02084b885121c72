package ledger

import (
	"context"
	"fmt"
	"math"
	"time"
)

// ApplyPayment appends a payment and decrements the remaining amount, floored at zero.
func ApplyPayment(o *Obligation, amount float64, note string, now time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if o.Status == Settled {
		return ErrAlreadySettled
	}
	o.Transactions = append(o.Transactions, Transaction{Amount: amount, PaidAt: now, Note: note})
	o.RemainingAmount = math.Max(o.RemainingAmount-amount, 0)
	if o.RemainingAmount == 0 {
		o.Status = Settled
	}
	return nil
}

// MarkSettled closes the obligation, recording whatever was still outstanding.
func MarkSettled(o *Obligation, now time.Time) {
	if o.RemainingAmount > 0 {
		o.Transactions = append(o.Transactions, Transaction{
			Amount: o.RemainingAmount,
			PaidAt: now,
			Note:   FullSettlementNote,
		})
	}
	o.RemainingAmount = 0
	o.Status = Settled
}

// ApplyChanges replaces only the fields present in c. A new total keeps the
// already-paid part intact and never reopens a settled record; a total at or
// below what was paid closes it. A new total also wins over an explicit
// remaining amount sent alongside it. An explicit remaining amount on its own
// is written as-is and does not touch the status.
func ApplyChanges(o *Obligation, c Changes) error {
	if c.RemainingAmount != nil && *c.RemainingAmount < 0 {
		return ErrInvalidAmount
	}
	if c.TotalAmount != nil && *c.TotalAmount <= 0 {
		return ErrInvalidAmount
	}
	paid := o.AlreadyPaid()

	if c.PersonName != nil {
		o.PersonName = *c.PersonName
	}
	if c.ExpectedPerCycle != nil {
		v := *c.ExpectedPerCycle
		o.ExpectedPerCycle = &v
	}
	if c.Note != nil {
		o.Note = *c.Note
	}
	if c.TotalAmount == nil {
		if c.RemainingAmount != nil {
			o.RemainingAmount = *c.RemainingAmount
		}
		return nil
	}
	o.TotalAmount = *c.TotalAmount
	o.RemainingAmount = math.Max(o.TotalAmount-paid, 0)
	if o.RemainingAmount == 0 {
		o.Status = Settled
	}
	return nil
}

// ApplyDirectPayment validates and applies a payment in one step, so the
// check sees the same record the payment is written to.
func ApplyDirectPayment(o *Obligation, amount float64, note string, now time.Time) error {
	if err := ValidatePayment(*o, amount); err != nil {
		return err
	}
	return ApplyPayment(o, amount, note, now)
}

// ValidatePayment enforces the direct-API payment rules: nothing on a
// settled record, and one-time obligations only in one full payment.
func ValidatePayment(o Obligation, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if o.Status == Settled {
		return ErrAlreadySettled
	}
	if o.Kind == OneTime && amount != o.RemainingAmount {
		return ErrOneTimeFullOnly
	}
	return nil
}

// Payment is the result of Pay.
type Payment struct {
	Obligation Obligation
	Paid       float64
	Partial    bool
}

// Pay applies a conversational payment. A partial payment is recorded only
// when an amount below the remaining balance is given on a recurring
// obligation; every other case settles the obligation in full.
func Pay(ctx context.Context, store Store, o Obligation, amount *float64, note string) (Payment, error) {
	if amount != nil && *amount > 0 && *amount < o.RemainingAmount && o.Kind != OneTime {
		updated, err := store.ApplyTransaction(ctx, o.ID, *amount, note)
		if err != nil {
			return Payment{}, fmt.Errorf("apply payment: %w", err)
		}
		return Payment{Obligation: updated, Paid: *amount, Partial: updated.Status == Active}, nil
	}
	updated, err := store.Settle(ctx, o.ID)
	if err != nil {
		return Payment{}, fmt.Errorf("settle: %w", err)
	}
	return Payment{Obligation: updated, Paid: o.RemainingAmount}, nil
}
