package ledger

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("obligation not found")
	ErrAlreadySettled   = errors.New("obligation is already settled")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrOneTimeFullOnly  = errors.New("one-time obligations must be settled in full")
	ErrInvalidKind      = errors.New("type must be one_time or recurring")
	ErrInvalidDirection = errors.New("direction must be owed_to_owner or owner_owes")
)

type Direction string

const (
	OwedToOwner Direction = "owed_to_owner"
	OwnerOwes   Direction = "owner_owes"
)

type Kind string

const (
	OneTime   Kind = "one_time"
	Recurring Kind = "recurring"
)

type Status string

const (
	Active  Status = "active"
	Settled Status = "settled"
)

// FullSettlementNote marks the synthetic closing transaction written by Settle.
const FullSettlementNote = "Full settlement"

type Transaction struct {
	Amount float64   `json:"amount"`
	PaidAt time.Time `json:"paid_at"`
	Note   string    `json:"note,omitempty"`
}

// Obligation is a single directional debt between the ledger owner and one person.
type Obligation struct {
	ID               string        `json:"id"`
	PersonName       string        `json:"person_name"`
	Direction        Direction     `json:"direction"`
	Kind             Kind          `json:"type"`
	TotalAmount      float64       `json:"total_amount"`
	ExpectedPerCycle *float64      `json:"expected_per_cycle,omitempty"`
	RemainingAmount  float64       `json:"remaining_amount"`
	Status           Status        `json:"status"`
	Note             string        `json:"note,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	GroupID          string        `json:"group_id,omitempty"`
	Transactions     []Transaction `json:"transactions"`
}

// AlreadyPaid is the part of the total that has been paid off.
func (o Obligation) AlreadyPaid() float64 {
	return o.TotalAmount - o.RemainingAmount
}

// Changes lists the fields an edit replaces. Nil fields are left alone.
type Changes struct {
	PersonName       *string  `json:"person_name,omitempty"`
	TotalAmount      *float64 `json:"total_amount,omitempty"`
	ExpectedPerCycle *float64 `json:"expected_per_cycle,omitempty"`
	RemainingAmount  *float64 `json:"remaining_amount,omitempty"`
	Note             *string  `json:"note,omitempty"`
}

func (c Changes) Empty() bool {
	return c.PersonName == nil && c.TotalAmount == nil && c.ExpectedPerCycle == nil &&
		c.RemainingAmount == nil && c.Note == nil
}

// SamePerson reports whether two names refer to the same person for lookups.
func SamePerson(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
