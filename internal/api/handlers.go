package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/intent"
	"github.com/thedatamonk/spendly/internal/ledger"
)

type createObligationRequest struct {
	PersonName       string           `json:"person_name"`
	Kind             ledger.Kind      `json:"type"`
	Direction        ledger.Direction `json:"direction"`
	TotalAmount      float64          `json:"total_amount"`
	ExpectedPerCycle *float64         `json:"expected_per_cycle"`
	Note             string           `json:"note"`
	GroupID          string           `json:"group_id"`
}

type addTransactionRequest struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

type parseRequest struct {
	Message string `json:"message"`
}

var errBadRequest = errors.New("invalid request body")

func (a *API) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, errBadRequest)
		return
	}
	a.logger.Info("parsing message", zap.String("message", req.Message))

	active, err := a.store.List(r.Context(), ledger.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := a.translator.Translate(r.Context(), intent.Request{Message: req.Message, Active: active})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intent.ToWire(res))
}

func (a *API) handleCreateObligation(w http.ResponseWriter, r *http.Request) {
	var req createObligationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PersonName == "" {
		writeError(w, errBadRequest)
		return
	}
	o, err := a.store.Create(r.Context(), ledger.Obligation{
		PersonName:       req.PersonName,
		Direction:        req.Direction,
		Kind:             req.Kind,
		TotalAmount:      req.TotalAmount,
		ExpectedPerCycle: req.ExpectedPerCycle,
		Note:             req.Note,
		GroupID:          req.GroupID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	a.logger.Info("created obligation", zap.String("obligation_id", o.ID), zap.String("person", o.PersonName))
	writeJSON(w, http.StatusOK, []ledger.Obligation{o})
}

func (a *API) handleListObligations(w http.ResponseWriter, r *http.Request) {
	status := ledger.Status(r.URL.Query().Get("status"))
	switch status {
	case "", ledger.Active, ledger.Settled:
	default:
		writeError(w, errBadRequest)
		return
	}
	obs, err := a.store.List(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (a *API) handleGetObligation(w http.ResponseWriter, r *http.Request) {
	o, err := a.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleUpdateObligation replaces the given fields. A new total recomputes
// the remaining amount from what was already paid, even when a remaining
// amount is sent with it; a remaining amount on its own is stored as sent.
func (a *API) handleUpdateObligation(w http.ResponseWriter, r *http.Request) {
	var c ledger.Changes
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, errBadRequest)
		return
	}
	id := mux.Vars(r)["id"]
	o, err := a.store.Edit(r.Context(), id, c)
	if err != nil {
		writeError(w, err)
		return
	}
	a.logger.Info("updated obligation", zap.String("obligation_id", id))
	writeJSON(w, http.StatusOK, o)
}

func (a *API) handleDeleteObligation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	a.logger.Info("deleted obligation", zap.String("obligation_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Obligation deleted"})
}

func (a *API) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req addTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errBadRequest)
		return
	}
	id := mux.Vars(r)["id"]
	o, err := a.store.RecordPayment(r.Context(), id, req.Amount, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	a.logger.Info("added transaction", zap.String("obligation_id", id), zap.Float64("amount", req.Amount))
	writeJSON(w, http.StatusOK, o)
}

func (a *API) handleSettleObligation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := a.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing.Status == ledger.Settled {
		writeError(w, ledger.ErrAlreadySettled)
		return
	}
	o, err := a.store.Settle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	a.logger.Info("settled obligation", zap.String("obligation_id", id))
	writeJSON(w, http.StatusOK, o)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := err.Error()
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		status, detail = http.StatusNotFound, "Obligation not found"
	case errors.Is(err, ledger.ErrAlreadySettled):
		status, detail = http.StatusBadRequest, "Obligation is already settled"
	case errors.Is(err, ledger.ErrOneTimeFullOnly):
		status, detail = http.StatusBadRequest, "One-time obligations must be settled in full"
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidKind),
		errors.Is(err, ledger.ErrInvalidDirection), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, intent.ErrTranslate):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}
