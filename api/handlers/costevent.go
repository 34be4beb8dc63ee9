package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// CostEvent exported for testing purposes
type CostEvent struct {
	Ledger *ledger.Engine
}

// CostEventRequest is the body of a cost event add or replace. Amounts of zero or
// less are stored but never counted.
type CostEventRequest struct {
	Amount     float64   `json:"amount" validate:"gte=-1000000000,lte=1000000000"`
	State      string    `json:"state"`
	Checkpoint string    `json:"checkpoint"`
	Notes      string    `json:"notes" validate:"max=500"`
	EventTime  time.Time `json:"eventTime"`
}

func (req CostEventRequest) model() models.CostEvent {
	return models.CostEvent{
		Amount:     req.Amount,
		State:      req.State,
		Checkpoint: req.Checkpoint,
		Notes:      req.Notes,
		EventTime:  req.EventTime,
	}
}

func eventKind(r *http.Request) models.CostEventKind {
	return models.CostEventKind(mux.Vars(r)["kind"])
}

// AddCostEventHandler records an event of the kind in the path
func (c CostEvent) AddCostEventHandler(w http.ResponseWriter, r *http.Request) {
	var req CostEventRequest
	if err := api.ReadAndValidate(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	trip, err := c.Ledger.AddCostEvent(r.Context(), mux.Vars(r)["trip_id"], eventKind(r), req.model())
	if err != nil {
		ledgerError("failed to add cost event", w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// UpdateCostEventHandler replaces an event
func (c CostEvent) UpdateCostEventHandler(w http.ResponseWriter, r *http.Request) {
	var req CostEventRequest
	if err := api.ReadAndValidate(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	vars := mux.Vars(r)
	trip, err := c.Ledger.UpdateCostEvent(r.Context(), vars["trip_id"], eventKind(r), vars["event_id"], req.model())
	if err != nil {
		ledgerError("failed to update cost event", w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteCostEventHandler removes an event
func (c CostEvent) DeleteCostEventHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	trip, err := c.Ledger.DeleteCostEvent(r.Context(), vars["trip_id"], eventKind(r), vars["event_id"])
	if err != nil {
		ledgerError("failed to delete cost event", w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}
