package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// DieselPurchase exported for testing purposes
type DieselPurchase struct {
	Ledger *ledger.Engine
}

// DieselPurchaseRequest is the body of a diesel purchase add or replace
type DieselPurchaseRequest struct {
	State        string    `json:"state" validate:"required"`
	City         string    `json:"city" validate:"required"`
	Quantity     float64   `json:"quantity" validate:"gt=0,lte=100000"`
	UnitPrice    float64   `json:"unitPrice" validate:"gt=0,lte=100000"`
	PurchaseDate time.Time `json:"purchaseDate" validate:"required"`
}

func (req DieselPurchaseRequest) model() models.DieselPurchase {
	return models.DieselPurchase{
		State:        req.State,
		City:         req.City,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		PurchaseDate: req.PurchaseDate,
	}
}

// AddDieselPurchaseHandler records a purchase and returns the trip with its new total
func (d DieselPurchase) AddDieselPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req DieselPurchaseRequest
	if err := api.ReadAndValidate(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	trip, err := d.Ledger.AddDieselPurchase(r.Context(), mux.Vars(r)["trip_id"], req.model())
	if err != nil {
		ledgerError("failed to add diesel purchase", w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// UpdateDieselPurchaseHandler replaces a purchase and returns the trip with its new total
func (d DieselPurchase) UpdateDieselPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req DieselPurchaseRequest
	if err := api.ReadAndValidate(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	vars := mux.Vars(r)
	trip, err := d.Ledger.UpdateDieselPurchase(r.Context(), vars["trip_id"], vars["purchase_id"], req.model())
	if err != nil {
		ledgerError("failed to update diesel purchase", w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteDieselPurchaseHandler removes a purchase and returns the trip with its new total
func (d DieselPurchase) DeleteDieselPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	trip, err := d.Ledger.DeleteDieselPurchase(r.Context(), vars["trip_id"], vars["purchase_id"])
	if err != nil {
		ledgerError("failed to delete diesel purchase", w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}
