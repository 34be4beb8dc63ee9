package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// Truck exported for testing purposes
type Truck struct {
	Ledger *ledger.Engine
}

// TruckRequest is the body of a truck create
type TruckRequest struct {
	Name  string `json:"name" validate:"required"`
	Plate string `json:"plate" validate:"required"`
	Model string `json:"model"`
}

// TrucksHandler returns the caller's trucks
func (t Truck) TrucksHandler(w http.ResponseWriter, r *http.Request) {
	trucks, err := t.Ledger.ListTrucks(r.Context())
	if err != nil {
		ledgerError("failed to get trucks", w, err)
		return
	}
	// the frontend expects an array, never null
	if trucks == nil {
		trucks = []models.Truck{}
	}
	writeJSON(w, http.StatusOK, trucks)
}

// TruckByIDHandler returns a truck by ID
func (t Truck) TruckByIDHandler(w http.ResponseWriter, r *http.Request) {
	truck, err := t.Ledger.GetTruck(r.Context(), mux.Vars(r)["truck_id"])
	if err != nil {
		ledgerError("failed to get truck by ID", w, err)
		return
	}
	writeJSON(w, http.StatusOK, truck)
}

// CreateTruckHandler registers a new truck for the caller
func (t Truck) CreateTruckHandler(w http.ResponseWriter, r *http.Request) {
	var req TruckRequest
	if err := api.ReadAndValidate(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	truck, err := t.Ledger.CreateTruck(r.Context(), models.Truck{
		Name:  req.Name,
		Plate: req.Plate,
		Model: req.Model,
	})
	if err != nil {
		ledgerError("failed to create truck", w, err)
		return
	}
	writeJSON(w, http.StatusCreated, truck)
}

// UpdateTruckHandler patches a truck's name, plate or model
func (t Truck) UpdateTruckHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.TruckPatch
	if err := api.ReadAndValidate(w, r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	truck, err := t.Ledger.UpdateTruck(r.Context(), mux.Vars(r)["truck_id"], patch)
	if err != nil {
		ledgerError("failed to update truck", w, err)
		return
	}
	writeJSON(w, http.StatusOK, truck)
}

// DeleteTruckHandler deletes a truck together with its trips
func (t Truck) DeleteTruckHandler(w http.ResponseWriter, r *http.Request) {
	if err := t.Ledger.DeleteTruck(r.Context(), mux.Vars(r)["truck_id"]); err != nil {
		ledgerError("failed to delete truck", w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
