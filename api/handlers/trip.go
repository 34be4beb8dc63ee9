package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// Trip exported for testing purposes
type Trip struct {
	Ledger *ledger.Engine
}

// TripRequest is the body of a trip create. Events are keyed by cost event kind.
type TripRequest struct {
	TruckID     string    `json:"truckID" validate:"required,len=24,hexadecimal"`
	Source      string    `json:"source" validate:"required"`
	Destination string    `json:"destination" validate:"required"`
	TripDate    time.Time `json:"tripDate" validate:"required"`
	models.DirectCosts

	DieselPurchases []DieselPurchaseRequest                    `json:"dieselPurchases" validate:"dive"`
	Events          map[models.CostEventKind][]CostEventRequest `json:"events" validate:"dive,dive"`
}

func (req TripRequest) newTrip() ledger.NewTrip {
	in := ledger.NewTrip{
		TruckID:     req.TruckID,
		Source:      req.Source,
		Destination: req.Destination,
		TripDate:    req.TripDate,
		DirectCosts: req.DirectCosts,
	}
	for _, p := range req.DieselPurchases {
		in.DieselPurchases = append(in.DieselPurchases, p.model())
	}
	if len(req.Events) > 0 {
		in.Events = make(map[models.CostEventKind][]models.CostEvent, len(req.Events))
		for kind, seeds := range req.Events {
			for _, ev := range seeds {
				in.Events[kind] = append(in.Events[kind], ev.model())
			}
		}
	}
	return in
}

// TripsHandler returns the caller's trips, newest first. truck_id narrows the list
// to one truck.
func (t Trip) TripsHandler(w http.ResponseWriter, r *http.Request) {
	trips, err := t.Ledger.ListTrips(r.Context(), r.URL.Query().Get("truck_id"))
	if err != nil {
		ledgerError("failed to get trips", w, err)
		return
	}
	if trips == nil {
		trips = []models.Trip{}
	}
	writeJSON(w, http.StatusOK, trips)
}

// TripByIDHandler returns a trip with its diesel purchases and cost events
func (t Trip) TripByIDHandler(w http.ResponseWriter, r *http.Request) {
	trip, err := t.Ledger.GetTrip(r.Context(), mux.Vars(r)["trip_id"])
	if err != nil {
		ledgerError("failed to get trip by ID", w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// CreateTripHandler creates a trip with its initial diesel purchases and events
func (t Trip) CreateTripHandler(w http.ResponseWriter, r *http.Request) {
	var req TripRequest
	if err := api.ReadAndValidate(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	trip, err := t.Ledger.CreateTrip(r.Context(), req.newTrip())
	if err != nil {
		ledgerError("failed to create trip", w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// UpdateTripHandler patches a trip's route, date or direct costs. The total is
// always recomputed.
func (t Trip) UpdateTripHandler(w http.ResponseWriter, r *http.Request) {
	var patch models.TripPatch
	if err := api.ReadAndValidate(w, r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	trip, err := t.Ledger.UpdateTrip(r.Context(), mux.Vars(r)["trip_id"], patch)
	if err != nil {
		ledgerError("failed to update trip", w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteTripHandler deletes a trip and everything recorded against it
func (t Trip) DeleteTripHandler(w http.ResponseWriter, r *http.Request) {
	if err := t.Ledger.DeleteTrip(r.Context(), mux.Vars(r)["trip_id"]); err != nil {
		ledgerError("failed to delete trip", w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecomputeTripHandler rebuilds a trip's total from its stored records
func (t Trip) RecomputeTripHandler(w http.ResponseWriter, r *http.Request) {
	trip, err := t.Ledger.Recompute(r.Context(), mux.Vars(r)["trip_id"])
	if err != nil {
		ledgerError("failed to recompute trip", w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}
