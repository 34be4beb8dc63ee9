package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/linesmerrill/truck-ledger-api/models"
	"github.com/linesmerrill/truck-ledger-api/tripcost"
)

// NewTrip holds everything needed to create a trip
type NewTrip struct {
	TruckID     string
	Source      string
	Destination string
	TripDate    time.Time
	models.DirectCosts

	DieselPurchases []models.DieselPurchase
	// Events holds seed events per kind. Seeds with a non-positive amount are dropped.
	Events map[models.CostEventKind][]models.CostEvent
}

// CreateTrip persists a trip with its diesel purchases and seed events. The stored
// total covers the direct fields, the purchases and the kept seed events, which is
// exactly what a later recompute produces.
//
// With transactions enabled the trip and its children are written atomically.
// Otherwise a failed child write deletes the trip again before the error is returned;
// a crash in between leaves a childless trip behind.
func (e *Engine) CreateTrip(ctx context.Context, in NewTrip) (*models.Trip, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	for kind := range in.Events {
		if !kind.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, kind)
		}
	}
	truck, err := e.store.FetchTruck(ctx, in.TruckID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch truck: %w", err)
	}

	now := e.now()
	trip := models.Trip{
		OwnerID:     ownerID,
		TruckID:     truck.ID,
		Source:      in.Source,
		Destination: in.Destination,
		TripDate:    in.TripDate,
		DirectCosts: in.DirectCosts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	purchases := make([]models.DieselPurchase, 0, len(in.DieselPurchases))
	for _, p := range in.DieselPurchases {
		purchase, err := e.newPurchase(p, ownerID)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}
	events := make(map[models.CostEventKind][]models.CostEvent, len(in.Events))
	for kind, seeds := range in.Events {
		for _, ev := range seeds {
			if !ev.Counts() {
				continue
			}
			event, err := e.newEvent(ev, ownerID)
			if err != nil {
				return nil, err
			}
			events[kind] = append(events[kind], event)
		}
	}
	trip.TotalCost, err = initialTotal(trip, purchases, events)
	if err != nil {
		return nil, err
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if tx, ok := e.transactor(); ok {
		var created *models.Trip
		err := tx.WithTransaction(ctx, func(ctx context.Context) error {
			c, err := e.store.InsertTrip(ctx, trip)
			if err != nil {
				return fmt.Errorf("failed to insert trip: %w", err)
			}
			created = c
			return e.insertChildren(ctx, c, purchases, events)
		})
		if err != nil {
			return nil, err
		}
		e.notifier.TripTotalChanged(ownerID, *created)
		return created, nil
	}

	created, err := e.store.InsertTrip(ctx, trip)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trip: %w", err)
	}
	if err := e.insertChildren(ctx, created, purchases, events); err != nil {
		return nil, e.compensate(ctx, created, ownerID, err)
	}
	e.notifier.TripTotalChanged(ownerID, *created)
	return created, nil
}

func (e *Engine) insertChildren(ctx context.Context, trip *models.Trip, purchases []models.DieselPurchase, events map[models.CostEventKind][]models.CostEvent) error {
	if len(purchases) > 0 {
		for i := range purchases {
			purchases[i].TripID = trip.ID
		}
		if err := e.store.InsertDieselPurchases(ctx, purchases); err != nil {
			return fmt.Errorf("failed to insert diesel purchases: %w", err)
		}
		trip.DieselPurchases = purchases
	}
	for _, kind := range models.ValidCostEventKinds() {
		seeds := events[kind]
		if len(seeds) == 0 {
			continue
		}
		for i := range seeds {
			seeds[i].TripID = trip.ID
		}
		if err := e.store.InsertCostEvents(ctx, kind, seeds); err != nil {
			return fmt.Errorf("failed to insert %s events: %w", kind, err)
		}
		*trip.Events(kind) = seeds
	}
	return nil
}

// compensate deletes a trip whose children could not be written and returns the
// error to report
func (e *Engine) compensate(ctx context.Context, trip *models.Trip, ownerID string, cause error) error {
	tripID := trip.ID.Hex()
	zap.S().Warnw("rolling back trip after failed child insert",
		"tripID", tripID,
		"error", cause)

	err := e.store.DeleteTripChildren(ctx, tripID, ownerID)
	if err == nil {
		err = e.store.DeleteTrip(ctx, tripID, ownerID)
	}
	if err != nil {
		createCompensations.WithLabelValues("failed").Inc()
		zap.S().Errorw("failed to roll back trip, it is left without children",
			"tripID", tripID,
			"error", err)
		return &CreateError{Err: cause, CompensationErr: err}
	}
	createCompensations.WithLabelValues("ok").Inc()
	return &CreateError{Err: cause}
}

func initialTotal(trip models.Trip, purchases []models.DieselPurchase, events map[models.CostEventKind][]models.CostEvent) (float64, error) {
	trip.DieselPurchases = purchases
	snapshot := snapshotOf(&trip)
	for kind, evs := range events {
		sum := decimal.Zero
		for _, ev := range evs {
			sum = sum.Add(tripcost.Amount(ev.Amount))
		}
		snapshot.EventSums[string(kind)] = sum
	}
	return storable(tripcost.Total(snapshot))
}

// GetTrip returns the trip with its diesel purchases and cost events
func (e *Engine) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	trip, err := e.store.FetchTrip(ctx, tripID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}
	return trip, nil
}

// ListTrips returns the owner's trips, newest trip date first. An empty truckID
// lists trips of every truck.
func (e *Engine) ListTrips(ctx context.Context, truckID string) ([]models.Trip, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	trips, err := e.store.FetchTrips(ctx, ownerID, truckID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trips: %w", err)
	}
	return trips, nil
}

// UpdateTrip merges the patch into the stored trip, recomputes the total from the
// merged direct fields, the current purchases and fresh event sums, and writes the
// fields together with the new total
func (e *Engine) UpdateTrip(ctx context.Context, tripID string, patch models.TripPatch) (*models.Trip, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	trip, err := e.store.FetchTrip(ctx, tripID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}
	previous := trip.TotalCost

	ctx, cancel := detach(ctx)
	defer cancel()

	patch.Apply(trip)
	total, err := e.total(ctx, trip, ownerID)
	if err != nil {
		return nil, err
	}
	recomputesTotal.Inc()
	trip.TotalCost = total
	trip.UpdatedAt = e.now()

	if err := e.store.UpdateTrip(ctx, *trip); err != nil {
		return nil, fmt.Errorf("failed to update trip: %w", err)
	}
	if total != previous {
		e.notifier.TripTotalChanged(ownerID, *trip)
	}
	return trip, nil
}

// DeleteTrip deletes the trip and every child record it owns
func (e *Engine) DeleteTrip(ctx context.Context, tripID string) error {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return err
	}
	if _, err := e.store.FetchTrip(ctx, tripID, ownerID); err != nil {
		return fmt.Errorf("failed to fetch trip: %w", err)
	}

	ctx, cancel := detach(ctx)
	defer cancel()
	return e.deleteTrip(ctx, tripID, ownerID)
}

func (e *Engine) deleteTrip(ctx context.Context, tripID, ownerID string) error {
	del := func(ctx context.Context) error {
		if err := e.store.DeleteTripChildren(ctx, tripID, ownerID); err != nil {
			return fmt.Errorf("failed to delete trip children: %w", err)
		}
		if err := e.store.DeleteTrip(ctx, tripID, ownerID); err != nil {
			return fmt.Errorf("failed to delete trip: %w", err)
		}
		return nil
	}
	if tx, ok := e.transactor(); ok {
		return tx.WithTransaction(ctx, del)
	}
	return del(ctx)
}
