package ledger

import (
	"context"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/truck-ledger-api/models"
	"github.com/linesmerrill/truck-ledger-api/tripcost"
)

// AddDieselPurchase adds a purchase to the trip and returns the recomputed trip
func (e *Engine) AddDieselPurchase(ctx context.Context, tripID string, purchase models.DieselPurchase) (*models.Trip, error) {
	return e.mutate(ctx, tripID, func(ctx context.Context, trip *models.Trip, ownerID string) error {
		p, err := e.newPurchase(purchase, ownerID)
		if err != nil {
			return err
		}
		p.TripID = trip.ID
		if err := e.store.InsertDieselPurchases(ctx, []models.DieselPurchase{p}); err != nil {
			return fmt.Errorf("failed to insert diesel purchase: %w", err)
		}
		return nil
	})
}

// UpdateDieselPurchase replaces the purchase's fields and returns the recomputed trip
func (e *Engine) UpdateDieselPurchase(ctx context.Context, tripID, purchaseID string, purchase models.DieselPurchase) (*models.Trip, error) {
	return e.mutate(ctx, tripID, func(ctx context.Context, trip *models.Trip, ownerID string) error {
		id, err := objectID(purchaseID)
		if err != nil {
			return err
		}
		p, err := e.newPurchase(purchase, ownerID)
		if err != nil {
			return err
		}
		p.ID = id
		p.TripID = trip.ID
		if err := e.store.UpdateDieselPurchase(ctx, p); err != nil {
			return fmt.Errorf("failed to update diesel purchase: %w", err)
		}
		return nil
	})
}

// DeleteDieselPurchase removes the purchase and returns the recomputed trip
func (e *Engine) DeleteDieselPurchase(ctx context.Context, tripID, purchaseID string) (*models.Trip, error) {
	return e.mutate(ctx, tripID, func(ctx context.Context, trip *models.Trip, ownerID string) error {
		if err := e.store.DeleteDieselPurchase(ctx, tripID, purchaseID, ownerID); err != nil {
			return fmt.Errorf("failed to delete diesel purchase: %w", err)
		}
		return nil
	})
}

// AddCostEvent adds an event of the given kind and returns the recomputed trip.
// Events with a non-positive amount are stored but contribute nothing.
func (e *Engine) AddCostEvent(ctx context.Context, tripID string, kind models.CostEventKind, event models.CostEvent) (*models.Trip, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, kind)
	}
	return e.mutate(ctx, tripID, func(ctx context.Context, trip *models.Trip, ownerID string) error {
		ev, err := e.newEvent(event, ownerID)
		if err != nil {
			return err
		}
		ev.TripID = trip.ID
		if err := e.store.InsertCostEvents(ctx, kind, []models.CostEvent{ev}); err != nil {
			return fmt.Errorf("failed to insert %s event: %w", kind, err)
		}
		return nil
	})
}

// UpdateCostEvent replaces the event's fields and returns the recomputed trip
func (e *Engine) UpdateCostEvent(ctx context.Context, tripID string, kind models.CostEventKind, eventID string, event models.CostEvent) (*models.Trip, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, kind)
	}
	return e.mutate(ctx, tripID, func(ctx context.Context, trip *models.Trip, ownerID string) error {
		id, err := objectID(eventID)
		if err != nil {
			return err
		}
		ev, err := e.newEvent(event, ownerID)
		if err != nil {
			return err
		}
		ev.ID = id
		ev.TripID = trip.ID
		if err := e.store.UpdateCostEvent(ctx, kind, ev); err != nil {
			return fmt.Errorf("failed to update %s event: %w", kind, err)
		}
		return nil
	})
}

// DeleteCostEvent removes the event and returns the recomputed trip
func (e *Engine) DeleteCostEvent(ctx context.Context, tripID string, kind models.CostEventKind, eventID string) (*models.Trip, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, kind)
	}
	return e.mutate(ctx, tripID, func(ctx context.Context, trip *models.Trip, ownerID string) error {
		if err := e.store.DeleteCostEvent(ctx, kind, tripID, eventID, ownerID); err != nil {
			return fmt.Errorf("failed to delete %s event: %w", kind, err)
		}
		return nil
	})
}

func (e *Engine) newPurchase(p models.DieselPurchase, ownerID string) (models.DieselPurchase, error) {
	cost, err := storable(tripcost.PurchaseCost(p.Quantity, p.UnitPrice))
	if err != nil {
		return models.DieselPurchase{}, err
	}
	return models.DieselPurchase{
		ID:           primitive.NewObjectID(),
		OwnerID:      ownerID,
		State:        p.State,
		City:         p.City,
		Quantity:     p.Quantity,
		UnitPrice:    p.UnitPrice,
		PurchaseDate: p.PurchaseDate,
		Cost:         cost,
		CreatedAt:    e.now(),
	}, nil
}

// newEvent stores the amount rounded to cents, the same value both event sums see
func (e *Engine) newEvent(ev models.CostEvent, ownerID string) (models.CostEvent, error) {
	if math.Abs(ev.Amount) > tripcost.MaxAmount {
		return models.CostEvent{}, ErrAmountOutOfRange
	}
	now := e.now()
	eventTime := ev.EventTime
	if eventTime.IsZero() {
		eventTime = now
	}
	return models.CostEvent{
		ID:         primitive.NewObjectID(),
		OwnerID:    ownerID,
		Amount:     tripcost.Float(tripcost.Amount(ev.Amount)),
		State:      ev.State,
		Checkpoint: ev.Checkpoint,
		Notes:      ev.Notes,
		EventTime:  eventTime,
		CreatedAt:  now,
	}, nil
}
