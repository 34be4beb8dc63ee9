package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/linesmerrill/truck-ledger-api/models"
)

// Store is the persistence collaborator. Every call taking an ownerID must only see
// and touch that owner's records and report anything else as ErrNotFound.
type Store interface {
	FetchTrip(ctx context.Context, id, ownerID string) (*models.Trip, error)
	FetchTrips(ctx context.Context, ownerID, truckID string) ([]models.Trip, error)
	InsertTrip(ctx context.Context, trip models.Trip) (*models.Trip, error)
	UpdateTrip(ctx context.Context, trip models.Trip) error
	UpdateTripTotal(ctx context.Context, id, ownerID string, total float64) error
	DeleteTrip(ctx context.Context, id, ownerID string) error
	DeleteTripChildren(ctx context.Context, tripID, ownerID string) error

	// Child records arrive with their IDs already assigned
	InsertDieselPurchases(ctx context.Context, purchases []models.DieselPurchase) error
	UpdateDieselPurchase(ctx context.Context, purchase models.DieselPurchase) error
	DeleteDieselPurchase(ctx context.Context, tripID, purchaseID, ownerID string) error

	InsertCostEvents(ctx context.Context, kind models.CostEventKind, events []models.CostEvent) error
	UpdateCostEvent(ctx context.Context, kind models.CostEventKind, event models.CostEvent) error
	DeleteCostEvent(ctx context.Context, kind models.CostEventKind, tripID, eventID, ownerID string) error
	// SumEventAmounts sums the positive amounts of the trip's events of one kind
	SumEventAmounts(ctx context.Context, kind models.CostEventKind, tripID, ownerID string) (decimal.Decimal, error)

	InsertTruck(ctx context.Context, truck models.Truck) (*models.Truck, error)
	FetchTruck(ctx context.Context, id, ownerID string) (*models.Truck, error)
	FetchTrucks(ctx context.Context, ownerID string) ([]models.Truck, error)
	FindTruckByPlate(ctx context.Context, ownerID, plate string) (*models.Truck, error)
	UpdateTruck(ctx context.Context, truck models.Truck) error
	DeleteTruck(ctx context.Context, id, ownerID string) error

	// SweepTrips pages over every trip of every owner in a stable order
	SweepTrips(ctx context.Context, limit, page int) ([]models.TripRef, error)
}

// Transactor is implemented by stores that can run several writes atomically.
// The context passed to fn must be used for every store call inside it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier is told about every trip whose stored total changed
type Notifier interface {
	TripTotalChanged(ownerID string, trip models.Trip)
}

type noopNotifier struct{}

func (noopNotifier) TripTotalChanged(string, models.Trip) {}
