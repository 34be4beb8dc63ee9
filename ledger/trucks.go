package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/truck-ledger-api/models"
)

// CreateTruck registers a truck for the acting owner. Plates are normalized and
// unique per owner.
func (e *Engine) CreateTruck(ctx context.Context, truck models.Truck) (*models.Truck, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	truck.ID = primitive.NilObjectID
	truck.OwnerID = ownerID
	truck.Plate = models.NormalizePlate(truck.Plate)
	if err := e.checkPlate(ctx, ownerID, truck.Plate, ""); err != nil {
		return nil, err
	}
	now := e.now()
	truck.CreatedAt = now
	truck.UpdatedAt = now

	created, err := e.store.InsertTruck(ctx, truck)
	if err != nil {
		return nil, fmt.Errorf("failed to insert truck: %w", err)
	}
	return created, nil
}

// GetTruck returns one of the owner's trucks
func (e *Engine) GetTruck(ctx context.Context, truckID string) (*models.Truck, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	truck, err := e.store.FetchTruck(ctx, truckID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch truck: %w", err)
	}
	return truck, nil
}

// ListTrucks returns all of the owner's trucks
func (e *Engine) ListTrucks(ctx context.Context) ([]models.Truck, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	trucks, err := e.store.FetchTrucks(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trucks: %w", err)
	}
	return trucks, nil
}

// UpdateTruck applies the patch to one of the owner's trucks
func (e *Engine) UpdateTruck(ctx context.Context, truckID string, patch models.TruckPatch) (*models.Truck, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	truck, err := e.store.FetchTruck(ctx, truckID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch truck: %w", err)
	}
	if patch.Name != nil {
		truck.Name = *patch.Name
	}
	if patch.Model != nil {
		truck.Model = *patch.Model
	}
	if patch.Plate != nil {
		plate := models.NormalizePlate(*patch.Plate)
		if plate != truck.Plate {
			if err := e.checkPlate(ctx, ownerID, plate, truckID); err != nil {
				return nil, err
			}
			truck.Plate = plate
		}
	}
	truck.UpdatedAt = e.now()
	if err := e.store.UpdateTruck(ctx, *truck); err != nil {
		return nil, fmt.Errorf("failed to update truck: %w", err)
	}
	return truck, nil
}

// DeleteTruck deletes the truck together with its trips and their children
func (e *Engine) DeleteTruck(ctx context.Context, truckID string) error {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return err
	}
	if _, err := e.store.FetchTruck(ctx, truckID, ownerID); err != nil {
		return fmt.Errorf("failed to fetch truck: %w", err)
	}
	trips, err := e.store.FetchTrips(ctx, ownerID, truckID)
	if err != nil {
		return fmt.Errorf("failed to fetch trips: %w", err)
	}

	ctx, cancel := detach(ctx)
	defer cancel()
	for _, trip := range trips {
		if err := e.deleteTrip(ctx, trip.ID.Hex(), ownerID); err != nil {
			return err
		}
	}
	if err := e.store.DeleteTruck(ctx, truckID, ownerID); err != nil {
		return fmt.Errorf("failed to delete truck: %w", err)
	}
	return nil
}

func (e *Engine) checkPlate(ctx context.Context, ownerID, plate, exceptID string) error {
	existing, err := e.store.FindTruckByPlate(ctx, ownerID, plate)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up plate: %w", err)
	}
	if existing.ID.Hex() != exceptID {
		return ErrDuplicatePlate
	}
	return nil
}
