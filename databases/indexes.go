package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/truck-ledger-api/models"
)

// EnsureIndexes creates the indexes the queries and uniqueness rules rely on. It is
// safe to run on every start.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	byTrip := []mongo.IndexModel{{Keys: bson.D{{Key: "tripId", Value: 1}, {Key: "ownerId", Value: 1}}}}

	indexes := map[string][]mongo.IndexModel{
		userName: {{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		truckName: {{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "plate", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		tripName: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "tripDate", Value: -1}}},
			{Keys: bson.D{{Key: "truckId", Value: 1}}},
		},
		dieselPurchaseName: byTrip,
	}
	for _, kind := range models.ValidCostEventKinds() {
		indexes[kind.Collection()] = byTrip
	}

	for name, idx := range indexes {
		if err := db.Collection(name).CreateIndexes(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
