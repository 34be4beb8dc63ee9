package databases

//go generate: mockery --name CostEventDatabase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/truck-ledger-api/models"
	"github.com/linesmerrill/truck-ledger-api/tripcost"
)

// CostEventDatabase contains the methods to use with one of the cost event databases.
// There is one collection per models.CostEventKind.
type CostEventDatabase interface {
	InsertMany(ctx context.Context, events []models.CostEvent) error
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}) error
	SumAmounts(ctx context.Context, filter bson.M) (decimal.Decimal, error)
}

type costEventDatabase struct {
	db         DatabaseHelper
	collection string
}

// NewCostEventDatabase initializes a new instance of the cost event database of the given kind
func NewCostEventDatabase(db DatabaseHelper, kind models.CostEventKind) CostEventDatabase {
	return &costEventDatabase{
		db:         db,
		collection: kind.Collection(),
	}
}

func (c *costEventDatabase) InsertMany(ctx context.Context, events []models.CostEvent) error {
	docs := make([]interface{}, 0, len(events))
	for _, ev := range events {
		docs = append(docs, ev)
	}
	return c.db.Collection(c.collection).InsertMany(ctx, docs)
}

func (c *costEventDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error) {
	res, err := c.db.Collection(c.collection).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (c *costEventDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	res, err := c.db.Collection(c.collection).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *costEventDatabase) DeleteMany(ctx context.Context, filter interface{}) error {
	_, err := c.db.Collection(c.collection).DeleteMany(ctx, filter)
	return err
}

// SumAmounts sums the positive amounts of the matching events. The sum is taken
// server side in decimal128 so no float error accumulates, each amount rounded to
// cents first as the ledger does when it writes them.
func (c *costEventDatabase) SumAmounts(ctx context.Context, filter bson.M) (decimal.Decimal, error) {
	match := bson.M{"amount": bson.M{"$gt": 0}}
	for k, v := range filter {
		match[k] = v
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": bson.M{"$round": bson.A{bson.M{"$toDecimal": "$amount"}, tripcost.Places}}},
		}}},
	}
	cursor, err := c.db.Collection(c.collection).Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, err
	}
	var results []struct {
		Total primitive.Decimal128 `bson:"total"`
	}
	if err := cursor.Decode(&results); err != nil {
		return decimal.Zero, err
	}
	if len(results) == 0 {
		return decimal.Zero, nil
	}
	sum, err := decimal.NewFromString(results[0].Total.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s sum: %w", c.collection, err)
	}
	return sum, nil
}
