package databases

//go generate: mockery --name TripDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/truck-ledger-api/models"
)

const tripName = "trips"

// TripDatabase contains the methods to use with the trip database
type TripDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Trip, error)
	FindRefs(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.TripRef, error)
	Aggregate(ctx context.Context, pipeline interface{}) ([]models.Trip, error)
	InsertOne(ctx context.Context, trip models.Trip) (primitive.ObjectID, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
}

type tripDatabase struct {
	db DatabaseHelper
}

// NewTripDatabase initializes a new instance of trip database with the provided db connection
func NewTripDatabase(db DatabaseHelper) TripDatabase {
	return &tripDatabase{
		db: db,
	}
}

func (t *tripDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Trip, error) {
	var trips []models.Trip
	err := t.db.Collection(tripName).Find(ctx, filter, opts...).Decode(&trips)
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// FindRefs is Find decoding only the trip and owner ids
func (t *tripDatabase) FindRefs(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.TripRef, error) {
	var refs []models.TripRef
	err := t.db.Collection(tripName).Find(ctx, filter, opts...).Decode(&refs)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (t *tripDatabase) Aggregate(ctx context.Context, pipeline interface{}) ([]models.Trip, error) {
	cursor, err := t.db.Collection(tripName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var trips []models.Trip
	if err := cursor.Decode(&trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (t *tripDatabase) InsertOne(ctx context.Context, trip models.Trip) (primitive.ObjectID, error) {
	res, err := t.db.Collection(tripName).InsertOne(ctx, trip)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.Decode().(primitive.ObjectID)
	return id, nil
}

func (t *tripDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error) {
	res, err := t.db.Collection(tripName).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (t *tripDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	res, err := t.db.Collection(tripName).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
