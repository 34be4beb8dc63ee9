package databases

//go generate: mockery --name TruckDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/truck-ledger-api/models"
)

const truckName = "trucks"

// TruckDatabase contains the methods to use with the truck database
type TruckDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Truck, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Truck, error)
	InsertOne(ctx context.Context, truck models.Truck) (primitive.ObjectID, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
}

type truckDatabase struct {
	db DatabaseHelper
}

// NewTruckDatabase initializes a new instance of truck database with the provided db connection
func NewTruckDatabase(db DatabaseHelper) TruckDatabase {
	return &truckDatabase{
		db: db,
	}
}

func (t *truckDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Truck, error) {
	truck := &models.Truck{}
	err := t.db.Collection(truckName).FindOne(ctx, filter).Decode(&truck)
	if err != nil {
		return nil, err
	}
	return truck, nil
}

func (t *truckDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Truck, error) {
	var trucks []models.Truck
	err := t.db.Collection(truckName).Find(ctx, filter, opts...).Decode(&trucks)
	if err != nil {
		return nil, err
	}
	return trucks, nil
}

func (t *truckDatabase) InsertOne(ctx context.Context, truck models.Truck) (primitive.ObjectID, error) {
	res, err := t.db.Collection(truckName).InsertOne(ctx, truck)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.Decode().(primitive.ObjectID)
	return id, nil
}

func (t *truckDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error) {
	res, err := t.db.Collection(truckName).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (t *truckDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	res, err := t.db.Collection(truckName).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
