package databases

//go generate: mockery --name DieselPurchaseDatabase

import (
	"context"

	"github.com/linesmerrill/truck-ledger-api/models"
)

const dieselPurchaseName = "dieselPurchases"

// DieselPurchaseDatabase contains the methods to use with the diesel purchase database
type DieselPurchaseDatabase interface {
	InsertMany(ctx context.Context, purchases []models.DieselPurchase) error
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}) error
}

type dieselPurchaseDatabase struct {
	db DatabaseHelper
}

// NewDieselPurchaseDatabase initializes a new instance of diesel purchase database with the provided db connection
func NewDieselPurchaseDatabase(db DatabaseHelper) DieselPurchaseDatabase {
	return &dieselPurchaseDatabase{
		db: db,
	}
}

func (d *dieselPurchaseDatabase) InsertMany(ctx context.Context, purchases []models.DieselPurchase) error {
	docs := make([]interface{}, 0, len(purchases))
	for _, p := range purchases {
		docs = append(docs, p)
	}
	return d.db.Collection(dieselPurchaseName).InsertMany(ctx, docs)
}

func (d *dieselPurchaseDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (int64, error) {
	res, err := d.db.Collection(dieselPurchaseName).UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (d *dieselPurchaseDatabase) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	res, err := d.db.Collection(dieselPurchaseName).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (d *dieselPurchaseDatabase) DeleteMany(ctx context.Context, filter interface{}) error {
	_, err := d.db.Collection(dieselPurchaseName).DeleteMany(ctx, filter)
	return err
}
