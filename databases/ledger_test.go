package databases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/truck-ledger-api/databases"
	"github.com/linesmerrill/truck-ledger-api/databases/mocks"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

const owner = "64b7f0c2a1b2c3d4e5f60001"

func newMockedStore() (*mocks.DatabaseHelper, *mocks.CollectionHelper, *databases.LedgerStore) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	dbHelper.On("Collection", mock.Anything).Return(collectionHelper)
	return dbHelper, collectionHelper, databases.NewLedgerStore(dbHelper)
}

func TestLedgerStore_FetchTripMalformedID(t *testing.T) {
	dbHelper, _, store := newMockedStore()

	_, err := store.FetchTrip(context.Background(), "not-an-id", owner)

	assert.ErrorIs(t, err, ledger.ErrNotFound)
	dbHelper.AssertNotCalled(t, "Collection", mock.Anything)
}

func TestLedgerStore_FetchTrip(t *testing.T) {
	_, collectionHelper, store := newMockedStore()
	found := primitive.NewObjectID()
	missing := primitive.NewObjectID()

	crFound := &mocks.CursorHelper{}
	crFound.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Trip)
		*arg = []models.Trip{{ID: found, OwnerID: owner, TotalCost: 9630}}
	})
	crMissing := &mocks.CursorHelper{}
	crMissing.On("Decode", mock.Anything).Return(nil)

	forTrip := func(id primitive.ObjectID) interface{} {
		return mock.MatchedBy(func(pipeline mongo.Pipeline) bool {
			match := pipeline[0][0].Value.(bson.M)
			// one $match, the purchases lookup and one lookup per event kind
			return match["_id"] == id && match["ownerId"] == owner && len(pipeline) == 2+len(models.ValidCostEventKinds())
		})
	}
	collectionHelper.On("Aggregate", context.Background(), forTrip(found)).Return(crFound, nil)
	collectionHelper.On("Aggregate", context.Background(), forTrip(missing)).Return(crMissing, nil)

	trip, err := store.FetchTrip(context.Background(), found.Hex(), owner)
	require.NoError(t, err)
	assert.Equal(t, 9630.0, trip.TotalCost)

	_, err = store.FetchTrip(context.Background(), missing.Hex(), owner)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLedgerStore_FetchTruckNotFound(t *testing.T) {
	_, collectionHelper, store := newMockedStore()
	id := primitive.NewObjectID()

	srHelper := &mocks.SingleResultHelper{}
	srHelper.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	collectionHelper.On("FindOne", context.Background(), bson.M{"_id": id, "ownerId": owner}).Return(srHelper)

	_, err := store.FetchTruck(context.Background(), id.Hex(), owner)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLedgerStore_InsertTruckDuplicatePlate(t *testing.T) {
	_, collectionHelper, store := newMockedStore()

	collectionHelper.On("InsertOne", context.Background(), mock.Anything).
		Return(nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}})

	_, err := store.InsertTruck(context.Background(), models.Truck{OwnerID: owner, Plate: "DL01AB1234"})
	assert.ErrorIs(t, err, ledger.ErrDuplicatePlate)
}

func TestLedgerStore_UpdateTripTotal(t *testing.T) {
	_, collectionHelper, store := newMockedStore()
	id := primitive.NewObjectID()
	other := primitive.NewObjectID()

	collectionHelper.On("UpdateOne", context.Background(), bson.M{"_id": id, "ownerId": owner}, bson.M{"$set": bson.M{"totalCost": 14130.0}}).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)
	collectionHelper.On("UpdateOne", context.Background(), bson.M{"_id": other, "ownerId": owner}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	assert.NoError(t, store.UpdateTripTotal(context.Background(), id.Hex(), owner, 14130))
	assert.ErrorIs(t, store.UpdateTripTotal(context.Background(), other.Hex(), owner, 1), ledger.ErrNotFound)
}

func TestLedgerStore_DeleteTripChildren(t *testing.T) {
	_, collectionHelper, store := newMockedStore()
	tripID := primitive.NewObjectID()

	collectionHelper.On("DeleteMany", context.Background(), bson.M{"tripId": tripID, "ownerId": owner}).
		Return(&mongo.DeleteResult{}, nil)

	require.NoError(t, store.DeleteTripChildren(context.Background(), tripID.Hex(), owner))
	collectionHelper.AssertNumberOfCalls(t, "DeleteMany", 1+len(models.ValidCostEventKinds()))
}

func TestLedgerStore_SweepTripsPaginates(t *testing.T) {
	_, collectionHelper, store := newMockedStore()

	crHelper := &mocks.CursorHelper{}
	crHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.TripRef)
		*arg = []models.TripRef{{ID: primitive.NewObjectID(), OwnerID: owner}}
	})
	collectionHelper.On("Find", context.Background(), bson.M{}, mock.MatchedBy(func(opts *options.FindOptions) bool {
		return *opts.Limit == 5 && *opts.Skip == 10
	})).Return(crHelper)

	refs, err := store.SweepTrips(context.Background(), 5, 3)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestEnsureIndexes(t *testing.T) {
	dbHelper, collectionHelper, _ := newMockedStore()
	collectionHelper.On("CreateIndexes", context.Background(), mock.Anything).Return(nil)

	require.NoError(t, databases.EnsureIndexes(context.Background(), dbHelper))

	dbHelper.AssertCalled(t, "Collection", "trucks")
	dbHelper.AssertCalled(t, "Collection", "users")
	dbHelper.AssertCalled(t, "Collection", "dieselPurchases")
	collectionHelper.AssertNumberOfCalls(t, "CreateIndexes", 4+len(models.ValidCostEventKinds()))
}
