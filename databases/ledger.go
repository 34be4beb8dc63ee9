package databases

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// LedgerStore is the mongo backed ledger.Store. Every lookup filters on ownerId, so
// a record owned by someone else is indistinguishable from a missing one.
type LedgerStore struct {
	db        DatabaseHelper
	trucks    TruckDatabase
	trips     TripDatabase
	purchases DieselPurchaseDatabase
	events    map[models.CostEventKind]CostEventDatabase
}

var _ ledger.Store = (*LedgerStore)(nil)
var _ ledger.Transactor = (*LedgerStore)(nil)

// NewLedgerStore wires the collection databases of the ledger
func NewLedgerStore(db DatabaseHelper) *LedgerStore {
	s := &LedgerStore{
		db:        db,
		trucks:    NewTruckDatabase(db),
		trips:     NewTripDatabase(db),
		purchases: NewDieselPurchaseDatabase(db),
		events:    map[models.CostEventKind]CostEventDatabase{},
	}
	for _, kind := range models.ValidCostEventKinds() {
		s.events[kind] = NewCostEventDatabase(db, kind)
	}
	return s
}

// WithTransaction runs fn inside a mongo transaction. It needs a replica set.
// fn runs and the commit is attempted once; transient errors are returned, not retried.
func (s *LedgerStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	return runTransaction(mongo.NewSessionContext(ctx, session), session, fn)
}

// transactionSession is the part of mongo.Session a single-attempt transaction uses
type transactionSession interface {
	StartTransaction(opts ...*options.TransactionOptions) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
}

func runTransaction(ctx context.Context, session transactionSession, fn func(ctx context.Context) error) error {
	if err := session.StartTransaction(); err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if err := fn(ctx); err != nil {
		if abortErr := session.AbortTransaction(context.WithoutCancel(ctx)); abortErr != nil {
			zap.S().Warnw("failed to abort transaction", "error", abortErr)
		}
		return err
	}
	if err := session.CommitTransaction(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FetchTrip returns the trip with its diesel purchases and every kind of cost event
func (s *LedgerStore) FetchTrip(ctx context.Context, id, ownerID string) (*models.Trip, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: ownedBy(oid, ownerID)}},
		lookupChildren(dieselPurchaseName, "dieselPurchases"),
	}
	for _, kind := range models.ValidCostEventKinds() {
		pipeline = append(pipeline, lookupChildren(kind.Collection(), kind.Collection()))
	}
	trips, err := s.trips.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, ledger.ErrNotFound
	}
	return &trips[0], nil
}

// lookupChildren joins the trip's records of another collection in insertion order
func lookupChildren(from, as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.M{
		"from": from,
		"let":  bson.M{"tripId": "$_id"},
		"pipeline": mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"$expr": bson.M{"$eq": bson.A{"$tripId", "$$tripId"}}}}},
			{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}},
		},
		"as": as,
	}}}
}

// FetchTrips returns the owner's trips without children, newest trip date first
func (s *LedgerStore) FetchTrips(ctx context.Context, ownerID, truckID string) ([]models.Trip, error) {
	filter := bson.M{"ownerId": ownerID}
	if truckID != "" {
		oid, err := objectID(truckID)
		if err != nil {
			return []models.Trip{}, nil
		}
		filter["truckId"] = oid
	}
	opts := options.Find().SetSort(bson.D{{Key: "tripDate", Value: -1}, {Key: "_id", Value: -1}})
	trips, err := s.trips.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if trips == nil {
		trips = []models.Trip{}
	}
	return trips, nil
}

// InsertTrip stores the trip document without its children
func (s *LedgerStore) InsertTrip(ctx context.Context, trip models.Trip) (*models.Trip, error) {
	trip.ID = primitive.NilObjectID
	trip.DieselPurchases = nil
	trip.TripEvents = models.TripEvents{}
	id, err := s.trips.InsertOne(ctx, trip)
	if err != nil {
		return nil, err
	}
	trip.ID = id
	return &trip, nil
}

// UpdateTrip writes the trip's own fields together with its total
func (s *LedgerStore) UpdateTrip(ctx context.Context, trip models.Trip) error {
	update := bson.M{"$set": bson.M{
		"source":             trip.Source,
		"destination":        trip.Destination,
		"tripDate":           trip.TripDate,
		"fastTagCost":        trip.FastTagCost,
		"mcdCost":            trip.McdCost,
		"greenTaxCost":       trip.GreenTaxCost,
		"rtoCost":            trip.RtoCost,
		"dtoCost":            trip.DtoCost,
		"municipalitiesCost": trip.MunicipalitiesCost,
		"borderCost":         trip.BorderCost,
		"repairCost":         trip.RepairCost,
		"totalCost":          trip.TotalCost,
		"updatedAt":          trip.UpdatedAt,
	}}
	matched, err := s.trips.UpdateOne(ctx, ownedBy(trip.ID, trip.OwnerID), update)
	return matchedOne(matched, err)
}

// UpdateTripTotal writes nothing but the total
func (s *LedgerStore) UpdateTripTotal(ctx context.Context, id, ownerID string, total float64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	matched, err := s.trips.UpdateOne(ctx, ownedBy(oid, ownerID), bson.M{"$set": bson.M{"totalCost": total}})
	return matchedOne(matched, err)
}

// DeleteTrip deletes the trip document only, see DeleteTripChildren
func (s *LedgerStore) DeleteTrip(ctx context.Context, id, ownerID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	deleted, err := s.trips.DeleteOne(ctx, ownedBy(oid, ownerID))
	return matchedOne(deleted, err)
}

// DeleteTripChildren deletes the trip's diesel purchases and cost events
func (s *LedgerStore) DeleteTripChildren(ctx context.Context, tripID, ownerID string) error {
	filter, err := childrenOf(tripID, ownerID)
	if err != nil {
		return err
	}
	if err := s.purchases.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete diesel purchases: %w", err)
	}
	for _, kind := range models.ValidCostEventKinds() {
		if err := s.events[kind].DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("failed to delete %s events: %w", kind, err)
		}
	}
	return nil
}

// InsertDieselPurchases implements ledger.Store
func (s *LedgerStore) InsertDieselPurchases(ctx context.Context, purchases []models.DieselPurchase) error {
	return s.purchases.InsertMany(ctx, purchases)
}

// UpdateDieselPurchase replaces the purchase's editable fields
func (s *LedgerStore) UpdateDieselPurchase(ctx context.Context, p models.DieselPurchase) error {
	filter := bson.M{"_id": p.ID, "tripId": p.TripID, "ownerId": p.OwnerID}
	update := bson.M{"$set": bson.M{
		"state":        p.State,
		"city":         p.City,
		"quantity":     p.Quantity,
		"unitPrice":    p.UnitPrice,
		"purchaseDate": p.PurchaseDate,
		"cost":         p.Cost,
	}}
	matched, err := s.purchases.UpdateOne(ctx, filter, update)
	return matchedOne(matched, err)
}

// DeleteDieselPurchase implements ledger.Store
func (s *LedgerStore) DeleteDieselPurchase(ctx context.Context, tripID, purchaseID, ownerID string) error {
	filter, err := childOf(tripID, purchaseID, ownerID)
	if err != nil {
		return err
	}
	deleted, err := s.purchases.DeleteOne(ctx, filter)
	return matchedOne(deleted, err)
}

// InsertCostEvents implements ledger.Store
func (s *LedgerStore) InsertCostEvents(ctx context.Context, kind models.CostEventKind, events []models.CostEvent) error {
	db, err := s.eventsOf(kind)
	if err != nil {
		return err
	}
	return db.InsertMany(ctx, events)
}

// UpdateCostEvent replaces the event's editable fields
func (s *LedgerStore) UpdateCostEvent(ctx context.Context, kind models.CostEventKind, ev models.CostEvent) error {
	db, err := s.eventsOf(kind)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": ev.ID, "tripId": ev.TripID, "ownerId": ev.OwnerID}
	update := bson.M{"$set": bson.M{
		"amount":     ev.Amount,
		"state":      ev.State,
		"checkpoint": ev.Checkpoint,
		"notes":      ev.Notes,
		"eventTime":  ev.EventTime,
	}}
	matched, err := db.UpdateOne(ctx, filter, update)
	return matchedOne(matched, err)
}

// DeleteCostEvent implements ledger.Store
func (s *LedgerStore) DeleteCostEvent(ctx context.Context, kind models.CostEventKind, tripID, eventID, ownerID string) error {
	db, err := s.eventsOf(kind)
	if err != nil {
		return err
	}
	filter, err := childOf(tripID, eventID, ownerID)
	if err != nil {
		return err
	}
	deleted, err := db.DeleteOne(ctx, filter)
	return matchedOne(deleted, err)
}

// SumEventAmounts implements ledger.Store
func (s *LedgerStore) SumEventAmounts(ctx context.Context, kind models.CostEventKind, tripID, ownerID string) (decimal.Decimal, error) {
	db, err := s.eventsOf(kind)
	if err != nil {
		return decimal.Zero, err
	}
	filter, err := childrenOf(tripID, ownerID)
	if err != nil {
		return decimal.Zero, err
	}
	return db.SumAmounts(ctx, filter)
}

// InsertTruck maps the unique plate index violation to ledger.ErrDuplicatePlate
func (s *LedgerStore) InsertTruck(ctx context.Context, truck models.Truck) (*models.Truck, error) {
	truck.ID = primitive.NilObjectID
	id, err := s.trucks.InsertOne(ctx, truck)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ledger.ErrDuplicatePlate
	}
	if err != nil {
		return nil, err
	}
	truck.ID = id
	return &truck, nil
}

// FetchTruck implements ledger.Store
func (s *LedgerStore) FetchTruck(ctx context.Context, id, ownerID string) (*models.Truck, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	truck, err := s.trucks.FindOne(ctx, ownedBy(oid, ownerID))
	if err != nil {
		return nil, notFound(err)
	}
	return truck, nil
}

// FetchTrucks returns the owner's trucks by name
func (s *LedgerStore) FetchTrucks(ctx context.Context, ownerID string) ([]models.Truck, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	trucks, err := s.trucks.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	if trucks == nil {
		trucks = []models.Truck{}
	}
	return trucks, nil
}

// FindTruckByPlate expects a normalized plate
func (s *LedgerStore) FindTruckByPlate(ctx context.Context, ownerID, plate string) (*models.Truck, error) {
	truck, err := s.trucks.FindOne(ctx, bson.M{"ownerId": ownerID, "plate": plate})
	if err != nil {
		return nil, notFound(err)
	}
	return truck, nil
}

// UpdateTruck implements ledger.Store
func (s *LedgerStore) UpdateTruck(ctx context.Context, truck models.Truck) error {
	update := bson.M{"$set": bson.M{
		"name":      truck.Name,
		"plate":     truck.Plate,
		"model":     truck.Model,
		"updatedAt": truck.UpdatedAt,
	}}
	matched, err := s.trucks.UpdateOne(ctx, ownedBy(truck.ID, truck.OwnerID), update)
	if mongo.IsDuplicateKeyError(err) {
		return ledger.ErrDuplicatePlate
	}
	return matchedOne(matched, err)
}

// DeleteTruck implements ledger.Store
func (s *LedgerStore) DeleteTruck(ctx context.Context, id, ownerID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	deleted, err := s.trucks.DeleteOne(ctx, ownedBy(oid, ownerID))
	return matchedOne(deleted, err)
}

// SweepTrips pages over every trip in _id order
func (s *LedgerStore) SweepTrips(ctx context.Context, limit, page int) ([]models.TripRef, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	opts.SetProjection(bson.M{"_id": 1, "ownerId": 1})
	return s.trips.FindRefs(ctx, bson.M{}, opts)
}

func (s *LedgerStore) eventsOf(kind models.CostEventKind) (CostEventDatabase, error) {
	db, ok := s.events[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownEventKind, kind)
	}
	return db, nil
}

func objectID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ledger.ErrNotFound
	}
	return id, nil
}

func childrenOf(tripID, ownerID string) (bson.M, error) {
	oid, err := objectID(tripID)
	if err != nil {
		return nil, err
	}
	return bson.M{"tripId": oid, "ownerId": ownerID}, nil
}

func childOf(tripID, childID, ownerID string) (bson.M, error) {
	filter, err := childrenOf(tripID, ownerID)
	if err != nil {
		return nil, err
	}
	oid, err := objectID(childID)
	if err != nil {
		return nil, err
	}
	filter["_id"] = oid
	return filter, nil
}

func matchedOne(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ledger.ErrNotFound
	}
	return err
}
