// Package ledgertest provides an in-memory ledger.Store for tests, with failure
// injection and transactions implemented as snapshot and restore.
package ledgertest

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
	"github.com/linesmerrill/truck-ledger-api/tripcost"
)

// Store is an in-memory ledger.Store. The zero value is not usable, use NewStore.
type Store struct {
	mu        sync.Mutex
	data      data
	failures  map[string]error
	hooks     map[string]func()
	calls     map[string]int
	txCommits int
}

type data struct {
	trucks    map[primitive.ObjectID]models.Truck
	trips     map[primitive.ObjectID]models.Trip
	purchases map[primitive.ObjectID]models.DieselPurchase
	events    map[models.CostEventKind]map[primitive.ObjectID]models.CostEvent
}

var _ ledger.Store = (*Store)(nil)
var _ ledger.Transactor = (*Store)(nil)

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{
		data:     newData(),
		failures: map[string]error{},
		hooks:    map[string]func(){},
		calls:    map[string]int{},
	}
}

func newData() data {
	d := data{
		trucks:    map[primitive.ObjectID]models.Truck{},
		trips:     map[primitive.ObjectID]models.Trip{},
		purchases: map[primitive.ObjectID]models.DieselPurchase{},
		events:    map[models.CostEventKind]map[primitive.ObjectID]models.CostEvent{},
	}
	for _, kind := range models.ValidCostEventKinds() {
		d.events[kind] = map[primitive.ObjectID]models.CostEvent{}
	}
	return d
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.trucks {
		c.trucks[k] = v
	}
	for k, v := range d.trips {
		c.trips[k] = v
	}
	for k, v := range d.purchases {
		c.purchases[k] = v
	}
	for kind, evs := range d.events {
		for k, v := range evs {
			c.events[kind][k] = v
		}
	}
	return c
}

// FailOn makes every later call of method return err. A nil err clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// OnCall runs fn whenever method is called and its context is still live. The call
// itself goes ahead, so cancelling a context from fn simulates a request that goes
// away right after that write. fn must not call back into the store.
func (s *Store) OnCall(method string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[method] = fn
}

// Calls returns how many times method was called
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Commits returns the number of committed transactions
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCommits
}

// SetTotal overwrites a stored total, simulating a lost update
func (s *Store) SetTotal(tripID primitive.ObjectID, total float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.data.trips[tripID]
	t.TotalCost = total
	s.data.trips[tripID] = t
}

// StoredTrip returns the stored trip document without children
func (s *Store) StoredTrip(tripID primitive.ObjectID) (models.Trip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.trips[tripID]
	return t, ok
}

// Counts returns the number of stored trips, diesel purchases and events
func (s *Store) Counts() (trips, purchases, events int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evs := range s.data.events {
		events += len(evs)
	}
	return len(s.data.trips), len(s.data.purchases), events
}

// WithTransaction restores the previous state when fn fails
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.calls["WithTransaction"]++
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.failures["WithTransaction"]; err != nil {
		s.mu.Unlock()
		return err
	}
	saved := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.txCommits++
	s.mu.Unlock()
	return nil
}

// begin records the call and returns the injected failure, with the lock held.
// A done ctx fails the call the way a driver would.
func (s *Store) begin(ctx context.Context, method string) error {
	s.mu.Lock()
	s.calls[method]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if hook := s.hooks[method]; hook != nil {
		hook()
	}
	return s.failures[method]
}

func parseID(hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	return id, err == nil
}

// FetchTrip implements ledger.Store
func (s *Store) FetchTrip(ctx context.Context, id, ownerID string) (*models.Trip, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "FetchTrip"); err != nil {
		return nil, err
	}
	oid, ok := parseID(id)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	trip, ok := s.data.trips[oid]
	if !ok || trip.OwnerID != ownerID {
		return nil, ledger.ErrNotFound
	}
	for _, p := range s.data.purchases {
		if p.TripID == oid {
			trip.DieselPurchases = append(trip.DieselPurchases, p)
		}
	}
	sort.Slice(trip.DieselPurchases, func(i, j int) bool {
		return trip.DieselPurchases[i].ID.Hex() < trip.DieselPurchases[j].ID.Hex()
	})
	for _, kind := range models.ValidCostEventKinds() {
		var evs []models.CostEvent
		for _, ev := range s.data.events[kind] {
			if ev.TripID == oid {
				evs = append(evs, ev)
			}
		}
		sort.Slice(evs, func(i, j int) bool { return evs[i].ID.Hex() < evs[j].ID.Hex() })
		*trip.Events(kind) = evs
	}
	return &trip, nil
}

// FetchTrips implements ledger.Store
func (s *Store) FetchTrips(ctx context.Context, ownerID, truckID string) ([]models.Trip, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "FetchTrips"); err != nil {
		return nil, err
	}
	var trips []models.Trip
	for _, t := range s.data.trips {
		if t.OwnerID != ownerID || (truckID != "" && t.TruckID.Hex() != truckID) {
			continue
		}
		trips = append(trips, t)
	}
	sort.Slice(trips, func(i, j int) bool {
		if trips[i].TripDate.Equal(trips[j].TripDate) {
			return trips[i].ID.Hex() > trips[j].ID.Hex()
		}
		return trips[i].TripDate.After(trips[j].TripDate)
	})
	return trips, nil
}

// InsertTrip implements ledger.Store
func (s *Store) InsertTrip(ctx context.Context, trip models.Trip) (*models.Trip, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "InsertTrip"); err != nil {
		return nil, err
	}
	trip.ID = primitive.NewObjectID()
	trip.DieselPurchases = nil
	trip.TripEvents = models.TripEvents{}
	s.data.trips[trip.ID] = trip
	return &trip, nil
}

// UpdateTrip implements ledger.Store
func (s *Store) UpdateTrip(ctx context.Context, trip models.Trip) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "UpdateTrip"); err != nil {
		return err
	}
	stored, ok := s.data.trips[trip.ID]
	if !ok || stored.OwnerID != trip.OwnerID {
		return ledger.ErrNotFound
	}
	trip.DieselPurchases = nil
	trip.TripEvents = models.TripEvents{}
	trip.CreatedAt = stored.CreatedAt
	trip.TruckID = stored.TruckID
	s.data.trips[trip.ID] = trip
	return nil
}

// UpdateTripTotal implements ledger.Store
func (s *Store) UpdateTripTotal(ctx context.Context, id, ownerID string, total float64) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "UpdateTripTotal"); err != nil {
		return err
	}
	oid, _ := parseID(id)
	trip, ok := s.data.trips[oid]
	if !ok || trip.OwnerID != ownerID {
		return ledger.ErrNotFound
	}
	trip.TotalCost = total
	s.data.trips[oid] = trip
	return nil
}

// DeleteTrip implements ledger.Store
func (s *Store) DeleteTrip(ctx context.Context, id, ownerID string) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteTrip"); err != nil {
		return err
	}
	oid, _ := parseID(id)
	trip, ok := s.data.trips[oid]
	if !ok || trip.OwnerID != ownerID {
		return ledger.ErrNotFound
	}
	delete(s.data.trips, oid)
	return nil
}

// DeleteTripChildren implements ledger.Store
func (s *Store) DeleteTripChildren(ctx context.Context, tripID, ownerID string) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteTripChildren"); err != nil {
		return err
	}
	oid, _ := parseID(tripID)
	for id, p := range s.data.purchases {
		if p.TripID == oid && p.OwnerID == ownerID {
			delete(s.data.purchases, id)
		}
	}
	for _, evs := range s.data.events {
		for id, ev := range evs {
			if ev.TripID == oid && ev.OwnerID == ownerID {
				delete(evs, id)
			}
		}
	}
	return nil
}

// InsertDieselPurchases implements ledger.Store
func (s *Store) InsertDieselPurchases(ctx context.Context, purchases []models.DieselPurchase) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "InsertDieselPurchases"); err != nil {
		return err
	}
	for _, p := range purchases {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		s.data.purchases[p.ID] = p
	}
	return nil
}

// UpdateDieselPurchase implements ledger.Store
func (s *Store) UpdateDieselPurchase(ctx context.Context, purchase models.DieselPurchase) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "UpdateDieselPurchase"); err != nil {
		return err
	}
	stored, ok := s.data.purchases[purchase.ID]
	if !ok || stored.TripID != purchase.TripID || stored.OwnerID != purchase.OwnerID {
		return ledger.ErrNotFound
	}
	purchase.CreatedAt = stored.CreatedAt
	s.data.purchases[purchase.ID] = purchase
	return nil
}

// DeleteDieselPurchase implements ledger.Store
func (s *Store) DeleteDieselPurchase(ctx context.Context, tripID, purchaseID, ownerID string) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteDieselPurchase"); err != nil {
		return err
	}
	oid, _ := parseID(purchaseID)
	stored, ok := s.data.purchases[oid]
	if !ok || stored.TripID.Hex() != tripID || stored.OwnerID != ownerID {
		return ledger.ErrNotFound
	}
	delete(s.data.purchases, oid)
	return nil
}

// InsertCostEvents implements ledger.Store
func (s *Store) InsertCostEvents(ctx context.Context, kind models.CostEventKind, events []models.CostEvent) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "InsertCostEvents"); err != nil {
		return err
	}
	for _, ev := range events {
		if ev.ID.IsZero() {
			ev.ID = primitive.NewObjectID()
		}
		s.data.events[kind][ev.ID] = ev
	}
	return nil
}

// UpdateCostEvent implements ledger.Store
func (s *Store) UpdateCostEvent(ctx context.Context, kind models.CostEventKind, event models.CostEvent) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "UpdateCostEvent"); err != nil {
		return err
	}
	stored, ok := s.data.events[kind][event.ID]
	if !ok || stored.TripID != event.TripID || stored.OwnerID != event.OwnerID {
		return ledger.ErrNotFound
	}
	event.CreatedAt = stored.CreatedAt
	s.data.events[kind][event.ID] = event
	return nil
}

// DeleteCostEvent implements ledger.Store
func (s *Store) DeleteCostEvent(ctx context.Context, kind models.CostEventKind, tripID, eventID, ownerID string) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteCostEvent"); err != nil {
		return err
	}
	oid, _ := parseID(eventID)
	stored, ok := s.data.events[kind][oid]
	if !ok || stored.TripID.Hex() != tripID || stored.OwnerID != ownerID {
		return ledger.ErrNotFound
	}
	delete(s.data.events[kind], oid)
	return nil
}

// SumEventAmounts implements ledger.Store
func (s *Store) SumEventAmounts(ctx context.Context, kind models.CostEventKind, tripID, ownerID string) (decimal.Decimal, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "SumEventAmounts"); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, ev := range s.data.events[kind] {
		if ev.TripID.Hex() == tripID && ev.OwnerID == ownerID && ev.Counts() {
			sum = sum.Add(tripcost.Amount(ev.Amount))
		}
	}
	return sum, nil
}

// InsertTruck implements ledger.Store
func (s *Store) InsertTruck(ctx context.Context, truck models.Truck) (*models.Truck, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "InsertTruck"); err != nil {
		return nil, err
	}
	truck.ID = primitive.NewObjectID()
	s.data.trucks[truck.ID] = truck
	return &truck, nil
}

// FetchTruck implements ledger.Store
func (s *Store) FetchTruck(ctx context.Context, id, ownerID string) (*models.Truck, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "FetchTruck"); err != nil {
		return nil, err
	}
	oid, _ := parseID(id)
	truck, ok := s.data.trucks[oid]
	if !ok || truck.OwnerID != ownerID {
		return nil, ledger.ErrNotFound
	}
	return &truck, nil
}

// FetchTrucks implements ledger.Store
func (s *Store) FetchTrucks(ctx context.Context, ownerID string) ([]models.Truck, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "FetchTrucks"); err != nil {
		return nil, err
	}
	var trucks []models.Truck
	for _, t := range s.data.trucks {
		if t.OwnerID == ownerID {
			trucks = append(trucks, t)
		}
	}
	sort.Slice(trucks, func(i, j int) bool { return trucks[i].Name < trucks[j].Name })
	return trucks, nil
}

// FindTruckByPlate implements ledger.Store
func (s *Store) FindTruckByPlate(ctx context.Context, ownerID, plate string) (*models.Truck, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "FindTruckByPlate"); err != nil {
		return nil, err
	}
	for _, t := range s.data.trucks {
		if t.OwnerID == ownerID && t.Plate == plate {
			return &t, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// UpdateTruck implements ledger.Store
func (s *Store) UpdateTruck(ctx context.Context, truck models.Truck) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "UpdateTruck"); err != nil {
		return err
	}
	stored, ok := s.data.trucks[truck.ID]
	if !ok || stored.OwnerID != truck.OwnerID {
		return ledger.ErrNotFound
	}
	s.data.trucks[truck.ID] = truck
	return nil
}

// DeleteTruck implements ledger.Store
func (s *Store) DeleteTruck(ctx context.Context, id, ownerID string) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "DeleteTruck"); err != nil {
		return err
	}
	oid, _ := parseID(id)
	truck, ok := s.data.trucks[oid]
	if !ok || truck.OwnerID != ownerID {
		return ledger.ErrNotFound
	}
	delete(s.data.trucks, oid)
	return nil
}

// SweepTrips implements ledger.Store
func (s *Store) SweepTrips(ctx context.Context, limit, page int) ([]models.TripRef, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, "SweepTrips"); err != nil {
		return nil, err
	}
	refs := make([]models.TripRef, 0, len(s.data.trips))
	for _, t := range s.data.trips {
		refs = append(refs, models.TripRef{ID: t.ID, OwnerID: t.OwnerID})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID.Hex() < refs[j].ID.Hex() })
	start := (page - 1) * limit
	if start >= len(refs) {
		return nil, nil
	}
	end := start + limit
	if end > len(refs) {
		end = len(refs)
	}
	return refs[start:end], nil
}

// Recorder is a ledger.Notifier that records every notification
type Recorder struct {
	mu     sync.Mutex
	Events []models.Trip
}

// TripTotalChanged implements ledger.Notifier
func (r *Recorder) TripTotalChanged(_ string, trip models.Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, trip)
}

// Len returns the number of recorded notifications
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Events)
}
