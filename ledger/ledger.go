// Package ledger keeps every trip's stored total consistent with its cost-bearing
// child records.
//
// Each operation is owner scoped through the identity attached with WithOwner. Every
// mutation of a trip's direct cost fields or children ends with the trip total being
// recomputed from storage and written back, so totalCost is never taken from a caller.
// The read-recompute-write sequence is not atomic across concurrent mutations of the
// same trip: the last write wins and the next mutation, or the reconciliation sweep,
// repairs a total computed from a stale view.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/truck-ledger-api/models"
	"github.com/linesmerrill/truck-ledger-api/tripcost"
)

// WriteTimeout bounds the part of an operation that runs after its first write
const WriteTimeout = 30 * time.Second

// Engine orchestrates the read-recompute-write cycles of trip totals
type Engine struct {
	store        Store
	notifier     Notifier
	transactions bool
	now          func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithNotifier registers the receiver of total change notifications
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithTransactions makes multi-record writes atomic when the store implements Transactor
func WithTransactions(enabled bool) Option {
	return func(e *Engine) {
		e.transactions = enabled
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine on top of the given store
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: noopNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recompute re-reads the trip's cost-bearing records, recomputes its total and
// persists it. Running it twice against unchanged children yields the same total.
func (e *Engine) Recompute(ctx context.Context, tripID string) (*models.Trip, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	trip, _, err := e.recompute(ctx, tripID, ownerID)
	return trip, err
}

// Reconcile recomputes a trip on behalf of its owner and reports whether the stored
// total was stale
func (e *Engine) Reconcile(ctx context.Context, ref models.TripRef) (bool, error) {
	_, changed, err := e.recompute(WithOwner(ctx, ref.OwnerID), ref.ID.Hex(), ref.OwnerID)
	if err != nil {
		return false, err
	}
	if changed {
		staleTotalsCorrected.Inc()
	}
	return changed, nil
}

// ReconcileAll pages through every trip and reconciles each one. A failing trip is
// logged and skipped so one bad record does not stop the sweep.
func (e *Engine) ReconcileAll(ctx context.Context, batch int) (checked, corrected int, err error) {
	if batch <= 0 {
		batch = 100
	}
	for page := 1; ; page++ {
		refs, err := e.store.SweepTrips(ctx, batch, page)
		if err != nil {
			return checked, corrected, fmt.Errorf("failed to list trips for reconciliation: %w", err)
		}
		for _, ref := range refs {
			if ctx.Err() != nil {
				return checked, corrected, ctx.Err()
			}
			checked++
			changed, err := e.Reconcile(ctx, ref)
			if err != nil {
				zap.S().Errorw("failed to reconcile trip",
					"tripID", ref.ID.Hex(),
					"ownerID", ref.OwnerID,
					"error", err)
				continue
			}
			if changed {
				corrected++
			}
		}
		if len(refs) < batch {
			return checked, corrected, nil
		}
	}
}

// mutate verifies the trip belongs to the acting owner, runs fn and recomputes the
// total. Every child mutation goes through here. Once the ownership check passed, fn
// and the recompute run on a detached context so a cancelled request cannot leave
// the total stale.
func (e *Engine) mutate(ctx context.Context, tripID string, fn func(ctx context.Context, trip *models.Trip, ownerID string) error) (*models.Trip, error) {
	ownerID, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	trip, err := e.store.FetchTrip(ctx, tripID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if err := fn(ctx, trip, ownerID); err != nil {
		return nil, err
	}
	updated, _, err := e.recompute(ctx, tripID, ownerID)
	return updated, err
}

// detach keeps the values of ctx, the acting owner included, but drops its
// cancellation. The returned context expires after WriteTimeout.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), WriteTimeout)
}

func (e *Engine) recompute(ctx context.Context, tripID, ownerID string) (*models.Trip, bool, error) {
	trip, err := e.store.FetchTrip(ctx, tripID, ownerID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch trip: %w", err)
	}
	total, err := e.total(ctx, trip, ownerID)
	if err != nil {
		return nil, false, err
	}
	recomputesTotal.Inc()

	changed := total != trip.TotalCost
	if !changed {
		return trip, false, nil
	}
	if err := e.store.UpdateTripTotal(ctx, tripID, ownerID, total); err != nil {
		return nil, false, fmt.Errorf("failed to persist trip total: %w", err)
	}
	zap.S().Debugw("trip total recomputed",
		"tripID", tripID,
		"previous", trip.TotalCost,
		"total", total)

	trip.TotalCost = total
	e.notifier.TripTotalChanged(ownerID, *trip)
	return trip, true, nil
}

// total computes the trip's total from its direct fields and purchases as given,
// and from event sums read fresh from storage
func (e *Engine) total(ctx context.Context, trip *models.Trip, ownerID string) (float64, error) {
	snapshot := snapshotOf(trip)
	for _, kind := range models.ValidCostEventKinds() {
		sum, err := e.store.SumEventAmounts(ctx, kind, trip.ID.Hex(), ownerID)
		if err != nil {
			return 0, fmt.Errorf("failed to sum %s events: %w", kind, err)
		}
		snapshot.EventSums[string(kind)] = sum
	}
	return storable(tripcost.Total(snapshot))
}

// storable converts a money value for storage. Values beyond float64 range could be
// neither stored nor encoded as JSON.
func storable(d decimal.Decimal) (float64, error) {
	f := tripcost.Float(d)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, ErrAmountOutOfRange
	}
	return f, nil
}

func snapshotOf(trip *models.Trip) tripcost.Snapshot {
	s := tripcost.Snapshot{
		FastTagCost:        trip.FastTagCost,
		McdCost:            trip.McdCost,
		GreenTaxCost:       trip.GreenTaxCost,
		RtoCost:            trip.RtoCost,
		DtoCost:            trip.DtoCost,
		MunicipalitiesCost: trip.MunicipalitiesCost,
		BorderCost:         trip.BorderCost,
		RepairCost:         trip.RepairCost,
		EventSums:          map[string]decimal.Decimal{},
	}
	for _, p := range trip.DieselPurchases {
		s.Purchases = append(s.Purchases, tripcost.Purchase{Quantity: p.Quantity, UnitPrice: p.UnitPrice})
	}
	return s
}

// transactor returns the store as a Transactor when transactions are enabled and supported
func (e *Engine) transactor() (Transactor, bool) {
	if !e.transactions {
		return nil, false
	}
	tx, ok := e.store.(Transactor)
	return tx, ok
}

func objectID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return id, nil
}
