package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/api/realtime"
	"github.com/linesmerrill/truck-ledger-api/api/scheduler"
	"github.com/linesmerrill/truck-ledger-api/config"
	"github.com/linesmerrill/truck-ledger-api/databases"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Ledger    *ledger.Engine
	Hub       *realtime.Hub
	Metrics   *api.MetricsCollector
	Scheduler *scheduler.Scheduler

	dbHelper   databases.DatabaseHelper
	client     databases.ClientHelper
	background context.Context
	stop       context.CancelFunc
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.background == nil {
		a.background, a.stop = context.WithCancel(context.Background())
	}
	if a.Hub == nil {
		a.Hub = realtime.NewHub()
		go a.Hub.Run(a.background)
	}
	if a.Metrics == nil {
		a.Metrics = api.NewMetricsCollector(1000)
	}
	if a.Ledger == nil {
		a.Ledger = ledger.New(databases.NewLedgerStore(a.dbHelper),
			ledger.WithTransactions(a.Config.MongoTransactions),
			ledger.WithNotifier(a.Hub))
	}

	// setup go-guardian for the login route
	m := &api.MiddlewareDB{
		DB:     databases.NewUserDatabase(a.dbHelper),
		Tokens: api.NewTokenIssuer(a.Config.JWTSecret, a.Config.SessionTTL),
	}
	m.SetupGoGuardian(5 * time.Minute)

	limit := func(h http.Handler) http.Handler { return h }
	if a.Config.RateLimitPerMinute > 0 {
		rl := api.NewRateLimiter(a.Config.RateLimitPerMinute, burstFor(a.Config.RateLimitPerMinute))
		limit = rl.Middleware
		go cleanupLimiter(a.background, rl)
	}
	// authed requests are limited per owner, so the limiter sits behind the auth check
	authed := func(h http.HandlerFunc) http.Handler {
		return m.Middleware(limit(h))
	}

	u := User{DB: databases.NewUserDatabase(a.dbHelper)}
	truck := Truck{Ledger: a.Ledger}
	trip := Trip{Ledger: a.Ledger}
	dp := DieselPurchase{Ledger: a.Ledger}
	ce := CostEvent{Ledger: a.Ledger}
	metrics := Metrics{Collector: a.Metrics}

	r := mux.NewRouter()
	r.Use(a.Metrics.MetricsMiddleware)

	// healthchex
	r.HandleFunc("/health", a.healthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	if a.Config.RequestTimeout > 0 {
		apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))
	}

	apiCreate.Handle("/users", limit(http.HandlerFunc(u.UserCreateHandler))).Methods("POST")
	apiCreate.Handle("/auth/token", limit(http.HandlerFunc(m.CreateToken))).Methods("POST")

	apiCreate.Handle("/trucks", authed(truck.TrucksHandler)).Methods("GET")
	apiCreate.Handle("/truck", authed(truck.CreateTruckHandler)).Methods("POST")
	apiCreate.Handle("/truck/{truck_id}", authed(truck.TruckByIDHandler)).Methods("GET")
	apiCreate.Handle("/truck/{truck_id}", authed(truck.UpdateTruckHandler)).Methods("PATCH")
	apiCreate.Handle("/truck/{truck_id}", authed(truck.DeleteTruckHandler)).Methods("DELETE")

	apiCreate.Handle("/trips", authed(trip.TripsHandler)).Methods("GET")
	apiCreate.Handle("/trip", authed(trip.CreateTripHandler)).Methods("POST")
	apiCreate.Handle("/trip/{trip_id}", authed(trip.TripByIDHandler)).Methods("GET")
	apiCreate.Handle("/trip/{trip_id}", authed(trip.UpdateTripHandler)).Methods("PATCH")
	apiCreate.Handle("/trip/{trip_id}", authed(trip.DeleteTripHandler)).Methods("DELETE")
	apiCreate.Handle("/trip/{trip_id}/recompute", authed(trip.RecomputeTripHandler)).Methods("POST")

	apiCreate.Handle("/trip/{trip_id}/diesel-purchases", authed(dp.AddDieselPurchaseHandler)).Methods("POST")
	apiCreate.Handle("/trip/{trip_id}/diesel-purchases/{purchase_id}", authed(dp.UpdateDieselPurchaseHandler)).Methods("PUT")
	apiCreate.Handle("/trip/{trip_id}/diesel-purchases/{purchase_id}", authed(dp.DeleteDieselPurchaseHandler)).Methods("DELETE")

	apiCreate.Handle("/trip/{trip_id}/events/{kind}", authed(ce.AddCostEventHandler)).Methods("POST")
	apiCreate.Handle("/trip/{trip_id}/events/{kind}/{event_id}", authed(ce.UpdateCostEventHandler)).Methods("PUT")
	apiCreate.Handle("/trip/{trip_id}/events/{kind}/{event_id}", authed(ce.DeleteCostEventHandler)).Methods("DELETE")

	apiCreate.Handle("/metrics/summary", authed(metrics.SummaryHandler)).Methods("GET")
	apiCreate.Handle("/metrics/routes", authed(metrics.SlowestRoutesHandler)).Methods("GET")
	apiCreate.Handle("/metrics/traces", authed(metrics.TracesHandler)).Methods("GET")

	apiCreate.Handle("/ws", authed(a.Hub.ServeWS)).Methods("GET")

	return r
}

// burstFor allows a quarter of the per minute budget at once
func burstFor(perMinute int) int {
	if perMinute < 4 {
		return 1
	}
	return perMinute / 4
}

func cleanupLimiter(ctx context.Context, rl *api.RateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup(30 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	if a.Config.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	if err := client.Ping(ctx); err != nil {
		zap.S().With(err).Error("failed to ping database")
		return err
	}
	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	zap.S().Info("truck-ledger-api has connected to the database")

	if err := databases.EnsureIndexes(ctx, a.dbHelper); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	// initialize api router
	a.initializeRoutes()

	a.Scheduler = scheduler.NewScheduler(a.Ledger, a.sweepLock(ctx), a.Config.ReconcileSchedule, a.Config.ReconcileBatch)
	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	return nil
}

// sweepLock uses redis when configured so only one instance runs the sweep
func (a *App) sweepLock(ctx context.Context) scheduler.Locker {
	if a.Config.RedisURL == "" {
		return scheduler.NewLocalLock()
	}
	client, err := scheduler.NewRedisClient(ctx, a.Config.RedisURL)
	if err != nil {
		zap.S().Warnw("redis unavailable, reconcile lock is local to this instance", "error", err)
		return scheduler.NewLocalLock()
	}
	return scheduler.NewRedisLock(client)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// Close stops background work and disconnects from the database
func (a *App) Close(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.stop != nil {
		a.stop()
	}
	if a.Metrics != nil {
		a.Metrics.Stop()
	}
	if a.client != nil {
		return a.client.Disconnect(ctx)
	}
	return nil
}

func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if a.client != nil {
		ctx, cancel := api.WithQueryTimeout(r.Context())
		defer cancel()
		if err := a.client.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, models.HealthCheckResponse{Alive: false})
			return
		}
	}
	writeJSON(w, http.StatusOK, models.HealthCheckResponse{Alive: true})
}
