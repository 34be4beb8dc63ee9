package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/config"
	"github.com/linesmerrill/truck-ledger-api/databases"
	mocksdb "github.com/linesmerrill/truck-ledger-api/databases/mocks"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/ledger/ledgertest"
	"github.com/linesmerrill/truck-ledger-api/models"
)

func newApp(t *testing.T, conf config.Config) *App {
	t.Helper()
	a := &App{Config: conf, Ledger: ledger.New(ledgertest.NewStore())}
	a.Router = a.New()
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func executeRequest(a *App, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func TestUnknownRoute(t *testing.T) {
	a := newApp(t, config.Config{})
	req, _ := http.NewRequest("GET", "/asdf", nil)
	response := executeRequest(a, req)

	assert.Equal(t, http.StatusNotFound, response.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	a := newApp(t, config.Config{})
	req, _ := http.NewRequest("GET", "/health", nil)
	response := executeRequest(a, req)

	assert.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"alive":true}`, response.Body.String())
}

func TestHealthCheckRouteDatabaseDown(t *testing.T) {
	client := &mocksdb.ClientHelper{}
	client.On("Ping", mock.Anything).Return(errors.New("server selection timeout"))
	client.On("Disconnect", mock.Anything).Return(nil)

	a := newApp(t, config.Config{})
	a.client = client
	response := executeRequest(a, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, response.Code)
	assert.JSONEq(t, `{"alive":false}`, response.Body.String())
}

func TestPrometheusRoute(t *testing.T) {
	a := newApp(t, config.Config{})
	response := executeRequest(a, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), "go_goroutines")
}

func TestApp_ProtectedRoutesRequireToken(t *testing.T) {
	a := newApp(t, config.Config{JWTSecret: "secret", SessionTTL: time.Hour})

	for _, path := range []string{"/api/v1/trucks", "/api/v1/trips", "/api/v1/ws", "/api/v1/metrics/summary"} {
		req := httptest.NewRequest("GET", path, nil)
		req.Header.Set("Authorization", "Bearer asdfasdf")
		response := executeRequest(a, req)
		assert.Equal(t, http.StatusUnauthorized, response.Code, path)
	}
}

func TestApp_ExpiredSessionAsksForReauthentication(t *testing.T) {
	a := newApp(t, config.Config{JWTSecret: "secret", SessionTTL: time.Hour})
	token, _, err := api.NewTokenIssuer("secret", -time.Minute).Issue("64b7f0c2a1b2c3d4e5f6aaaa", "a@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/trips", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	response := executeRequest(a, req)

	assert.Equal(t, http.StatusUnauthorized, response.Code)
	assert.Contains(t, response.Body.String(), `"Reauthenticate":true`)
}

func TestApp_RateLimitsPerOwner(t *testing.T) {
	a := newApp(t, config.Config{JWTSecret: "secret", SessionTTL: time.Hour, RateLimitPerMinute: 4})
	issuer := api.NewTokenIssuer("secret", time.Hour)

	send := func(owner string) int {
		token, _, err := issuer.Issue(owner, owner+"@example.com")
		require.NoError(t, err)
		req := httptest.NewRequest("GET", "/api/v1/trucks", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return executeRequest(a, req).Code
	}

	assert.Equal(t, http.StatusOK, send("64b7f0c2a1b2c3d4e5f6aaaa"))
	assert.Equal(t, http.StatusTooManyRequests, send("64b7f0c2a1b2c3d4e5f6aaaa"))
	assert.Equal(t, http.StatusOK, send("64b7f0c2a1b2c3d4e5f6bbbb"))
}

func TestApp_LoginIssuesUsableToken(t *testing.T) {
	userID := primitive.NewObjectID()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	db := &mocksdb.DatabaseHelper{}
	conn := &mocksdb.CollectionHelper{}
	found := &mocksdb.SingleResultHelper{}
	found.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = userID
		(*arg).Email = "driver@example.com"
		(*arg).Password = string(hash)
	})
	conn.On("FindOne", mock.Anything, bson.M{"email": "driver@example.com"}).Return(found)
	db.On("Collection", "users").Return(conn)

	a := &App{
		Config:   config.Config{JWTSecret: "secret", SessionTTL: time.Hour},
		Ledger:   ledger.New(ledgertest.NewStore()),
		dbHelper: db,
	}
	a.Router = a.New()
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	req := httptest.NewRequest("POST", "/api/v1/auth/token", nil)
	req.SetBasicAuth("driver@example.com", "correct horse")
	response := executeRequest(a, req)
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())

	var token models.TokenResponse
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &token))
	assert.Equal(t, userID.Hex(), token.UserID)

	req = httptest.NewRequest("GET", "/api/v1/trucks", nil)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	response = executeRequest(a, req)
	assert.Equal(t, http.StatusOK, response.Code)

	req = httptest.NewRequest("POST", "/api/v1/auth/token", nil)
	req.SetBasicAuth("driver@example.com", "wrong")
	response = executeRequest(a, req)
	assert.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ErrNotAuthenticated, http.StatusUnauthorized},
		{ledger.ErrSessionExpired, http.StatusUnauthorized},
		{fmt.Errorf("failed to fetch trip: %w", ledger.ErrNotFound), http.StatusNotFound},
		{ledger.ErrDuplicatePlate, http.StatusConflict},
		{databases.ErrDuplicateEmail, http.StatusConflict},
		{ledger.ErrUnknownEventKind, http.StatusBadRequest},
		{fmt.Errorf("failed to sum events: %w", ledger.ErrAmountOutOfRange), http.StatusBadRequest},
		{&api.ValidationError{Fields: []string{"source"}}, http.StatusBadRequest},
		{&ledger.CreateError{Err: errors.New("write conflict")}, http.StatusInternalServerError},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestBurstFor(t *testing.T) {
	assert.Equal(t, 1, burstFor(1))
	assert.Equal(t, 1, burstFor(4))
	assert.Equal(t, 30, burstFor(120))
}
