package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/api/handlers"
	"github.com/linesmerrill/truck-ledger-api/config"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/ledger/ledgertest"
	"github.com/linesmerrill/truck-ledger-api/models"
)

const (
	testSecret = "handler-test-secret"
	ownerA     = "64b7f0c2a1b2c3d4e5f6aaaa"
	ownerB     = "64b7f0c2a1b2c3d4e5f6bbbb"
)

func newTestApp(t *testing.T) (*handlers.App, *ledgertest.Store) {
	t.Helper()
	store := ledgertest.NewStore()
	a := &handlers.App{
		Config: config.Config{JWTSecret: testSecret, SessionTTL: time.Hour},
		Ledger: ledger.New(store),
	}
	a.Router = a.New()
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a, store
}

func tokenFor(t *testing.T, owner string) string {
	t.Helper()
	token, _, err := api.NewTokenIssuer(testSecret, time.Hour).Issue(owner, owner+"@example.com")
	require.NoError(t, err)
	return token
}

// do sends the request as owner; an empty owner sends no token
func do(t *testing.T, a *handlers.App, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, owner))
	}
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) models.MessageError {
	t.Helper()
	var body models.ErrorMessageResponse
	decode(t, rr, &body)
	return body.Response
}

func createTruck(t *testing.T, a *handlers.App, owner, plate string) models.Truck {
	t.Helper()
	rr := do(t, a, http.MethodPost, "/api/v1/truck", owner, `{"name":"Tata Prima","plate":"`+plate+`","model":"4028.S"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var truck models.Truck
	decode(t, rr, &truck)
	return truck
}
