package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

func TestNew(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	t.Setenv("ENV", "local")
	conf := New()

	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, 24*time.Hour, conf.SessionTTL)
	assert.False(t, conf.MongoTransactions)
	assert.Equal(t, "*/30 * * * *", conf.ReconcileSchedule)
	assert.Equal(t, 200, conf.ReconcileBatch)
	assert.Equal(t, 15*time.Second, conf.RequestTimeout)
	assert.Equal(t, 120, conf.RateLimitPerMinute)
}

func TestNewReadsOverrides(t *testing.T) {
	t.Setenv("ENV", "local")
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("MONGO_TRANSACTIONS", "true")
	t.Setenv("RECONCILE_BATCH", "50")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	conf := New()

	assert.Equal(t, "9000", conf.Port)
	assert.Equal(t, 2*time.Hour, conf.SessionTTL)
	assert.True(t, conf.MongoTransactions)
	assert.Equal(t, 50, conf.ReconcileBatch)
	assert.Equal(t, 120, conf.RateLimitPerMinute)
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, models.MessageError{Message: "error it borked", Error: "bad request"}, body.Response)
}

func TestErrorStatusFlagsExpiredSession(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("failed to authenticate", http.StatusUnauthorized, rr, fmt.Errorf("token: %w", ledger.ErrSessionExpired))

	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Response.Reauthenticate)
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(2))
	assert.False(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(0))
}
