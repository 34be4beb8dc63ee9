package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/truck-ledger-api/databases/mocks"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

func newMiddlewareDB(t *testing.T) (*MiddlewareDB, primitive.ObjectID) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	userID := primitive.NewObjectID()
	db := &mocks.UserDatabase{}
	db.On("FindOne", mock.Anything, bson.M{"email": "driver@example.com"}).
		Return(&models.User{ID: userID, Email: "driver@example.com", Password: string(hash)}, nil)
	db.On("FindOne", mock.Anything, mock.Anything).
		Return(nil, mongo.ErrNoDocuments)

	m := &MiddlewareDB{DB: db, Tokens: NewTokenIssuer("secret", time.Hour)}
	m.SetupGoGuardian(time.Minute)
	return m, userID
}

func TestCreateToken(t *testing.T) {
	m, userID := newMiddlewareDB(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
	req.SetBasicAuth("Driver@Example.com", "correct horse")
	rr := httptest.NewRecorder()
	m.CreateToken(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp models.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, userID.Hex(), resp.UserID)

	ownerID, err := m.Tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, userID.Hex(), ownerID)
}

func TestCreateTokenRejectsBadCredentials(t *testing.T) {
	m, _ := newMiddlewareDB(t)

	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"missing basic auth", func(r *http.Request) {}},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("driver@example.com", "wrong") }},
		{"unknown email", func(r *http.Request) { r.SetBasicAuth("nobody@example.com", "correct horse") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			m.CreateToken(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestMiddleware(t *testing.T) {
	m, userID := newMiddlewareDB(t)

	var seenOwner string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOwner, _ = ledger.OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := m.Middleware(next)

	token, _, err := m.Tokens.Issue(userID.Hex(), "driver@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/trips", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, userID.Hex(), seenOwner)
}

func TestMiddlewareRejects(t *testing.T) {
	m, userID := newMiddlewareDB(t)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	expired := NewTokenIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.Issue(userID.Hex(), "driver@example.com")
	require.NoError(t, err)

	tests := []struct {
		name           string
		header         string
		reauthenticate bool
	}{
		{"no header", "", false},
		{"garbage token", "Bearer garbage", false},
		{"expired token", "Bearer " + expiredToken, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/trips", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			var body models.ErrorMessageResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.reauthenticate, body.Response.Reauthenticate)
		})
	}
}

func TestBearerTokenFromQueryOnlyForWebsockets(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=abc", nil)
	_, ok := bearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Upgrade", "websocket")
	token, ok := bearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}
