package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/truck-ledger-api/config"
	"github.com/linesmerrill/truck-ledger-api/databases"
	"github.com/linesmerrill/truck-ledger-api/ledger"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// MiddlewareDB is a struct that holds the user database and the token issuer
type MiddlewareDB struct {
	DB     databases.UserDatabase
	Tokens *TokenIssuer

	authenticator auth.Authenticator
}

// SetupGoGuardian sets up the basic auth strategy used to log in. Validated
// credentials are cached for cacheTTL.
func (m *MiddlewareDB) SetupGoGuardian(cacheTTL time.Duration) {
	m.authenticator = auth.New()
	cache := store.NewFIFO(context.Background(), cacheTTL)
	basicStrategy := basic.New(m.ValidateUser, cache)

	m.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
}

// ValidateUser checks the email and password against the stored bcrypt hash
func (m *MiddlewareDB) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	user, err := m.DB.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
	if err != nil {
		return nil, fmt.Errorf("no matching email found")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return auth.NewDefaultUser(user.Email, user.ID.Hex(), nil, nil), nil
}

// CreateToken exchanges basic auth credentials for a session token
func (m *MiddlewareDB) CreateToken(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		config.ErrorStatus("basic auth required", http.StatusUnauthorized, w, ledger.ErrNotAuthenticated)
		return
	}
	info, err := m.authenticator.Authenticate(r)
	if err != nil {
		config.ErrorStatus("failed to authenticate", http.StatusUnauthorized, w, err)
		return
	}

	token, expiresAt, err := m.Tokens.Issue(info.ID(), info.UserName())
	if err != nil {
		config.ErrorStatus("failed to issue token", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugw("issued session token", "userID", info.ID())

	b, _ := json.Marshal(models.TokenResponse{
		Token:     token,
		UserID:    info.ID(),
		ExpiresAt: expiresAt,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// Middleware requires a valid bearer token and attaches its owner to the request
// context
func (m *MiddlewareDB) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, ledger.ErrNotAuthenticated)
			return
		}
		ownerID, err := m.Tokens.Parse(token)
		if err != nil {
			if !errors.Is(err, ledger.ErrSessionExpired) {
				err = ledger.ErrNotAuthenticated
			}
			zap.S().Debugw("rejected bearer token", "url", r.URL.Path, "error", err)
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ledger.WithOwner(r.Context(), ownerID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token, true
	}
	// browsers cannot set headers on websocket upgrades
	if token := r.URL.Query().Get("token"); token != "" && websocketUpgrade(r) {
		return token, true
	}
	return "", false
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
