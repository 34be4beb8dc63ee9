package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/config"
	"github.com/linesmerrill/truck-ledger-api/databases"
	"github.com/linesmerrill/truck-ledger-api/models"
)

// User exported for testing purposes
type User struct {
	DB databases.UserDatabase
}

// UserCreateHandler registers a new account. The caller logs in afterwards with
// basic auth to get a session token.
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := api.ReadAndValidate(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	user := models.User{
		Email:     req.Email,
		Name:      req.Name,
		Password:  string(hashedPassword),
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := u.DB.InsertOne(r.Context(), user)
	if err != nil {
		ledgerError("failed to insert user", w, err)
		return
	}
	user.ID = id
	zap.S().Infow("registered user", "userID", id.Hex())

	writeJSON(w, http.StatusCreated, user)
}
