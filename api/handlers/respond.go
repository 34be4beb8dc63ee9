package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/linesmerrill/truck-ledger-api/api"
	"github.com/linesmerrill/truck-ledger-api/config"
	"github.com/linesmerrill/truck-ledger-api/databases"
	"github.com/linesmerrill/truck-ledger-api/ledger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// errorStatus picks the response code for an error coming out of the ledger or a
// request decode
func errorStatus(err error) int {
	var verr *api.ValidationError
	switch {
	case errors.Is(err, ledger.ErrNotAuthenticated), errors.Is(err, ledger.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicatePlate), errors.Is(err, databases.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnknownEventKind), errors.Is(err, ledger.ErrAmountOutOfRange), errors.As(err, &verr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func ledgerError(message string, w http.ResponseWriter, err error) {
	config.ErrorStatus(message, errorStatus(err), w, err)
}

func badRequest(w http.ResponseWriter, err error) {
	config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
}
