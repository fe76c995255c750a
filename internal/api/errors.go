package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"presale-ledger/internal/account"
	"presale-ledger/internal/ledger"
	"presale-ledger/internal/presale"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	var denomErr *presale.UnacceptedDenomError
	var cfgErr *presale.ConfigError

	switch {
	case errors.Is(err, presale.ErrUnauthorized),
		errors.Is(err, presale.ErrNotWhitelisted):
		return http.StatusForbidden

	case errors.Is(err, presale.ErrNotInstantiated):
		return http.StatusNotFound

	case errors.Is(err, account.ErrInvalidAddress),
		errors.Is(err, presale.ErrInvalidPayment),
		errors.Is(err, presale.ErrInvalidZeroAmount),
		errors.Is(err, presale.ErrInvalidAmount),
		errors.Is(err, presale.ErrUnknownAction),
		errors.As(err, &denomErr),
		errors.As(err, &cfgErr):
		return http.StatusBadRequest

	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownToken):
		return http.StatusUnprocessableEntity

	case errors.Is(err, presale.ErrSaleNotActive),
		errors.Is(err, presale.ErrSaleEnded),
		errors.Is(err, presale.ErrSaleStillActive),
		errors.Is(err, presale.ErrSoftCapNotReached),
		errors.Is(err, presale.ErrSaleDidNotFail),
		errors.Is(err, presale.ErrSaleNotSucceeded),
		errors.Is(err, presale.ErrPaused),
		errors.Is(err, presale.ErrAlreadyInstantiated),
		errors.Is(err, presale.ErrHardCapReached),
		errors.Is(err, presale.ErrUserCapExceeded),
		errors.Is(err, presale.ErrNothingToClaim),
		errors.Is(err, presale.ErrNothingToRefund),
		errors.Is(err, presale.ErrNoFundsToWithdraw),
		errors.Is(err, presale.ErrNoTokensToReclaim),
		errors.Is(err, presale.ErrWrongContract),
		errors.Is(err, presale.ErrCannotMigrate),
		errors.Is(err, presale.ErrInvalidVersion):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
