package presale

import (
	"errors"
	"fmt"
)

// Authorization errors.
var (
	// ErrUnauthorized is returned when a non-admin calls an admin operation.
	ErrUnauthorized = errors.New("unauthorized: caller is not the contract admin")
)

// Lifecycle errors.
var (
	ErrSaleNotActive       = errors.New("sale is not active")
	ErrSaleEnded           = errors.New("sale has already ended")
	ErrSaleStillActive     = errors.New("sale is still active, cannot settle yet")
	ErrSoftCapNotReached   = errors.New("soft cap was not reached, sale failed")
	ErrSaleDidNotFail      = errors.New("sale did not fail, refunds are not available")
	ErrSaleNotSucceeded    = errors.New("sale has not succeeded")
	ErrPaused              = errors.New("sale is paused")
	ErrNotInstantiated     = errors.New("sale has not been instantiated")
	ErrAlreadyInstantiated = errors.New("sale is already instantiated")
)

// Validation errors.
var (
	ErrInvalidPayment    = errors.New("invalid payment: exactly one coin must be attached")
	ErrInvalidZeroAmount = errors.New("invalid amount: zero is not allowed")
	ErrInvalidAmount     = errors.New("invalid amount: must be a non-negative integer")
	ErrNotWhitelisted    = errors.New("address is not on the whitelist")
	ErrUnknownAction     = errors.New("unknown action")
)

// Capacity errors.
var (
	ErrHardCapReached  = errors.New("hard cap has been reached")
	ErrUserCapExceeded = errors.New("contribution exceeds the per-user cap")
)

// Settlement errors.
var (
	ErrNothingToClaim    = errors.New("caller has nothing to claim")
	ErrNothingToRefund   = errors.New("caller has no funds to refund")
	ErrNoFundsToWithdraw = errors.New("no funds to withdraw")
	ErrNoTokensToReclaim = errors.New("no tokens to reclaim")
)

// Migration errors.
var (
	ErrWrongContract  = errors.New("stored state belongs to a different contract")
	ErrCannotMigrate  = errors.New("cannot migrate from a newer or equal version")
	ErrInvalidVersion = errors.New("invalid semantic version")
)

// UnacceptedDenomError is returned when a payment uses a currency
// that has no exchange rate.
type UnacceptedDenomError struct {
	Denom string
}

func (e *UnacceptedDenomError) Error() string {
	return fmt.Sprintf("denom %q is not accepted", e.Denom)
}

// ConfigError is returned when instantiation parameters are inconsistent.
type ConfigError struct {
	Details string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Details
}
