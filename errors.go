package dcolock

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/types"
)

// Sentinel errors for every rejected operation.
var (
	// Pricing and allocation errors
	ErrInvalidPrice              = errors.New("dcolock: invalid token price")
	ErrSaleInactive              = errors.New("dcolock: sale is not active")
	ErrInvalidAmount             = errors.New("dcolock: invalid amount")
	ErrInvalidAddress            = errors.New("dcolock: invalid address")
	ErrNoSupply                  = errors.New("dcolock: no token supply held")
	ErrInsufficientSupply        = errors.New("dcolock: insufficient token supply")
	ErrOverflowDetected          = errors.New("dcolock: arithmetic overflow detected")
	ErrInvalidThreshold          = errors.New("dcolock: invalid threshold")
	ErrInvalidIncrementThreshold = errors.New("dcolock: invalid increment threshold")
	ErrPriceDecrease             = errors.New("dcolock: token price cannot decrease")

	// Claim errors
	ErrNothingLocked               = errors.New("dcolock: nothing locked")
	ErrSevenMonthLockActive        = errors.New("dcolock: seven-month lock still active")
	ErrNothingToWithdraw           = errors.New("dcolock: nothing to withdraw")
	ErrInsufficientContractBalance = errors.New("dcolock: insufficient contract balance")

	// ErrOneYearLockActive is returned when the seven-month tranche is
	// already claimed and the one-year mark is not reached. It also matches
	// ErrNothingToWithdraw.
	ErrOneYearLockActive error = &kindError{
		msg:  "dcolock: one-year lock still active",
		also: ErrNothingToWithdraw,
	}

	// Owner withdrawal and donation errors
	ErrSaleStillActive       = errors.New("dcolock: sale still active")
	ErrInsufficientAvailable = errors.New("dcolock: insufficient available tokens")
	ErrNothingAvailable      = errors.New("dcolock: nothing available")
	ErrNoDonations           = errors.New("dcolock: no donations to flush")

	// Access errors
	ErrUnauthorized       = errors.New("dcolock: unauthorized")
	ErrLastOwner          = errors.New("dcolock: cannot revoke own owner role")
	ErrRoleAlreadyGranted = errors.New("dcolock: role already granted")
	ErrRoleNotGranted     = errors.New("dcolock: role not granted")
	ErrInvalidRole        = errors.New("dcolock: invalid role")

	// Engine errors
	ErrReentrantCall = errors.New("dcolock: reentrant call")
	ErrNotStarted    = errors.New("dcolock: ledger not started")
	ErrInvalidConfig = errors.New("dcolock: invalid configuration")

	// Store errors
	ErrLockNotFound  = errors.New("dcolock: lock not found")
	ErrStateNotFound = errors.New("dcolock: sale state not found")
	ErrAlreadyExists = errors.New("dcolock: already exists")
	ErrStoreClosed   = errors.New("dcolock: store is closed")
)

// kindError is a sentinel that also matches a broader sentinel.
type kindError struct {
	msg  string
	also error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.also }

// AmountError reports an amount that broke a limit.
type AmountError struct {
	Err   error
	Field string
	Value types.Amount
	Limit types.Amount
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%s: %s is %s, limit %s", e.Err, e.Field, e.Value, e.Limit)
}

func (e *AmountError) Unwrap() error { return e.Err }

func amountErr(err error, field string, value, limit types.Amount) error {
	return &AmountError{Err: err, Field: field, Value: value, Limit: limit}
}

// RoleError reports a caller missing a required role.
type RoleError struct {
	Role    access.Role
	Account common.Address
}

func (e *RoleError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("%s: no caller", ErrUnauthorized)
	}
	if e.Account == (common.Address{}) {
		return fmt.Sprintf("%s: no caller, %s role required", ErrUnauthorized, e.Role)
	}
	return fmt.Sprintf("%s: %s lacks %s role", ErrUnauthorized, e.Account.Hex(), e.Role)
}

func (e *RoleError) Unwrap() error { return ErrUnauthorized }

// TimeError reports an operation attempted before a point in time.
type TimeError struct {
	Err   error
	Now   time.Time
	Until time.Time
}

func (e *TimeError) Error() string {
	return fmt.Sprintf("%s: %s remaining", e.Err, e.Until.Sub(e.Now).Truncate(time.Second))
}

func (e *TimeError) Unwrap() error { return e.Err }

// IsAuthorization returns true if the caller lacked a role.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrLastOwner)
}

// IsTimingError returns true if the operation was rejected only because of
// where the clock is relative to the sale lifecycle.
func IsTimingError(err error) bool {
	return errors.Is(err, ErrSaleInactive) ||
		errors.Is(err, ErrSaleStillActive) ||
		errors.Is(err, ErrSevenMonthLockActive) ||
		errors.Is(err, ErrOneYearLockActive)
}

// IsRetryable returns true if retrying with adjusted parameters or at a
// later time may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInsufficientSupply) ||
		errors.Is(err, ErrInsufficientAvailable) ||
		errors.Is(err, ErrNoSupply) ||
		errors.Is(err, ErrSaleStillActive) ||
		errors.Is(err, ErrSevenMonthLockActive) ||
		errors.Is(err, ErrOneYearLockActive)
}
