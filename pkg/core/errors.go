package core

import (
	"errors"
	"fmt"
)

// ErrNoFundsFound is returned when no keystore in the scanned directory could be
// both funded and unlocked.
var ErrNoFundsFound = errors.New("no unlocked accounts hold tokens")

// InputValidationError represents a rejected operator input
type InputValidationError struct {
	Field string
	msg   string
}

func (e InputValidationError) Error() string {
	if e.Field == "" {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.msg)
}

// ErrInvalidInput creates a new input validation error
func ErrInvalidInput(field, msg string) error {
	return InputValidationError{Field: field, msg: msg}
}

// ErrInvalidInputf creates a new formatted input validation error
func ErrInvalidInputf(field, format string, args ...interface{}) error {
	return InputValidationError{Field: field, msg: fmt.Sprintf(format, args...)}
}

// ConnectivityError is returned when the chain node cannot be reached at startup.
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach chain node %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// DecryptionError is returned when a keystore cannot be opened with the supplied passphrase.
type DecryptionError struct {
	Address string
	Err     error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("failed to decrypt keystore 0x%s: %v", e.Address, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// BalanceQueryError is returned when the token contract cannot report a holder's balance.
type BalanceQueryError struct {
	Address string
	Err     error
}

func (e *BalanceQueryError) Error() string {
	return fmt.Sprintf("failed to query token balance of 0x%s: %v", e.Address, e.Err)
}

func (e *BalanceQueryError) Unwrap() error { return e.Err }

// NonceQueryError is returned when a sender's transaction count cannot be fetched.
type NonceQueryError struct {
	Address string
	Err     error
}

func (e *NonceQueryError) Error() string {
	return fmt.Sprintf("failed to fetch nonce of %s: %v", e.Address, e.Err)
}

func (e *NonceQueryError) Unwrap() error { return e.Err }

// BroadcastError is returned when a signed transaction is rejected or never confirmed.
type BroadcastError struct {
	TxHash string
	Err    error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("failed to broadcast transaction %s: %v", e.TxHash, e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// EncodingError is returned when a value does not fit its ABI slot.
type EncodingError struct {
	msg string
}

func (e EncodingError) Error() string {
	return e.msg
}

// ErrEncodingf creates a new formatted encoding error
func ErrEncodingf(format string, args ...interface{}) error {
	return EncodingError{msg: fmt.Sprintf(format, args...)}
}

// DispatchError identifies the target at which a disbursement phase stopped.
type DispatchError struct {
	Phase   string
	Index   int
	Address string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s phase failed at account %d (%s): %v", e.Phase, e.Index, e.Address, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
