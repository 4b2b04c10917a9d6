package quest

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrNotInitialized     = errors.New("quest: ledger not initialized")
	ErrAlreadyInitialized = errors.New("quest: ledger already initialized")
	ErrInvalidAmount      = errors.New("quest: invalid amount")
	ErrAmountOverflow     = fmt.Errorf("%w: amount overflows 128 bits", ErrInvalidAmount)
	ErrInvalidAddress     = errors.New("quest: invalid address")
	ErrInsufficientFunds  = errors.New("quest: insufficient funds")
	ErrNotFound           = errors.New("quest: quest not found")
	ErrAlreadyCompleted   = errors.New("quest: quest already completed")
	ErrSelfCompletion     = errors.New("quest: cannot complete own quest")
	ErrUnauthorized       = errors.New("quest: only the owner can do this")
)

// InsufficientFundsError reports the amount a call needed and the balance it
// found.
type InsufficientFundsError struct {
	Required  *uint256.Int
	Available *uint256.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: required %s, available %s", ErrInsufficientFunds, FormatAmount(e.Required), FormatAmount(e.Available))
}

// Is lets errors.Is match ErrInsufficientFunds.
func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// Error kind names reported to callers.
const (
	KindInvalidAmount      = "InvalidAmount"
	KindInvalidAddress     = "InvalidAddress"
	KindInsufficientFunds  = "InsufficientFunds"
	KindNotFound           = "NotFound"
	KindAlreadyCompleted   = "AlreadyCompleted"
	KindSelfCompletion     = "SelfCompletionForbidden"
	KindUnauthorized       = "Unauthorized"
	KindNotInitialized     = "NotInitialized"
	KindAlreadyInitialized = "AlreadyInitialized"
	KindInternal           = "Internal"
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalidAddress, KindInvalidAddress},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrNotFound, KindNotFound},
	{ErrAlreadyCompleted, KindAlreadyCompleted},
	{ErrSelfCompletion, KindSelfCompletion},
	{ErrUnauthorized, KindUnauthorized},
	{ErrNotInitialized, KindNotInitialized},
	{ErrAlreadyInitialized, KindAlreadyInitialized},
}

// ErrorKind classifies err. Errors outside the ledger's vocabulary, such as
// storage failures, are reported as Internal.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.err) {
			return candidate.kind
		}
	}
	return KindInternal
}
