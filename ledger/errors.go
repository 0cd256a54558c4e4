package ledger

import (
	"errors"
	"fmt"

	"payments-engine/model"
)

// Rejection reasons. Each one drops the offending transaction and leaves the
// account exactly as it was; none of them stops the run.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrUnknownTransaction      = errors.New("unknown transaction")
	ErrDuplicateTransaction    = errors.New("duplicate transaction")
	ErrAlreadyDisputed         = errors.New("transaction already disputed")
	ErrNotDisputed             = errors.New("transaction not disputed")
	ErrDisputeExceedsAvailable = errors.New("dispute exceeds available funds")
	ErrAccountLocked           = errors.New("account locked")
)

// ErrMalformedInput marks records a Source could not parse. The router skips them.
var ErrMalformedInput = errors.New("malformed input")

// Internal failures. These indicate a bug rather than bad input and abort ProcessAll.
var (
	ErrVersionConflict   = errors.New("event stream version conflict")
	ErrInvariantViolated = errors.New("account invariant violated")
)

// Rejection records a transaction the ledger refused to apply.
type Rejection struct {
	Seq      uint64 // position in the input, starting at 1
	ClientID uint16
	TxID     uint32
	Type     model.TransactionType
	Reason   error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("client %d tx %d (%s): %v", r.ClientID, r.TxID, r.Type, r.Reason)
}

func (r Rejection) Unwrap() error {
	return r.Reason
}
