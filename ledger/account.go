package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"payments-engine/model"
)

// Account is the balance and lock state of one client. It is derived from the
// client's event stream and only changes through Fold.
type Account struct {
	ClientID  uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool
}

// Total is always Available + Held.
func (a Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}

// Equal compares balances by value, ignoring decimal exponent differences.
func (a Account) Equal(b Account) bool {
	return a.ClientID == b.ClientID &&
		a.Available.Equal(b.Available) &&
		a.Held.Equal(b.Held) &&
		a.Locked == b.Locked
}

// View converts the account to its external representation.
func (a Account) View() model.AccountView {
	return model.AccountView{
		ClientID:  a.ClientID,
		Available: a.Available,
		Held:      a.Held,
		Total:     a.Total(),
		Locked:    a.Locked,
	}
}

func (a Account) checkInvariants() error {
	if a.Available.IsNegative() {
		return fmt.Errorf("%w: client %d available %s", ErrInvariantViolated, a.ClientID, a.Available)
	}
	if a.Held.IsNegative() {
		return fmt.Errorf("%w: client %d held %s", ErrInvariantViolated, a.ClientID, a.Held)
	}
	return nil
}

// Fold applies an accepted event to an account and returns the new state.
// It never validates; legality is decided before the event exists.
func Fold(a Account, evt Event) Account {
	switch evt.Kind {
	case Deposited:
		a.Available = a.Available.Add(evt.Amount)
	case Withdrawn:
		a.Available = a.Available.Sub(evt.Amount)
	case DisputeOpened:
		a.Available = a.Available.Sub(evt.Amount)
		a.Held = a.Held.Add(evt.Amount)
	case DisputeResolved:
		a.Held = a.Held.Sub(evt.Amount)
		a.Available = a.Available.Add(evt.Amount)
	case ChargedBack:
		a.Held = a.Held.Sub(evt.Amount)
		a.Locked = true
	}
	return a
}

// TxState is the dispute lifecycle of a single deposit or withdrawal.
type TxState uint8

const (
	TxAccepted TxState = iota + 1
	TxDisputed
	TxResolved
	TxChargedBack
)

func (s TxState) String() string {
	switch s {
	case TxAccepted:
		return "Accepted"
	case TxDisputed:
		return "Disputed"
	case TxResolved:
		return "Resolved"
	case TxChargedBack:
		return "ChargedBack"
	default:
		return "Unknown"
	}
}

// transitions lists every legal lifecycle step. Anything missing is illegal.
// A resolved transaction may be disputed again; a charged back one is final.
var transitions = map[TxState]map[EventKind]TxState{
	TxAccepted: {DisputeOpened: TxDisputed},
	TxDisputed: {DisputeResolved: TxResolved, ChargedBack: TxChargedBack},
	TxResolved: {DisputeOpened: TxDisputed},
}

func (s TxState) next(kind EventKind) (TxState, bool) {
	to, ok := transitions[s][kind]
	return to, ok
}

// TxRecord is what the index remembers about an accepted deposit or withdrawal.
type TxRecord struct {
	Kind   EventKind // Deposited or Withdrawn
	Amount decimal.Decimal
	State  TxState
}

// Index maps a client's transaction ids to their records.
type Index map[uint32]TxRecord

// record applies an accepted event to the index.
func (ix Index) record(evt Event) {
	switch evt.Kind {
	case Deposited, Withdrawn:
		ix[evt.TxID] = TxRecord{Kind: evt.Kind, Amount: evt.Amount, State: TxAccepted}
	default:
		rec, ok := ix[evt.TxID]
		if !ok {
			return
		}
		if to, ok := rec.State.next(evt.Kind); ok {
			rec.State = to
			ix[evt.TxID] = rec
		}
	}
}

// State is everything an aggregate knows about one client.
type State struct {
	Account Account
	Index   Index
}

func newState(clientID uint16) State {
	return State{Account: Account{ClientID: clientID}, Index: make(Index)}
}

// apply folds evt into both the account and the index.
func (s *State) apply(evt Event) {
	s.Account = Fold(s.Account, evt)
	s.Index.record(evt)
}

// Apply decides whether tx is legal against the account and index and, if so,
// returns the next account state and the event describing the change.
// On rejection the returned account equals the input and the event is zero.
// The index is only read.
func Apply(a Account, ix Index, tx model.Transaction) (Account, Event, error) {
	evt, err := decide(a, ix, tx)
	if err != nil {
		return a, Event{}, err
	}
	return Fold(a, evt), evt, nil
}

func decide(a Account, ix Index, tx model.Transaction) (Event, error) {
	if a.Locked {
		return Event{}, ErrAccountLocked
	}

	switch tx.Type {
	case model.Deposit, model.Withdrawal:
		if !tx.Amount.Valid || !tx.Amount.Decimal.IsPositive() {
			return Event{}, ErrInvalidAmount
		}
		if _, seen := ix[tx.TxID]; seen {
			return Event{}, ErrDuplicateTransaction
		}
		amount := tx.Amount.Decimal
		if tx.Type == model.Deposit {
			return Event{Kind: Deposited, TxID: tx.TxID, Amount: amount}, nil
		}
		if a.Available.LessThan(amount) {
			return Event{}, ErrInsufficientFunds
		}
		return Event{Kind: Withdrawn, TxID: tx.TxID, Amount: amount}, nil

	case model.Dispute:
		rec, ok := ix[tx.TxID]
		if !ok {
			return Event{}, ErrUnknownTransaction
		}
		if rec.State == TxDisputed {
			return Event{}, ErrAlreadyDisputed
		}
		if _, ok := rec.State.next(DisputeOpened); !ok {
			return Event{}, fmt.Errorf("%w: transaction is %s", ErrAlreadyDisputed, rec.State)
		}
		if a.Available.LessThan(rec.Amount) {
			return Event{}, ErrDisputeExceedsAvailable
		}
		return Event{Kind: DisputeOpened, TxID: tx.TxID, Amount: rec.Amount}, nil

	case model.Resolve, model.Chargeback:
		kind := DisputeResolved
		if tx.Type == model.Chargeback {
			kind = ChargedBack
		}
		rec, ok := ix[tx.TxID]
		if !ok {
			return Event{}, fmt.Errorf("%w: %w", ErrNotDisputed, ErrUnknownTransaction)
		}
		if _, ok := rec.State.next(kind); !ok {
			return Event{}, ErrNotDisputed
		}
		return Event{Kind: kind, TxID: tx.TxID, Amount: rec.Amount}, nil

	default:
		return Event{}, fmt.Errorf("%w: transaction type %q", ErrMalformedInput, tx.Type)
	}
}
