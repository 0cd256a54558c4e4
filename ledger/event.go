package ledger

import "github.com/shopspring/decimal"

// EventKind names the effect an accepted transaction had on an account.
type EventKind uint8

const (
	Deposited EventKind = iota + 1
	Withdrawn
	DisputeOpened
	DisputeResolved
	ChargedBack
)

func (k EventKind) String() string {
	switch k {
	case Deposited:
		return "Deposited"
	case Withdrawn:
		return "Withdrawn"
	case DisputeOpened:
		return "DisputeOpened"
	case DisputeResolved:
		return "DisputeResolved"
	case ChargedBack:
		return "ChargedBack"
	default:
		return "Unknown"
	}
}

// Event is an immutable domain event. Amount is always resolved: dispute,
// resolve and chargeback events carry the amount of the transaction they
// reference.
type Event struct {
	Kind   EventKind
	TxID   uint32
	Amount decimal.Decimal
}

// Version is the 1-based position of an event in its client's stream.
// Zero means the stream is empty.
type Version uint64

// Recorded is an Event as stored in the log.
type Recorded struct {
	ClientID uint16
	Version  Version
	Event    Event
}
