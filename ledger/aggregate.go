package ledger

import (
	"errors"
	"fmt"

	"payments-engine/model"
)

// Aggregate is the authoritative state of one client. It caches the latest
// fold of the client's stream so reads never need a replay; the cache must
// always equal EventLog.Replay for the same client.
type Aggregate struct {
	state   State
	version Version
	log     *EventLog
}

// NewAggregate creates an aggregate for a client with no history.
func NewAggregate(clientID uint16, log *EventLog) *Aggregate {
	return &Aggregate{state: newState(clientID), log: log}
}

// Account returns the cached account.
func (a *Aggregate) Account() Account {
	return a.state.Account
}

// Version returns the version of the last event folded into the cache.
func (a *Aggregate) Version() Version {
	return a.version
}

// Lookup returns the index record for a transaction id.
func (a *Aggregate) Lookup(txID uint32) (TxRecord, bool) {
	rec, ok := a.state.Index[txID]
	return rec, ok
}

// Handle applies one transaction. A domain rejection is returned as-is and
// leaves the aggregate untouched. Any other error means the log and the cache
// disagree and the aggregate must not be used further.
func (a *Aggregate) Handle(tx model.Transaction) (Event, error) {
	next, evt, err := Apply(a.state.Account, a.state.Index, tx)
	if err != nil {
		return Event{}, err
	}
	if err := next.checkInvariants(); err != nil {
		return Event{}, err
	}

	version, err := a.log.Append(next.ClientID, ExpectVersion(a.version), evt)
	if err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}

	a.state.Account = next
	a.state.Index.record(evt)
	a.version = version
	return evt, nil
}

func isInternal(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInvariantViolated)
}
