package ledger

import (
	"fmt"
	"sort"
)

// Check guards an append against concurrent writers of the same stream.
type Check struct {
	any      bool
	expected Version
}

// AnyVersion disables the version check.
func AnyVersion() Check { return Check{any: true} }

// ExpectVersion requires the stream to be at exactly v before the append.
func ExpectVersion(v Version) Check { return Check{expected: v} }

// EventLog is an append-only, per-client history of accepted events.
// Entries are never modified or removed.
//
// An EventLog is not safe for concurrent use. The router gives every shard
// its own log, so a client's stream only ever has one writer.
type EventLog struct {
	streams map[uint16][]Recorded
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{streams: make(map[uint16][]Recorded)}
}

// Append adds events to the client's stream and returns the new stream version.
func (l *EventLog) Append(clientID uint16, check Check, events ...Event) (Version, error) {
	stream := l.streams[clientID]
	current := Version(len(stream))
	if !check.any && check.expected != current {
		return current, fmt.Errorf("%w: client %d expected version %d, found %d",
			ErrVersionConflict, clientID, check.expected, current)
	}

	for _, evt := range events {
		current++
		stream = append(stream, Recorded{ClientID: clientID, Version: current, Event: evt})
	}
	l.streams[clientID] = stream

	return current, nil
}

// Stream returns a copy of the client's events with Version >= from.
func (l *EventLog) Stream(clientID uint16, from Version) []Recorded {
	stream := l.streams[clientID]
	if from > 1 {
		if int(from-1) >= len(stream) {
			return nil
		}
		stream = stream[from-1:]
	}
	out := make([]Recorded, len(stream))
	copy(out, stream)
	return out
}

// Len reports how many events the client's stream holds.
func (l *EventLog) Len(clientID uint16) int {
	return len(l.streams[clientID])
}

// Clients lists every client with at least one event, in ascending order.
func (l *EventLog) Clients() []uint16 {
	ids := make([]uint16, 0, len(l.streams))
	for id := range l.streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Replay rebuilds a client's state by folding its full stream from zero.
func (l *EventLog) Replay(clientID uint16) State {
	state := newState(clientID)
	for _, rec := range l.streams[clientID] {
		state.apply(rec.Event)
	}
	return state
}
