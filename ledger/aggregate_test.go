package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payments-engine/model"
)

func TestAggregateHandle(t *testing.T) {
	t.Run("accepted transaction appends one event", func(t *testing.T) {
		log := NewEventLog()
		agg := NewAggregate(1, log)

		evt, err := agg.Handle(deposit(1, 1, "5.0"))

		require.NoError(t, err)
		assert.Equal(t, Deposited, evt.Kind)
		assert.Equal(t, Version(1), agg.Version())
		assert.Equal(t, 1, log.Len(1))
		rec, ok := agg.Lookup(1)
		require.True(t, ok)
		assert.Equal(t, TxAccepted, rec.State)
	})

	t.Run("rejected transaction appends nothing", func(t *testing.T) {
		log := NewEventLog()
		agg := NewAggregate(2, log)

		_, err := agg.Handle(withdrawal(2, 10, "50.0"))

		require.ErrorIs(t, err, ErrInsufficientFunds)
		assert.False(t, isInternal(err))
		assert.Equal(t, Version(0), agg.Version())
		assert.Equal(t, 0, log.Len(2))
		assert.True(t, agg.Account().Equal(Account{ClientID: 2}))
	})

	t.Run("dispute lifecycle updates the index", func(t *testing.T) {
		agg := NewAggregate(1, NewEventLog())
		_, err := agg.Handle(deposit(1, 1, "5.0"))
		require.NoError(t, err)

		_, err = agg.Handle(dispute(1, 1))
		require.NoError(t, err)
		rec, _ := agg.Lookup(1)
		assert.Equal(t, TxDisputed, rec.State)

		_, err = agg.Handle(resolve(1, 1))
		require.NoError(t, err)
		rec, _ = agg.Lookup(1)
		assert.Equal(t, TxResolved, rec.State)
	})

	t.Run("foreign writer causes a version conflict", func(t *testing.T) {
		log := NewEventLog()
		agg := NewAggregate(1, log)
		_, err := log.Append(1, AnyVersion(), Event{Kind: Deposited, TxID: 7, Amount: dec("1")})
		require.NoError(t, err)

		_, err = agg.Handle(deposit(1, 1, "5.0"))

		require.ErrorIs(t, err, ErrVersionConflict)
		assert.True(t, isInternal(err))
		assert.True(t, agg.Account().Equal(Account{ClientID: 1}))
	})

	t.Run("cache matches replay after every step", func(t *testing.T) {
		log := NewEventLog()
		agg := NewAggregate(5, log)
		steps := []model.Transaction{
			deposit(5, 1, "10"),
			withdrawal(5, 2, "2.5"),
			dispute(5, 2),
			resolve(5, 2),
			deposit(5, 3, "1.0001"),
			dispute(5, 3),
			chargeback(5, 3),
		}

		for _, tx := range steps {
			_, err := agg.Handle(tx)
			require.NoError(t, err, "%s tx %d", tx.Type, tx.TxID)
			replayed := log.Replay(5)
			assert.True(t, agg.Account().Equal(replayed.Account), "after %s tx %d: cached %+v replayed %+v", tx.Type, tx.TxID, agg.Account(), replayed.Account)
		}
	})
}
