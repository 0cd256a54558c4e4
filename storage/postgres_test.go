//go:build integration

// storage/postgres_test.go
package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"payments-engine/ledger"
	"payments-engine/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testStore *PostgresStore

// TestMain sets up the test database container and runs the tests.
func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:14-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}

	// Clean up the container after the tests are finished
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("could not terminate postgres container: %s", err)
		}
	}()

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("could not get connection string: %s", err)
	}

	testStore, err = NewPostgresStore(ctx, connString)
	if err != nil {
		log.Fatalf("could not connect to test database: %s", err)
	}
	defer testStore.Close()

	return m.Run()
}

func TestSaveAndGetSnapshot(t *testing.T) {
	ctx := context.Background()
	runID := uuid.NewString()

	views := []model.AccountView{
		{
			ClientID:  1,
			Available: decimal.RequireFromString("1.5"),
			Held:      decimal.Zero,
			Total:     decimal.RequireFromString("1.5"),
		},
		{
			ClientID:  65535,
			Available: decimal.RequireFromString("-0.0001"),
			Held:      decimal.RequireFromString("99999999999999.99999"),
			Total:     decimal.RequireFromString("99999999999999.99989"),
			Locked:    true,
		},
	}

	t.Run("successfully save and retrieve a snapshot", func(t *testing.T) {
		// Act
		err := testStore.SaveSnapshot(ctx, runID, views)
		require.NoError(t, err)

		// Assert
		for _, want := range views {
			got, err := testStore.GetAccount(ctx, runID, want.ClientID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, want.ClientID, got.ClientID)
			assert.True(t, want.Available.Equal(got.Available), "available: expected %s, got %s", want.Available, got.Available)
			assert.True(t, want.Held.Equal(got.Held), "held: expected %s, got %s", want.Held, got.Held)
			assert.True(t, want.Total.Equal(got.Total), "total: expected %s, got %s", want.Total, got.Total)
			assert.Equal(t, want.Locked, got.Locked)
		}
	})

	t.Run("saving a run again overwrites its rows", func(t *testing.T) {
		// Arrange
		updated := []model.AccountView{{
			ClientID:  1,
			Available: decimal.Zero,
			Held:      decimal.Zero,
			Total:     decimal.Zero,
			Locked:    true,
		}}

		// Act
		err := testStore.SaveSnapshot(ctx, runID, updated)
		require.NoError(t, err)

		// Assert
		got, err := testStore.GetAccount(ctx, runID, 1)
		require.NoError(t, err)
		assert.True(t, got.Total.IsZero())
		assert.True(t, got.Locked)
	})

	t.Run("runs are isolated", func(t *testing.T) {
		_, err := testStore.GetAccount(ctx, uuid.NewString(), 1)

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty snapshot", func(t *testing.T) {
		require.NoError(t, testStore.SaveSnapshot(ctx, uuid.NewString(), nil))
	})
}

func TestGetAccount_NotFound(t *testing.T) {
	ctx := context.Background()

	_, err := testStore.GetAccount(ctx, uuid.NewString(), 999)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejections(t *testing.T) {
	ctx := context.Background()
	runID := uuid.NewString()

	rejections := []ledger.Rejection{
		{Seq: 3, ClientID: 1, TxID: 7, Type: model.Withdrawal, Reason: ledger.ErrInsufficientFunds},
		{Seq: 9, ClientID: 2, TxID: 4, Type: model.Resolve, Reason: fmt.Errorf("%w: tx 4", ledger.ErrNotDisputed)},
	}

	require.NoError(t, testStore.SaveRejections(ctx, runID, rejections))
	require.NoError(t, testStore.SaveRejections(ctx, runID, nil))

	n, err := testStore.CountRejections(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEngineSnapshotExport(t *testing.T) {
	ctx := context.Background()
	runID := uuid.NewString()
	engine := ledger.NewEngine(nil, ledger.Config{Workers: 2, QueueDepth: 4})

	amount := func(s string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(s)) }
	res, err := engine.ProcessTransactions(ctx, []model.Transaction{
		{Type: model.Deposit, ClientID: 1, TxID: 1, Amount: amount("10")},
		{Type: model.Deposit, ClientID: 2, TxID: 2, Amount: amount("3.25")},
		{Type: model.Dispute, ClientID: 1, TxID: 1},
		{Type: model.Chargeback, ClientID: 1, TxID: 1},
		{Type: model.Withdrawal, ClientID: 2, TxID: 3, Amount: amount("5")},
	})
	require.NoError(t, err)

	// Act
	require.NoError(t, testStore.SaveSnapshot(ctx, runID, engine.Snapshot()))
	require.NoError(t, testStore.SaveRejections(ctx, runID, res.Rejections))

	// Assert
	first, err := testStore.GetAccount(ctx, runID, 1)
	require.NoError(t, err)
	assert.True(t, first.Locked)
	assert.True(t, first.Total.IsZero())

	second, err := testStore.GetAccount(ctx, runID, 2)
	require.NoError(t, err)
	assert.Equal(t, "3.25", second.Available.String())

	n, err := testStore.CountRejections(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
