package ledger

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"payments-engine/model"
)

// Config sizes the worker pool.
type Config struct {
	Workers    int // number of shards; clients are spread across them by id
	QueueDepth int // buffered transactions per shard
}

// DefaultConfig uses one shard per CPU.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), QueueDepth: 1024}
}

// Result summarizes one ProcessAll call.
type Result struct {
	Processed  int // well-formed transactions handed to an aggregate
	Applied    int
	Rejected   int
	Malformed  int
	Rejections []Rejection // ordered by Seq
}

// Engine owns every account aggregate and drives the router over the input.
// Calls are serialized; ProcessAll may be called repeatedly and state accumulates.
type Engine struct {
	mu     sync.Mutex
	router *Router
	logger *zap.Logger
}

// NewEngine creates an engine with no accounts. A nil logger discards output.
func NewEngine(logger *zap.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		router: NewRouter(cfg.Workers, cfg.QueueDepth, logger),
		logger: logger,
	}
}

// ProcessAll applies every transaction from src. Rejected transactions are
// collected in the result and never stop processing. The returned error is
// only non-nil for source failures, cancellation, or an internal fault.
func (e *Engine) ProcessAll(ctx context.Context, src Source) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats, err := e.router.Route(ctx, src)

	sort.Slice(stats.rejections, func(i, j int) bool {
		return stats.rejections[i].Seq < stats.rejections[j].Seq
	})
	res := Result{
		Processed:  stats.dispatched,
		Applied:    stats.applied,
		Rejected:   len(stats.rejections),
		Malformed:  stats.malformed,
		Rejections: stats.rejections,
	}
	if err != nil {
		return res, fmt.Errorf("process transactions: %w", err)
	}

	e.logger.Info("transactions processed",
		zap.Int("processed", res.Processed),
		zap.Int("applied", res.Applied),
		zap.Int("rejected", res.Rejected),
		zap.Int("malformed", res.Malformed),
	)
	return res, nil
}

// ProcessTransactions is ProcessAll over an in-memory slice.
func (e *Engine) ProcessTransactions(ctx context.Context, txs []model.Transaction) (Result, error) {
	return e.ProcessAll(ctx, NewSliceSource(txs))
}

// Snapshot returns every known account ordered by client id.
func (e *Engine) Snapshot() []model.AccountView {
	e.mu.Lock()
	defer e.mu.Unlock()

	var views []model.AccountView
	e.router.each(func(agg *Aggregate) {
		views = append(views, agg.Account().View())
	})
	sort.Slice(views, func(i, j int) bool { return views[i].ClientID < views[j].ClientID })
	return views
}

// Account returns the cached state of a client.
func (e *Engine) Account(clientID uint16) (Account, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	agg, _, ok := e.router.lookup(clientID)
	if !ok {
		return Account{}, false
	}
	return agg.Account(), true
}

// Replay rebuilds a client's account from its event stream alone.
func (e *Engine) Replay(clientID uint16) (Account, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, log, ok := e.router.lookup(clientID)
	if !ok {
		return Account{}, false
	}
	return log.Replay(clientID).Account, true
}

// Events returns a copy of a client's event stream.
func (e *Engine) Events(clientID uint16) []Recorded {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, log, ok := e.router.lookup(clientID)
	if !ok {
		return nil
	}
	return log.Stream(clientID, 1)
}

// Verify checks that every cached account equals the replay of its stream.
func (e *Engine) Verify() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	e.router.each(func(agg *Aggregate) {
		cached := agg.Account()
		_, log, _ := e.router.lookup(cached.ClientID)
		replayed := log.Replay(cached.ClientID)

		if !cached.Equal(replayed.Account) {
			errs = append(errs, fmt.Errorf("client %d: cached %+v, replayed %+v", cached.ClientID, cached, replayed.Account))
		}
		if !indexEqual(agg.state.Index, replayed.Index) {
			errs = append(errs, fmt.Errorf("client %d: cached dispute index differs from replay", cached.ClientID))
		}
		if v := Version(log.Len(cached.ClientID)); v != agg.Version() {
			errs = append(errs, fmt.Errorf("client %d: cached version %d, stream version %d", cached.ClientID, agg.Version(), v))
		}
	})
	return errors.Join(errs...)
}

func indexEqual(a, b Index) bool {
	if len(a) != len(b) {
		return false
	}
	for id, ra := range a {
		rb, ok := b[id]
		if !ok || ra.Kind != rb.Kind || ra.State != rb.State || !ra.Amount.Equal(rb.Amount) {
			return false
		}
	}
	return true
}
