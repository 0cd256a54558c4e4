package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"payments-engine/model"
)

// Source yields transactions in input order. Next returns io.EOF once the
// input is exhausted. Errors wrapping ErrMalformedInput skip one record;
// any other error ends the run.
type Source interface {
	Next() (model.Transaction, error)
}

// SliceSource serves transactions from memory.
type SliceSource struct {
	txs []model.Transaction
	pos int
}

// NewSliceSource creates a Source over txs.
func NewSliceSource(txs []model.Transaction) *SliceSource {
	return &SliceSource{txs: txs}
}

func (s *SliceSource) Next() (model.Transaction, error) {
	if s.pos >= len(s.txs) {
		return model.Transaction{}, io.EOF
	}
	tx := s.txs[s.pos]
	s.pos++
	return tx, nil
}

type envelope struct {
	seq uint64
	tx  model.Transaction
}

// shard is one worker of the pool. It owns the aggregates (lanes) of every
// client routed to it together with their event log, so nothing it touches
// is shared with another goroutine.
type shard struct {
	id     int
	log    *EventLog
	lanes  map[uint16]*Aggregate
	queue  chan envelope
	logger *zap.Logger

	applied    int
	rejections []Rejection
}

func newShard(id int, logger *zap.Logger) *shard {
	return &shard{
		id:     id,
		log:    NewEventLog(),
		lanes:  make(map[uint16]*Aggregate),
		logger: logger.With(zap.Int("shard", id)),
	}
}

// lane returns the client's aggregate, creating an empty one on first use.
func (s *shard) lane(clientID uint16) *Aggregate {
	agg, ok := s.lanes[clientID]
	if !ok {
		agg = NewAggregate(clientID, s.log)
		s.lanes[clientID] = agg
	}
	return agg
}

// run folds queued transactions strictly in arrival order until the queue closes.
func (s *shard) run() error {
	for env := range s.queue {
		tx := env.tx
		_, err := s.lane(tx.ClientID).Handle(tx)
		if err == nil {
			s.applied++
			continue
		}
		if isInternal(err) {
			return fmt.Errorf("shard %d: client %d tx %d: %w", s.id, tx.ClientID, tx.TxID, err)
		}

		s.rejections = append(s.rejections, Rejection{
			Seq:      env.seq,
			ClientID: tx.ClientID,
			TxID:     tx.TxID,
			Type:     tx.Type,
			Reason:   err,
		})
		s.logger.Debug("transaction rejected",
			zap.Uint16("client", tx.ClientID),
			zap.Uint32("tx", tx.TxID),
			zap.String("type", string(tx.Type)),
			zap.Error(err),
		)
	}
	return nil
}

// Router dispatches transactions to a fixed pool of shards keyed by client id.
// A client always lands on the same shard, and a shard consumes its queue in
// order, so transactions of one client are folded in input order while
// different clients proceed in parallel.
type Router struct {
	shards     []*shard
	queueDepth int
	logger     *zap.Logger
}

// NewRouter creates a router with the given number of shards.
func NewRouter(workers, queueDepth int, logger *zap.Logger) *Router {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 0 {
		queueDepth = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	shards := make([]*shard, workers)
	for i := range shards {
		shards[i] = newShard(i, logger)
	}
	return &Router{shards: shards, queueDepth: queueDepth, logger: logger}
}

func (r *Router) shardFor(clientID uint16) *shard {
	return r.shards[int(clientID)%len(r.shards)]
}

type routeStats struct {
	dispatched int
	malformed  int
	applied    int
	rejections []Rejection
}

// Route drains src through the shards and waits for every queue to empty.
func (r *Router) Route(ctx context.Context, src Source) (routeStats, error) {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range r.shards {
		s.queue = make(chan envelope, r.queueDepth)
		s.applied = 0
		s.rejections = nil
		g.Go(s.run)
	}

	var stats routeStats
	g.Go(func() error {
		defer func() {
			for _, s := range r.shards {
				close(s.queue)
			}
		}()
		return r.dispatch(gctx, src, &stats)
	})

	err := g.Wait()

	for _, s := range r.shards {
		stats.applied += s.applied
		stats.rejections = append(stats.rejections, s.rejections...)
	}
	return stats, err
}

func (r *Router) dispatch(ctx context.Context, src Source, stats *routeStats) error {
	var seq uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		seq++
		if err != nil {
			if errors.Is(err, ErrMalformedInput) {
				stats.malformed++
				r.logger.Warn("skipping malformed record", zap.Uint64("seq", seq), zap.Error(err))
				continue
			}
			return fmt.Errorf("read transaction: %w", err)
		}

		select {
		case r.shardFor(tx.ClientID).queue <- envelope{seq: seq, tx: tx}:
			stats.dispatched++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// each calls fn for every aggregate in every shard. Only safe while no Route is running.
func (r *Router) each(fn func(*Aggregate)) {
	for _, s := range r.shards {
		for _, agg := range s.lanes {
			fn(agg)
		}
	}
}

// lookup finds the aggregate and log holding a client, if any.
func (r *Router) lookup(clientID uint16) (*Aggregate, *EventLog, bool) {
	s := r.shardFor(clientID)
	agg, ok := s.lanes[clientID]
	return agg, s.log, ok
}
