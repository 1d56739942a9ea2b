package broadcast

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andydunstall/rumor/pkg/log"
)

// RoundResult summarises a completed round.
type RoundResult struct {
	// Generation is the generation the round advanced to.
	Generation uint64

	// Succeeded is the number of acknowledged transfers.
	Succeeded int

	// Failed is the number of failed transfers.
	Failed int

	// Sent is the number of values sent across all transfers, including
	// failed transfers.
	Sent int
}

// Engine is the broadcast engine for the local node.
//
// Values submitted by clients or received from other nodes are added to the
// local store, then propagated to each neighbour in rounds. Rounds are run
// periodically and, if configured, whenever a value is submitted.
type Engine struct {
	nodeID string

	store    *Store
	cursors  *CursorTable
	topology *Topology
	rounds   *Rounds

	transport Transport

	config *Config

	metrics *Metrics

	logger log.Logger

	started    *atomic.Bool
	closed     *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

func NewEngine(
	nodeID string,
	transport Transport,
	config *Config,
	logger log.Logger,
) *Engine {
	store := NewStore()
	return &Engine{
		nodeID:     nodeID,
		store:      store,
		cursors:    NewCursorTable(store),
		topology:   NewTopology(),
		rounds:     NewRounds(),
		transport:  transport,
		config:     config,
		metrics:    newMetrics(),
		logger:     logger.WithSubsystem("broadcast"),
		started:    atomic.NewBool(false),
		closed:     atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
	}
}

// Start schedules periodic rounds at the configured interval. If the interval
// is zero, rounds only run when values are submitted.
func (e *Engine) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}

	if e.config.Interval == 0 {
		e.logger.Warn(
			"periodic rounds disabled; failed transfers will only be retried when a value is submitted",
		)
		return
	}

	e.logger.Info(
		"starting broadcast",
		zap.String("node-id", e.nodeID),
		zap.Duration("interval", e.config.Interval),
		zap.Bool("push-on-submit", e.config.PushOnSubmit),
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.schedule()
	}()
}

// Submit adds the value to the local store, then blocks until a round that
// began after the value was stored has completed.
//
// Note a completed round only means an attempt was made to send the value to
// each neighbour, not that the neighbours received it.
//
// If the wait times out or the context is cancelled an error is returned,
// though the value remains stored and will still be propagated.
func (e *Engine) Submit(ctx context.Context, v Value) error {
	if e.closed.Load() {
		return ErrClosed
	}

	start := time.Now()

	if e.store.Insert(v) {
		e.metrics.Values.Set(float64(e.store.Len()))
	}
	e.metrics.ValuesSubmitted.Inc()

	baseline := e.rounds.Barrier()

	if e.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.SubmitTimeout)
		defer cancel()
	}

	if e.config.PushOnSubmit {
		e.Round(ctx)
	}

	if err := e.rounds.WaitForNextRound(ctx, baseline); err != nil {
		return fmt.Errorf("wait for round: %w", err)
	}

	e.metrics.SubmitLatency.Observe(time.Since(start).Seconds())

	return nil
}

// Receive stores the values transferred from another node. The values are
// not forwarded, they are propagated by this nodes own rounds.
//
// Returns the number of new values.
func (e *Engine) Receive(from string, values []Value) int {
	added := e.store.InsertAll(values)
	if added > 0 {
		e.metrics.Values.Set(float64(e.store.Len()))
	}
	e.metrics.ValuesReceived.Add(float64(len(values)))

	e.logger.Debug(
		"received values",
		zap.String("from", from),
		zap.Int("values", len(values)),
		zap.Int("added", added),
	)

	return added
}

// Read returns every known value.
func (e *Engine) Read() []Value {
	return e.store.ReadAll()
}

// SetTopology sets the local nodes neighbours from the given assignment of
// node ID to neighbours.
//
// Returns the assigned neighbours.
func (e *Engine) SetTopology(assignment map[string][]string) []string {
	neighbours := e.topology.SetTopology(e.nodeID, assignment)
	if _, ok := assignment[e.nodeID]; !ok {
		e.logger.Warn(
			"topology missing local node",
			zap.String("node-id", e.nodeID),
		)
	}
	e.logger.Info("updated topology", zap.Strings("neighbours", neighbours))
	return neighbours
}

// SetNeighbours replaces the local nodes neighbours.
func (e *Engine) SetNeighbours(neighbours []string) {
	e.topology.SetNeighbours(neighbours)
	e.logger.Info("updated neighbours", zap.Strings("neighbours", neighbours))
}

// Neighbours returns the local nodes neighbours.
func (e *Engine) Neighbours() []string {
	return e.topology.Neighbours()
}

// Generation returns the number of completed rounds.
func (e *Engine) Generation() uint64 {
	return e.rounds.Generation()
}

// Watermarks returns the number of values each neighbour has acknowledged.
func (e *Engine) Watermarks() map[string]int {
	return e.cursors.Watermarks()
}

func (e *Engine) NodeID() string {
	return e.nodeID
}

func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Round runs a single round, sending each neighbour the values it hasn't
// acknowledged.
//
// Transfers are sent concurrently and Round waits for every transfer to
// either succeed or fail. If a transfer succeeds the neighbours cursor is
// advanced, otherwise it is left unchanged so the values are sent again in
// the next round. The generation is always advanced once all transfers
// complete.
func (e *Engine) Round(ctx context.Context) RoundResult {
	e.rounds.Begin()

	start := time.Now()

	var g errgroup.Group
	if e.config.MaxConcurrentTransfers > 0 {
		g.SetLimit(e.config.MaxConcurrentTransfers)
	}

	var (
		result RoundResult
		mu     sync.Mutex
	)
	for _, neighbour := range e.topology.Neighbours() {
		if neighbour == e.nodeID {
			continue
		}

		g.Go(func() error {
			watermark, delta := e.cursors.PeekAndDelta(neighbour)
			if e.config.MaxTransferValues > 0 && len(delta) > e.config.MaxTransferValues {
				delta = delta[:e.config.MaxTransferValues]
			}

			err := e.transfer(ctx, neighbour, watermark, delta)

			mu.Lock()
			defer mu.Unlock()

			result.Sent += len(delta)
			if err != nil {
				result.Failed++
			} else {
				result.Succeeded++
			}
			return nil
		})
	}
	// Errors are recorded in the result rather than returned.
	_ = g.Wait()

	result.Generation = e.rounds.Complete()

	e.metrics.Rounds.Inc()
	e.metrics.RoundLatency.Observe(time.Since(start).Seconds())

	e.logger.Debug(
		"round complete",
		zap.Uint64("generation", result.Generation),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("sent", result.Sent),
	)

	return result
}

// Close stops periodic rounds and releases any submitted values waiting for
// a round with ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(e.shutdownCh)
	e.rounds.Close()
	e.wg.Wait()

	return nil
}

// transfer sends the delta to the neighbour and advances its cursor if the
// neighbour acknowledges.
func (e *Engine) transfer(ctx context.Context, neighbour string, watermark int, delta []Value) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.TransferTimeout)
	defer cancel()

	if err := e.transport.Transfer(ctx, neighbour, delta); err != nil {
		e.metrics.Transfers.WithLabelValues("failure").Inc()

		e.logger.Debug(
			"transfer failed",
			zap.String("neighbour", neighbour),
			zap.Int("watermark", watermark),
			zap.Int("values", len(delta)),
			zap.Error(err),
		)
		return err
	}

	e.metrics.Transfers.WithLabelValues("success").Inc()
	e.metrics.TransferValues.Add(float64(len(delta)))

	if !e.cursors.Advance(neighbour, watermark, len(delta)) {
		e.metrics.CursorConflicts.Inc()
	}
	return nil
}

// schedule runs rounds at the configured interval until the engine is
// closed.
func (e *Engine) schedule() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-e.shutdownCh
		cancel()
	}()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.config.Jitter {
				if !e.jitter() {
					return
				}
			}
			e.Round(ctx)
		case <-e.shutdownCh:
			return
		}
	}
}

// jitter waits up to 10% of the interval. Returns false if the engine closed
// while waiting.
func (e *Engine) jitter() bool {
	maxJitter := e.config.Interval.Milliseconds() / 10
	if maxJitter <= 0 {
		return true
	}

	t := time.NewTimer(time.Duration(rand.Int63n(maxJitter)) * time.Millisecond)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-e.shutdownCh:
		return false
	}
}
