package generator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ecommsim/datagen/internal/catalog"
	"github.com/ecommsim/datagen/internal/state"
)

// Sink delivers an event payload to one or more destinations. A failed
// delivery must not crash the generation loop; workers log it and continue
// with the next cycle.
type Sink interface {
	Deliver(ctx context.Context, payload []byte) error
}

// Pacing is the randomized delay between generation cycles.
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

// PoolConfig holds the generation pool knobs.
type PoolConfig struct {
	Workers             int
	DuplicatePercentage int // 0..100 chance an event is delivered twice
	Pacing              Pacing
	MaxEventsPerSecond  float64 // 0 disables the global rate cap
}

// Worker runs an unbounded generation loop: select action, mutate state,
// build event, deliver, pace. Each worker owns its Selector and rand source.
type Worker struct {
	id           int
	selector     *Selector
	sink         Sink
	duplicatePct int
	pacing       Pacing
	limiter      *rate.Limiter // shared across workers, may be nil
	rng          *rand.Rand
	log          *slog.Logger
}

// Run loops until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.cycle(ctx); err != nil {
			// Only context errors surface from a cycle; delivery failures are
			// logged inside and swallowed.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.log.Error("generation cycle failed", "worker", w.id, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pacingDelay()):
		}
	}
}

// cycle generates exactly one event: state is mutated once, delivery may
// happen twice when the independent duplicate draw hits.
func (w *Worker) cycle(ctx context.Context) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	resolved := w.selector.Next()
	event := BuildEvent(resolved.CustomerID, resolved.Action, resolved.Product, time.Now())

	payload, err := event.MarshalPayload()
	if err != nil {
		w.log.Error("event payload marshaling failed", "worker", w.id, "error", err)
		return nil
	}

	if err := w.sink.Deliver(ctx, payload); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		w.log.Warn("event delivery failed",
			"worker", w.id,
			"customer", resolved.CustomerID,
			"action", resolved.Action,
			"error", err)
	}

	// Independent draw, not tied to the action selection randomness. The
	// duplicate delivery reuses the identical payload to exercise downstream
	// deduplication.
	if w.rng.Intn(100) < w.duplicatePct {
		if err := w.sink.Deliver(ctx, payload); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.log.Warn("duplicate event delivery failed", "worker", w.id, "error", err)
		}
	}

	return nil
}

// pacingDelay returns a uniformly random delay in [Min, Max].
func (w *Worker) pacingDelay() time.Duration {
	if w.pacing.Max <= w.pacing.Min {
		return w.pacing.Min
	}
	return w.pacing.Min + time.Duration(w.rng.Int63n(int64(w.pacing.Max-w.pacing.Min)+1))
}

// Pool is a fixed-size set of generation workers sharing the state table, the
// catalog and the sink.
type Pool struct {
	workers []*Worker
	log     *slog.Logger
}

// NewPool builds cfg.Workers workers. Each worker gets its own rand source and
// Selector; the optional events-per-second limiter is shared by all of them.
func NewPool(
	cfg PoolConfig,
	table *state.Table,
	cat *catalog.Catalog,
	weights Weights,
	sink Sink,
	log *slog.Logger,
) (*Pool, error) {
	var limiter *rate.Limiter
	if cfg.MaxEventsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxEventsPerSecond), cfg.Workers)
	}

	workers := make([]*Worker, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i))) //nolint:gosec // weak random is fine for simulation

		selector, err := NewSelector(table, cat, weights, rng)
		if err != nil {
			return nil, err
		}

		workers = append(workers, &Worker{
			id:           i,
			selector:     selector,
			sink:         sink,
			duplicatePct: cfg.DuplicatePercentage,
			pacing:       cfg.Pacing,
			limiter:      limiter,
			rng:          rng,
			log:          log,
		})
	}

	return &Pool{workers: workers, log: log}, nil
}

// Run starts all workers and blocks until the context is canceled and every
// worker has finished its in-flight cycle.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("starting generation workers", "workers", len(p.workers))

	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(worker)
	}
	wg.Wait()

	p.log.Info("generation workers stopped")
}
