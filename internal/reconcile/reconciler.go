// Package reconcile flushes the pending-change queue to the ledger.
//
// A flush submits two batches: every Add in one create call, then every
// Toggle/Delete in one mutate call with temporary ids rewritten to the ids phase
// one produced. The consumed part of the queue is cleared whatever happens and the
// list is reloaded from the ledger. Failed items are not resubmitted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"todosync/internal/ledger"
	"todosync/internal/todo"
)

// DefaultCallTimeout bounds each remote call of a flush.
const DefaultCallTimeout = 15 * time.Second

var (
	ErrCreateBatch = errors.New("create batch failed")
	ErrMutateBatch = errors.New("mutate batch failed")
	ErrReload      = errors.New("reload failed")

	// ErrCreationOrder means created records did not match submission order.
	ErrCreationOrder = errors.New("created tasks do not match submission order")
	// ErrCreationCount means the ledger created a different number of tasks than submitted.
	ErrCreationCount = errors.New("created task count does not match submission")
)

// Reconciler runs flushes against one ledger.
type Reconciler struct {
	ledger  ledger.Ledger
	logger  *slog.Logger
	tracer  trace.Tracer
	timeout time.Duration
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCallTimeout bounds each remote call. Zero or negative disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

// WithTracer sets the tracer used for flush spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New creates a Reconciler for l.
func New(l ledger.Ledger, opts ...Option) *Reconciler {
	r := &Reconciler{
		ledger:  l,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  otel.Tracer("todosync/reconcile"),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flush consumes the store's queue and pushes it to the ledger.
//
// The returned error joins every phase failure; the Report is returned either way
// so callers can tell the user what was lost. todo.ErrFlushInProgress is returned,
// with a nil report, before any remote call.
func (r *Reconciler) Flush(ctx context.Context, store *todo.Store) (*Report, error) {
	changes, err := store.BeginFlush()
	if err != nil {
		return nil, err
	}

	rep := &Report{FlushID: uuid.NewString(), Consumed: len(changes)}
	if len(changes) == 0 {
		r.logger.Debug("nothing to flush")
		return rep, nil
	}

	ctx, span := r.tracer.Start(ctx, "reconcile.Flush", trace.WithAttributes(
		attribute.String("flush.id", rep.FlushID),
		attribute.Int("flush.changes", len(changes)),
	))
	defer span.End()

	log := r.logger.With("flush_id", rep.FlushID)
	log.Debug("flush started", "changes", len(changes))

	parts := Partition(changes)

	// Phase 1: creations
	creation := r.createBatch(ctx, log, parts.Adds)
	rep.Adds = creation.Submitted
	rep.CreateErr = creation.Err
	for _, a := range creation.Submitted {
		if id, ok := creation.Mapping[a.LocalID]; ok {
			rep.Created = append(rep.Created, Creation{Local: a.LocalID, Remote: id, Content: a.Content})
		}
	}

	// Phase 2: mutations, with temporary ids resolved
	ops, dropped := ResolveMutations(parts.Mutations, creation.Mapping)
	rep.Dropped = dropped
	if len(dropped) > 0 {
		log.Debug("dropped changes with unresolved targets", "count", len(dropped))
	}
	rep.Submitted = ops
	rep.Failed, rep.MutateErr = r.mutateBatch(ctx, log, ops)

	// Reload
	records, err := r.listAll(ctx)
	if err != nil {
		rep.ReloadErr = fmt.Errorf("%w: %w", ErrReload, err)
		log.Warn("reload failed; keeping optimistic list", "err", err)
	} else {
		rep.Reloaded = true
	}

	store.FinishFlush(todo.FlushOutcome{
		Consumed: len(changes),
		Mapping:  creation.Mapping,
		Records:  records,
		Reloaded: rep.Reloaded,
	})

	err = rep.Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("flush finished with errors", "created", len(rep.Created), "submitted", len(ops), "failed", len(rep.Failed))
	} else {
		log.Debug("flush finished", "created", len(rep.Created), "submitted", len(ops), "dropped", len(dropped))
	}
	return rep, err
}

func (r *Reconciler) createBatch(ctx context.Context, log *slog.Logger, adds []todo.Change) CreationBatchResult {
	res := CreationBatchResult{Submitted: adds, Mapping: todo.IDMap{}}
	if len(adds) == 0 {
		return res
	}

	ctx, span := r.tracer.Start(ctx, "reconcile.BatchCreate", trace.WithAttributes(attribute.Int("batch.size", len(adds))))
	defer span.End()

	contents := make([]string, len(adds))
	for i, a := range adds {
		contents[i] = a.Content
	}

	callCtx, cancel := r.callContext(ctx)
	created, callErr := r.ledger.BatchCreate(callCtx, contents)
	cancel()
	res.Created = created

	mapping, mapErr := BuildMapping(adds, created)
	res.Mapping = mapping

	switch {
	case callErr != nil && errors.Is(mapErr, ErrCreationOrder):
		res.Err = errors.Join(fmt.Errorf("%w: %w", ErrCreateBatch, callErr), mapErr)
	case callErr != nil:
		// A short prefix is expected alongside a ledger error.
		res.Err = fmt.Errorf("%w: %w", ErrCreateBatch, callErr)
	case mapErr != nil:
		res.Err = mapErr
	}

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		log.Warn("create batch failed", "submitted", len(adds), "mapped", len(mapping), "err", res.Err)
	} else {
		log.Debug("create batch done", "created", len(mapping))
	}
	return res
}

func (r *Reconciler) mutateBatch(ctx context.Context, log *slog.Logger, ops []ledger.Op) ([]FailedOp, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	ctx, span := r.tracer.Start(ctx, "reconcile.BatchMutate", trace.WithAttributes(attribute.Int("batch.size", len(ops))))
	defer span.End()

	callCtx, cancel := r.callContext(ctx)
	res, err := r.ledger.BatchMutate(callCtx, ops)
	cancel()

	var failed []FailedOp
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %w", ErrMutateBatch, err)
	case len(res.Errs) == 0:
	case len(res.Errs) != len(ops):
		err = fmt.Errorf("%w: ledger reported %d results for %d ops", ErrMutateBatch, len(res.Errs), len(ops))
	default:
		for _, i := range res.Failed() {
			failed = append(failed, FailedOp{Op: ops[i], Err: res.Errs[i]})
		}
		if len(failed) > 0 {
			err = fmt.Errorf("%w: %d of %d ops failed", ErrMutateBatch, len(failed), len(ops))
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("mutate batch failed", "submitted", len(ops), "err", err)
		for _, f := range failed {
			log.Debug("op failed", "op", f.Op.String(), "err", f.Err)
		}
	} else {
		log.Debug("mutate batch done", "submitted", len(ops))
	}
	return failed, err
}

func (r *Reconciler) listAll(ctx context.Context) ([]ledger.Record, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.ListAll")
	defer span.End()

	callCtx, cancel := r.callContext(ctx)
	defer cancel()
	records, err := r.ledger.ListAll(callCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// Pull reloads the store from the ledger, keeping pending changes applied on top.
func (r *Reconciler) Pull(ctx context.Context, store *todo.Store) error {
	records, err := r.listAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReload, err)
	}
	store.Refresh(records)
	r.logger.Debug("pulled", "records", len(records))
	return nil
}

func (r *Reconciler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
