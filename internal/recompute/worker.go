package recompute

import (
	"context"
	"time"

	"log/slog"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
)

type runResult struct {
	generation uint64
	filter     entity.ReportFilter
	dataset    *entity.Dataset
	snapshot   *entity.MetricsSnapshot
	err        error
}

func (ctrl *Controller) listen(ctx context.Context, events <-chan entity.ChangeEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ctrl.Notify(ev) {
				slog.Default().DebugContext(ctx, "source changed",
					slog.String("table", string(ev.Table)),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// loop is the only goroutine that starts runs, so at most one is in flight.
func (ctrl *Controller) loop(ctx context.Context) {
	defer close(ctrl.done)

	debounce := time.NewTimer(ctrl.c.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	results := make(chan runResult, 1)
	var (
		running   bool
		pending   bool
		runGen    uint64
		cancelRun context.CancelFunc = func() {}
	)

	start := func() {
		req := ctrl.req.Load()
		runGen = req.generation
		if ctrl.onRequest != nil {
			ctrl.onRequest()
		}
		var runCtx context.Context
		runCtx, cancelRun = context.WithTimeout(ctx, ctrl.c.FetchTimeout)
		running = true
		ctrl.state.Store(int32(Computing))
		ctrl.runs.Add(1)
		go ctrl.run(runCtx, runGen, req.filter, results)
	}

	for {
		select {
		case <-ctrl.kick:
			if running && runGen != ctrl.Generation() {
				// filter changed, the run in flight can only produce a stale result
				cancelRun()
			}
			debounce.Reset(ctrl.c.Debounce)

		case <-debounce.C:
			if running {
				pending = true
				continue
			}
			start()

		case res := <-results:
			running = false
			cancelRun()
			ctrl.apply(ctx, res)
			if pending {
				pending = false
				start()
				continue
			}
			ctrl.state.Store(int32(Idle))

		case <-ctx.Done():
			cancelRun()
			ctrl.state.Store(int32(Idle))
			return
		}
	}
}

func (ctrl *Controller) run(ctx context.Context, gen uint64, f entity.ReportFilter, out chan<- runResult) {
	res := runResult{generation: gen, filter: f}
	res.dataset, res.err = ctrl.source.FetchDataset(ctx, f)
	if res.err == nil {
		res.snapshot, res.err = ctrl.engine.Compute(res.dataset, f)
	}
	out <- res
}

func (ctrl *Controller) apply(ctx context.Context, res runResult) {
	if res.generation != ctrl.Generation() {
		slog.Default().DebugContext(ctx, "dropping stale metrics result",
			slog.Uint64("generation", res.generation),
			slog.Uint64("current_generation", ctrl.Generation()),
		)
		return
	}

	if res.err != nil {
		err := res.err
		ctrl.lastErr.Store(&err)
		slog.Default().ErrorContext(ctx, "can't recompute metrics",
			slog.String("err", err.Error()),
			slog.String("period", res.filter.Period.String()),
			slog.Uint64("generation", res.generation),
		)
		ctrl.publish(Update{Generation: res.generation, Err: err})
		return
	}

	r := &Result{
		Generation: res.generation,
		Filter:     res.filter,
		Dataset:    res.dataset,
		Snapshot:   res.snapshot,
		ComputedAt: res.snapshot.ComputedAt,
	}
	ctrl.current.Store(r)
	ctrl.lastErr.Store(nil)
	slog.Default().InfoContext(ctx, "metrics recomputed",
		slog.String("period", res.filter.Period.String()),
		slog.Uint64("generation", res.generation),
		slog.Int("orders", res.snapshot.TotalOrders),
	)
	ctrl.publish(Update{Generation: res.generation, Result: r})
}
