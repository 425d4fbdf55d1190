package canvaslayouts

import (
	"context"
	"errors"
	"sync"
	"time"

	"cdr.dev/slog"

	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/log"
)

// ErrStale is the result of a layout request superseded by a newer one.
var ErrStale = errors.New("layout superseded by a newer request")

// ErrBusy is returned by TryStart while another request is in flight.
var ErrBusy = errors.New("layout already in progress")

type Result struct {
	Generation uint64
	Graph      *canvasgraph.Graph
	Err        error
}

// Runner runs layout requests off the caller's goroutine. Only the latest request may
// commit: starting a request cancels the previous one and a result arriving after a newer
// request started is discarded with ErrStale.
type Runner struct {
	Opts Opts
	// Timeout bounds each request. Zero means none, CANVAS_TIMEOUT overrides it.
	Timeout time.Duration

	// Layout replaces ApplyAutoLayout when set.
	Layout func(context.Context, *canvasgraph.Graph, Opts) (*canvasgraph.Graph, error)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	pending    int
}

func NewRunner(opts Opts) *Runner {
	return &Runner{Opts: opts}
}

// Busy reports whether a request is in flight.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending > 0
}

func (r *Runner) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Cancel cancels the in-flight request, if any. Its result will be ErrStale.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Start lays out a snapshot of g and edge-optimizes it. commit is called with the result
// only if the request is still the latest, and the result is then sent on the returned
// channel. commit is never called on failure. commit runs with the Runner locked and must
// not call back into it. The returned generation identifies the request.
func (r *Runner) Start(ctx context.Context, g *canvasgraph.Graph, commit func(*canvasgraph.Graph) error) (uint64, <-chan Result) {
	gen, done, _ := r.start(ctx, g, commit, false)
	return gen, done
}

// TryStart is Start that refuses with ErrBusy instead of superseding an in-flight request.
func (r *Runner) TryStart(ctx context.Context, g *canvasgraph.Graph, commit func(*canvasgraph.Graph) error) (uint64, <-chan Result, error) {
	return r.start(ctx, g, commit, true)
}

func (r *Runner) start(ctx context.Context, g *canvasgraph.Graph, commit func(*canvasgraph.Graph) error, exclusive bool) (uint64, <-chan Result, error) {
	snapshot := g.Copy()

	r.mu.Lock()
	if exclusive && r.pending > 0 {
		r.mu.Unlock()
		return 0, nil, ErrBusy
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	gen := r.generation
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.pending++
	opts := r.Opts
	timeout := r.Timeout
	layout := r.Layout
	r.mu.Unlock()
	if layout == nil {
		layout = ApplyAutoLayout
	}

	done := make(chan Result, 1)
	go func() {
		defer cancel()
		ctx = log.Fields(log.Named(ctx, "layout"), slog.F("generation", gen))
		ctx, cancelTimeout := log.WithTimeout(ctx, timeout)
		defer cancelTimeout()

		log.Debug(ctx, "layout started", slog.F("nodes", len(snapshot.Nodes)))
		out, err := layout(ctx, snapshot, opts)
		if err == nil {
			out = OptimizeEdges(out)
		}
		done <- r.finish(ctx, gen, out, err, commit)
	}()
	return gen, done, nil
}

// Run is Start followed by waiting for its result.
func (r *Runner) Run(ctx context.Context, g *canvasgraph.Graph, commit func(*canvasgraph.Graph) error) Result {
	_, done := r.Start(ctx, g, commit)
	return <-done
}

func (r *Runner) finish(ctx context.Context, gen uint64, out *canvasgraph.Graph, err error, commit func(*canvasgraph.Graph) error) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--

	if gen != r.generation {
		log.Debug(ctx, "discarding stale layout", slog.F("latest", r.generation))
		return Result{Generation: gen, Err: ErrStale}
	}
	r.cancel = nil
	if err != nil {
		log.Warn(ctx, "layout failed", slog.Error(err))
		return Result{Generation: gen, Err: err}
	}
	if commit != nil {
		if err := commit(out); err != nil {
			log.Warn(ctx, "layout commit failed", slog.Error(err))
			return Result{Generation: gen, Err: err}
		}
	}
	log.Debug(ctx, "layout committed")
	return Result{Generation: gen, Graph: out}
}
