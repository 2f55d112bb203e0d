// Package integrity orchestrates baseline and verify cycles: it composes
// the walker, hasher, baseline store and privilege guard, owns the
// comparison state machine and aggregates per-entity failures.
package integrity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/intact-sh/intact/internal/fsx"
	"github.com/intact-sh/intact/internal/priv"
	"github.com/intact-sh/intact/internal/store"
)

// ErrNotPrivileged aborts a secure-mode cycle before any store mutation.
var ErrNotPrivileged = errors.New("secure mode requires elevated privileges (re-run privileged, or pass --insecure)")

const defaultWorkers = 4

// Options configures an Engine.
type Options struct {
	// Roots are the monitored directory roots (canonical absolute paths).
	Roots []string
	// Excluded is the scan rule predicate; excluded paths are skipped
	// entirely. Must match the predicate used at baseline time.
	Excluded func(path string) bool
	// Insecure allows a cycle to proceed without elevated privileges and
	// downgrades permission-denied reads to informational findings.
	Insecure bool
	// Workers bounds the parallel hash workers. Hashing is the only
	// parallel stage; store access stays single-writer.
	Workers int
}

// Engine runs integrity cycles against one baseline store. Cycles are
// serialized: a store supports a single active cycle, and each cycle
// closes the store when it finishes, so an Engine is good for one
// Baseline or Verify call per store handle.
type Engine struct {
	fs     afero.Fs
	store  *store.Store
	guard  priv.Guard
	sink   Sink
	logger *slog.Logger
	opts   Options

	mu sync.Mutex // single active cycle
}

// NewEngine creates an engine over fsys and st.
func NewEngine(fsys afero.Fs, st *store.Store, guard priv.Guard, sink Sink, logger *slog.Logger, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Excluded == nil {
		opts.Excluded = func(string) bool { return false }
	}
	return &Engine{
		fs:     fsys,
		store:  st,
		guard:  guard,
		sink:   sink,
		logger: logger,
		opts:   opts,
	}
}

// result carries one hashed entity from the workers to the store writer.
type result struct {
	path string
	sum  fsx.Checksum
	err  error
}

// Baseline rebuilds the baseline: every non-excluded entity is hashed and
// unconditionally written to the store, so a re-run always resets tracked
// state to the current filesystem. The store is compacted and closed at
// cycle end.
func (e *Engine) Baseline(ctx context.Context) (*Report, error) {
	return e.run(ctx, false)
}

// Verify runs one verify cycle: mark all records, scan and compare,
// sweep unvisited records as deletions, compact and close the store.
func (e *Engine) Verify(ctx context.Context) (*Report, error) {
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, verify bool) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Every cycle releases the store handle, including abort paths.
	// Close is idempotent, so the explicit close at the end is safe.
	defer func() {
		_ = e.store.Close()
	}()

	privileged, release, err := e.guard.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire privileges: %w", err)
	}
	defer release()

	if !privileged && !e.opts.Insecure {
		return nil, ErrNotPrivileged
	}

	e.logger.Info("starting cycle",
		"mode", cycleName(verify),
		"roots", e.opts.Roots,
		"privileged", privileged,
		"insecure", e.opts.Insecure)

	rep := &Report{}

	if verify {
		e.logger.Debug("marking baseline records")
		if err := e.store.MarkAll(); err != nil {
			return nil, fmt.Errorf("mark baseline records: %w", err)
		}
	}

	consume := e.baselineEntity
	if verify {
		consume = e.verifyEntity
	}
	if err := e.scan(ctx, rep, consume); err != nil {
		return nil, err
	}

	if verify {
		e.logger.Debug("sweeping unvisited records")
		for path, err := range e.store.Sweep() {
			if err != nil {
				return nil, fmt.Errorf("sweep baseline records: %w", err)
			}
			rep.Deleted++
			e.record(rep, Finding{
				Severity: SeverityError,
				Kind:     KindDeleted,
				Path:     path,
				Detail:   "record not cleared during scan",
			})
		}
	}

	e.logger.Debug("compacting store")
	if err := e.store.Compact(); err != nil {
		return nil, err
	}
	if err := e.store.Close(); err != nil {
		return nil, fmt.Errorf("close baseline store: %w", err)
	}

	e.logger.Info("cycle complete",
		"mode", cycleName(verify),
		"altered", rep.Altered,
		"new", rep.New,
		"deleted", rep.Deleted,
		"soft_failures", rep.SoftFailures)
	return rep, nil
}

// scan walks the roots, hashing entities on a worker pool and feeding
// every result through the single consume call site, which is the only
// place that touches the store during the scan phase.
func (e *Engine) scan(ctx context.Context, rep *Report, consume func(*Report, result) error) error {
	jobs := make(chan string, e.opts.Workers)
	results := make(chan result, e.opts.Workers)

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < e.opts.Workers; i++ {
		g.Go(func() error {
			for path := range jobs {
				sum, err := fsx.Digest(e.fs, path)
				results <- result{path: path, sum: sum, err: err}
			}
			return nil
		})
	}

	var travErrs []error
	go func() {
		travErrs = fsx.Walk(e.fs, e.opts.Roots, e.opts.Excluded, func(path string, _ os.FileInfo) {
			jobs <- path
		})
		close(jobs)
	}()
	go func() {
		_ = g.Wait()
		close(results)
	}()

	var fatal error
	for res := range results {
		if fatal != nil {
			continue // drain so workers can finish
		}
		fatal = consume(rep, res)
	}
	if fatal != nil {
		return fatal
	}

	// Unreadable directories are a failure class of their own: nothing
	// below them was visited, but the walk as a whole stands.
	for _, terr := range travErrs {
		rep.SoftFailures++
		e.record(rep, Finding{
			Severity: SeverityWarn,
			Kind:     KindScanError,
			Detail:   terr.Error(),
		})
	}
	return nil
}

// baselineEntity stores the digest of one entity during a baseline cycle.
func (e *Engine) baselineEntity(rep *Report, res result) error {
	if res.err != nil {
		e.hashFailure(rep, res.path, res.err)
		return nil
	}
	if err := e.store.Put(res.path, res.sum); err != nil {
		return fmt.Errorf("store %s: %w", res.path, err)
	}
	e.logger.Debug("baselined", "path", res.path, "checksum", res.sum)
	return nil
}

// verifyEntity compares one entity against the baseline during a verify
// cycle. Every comparison outcome is handled explicitly.
func (e *Engine) verifyEntity(rep *Report, res result) error {
	if res.err != nil {
		// The mark is deliberately not cleared on a hashing failure, so
		// the entity later surfaces from the sweep as an apparent
		// deletion. Known approximation, kept as-is.
		e.hashFailure(rep, res.path, res.err)
		return nil
	}

	cmp, err := e.store.CompareAndClear(res.path, res.sum)
	if err != nil {
		return fmt.Errorf("compare %s: %w", res.path, err)
	}

	switch cmp {
	case store.Matching:
		e.logger.Debug("verified", "path", res.path)
	case store.Mismatch:
		rep.Altered++
		e.record(rep, Finding{
			Severity: SeverityError,
			Kind:     KindAltered,
			Path:     res.path,
			Detail:   "checksum differs from baseline",
		})
	case store.Missing:
		rep.New++
		e.record(rep, Finding{
			Severity: SeverityWarn,
			Kind:     KindNew,
			Path:     res.path,
			Detail:   "file not present in baseline",
		})
	}
	return nil
}

// hashFailure records a per-entity read failure. Permission denials in
// insecure mode are expected and downgraded to informational.
func (e *Engine) hashFailure(rep *Report, path string, err error) {
	rep.SoftFailures++

	if errors.Is(err, fs.ErrPermission) && e.opts.Insecure {
		e.record(rep, Finding{
			Severity: SeverityInfo,
			Kind:     KindDenied,
			Path:     path,
			Detail:   "unreadable without elevated privileges",
		})
		return
	}

	e.record(rep, Finding{
		Severity: SeverityError,
		Kind:     KindScanError,
		Path:     path,
		Detail:   err.Error(),
	})
}

// record appends a finding to the report and forwards it to the sink. A
// sink write failure must not lose the cycle's result; it is logged and
// the cycle continues.
func (e *Engine) record(rep *Report, f Finding) {
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	rep.Findings = append(rep.Findings, f)
	if err := e.sink.Record(f); err != nil {
		e.logger.Warn("failed to write finding", "path", f.Path, "error", err)
	}
}

func cycleName(verify bool) string {
	if verify {
		return "integrity"
	}
	return "baseline"
}
