package build

import (
	"context"
	"fmt"
	"log/slog"
)

// Request captures which actions were selected on the command line. It is
// constructed once from parsed flags and passed explicitly into the engine.
type Request struct {
	Deb   bool
	Snap  bool
	Clean bool
}

// Empty reports whether no action was requested
func (r Request) Empty() bool {
	return !r.Deb && !r.Snap && !r.Clean
}

// PackageBuilder builds one packaging format
type PackageBuilder interface {
	Build(ctx context.Context) error
}

// Cleaner removes build byproducts from prior runs
type Cleaner interface {
	Run(ctx context.Context) error
}

// Report lists which artifact kinds a run produced
type Report struct {
	Deb  bool
	Snap bool
}

// Engine dispatches the requested build actions in fixed order
type Engine struct {
	deb     PackageBuilder
	snap    PackageBuilder
	cleaner Cleaner
	logger  *slog.Logger
}

// NewEngine creates a build engine
func NewEngine(deb, snap PackageBuilder, cleaner Cleaner, logger *slog.Logger) *Engine {
	return &Engine{
		deb:     deb,
		snap:    snap,
		cleaner: cleaner,
		logger:  logger,
	}
}

// Run executes the requested actions. Clean short-circuits: it runs the
// cleanup action and returns without building, even when build flags are
// also set. Builds run strictly sequentially, deb before snap, aborting on
// the first failure.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	if req.Clean {
		e.logger.Info("cleaning build artifacts")
		if err := e.cleaner.Run(ctx); err != nil {
			return nil, err
		}
		return &Report{}, nil
	}

	report := &Report{}

	if req.Deb {
		if err := e.deb.Build(ctx); err != nil {
			return nil, fmt.Errorf("deb build failed: %w", err)
		}
		report.Deb = true
	}

	if req.Snap {
		if err := e.snap.Build(ctx); err != nil {
			return nil, fmt.Errorf("snap build failed: %w", err)
		}
		report.Snap = true
	}

	return report, nil
}
