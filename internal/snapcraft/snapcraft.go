package snapcraft

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sam4000133/msrpack/internal/apt"
	"github.com/sam4000133/msrpack/internal/artifact"
	"github.com/sam4000133/msrpack/internal/config"
	"github.com/sam4000133/msrpack/internal/execx"
)

// Tool is the Snap package build command
const Tool = "snapcraft"

// StateDirs are the directories snapcraft leaves behind in the build dir
var StateDirs = []string{"parts", "stage", "prime"}

// Builder produces the .snap artifact by shelling out to snapcraft
type Builder struct {
	cfg       *config.Config
	runner    execx.Runner
	installer apt.Installer
	store     *artifact.Store
	logger    *slog.Logger
}

// NewBuilder creates a Snap package builder
func NewBuilder(cfg *config.Config, runner execx.Runner, installer apt.Installer, store *artifact.Store, logger *slog.Logger) *Builder {
	return &Builder{
		cfg:       cfg,
		runner:    runner,
		installer: installer,
		store:     store,
		logger:    logger,
	}
}

// Build runs the complete snap build action: ensure the toolchain, clean
// prior build state best-effort, invoke snapcraft against the local project
// manifest, and collect the .snap into the output directory.
func (b *Builder) Build(ctx context.Context) error {
	if err := b.installer.EnsureTool(ctx, Tool, b.cfg.Snap.Packages); err != nil {
		return err
	}

	// snapcraft clean legitimately fails when there is no prior state
	if _, err := b.runner.Run(ctx, b.cfg.Paths.BuildDir, Tool, "clean"); err != nil {
		b.logger.Debug("snapcraft clean failed", "error", err)
	}

	b.logger.Info("building snap package",
		"project", b.cfg.Project.Name,
		"dir", b.cfg.Paths.BuildDir)
	if _, err := b.runner.Run(ctx, b.cfg.Paths.BuildDir, Tool); err != nil {
		return fmt.Errorf("snapcraft failed: %w", err)
	}

	if err := b.store.EnsureDir(); err != nil {
		return err
	}

	moved, err := b.store.Collect(b.cfg.Paths.BuildDir, b.cfg.SnapArtifactGlob())
	if err != nil {
		b.logger.Warn("failed to collect snap artifacts", "error", err)
		return nil
	}
	if len(moved) == 0 {
		b.logger.Warn("no .snap artifact found after build",
			"pattern", b.cfg.SnapArtifactGlob(),
			"dir", b.cfg.Paths.BuildDir)
		return nil
	}

	entries, err := b.store.Listing(b.cfg.SnapArtifactGlob())
	if err != nil {
		return err
	}
	b.logger.Info("snap package built",
		"dist", b.store.Dir(),
		"artifacts", artifact.FormatEntries(entries))
	return nil
}
