package debian

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sam4000133/msrpack/internal/apt"
	"github.com/sam4000133/msrpack/internal/artifact"
	"github.com/sam4000133/msrpack/internal/config"
	"github.com/sam4000133/msrpack/internal/execx"
)

// Tool is the Debian package build command
const Tool = "dpkg-buildpackage"

// Builder produces the .deb artifact by shelling out to dpkg-buildpackage
type Builder struct {
	cfg       *config.Config
	runner    execx.Runner
	installer apt.Installer
	store     *artifact.Store
	logger    *slog.Logger
}

// NewBuilder creates a Debian package builder
func NewBuilder(cfg *config.Config, runner execx.Runner, installer apt.Installer, store *artifact.Store, logger *slog.Logger) *Builder {
	return &Builder{
		cfg:       cfg,
		runner:    runner,
		installer: installer,
		store:     store,
		logger:    logger,
	}
}

// Build runs the complete deb build action: ensure the toolchain, remove
// stale byproducts, invoke dpkg-buildpackage, and collect the .deb from the
// parent directory into the output directory.
func (b *Builder) Build(ctx context.Context) error {
	if err := b.installer.EnsureTool(ctx, Tool, b.cfg.Deb.Packages); err != nil {
		return err
	}

	b.removeStale()

	args, err := b.cfg.DebBuildArgs()
	if err != nil {
		return err
	}

	b.logger.Info("building debian package",
		"project", b.cfg.Project.Name,
		"dir", b.cfg.Paths.BuildDir)
	if _, err := b.runner.Run(ctx, b.cfg.Paths.BuildDir, Tool, args...); err != nil {
		return fmt.Errorf("dpkg-buildpackage failed: %w", err)
	}

	if err := b.store.EnsureDir(); err != nil {
		return err
	}

	moved, err := b.store.Collect(b.cfg.ParentDir(), b.cfg.DebArtifactGlob())
	if err != nil {
		return err
	}
	if len(moved) == 0 {
		b.logger.Warn("no .deb artifact found after build",
			"pattern", b.cfg.DebArtifactGlob(),
			"dir", b.cfg.ParentDir())
		return nil
	}

	entries, err := b.store.Listing(b.cfg.DebArtifactGlob())
	if err != nil {
		return err
	}
	b.logger.Info("debian package built",
		"dist", b.store.Dir(),
		"artifacts", artifact.FormatEntries(entries))
	return nil
}

// removeStale deletes debhelper state from debian/ and prior build outputs
// from the parent directory, so the collect step never has to disambiguate
// old artifacts from new ones.
func (b *Builder) removeStale() {
	name := b.cfg.Project.Name
	debianDir := b.cfg.DebianDir()

	artifact.RemovePaths(b.logger,
		filepath.Join(debianDir, ".debhelper"),
		filepath.Join(debianDir, "files"),
		filepath.Join(debianDir, "debhelper-build-stamp"),
		filepath.Join(debianDir, name),
		filepath.Join(debianDir, name+".substvars"),
		filepath.Join(debianDir, name+".debhelper.log"),
	)
	artifact.RemoveMatching(b.logger, b.cfg.Paths.BuildDir, b.cfg.DebByproductGlobs()...)
	artifact.RemoveMatching(b.logger, b.cfg.ParentDir(), b.cfg.DebByproductGlobs()...)
}
