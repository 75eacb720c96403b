package clean

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sam4000133/msrpack/internal/artifact"
	"github.com/sam4000133/msrpack/internal/config"
	"github.com/sam4000133/msrpack/internal/execx"
	"github.com/sam4000133/msrpack/internal/snapcraft"
)

// Cleaner removes build byproducts for both packaging backends plus the
// generic language-level build caches of the packaged project.
type Cleaner struct {
	cfg    *config.Config
	runner execx.Runner
	logger *slog.Logger
}

// NewCleaner creates a cleaner
func NewCleaner(cfg *config.Config, runner execx.Runner, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// Run deletes all known build byproducts. Every step is independently
// best-effort: an absent target is not an error, and individual failures
// are logged at debug level without failing the run.
func (c *Cleaner) Run(ctx context.Context) error {
	c.removeDebByproducts()
	c.removeSnapByproducts(ctx)
	c.removeBuildCaches()

	c.logger.Info("cleanup complete")
	return nil
}

func (c *Cleaner) removeDebByproducts() {
	name := c.cfg.Project.Name
	debianDir := c.cfg.DebianDir()

	artifact.RemovePaths(c.logger,
		filepath.Join(debianDir, ".debhelper"),
		filepath.Join(debianDir, "files"),
		filepath.Join(debianDir, "debhelper-build-stamp"),
		filepath.Join(debianDir, name),
		filepath.Join(debianDir, name+".substvars"),
		filepath.Join(debianDir, name+".debhelper.log"),
	)
	artifact.RemoveMatching(c.logger, c.cfg.Paths.BuildDir, c.cfg.DebByproductGlobs()...)
	artifact.RemoveMatching(c.logger, c.cfg.ParentDir(), c.cfg.DebByproductGlobs()...)
}

func (c *Cleaner) removeSnapByproducts(ctx context.Context) {
	buildDir := c.cfg.Paths.BuildDir

	if _, err := c.runner.LookPath(snapcraft.Tool); err == nil {
		if _, err := c.runner.Run(ctx, buildDir, snapcraft.Tool, "clean"); err != nil {
			c.logger.Debug("snapcraft clean failed", "error", err)
		}
	}

	for _, dir := range snapcraft.StateDirs {
		artifact.RemovePaths(c.logger, filepath.Join(buildDir, dir))
	}
	artifact.RemoveMatching(c.logger, buildDir, c.cfg.SnapArtifactGlob())
}

func (c *Cleaner) removeBuildCaches() {
	buildDir := c.cfg.Paths.BuildDir

	var caches []string
	err := filepath.WalkDir(buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == "__pycache__" || strings.HasSuffix(name, ".egg-info") {
			caches = append(caches, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		c.logger.Debug("build cache scan failed", "error", err)
	}
	artifact.RemovePaths(c.logger, caches...)

	artifact.RemovePaths(c.logger,
		filepath.Join(buildDir, "build"),
		c.cfg.Paths.DistDir,
	)
}
