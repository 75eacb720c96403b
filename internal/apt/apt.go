package apt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sam4000133/msrpack/internal/execx"
)

// Installer ensures a required build tool is available on the host
type Installer interface {
	// EnsureTool checks that tool resolves on PATH and, if it does not,
	// installs the named packages via the system package manager.
	EnsureTool(ctx context.Context, tool string, packages []string) error
}

// Client implements Installer by shelling out to apt-get
type Client struct {
	runner execx.Runner
	logger *slog.Logger
	euid   int
}

// NewClient creates a new apt client
func NewClient(runner execx.Runner, logger *slog.Logger) *Client {
	return &Client{
		runner: runner,
		logger: logger,
		euid:   os.Geteuid(),
	}
}

// EnsureTool installs the dependency packages when tool is missing from PATH.
// Installation failure is fatal and carries the package manager's exit code.
func (c *Client) EnsureTool(ctx context.Context, tool string, packages []string) error {
	if path, err := c.runner.LookPath(tool); err == nil {
		c.logger.Debug("build tool present", "tool", tool, "path", path)
		return nil
	}

	c.logger.Info("build tool missing, installing dependencies",
		"tool", tool,
		"packages", strings.Join(packages, " "))

	name, args := c.installCommand(packages)
	if _, err := c.runner.Run(ctx, "", name, args...); err != nil {
		return fmt.Errorf("failed to install dependencies for %s: %w", tool, err)
	}

	if _, err := c.runner.LookPath(tool); err != nil {
		return fmt.Errorf("%s still missing after installing %s", tool, strings.Join(packages, " "))
	}

	return nil
}

// installCommand builds the apt-get invocation, prefixed with sudo when
// not running as root.
func (c *Client) installCommand(packages []string) (string, []string) {
	args := append([]string{"install", "-y", "--no-install-recommends"}, packages...)
	if c.euid != 0 {
		return "sudo", append([]string{"apt-get"}, args...)
	}
	return "apt-get", args
}
