package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sam4000133/msrpack/internal/apt"
	"github.com/sam4000133/msrpack/internal/artifact"
	"github.com/sam4000133/msrpack/internal/build"
	"github.com/sam4000133/msrpack/internal/clean"
	"github.com/sam4000133/msrpack/internal/config"
	"github.com/sam4000133/msrpack/internal/debian"
	"github.com/sam4000133/msrpack/internal/execx"
	"github.com/sam4000133/msrpack/internal/platform"
	"github.com/sam4000133/msrpack/internal/snapcraft"
	"github.com/spf13/cobra"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Action flags
	buildDeb  bool
	buildSnap bool
	buildAll  bool
	doClean   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(execx.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "msrpack",
	Short: "Build msr605x-utility distribution packages",
	Long: `msrpack orchestrates the native OS packaging toolchains to produce
installable msr605x-utility artifacts.

It drives dpkg-buildpackage for Debian packages and snapcraft for snaps,
installs missing build dependencies via apt, and collects the resulting
files side by side under the dist/ output directory.

With no flags, msrpack prints this help and exits.`,
	Args:          rejectArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBuild,
}

// rejectArgs turns positional tokens into unknown-option errors with the
// same error-plus-usage reporting as flag parse failures.
func rejectArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return flagError(cmd, fmt.Errorf("unknown argument: %q", args[0]))
}

// flagError prints the error and usage to stderr, matching the behavior
// expected for unrecognized command-line tokens.
func flagError(cmd *cobra.Command, err error) error {
	cmd.PrintErrln("Error:", err.Error())
	cmd.PrintErrln(cmd.UsageString())
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("msrpack %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Action flags
	rootCmd.Flags().BoolVar(&buildDeb, "deb", false, "build the Debian package")
	rootCmd.Flags().BoolVar(&buildSnap, "snap", false, "build the Snap package")
	rootCmd.Flags().BoolVar(&buildAll, "all", false, "build both package formats")
	rootCmd.Flags().BoolVar(&doClean, "clean", false, "remove build artifacts and exit (overrides build flags)")

	rootCmd.SetFlagErrorFunc(flagError)

	rootCmd.AddCommand(versionCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	req := newRequest()
	if req.Empty() {
		return cmd.Help()
	}

	ctx, cancel := setupSignalHandler()
	defer cancel()

	// Setup logger
	logger := setupLogger()

	// Load configuration
	cfg, err := loadConfig(logger)
	if err != nil {
		err = fmt.Errorf("failed to load config: %w", err)
		logger.Error("startup failed", "error", err)
		return err
	}

	// Platform guard: runs before any action, including cleanup
	if err := platform.Check(); err != nil {
		logger.Error("unsupported platform", "error", err)
		return err
	}

	// Create dependencies
	runner := execx.NewShellRunner()
	installer := apt.NewClient(runner, logger)
	store := artifact.NewStore(cfg.Paths.DistDir, logger)

	engine := build.NewEngine(
		debian.NewBuilder(cfg, runner, installer, store, logger),
		snapcraft.NewBuilder(cfg, runner, installer, store, logger),
		clean.NewCleaner(cfg, runner, logger),
		logger,
	)

	report, err := engine.Run(ctx, req)
	if err != nil {
		logger.Error("build failed", "error", err)
		return err
	}

	if instructions := installInstructions(cfg, report); instructions != "" {
		fmt.Println(instructions)
	}

	return nil
}

// newRequest builds the immutable action request from the parsed flags
func newRequest() build.Request {
	return build.Request{
		Deb:   buildDeb || buildAll,
		Snap:  buildSnap || buildAll,
		Clean: doClean,
	}
}

// installInstructions renders the consolidated post-build installation
// instructions for whichever artifact kinds were built.
func installInstructions(cfg *config.Config, report *build.Report) string {
	if !report.Deb && !report.Snap {
		return ""
	}

	var b strings.Builder
	b.WriteString("Build complete. To install:\n")
	if report.Deb {
		fmt.Fprintf(&b, "  sudo apt install %s\n", filepath.Join(cfg.Paths.DistDir, cfg.DebArtifactGlob()))
	}
	if report.Snap {
		fmt.Fprintf(&b, "  sudo snap install --dangerous %s\n", filepath.Join(cfg.Paths.DistDir, cfg.SnapArtifactGlob()))
	}
	return strings.TrimRight(b.String(), "\n")
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			configPath = config.DefaultFile
		}
	}

	if configPath != "" {
		logger.Info("loading configuration", "path", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"project", cfg.Project.Name,
		"build_dir", cfg.Paths.BuildDir,
		"dist_dir", cfg.Paths.DistDir)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
