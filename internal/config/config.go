package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file msrpack looks for in the working directory
// when --config is not given. Its absence is not an error; the built-in
// defaults for the msr605x-utility project apply.
const DefaultFile = "msrpack.yaml"

// Config represents the complete msrpack configuration
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Paths   PathsConfig   `yaml:"paths"`
	Deb     DebConfig     `yaml:"deb"`
	Snap    SnapConfig    `yaml:"snap"`
}

// ProjectConfig identifies the project being packaged
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	BuildDir string `yaml:"build_dir"`
	DistDir  string `yaml:"dist_dir"`
}

// DebConfig configures the Debian packaging toolchain
type DebConfig struct {
	Packages  []string `yaml:"packages"`
	BuildArgs string   `yaml:"build_args"`
}

// SnapConfig configures the Snap packaging toolchain
type SnapConfig struct {
	Packages []string `yaml:"packages"`
}

// Default returns the built-in configuration for the msr605x-utility project
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			Name: "msr605x-utility",
		},
		Paths: PathsConfig{
			BuildDir: ".",
			DistDir:  "dist",
		},
		Deb: DebConfig{
			Packages: []string{
				"build-essential",
				"debhelper",
				"dh-python",
				"python3-all",
				"python3-setuptools",
				"python3-stdeb",
				"devscripts",
			},
			BuildArgs: "-us -uc -b",
		},
		Snap: SnapConfig{
			Packages: []string{
				"snapd",
				"snapcraft",
			},
		},
	}
}

// Load reads and parses the configuration file. An empty path yields the
// built-in defaults. Relative paths in the result are resolved to absolute
// paths against the working directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		path = os.ExpandEnv(path)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Project.Name = os.ExpandEnv(c.Project.Name)
	c.Paths.BuildDir = os.ExpandEnv(c.Paths.BuildDir)
	c.Paths.DistDir = os.ExpandEnv(c.Paths.DistDir)
	c.Deb.BuildArgs = os.ExpandEnv(c.Deb.BuildArgs)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Project.Name == "" {
		c.Project.Name = def.Project.Name
	}
	if c.Paths.BuildDir == "" {
		c.Paths.BuildDir = def.Paths.BuildDir
	}
	if c.Paths.DistDir == "" {
		c.Paths.DistDir = def.Paths.DistDir
	}
	if len(c.Deb.Packages) == 0 {
		c.Deb.Packages = def.Deb.Packages
	}
	if c.Deb.BuildArgs == "" {
		c.Deb.BuildArgs = def.Deb.BuildArgs
	}
	if len(c.Snap.Packages) == 0 {
		c.Snap.Packages = def.Snap.Packages
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if strings.ContainsAny(c.Project.Name, "/ \t") {
		return fmt.Errorf("project.name must not contain slashes or whitespace: %q", c.Project.Name)
	}

	if c.Paths.BuildDir == "" {
		return fmt.Errorf("paths.build_dir is required")
	}
	if c.Paths.DistDir == "" {
		return fmt.Errorf("paths.dist_dir is required")
	}

	if _, err := shlex.Split(c.Deb.BuildArgs); err != nil {
		return fmt.Errorf("invalid deb.build_args %q: %w", c.Deb.BuildArgs, err)
	}

	return nil
}

// resolvePaths makes build_dir absolute and resolves a relative dist_dir
// against the build directory, so the normalized output location sits at
// the project root regardless of where msrpack is invoked from.
func (c *Config) resolvePaths() error {
	buildDir, err := filepath.Abs(c.Paths.BuildDir)
	if err != nil {
		return fmt.Errorf("failed to resolve build_dir: %w", err)
	}
	c.Paths.BuildDir = buildDir

	if !filepath.IsAbs(c.Paths.DistDir) {
		c.Paths.DistDir = filepath.Join(buildDir, c.Paths.DistDir)
	}

	return nil
}

// ParentDir returns the directory above the build directory, where
// dpkg-buildpackage places its output files.
func (c *Config) ParentDir() string {
	return filepath.Dir(c.Paths.BuildDir)
}

// DebianDir returns the path of the debian/ packaging metadata directory
func (c *Config) DebianDir() string {
	return filepath.Join(c.Paths.BuildDir, "debian")
}

// DebArtifactGlob returns the glob matching .deb files for this project
func (c *Config) DebArtifactGlob() string {
	return c.Project.Name + "_*.deb"
}

// DebByproductGlobs returns the globs matching everything dpkg-buildpackage
// places in the parent directory, including the .deb itself.
func (c *Config) DebByproductGlobs() []string {
	return []string{
		c.Project.Name + "_*.deb",
		c.Project.Name + "_*.buildinfo",
		c.Project.Name + "_*.changes",
	}
}

// SnapArtifactGlob returns the glob matching snap files in the build directory
func (c *Config) SnapArtifactGlob() string {
	return "*.snap"
}

// DebBuildArgs returns the dpkg-buildpackage arguments split shell-style
func (c *Config) DebBuildArgs() ([]string, error) {
	args, err := shlex.Split(c.Deb.BuildArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid deb.build_args %q: %w", c.Deb.BuildArgs, err)
	}
	return args, nil
}
