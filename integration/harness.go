//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const shimLogName = "tools.log"

// binPath is the msrpack binary built once by TestMain
var binPath string

// buildBinary compiles the msrpack binary into dir and returns its path
func buildBinary(dir string) (string, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return "", fmt.Errorf("get project root: %w", err)
	}

	bin := filepath.Join(dir, "msrpack")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/msrpack")
	cmd.Dir = projectRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("go build: %w: %s", err, out)
	}
	return bin, nil
}

// Project is a throwaway packaging project layout with stubbed external
// tools. The stubs append their invocations to a shim log so tests can
// assert on what ran and in which order.
type Project struct {
	t *testing.T

	// Root is the parent directory; BuildDir is the source tree below it,
	// mirroring how dpkg-buildpackage drops outputs one level up.
	Root     string
	BuildDir string
	BinDir   string
	ShimLog  string
}

// NewProject creates the project fixture with the default tool stubs
func NewProject(t *testing.T) *Project {
	t.Helper()

	root := t.TempDir()
	p := &Project{
		t:        t,
		Root:     root,
		BuildDir: filepath.Join(root, "msr605x-ubuntu"),
		BinDir:   filepath.Join(root, "bin"),
		ShimLog:  filepath.Join(root, shimLogName),
	}

	for _, dir := range []string{
		filepath.Join(p.BuildDir, "debian"),
		p.BinDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	// real utilities the stub scripts rely on; PATH is otherwise
	// restricted to the stub directory
	p.linkRealTools("cat", "chmod", "rm", "mkdir", "touch")

	// sudo stub passes through to the (stubbed) wrapped command
	p.StubTool("sudo", `exec "$@"`)
	p.StubTool("apt-get", "")
	p.StubDpkgBuildpackage()
	p.StubSnapcraft()

	return p
}

// linkRealTools symlinks host utilities into the stub bin directory
func (p *Project) linkRealTools(names ...string) {
	p.t.Helper()
	for _, name := range names {
		path, err := exec.LookPath(name)
		if err != nil {
			p.t.Fatalf("%s not found on host PATH: %v", name, err)
		}
		if err := os.Symlink(path, filepath.Join(p.BinDir, name)); err != nil {
			p.t.Fatal(err)
		}
	}
}

// StubTool writes an executable stub that logs its invocation to the shim
// log and then runs body (which may be empty).
func (p *Project) StubTool(name, body string) {
	p.t.Helper()
	script := fmt.Sprintf("#!/bin/sh\necho \"%s $*\" >> %q\n%s\n", name, p.ShimLog, body)
	if err := os.WriteFile(filepath.Join(p.BinDir, name), []byte(script), 0755); err != nil {
		p.t.Fatal(err)
	}
}

// RemoveTool deletes a stub so the tool appears missing from PATH
func (p *Project) RemoveTool(name string) {
	p.t.Helper()
	if err := os.Remove(filepath.Join(p.BinDir, name)); err != nil {
		p.t.Fatal(err)
	}
}

// StubDpkgBuildpackage installs a stub that emulates dpkg-buildpackage:
// outputs land in the directory above the source tree.
func (p *Project) StubDpkgBuildpackage() {
	p.t.Helper()
	p.StubTool("dpkg-buildpackage", strings.Join([]string{
		`echo "deb contents" > ../msr605x-utility_1.0.0_all.deb`,
		`echo "buildinfo" > ../msr605x-utility_1.0.0_amd64.buildinfo`,
		`echo "changes" > ../msr605x-utility_1.0.0_amd64.changes`,
	}, "\n"))
}

// StubSnapcraft installs a stub that emulates snapcraft: "clean" is a
// no-op, a bare invocation drops a .snap into the working directory.
func (p *Project) StubSnapcraft() {
	p.t.Helper()
	p.StubTool("snapcraft", strings.Join([]string{
		`if [ "$1" = "clean" ]; then exit 0; fi`,
		`echo "snap contents" > ./msr605x-utility_1.0.0_amd64.snap`,
	}, "\n"))
}

// Run executes the msrpack binary in the project build directory with PATH
// restricted to the stub bin directory, returning stdout, stderr and the
// exit code.
func (p *Project) Run(ctx context.Context, args ...string) (string, string, int) {
	p.t.Helper()

	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.Dir = p.BuildDir

	env := []string{"PATH=" + p.BinDir}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "PATH=") {
			env = append(env, kv)
		}
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			p.t.Fatalf("exec failed: %v", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return stdout.String(), stderr.String(), exitCode
}

// ShimLogEntries returns the recorded tool invocations in order
func (p *Project) ShimLogEntries() []string {
	p.t.Helper()

	data, err := os.ReadFile(p.ShimLog)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		p.t.Fatal(err)
	}

	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		p.t.Fatal(err)
	}
	return entries
}

// ToolRan reports whether any shim log entry starts with prefix
func (p *Project) ToolRan(prefix string) bool {
	for _, entry := range p.ShimLogEntries() {
		if entry == prefix || strings.HasPrefix(entry, prefix+" ") {
			return true
		}
	}
	return false
}

// DistDir returns the normalized output directory of the project
func (p *Project) DistDir() string {
	return filepath.Join(p.BuildDir, "dist")
}

// findProjectRoot walks up the directory tree from this source file to find go.mod
func findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// requireAptHost skips tests that reach the platform guard on hosts
// without an apt-based os-release.
func requireAptHost(t *testing.T) {
	t.Helper()

	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		t.Skipf("cannot read /etc/os-release: %v", err)
	}
	for _, id := range []string{"debian", "ubuntu"} {
		if strings.Contains(string(data), id) {
			return
		}
	}
	t.Skip("host is not an apt-based distribution")
}
