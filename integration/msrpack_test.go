//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "msrpack-integration")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	binPath, err = buildBinary(dir)
	if err != nil {
		os.RemoveAll(dir)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestNoArgsPrintsHelp(t *testing.T) {
	p := NewProject(t)

	stdout, _, exitCode := p.Run(context.Background())
	if exitCode != 0 {
		t.Errorf("exit code = %d, want 0", exitCode)
	}
	if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "--deb") {
		t.Errorf("help text missing from stdout: %q", stdout)
	}
	if entries := p.ShimLogEntries(); len(entries) != 0 {
		t.Errorf("no external tool should run, got %v", entries)
	}
}

func TestHelpFlag(t *testing.T) {
	p := NewProject(t)

	for _, flag := range []string{"--help", "-h"} {
		stdout, _, exitCode := p.Run(context.Background(), flag)
		if exitCode != 0 {
			t.Errorf("%s: exit code = %d, want 0", flag, exitCode)
		}
		if !strings.Contains(stdout, "Usage:") {
			t.Errorf("%s: help text missing: %q", flag, stdout)
		}
	}
}

func TestUnknownFlag(t *testing.T) {
	p := NewProject(t)

	_, stderr, exitCode := p.Run(context.Background(), "--bogus")
	if exitCode != 1 {
		t.Errorf("exit code = %d, want 1", exitCode)
	}
	if !strings.Contains(stderr, "unknown flag") {
		t.Errorf("stderr should name the unknown flag: %q", stderr)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("stderr should include usage: %q", stderr)
	}
	if entries := p.ShimLogEntries(); len(entries) != 0 {
		t.Errorf("no build action should run, got %v", entries)
	}
}

func TestAllBuildsDebBeforeSnap(t *testing.T) {
	requireAptHost(t)
	p := NewProject(t)

	stdout, stderr, exitCode := p.Run(context.Background(), "--all")
	if exitCode != 0 {
		t.Fatalf("exit code = %d\nstdout: %s\nstderr: %s", exitCode, stdout, stderr)
	}

	var debIdx, snapIdx = -1, -1
	for i, entry := range p.ShimLogEntries() {
		if strings.HasPrefix(entry, "dpkg-buildpackage") && debIdx == -1 {
			debIdx = i
		}
		if entry == "snapcraft" && snapIdx == -1 {
			snapIdx = i
		}
	}
	if debIdx == -1 || snapIdx == -1 || debIdx > snapIdx {
		t.Errorf("deb must build before snap, log: %v", p.ShimLogEntries())
	}

	for _, name := range []string{
		"msr605x-utility_1.0.0_all.deb",
		"msr605x-utility_1.0.0_amd64.snap",
	} {
		if _, err := os.Stat(filepath.Join(p.DistDir(), name)); err != nil {
			t.Errorf("artifact %s missing from dist: %v", name, err)
		}
	}

	if !strings.Contains(stdout, "sudo apt install") || !strings.Contains(stdout, "sudo snap install --dangerous") {
		t.Errorf("install instructions missing: %q", stdout)
	}
}

func TestDebEquivalence(t *testing.T) {
	requireAptHost(t)

	all := NewProject(t)
	if _, stderr, exitCode := all.Run(context.Background(), "--all"); exitCode != 0 {
		t.Fatalf("--all failed: %s", stderr)
	}

	split := NewProject(t)
	if _, stderr, exitCode := split.Run(context.Background(), "--deb", "--snap"); exitCode != 0 {
		t.Fatalf("--deb --snap failed: %s", stderr)
	}

	toolNames := func(entries []string) []string {
		var names []string
		for _, entry := range entries {
			names = append(names, strings.Fields(entry)[0])
		}
		return names
	}

	a, b := toolNames(all.ShimLogEntries()), toolNames(split.ShimLogEntries())
	if strings.Join(a, ",") != strings.Join(b, ",") {
		t.Errorf("--all ran %v but --deb --snap ran %v", a, b)
	}
}

func TestCleanShortCircuitsBuilds(t *testing.T) {
	requireAptHost(t)
	p := NewProject(t)

	// leftovers from a previous run
	staleDeb := filepath.Join(p.Root, "msr605x-utility_0.9.0_all.deb")
	if err := os.WriteFile(staleDeb, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(p.DistDir(), 0755); err != nil {
		t.Fatal(err)
	}

	_, stderr, exitCode := p.Run(context.Background(), "--all", "--clean")
	if exitCode != 0 {
		t.Fatalf("exit code = %d, stderr: %s", exitCode, stderr)
	}

	for _, entry := range p.ShimLogEntries() {
		if strings.HasPrefix(entry, "dpkg-buildpackage") {
			t.Errorf("clean must not run the deb build tool: %q", entry)
		}
		if strings.HasPrefix(entry, "snapcraft") && !strings.HasPrefix(entry, "snapcraft clean") {
			t.Errorf("clean must not run a snap build: %q", entry)
		}
	}

	if _, err := os.Stat(staleDeb); !os.IsNotExist(err) {
		t.Error("stale deb should be removed")
	}
	if _, err := os.Stat(p.DistDir()); !os.IsNotExist(err) {
		t.Error("dist directory should be removed")
	}
}

func TestCleanOnPristineTree(t *testing.T) {
	requireAptHost(t)
	p := NewProject(t)

	if _, stderr, exitCode := p.Run(context.Background(), "--clean"); exitCode != 0 {
		t.Errorf("clean with nothing to remove must succeed, exit %d: %s", exitCode, stderr)
	}
}

func TestStaleArtifactReplaced(t *testing.T) {
	requireAptHost(t)
	p := NewProject(t)

	if err := os.MkdirAll(p.DistDir(), 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(p.DistDir(), "msr605x-utility_1.0.0_all.deb")
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, stderr, exitCode := p.Run(context.Background(), "--deb"); exitCode != 0 {
		t.Fatalf("--deb failed: %s", stderr)
	}

	data, err := os.ReadFile(stale)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "deb contents" {
		t.Errorf("stale artifact not replaced, got %q", data)
	}
}

func TestMissingToolTriggersInstall(t *testing.T) {
	requireAptHost(t)
	p := NewProject(t)
	p.RemoveTool("dpkg-buildpackage")

	// the install step materializes the missing tool
	p.StubTool("apt-get", fmt.Sprintf(
		"cat > %q <<'SCRIPT'\n#!/bin/sh\necho \"dpkg-buildpackage $*\" >> %q\necho \"deb contents\" > ../msr605x-utility_1.0.0_all.deb\nSCRIPT\nchmod +x %q",
		filepath.Join(p.BinDir, "dpkg-buildpackage"),
		p.ShimLog,
		filepath.Join(p.BinDir, "dpkg-buildpackage"),
	))

	_, stderr, exitCode := p.Run(context.Background(), "--deb")
	if exitCode != 0 {
		t.Fatalf("exit code = %d, stderr: %s", exitCode, stderr)
	}

	if !p.ToolRan("apt-get") {
		t.Errorf("apt-get install should have run, log: %v", p.ShimLogEntries())
	}
	if !p.ToolRan("dpkg-buildpackage") {
		t.Errorf("build should run after install, log: %v", p.ShimLogEntries())
	}
}

func TestFailedInstallAbortsWithoutBuild(t *testing.T) {
	requireAptHost(t)
	p := NewProject(t)
	p.RemoveTool("dpkg-buildpackage")
	p.StubTool("apt-get", "exit 100")

	_, _, exitCode := p.Run(context.Background(), "--deb")
	if exitCode == 0 {
		t.Fatal("expected non-zero exit when install fails")
	}
	if exitCode != 100 {
		t.Errorf("exit code = %d, want the package manager's 100", exitCode)
	}
	if p.ToolRan("dpkg-buildpackage") {
		t.Error("build must not run after a failed install")
	}
}

func TestBuildToolFailurePropagatesExitCode(t *testing.T) {
	requireAptHost(t)
	p := NewProject(t)
	p.StubTool("dpkg-buildpackage", "exit 2")

	_, _, exitCode := p.Run(context.Background(), "--deb")
	if exitCode != 2 {
		t.Errorf("exit code = %d, want 2", exitCode)
	}
}
