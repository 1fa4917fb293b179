package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// BuildHelper compiles a single-file Go program from source into a
// test-scoped temporary directory and returns the absolute path to the
// produced executable. Tests use these helpers as stand-ins for the external
// CLIs the gateway launches.
func BuildHelper(t *testing.T, name, source string) string {
	t.Helper()

	dir := t.TempDir()
	src := filepath.Join(dir, name+".go")
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		t.Fatalf("write helper %s: %v", name, err)
	}
	binName := name
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	outPath := filepath.Join(dir, binName)

	cmd := exec.Command("go", "build", "-o", outPath, src)
	cmd.Dir = dir
	// Inherit environment; ensure CGO disabled for determinism
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOFLAGS=")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build helper %s failed: %v\n%s", name, err, string(output))
	}
	return outPath
}

// WriteScript writes an executable file with the given contents and mode.
// It is meant for probing the resolver, not for running.
func WriteScript(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	// WriteFile honors umask; force the exact mode.
	if err := os.Chmod(p, mode); err != nil {
		t.Fatalf("chmod %s: %v", p, err)
	}
	return p
}
