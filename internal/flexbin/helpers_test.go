package flexbin

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// setupTestDirs points the package-level cache and scratch directories into
// a per-test temp tree and restores the previous values afterwards.
func setupTestDirs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	prevCache, prevStore, prevBundle, prevLogs, prevTmp := CacheDir, CacheStore, BundleDir, LogsDir, tmpDir
	t.Cleanup(func() {
		CacheDir, CacheStore, BundleDir, LogsDir, tmpDir = prevCache, prevStore, prevBundle, prevLogs, prevTmp
	})

	CacheDir = filepath.Join(root, "cache")
	CacheStore = filepath.Join(CacheDir, "sources", "_cache")
	BundleDir = filepath.Join(root, "bundle")
	LogsDir = filepath.Join(CacheDir, "logs")
	tmpDir = filepath.Join(root, "tmp")
	for _, dir := range []string{CacheStore, BundleDir, LogsDir, tmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return root
}

func testConfig(values map[string]string) *Config {
	cfg := &Config{Values: make(map[string]string)}
	for k, v := range values {
		cfg.Values[k] = v
	}
	return cfg
}

// makeTarGz builds an in-memory .tar.gz whose entries are given as
// path -> contents. Paths ending in "/" become directories.
func makeTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		if name[len(name)-1] == '/' {
			hdr := &tar.Header{Name: name, Typeflag: tar.TypeDir, Mode: 0o755}
			if err := tw.WriteHeader(hdr); err != nil {
				t.Fatalf("failed to write dir header: %v", err)
			}
			continue
		}
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write file header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write file body: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// flexSourceTarball is a minimal release archive with the expected
// versioned root and a configure script.
func flexSourceTarball(t *testing.T, version string) []byte {
	t.Helper()
	root := flexName + "-" + version + "/"
	return makeTarGz(t, map[string]string{
		root:                 "",
		root + "configure":   "#!/bin/sh\nexit 0\n",
		root + "Makefile.in": "all:\n",
	})
}

// fakeRunner records every command it is asked to run and optionally runs a
// hook in place of the real subprocess.
type fakeRunner struct {
	calls [][]string
	hook  func(cmd *exec.Cmd) error
}

func (f *fakeRunner) Run(cmd *exec.Cmd) error {
	argv := append([]string(nil), cmd.Args...)
	f.calls = append(f.calls, argv)
	if f.hook != nil {
		return f.hook(cmd)
	}
	return nil
}
