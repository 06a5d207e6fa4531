package flexbin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

func writeTarball(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write tarball: %v", err)
	}
	return path
}

func TestExtractArchiveSingleRoot(t *testing.T) {
	setupTestDirs(t)
	dir := t.TempDir()
	tarball := writeTarball(t, dir, "flex-2.6.4.tar.gz", flexSourceTarball(t, "2.6.4"))

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("failed to create dest: %v", err)
	}
	if err := extractArchive(tarball, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root, err := singleRoot(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(root) != "flex-2.6.4" {
		t.Errorf("root = %q, want flex-2.6.4", filepath.Base(root))
	}
	if _, err := os.Stat(filepath.Join(root, "configure")); err != nil {
		t.Errorf("configure missing after extraction: %v", err)
	}
}

func TestSingleRootMultipleEntries(t *testing.T) {
	setupTestDirs(t)
	dir := t.TempDir()
	tarball := writeTarball(t, dir, "bad.tar.gz", makeTarGz(t, map[string]string{
		"flex-2.6.4/configure": "",
		"extra/README":         "",
	}))

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("failed to create dest: %v", err)
	}
	if err := extractArchive(tarball, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := singleRoot(dest)
	if !errors.Is(err, ErrMultipleRoots) {
		t.Fatalf("singleRoot error = %v, want ErrMultipleRoots", err)
	}
}

func TestSingleRootEmpty(t *testing.T) {
	dest := t.TempDir()
	_, err := singleRoot(dest)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("singleRoot error = %v, want ErrSourceNotFound", err)
	}
}

func TestExtractTarRejectsTraversal(t *testing.T) {
	setupTestDirs(t)
	dir := t.TempDir()
	tarball := writeTarball(t, dir, "evil.tar.gz", makeTarGz(t, map[string]string{
		"../escape": "nope",
	}))

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("failed to create dest: %v", err)
	}
	// System tar may refuse on its own; the pure-Go path must refuse too.
	if err := extractTar(tarball, dest); err == nil {
		if _, statErr := os.Stat(filepath.Join(dir, "escape")); statErr == nil {
			t.Fatalf("path traversal entry was extracted outside dest")
		}
	}
}

func TestUnzipGo(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "src.zip")

	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("flex-2.6.4/configure")
	if err != nil {
		t.Fatalf("failed to add zip entry: %v", err)
	}
	if _, err := w.Write([]byte("#!/bin/sh\n")); err != nil {
		t.Fatalf("failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	f.Close()

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("failed to create dest: %v", err)
	}
	if err := extractArchive(zipPath, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "flex-2.6.4", "configure")); err != nil {
		t.Errorf("configure missing after unzip: %v", err)
	}
}
