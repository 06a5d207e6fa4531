package flexbin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFakeBinary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "flex")
	if err := os.WriteFile(path, []byte("ELF"), 0o700); err != nil {
		t.Fatalf("failed to write fake binary: %v", err)
	}
	return path
}

func TestFinalizeArtifactNamespaced(t *testing.T) {
	built := writeFakeBinary(t, t.TempDir())
	destDir := filepath.Join(t.TempDir(), "dist")

	final, err := finalizeArtifact(built, destDir, LayoutNamespaced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(destDir, "gnu_flex", "bin", "flex")
	if final != want {
		t.Errorf("final path = %q, want %q", final, want)
	}

	info, err := os.Stat(final)
	if err != nil {
		t.Fatalf("staged binary missing: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
}

func TestFinalizeArtifactFlat(t *testing.T) {
	built := writeFakeBinary(t, t.TempDir())
	destDir := filepath.Join(t.TempDir(), "dist")

	final, err := finalizeArtifact(built, destDir, LayoutFlat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final != filepath.Join(destDir, "flex") {
		t.Errorf("final path = %q", final)
	}
	info, err := os.Stat(final)
	if err != nil {
		t.Fatalf("staged binary missing: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %o, want 755", info.Mode().Perm())
	}
}

func TestFinalizeArtifactMissingSource(t *testing.T) {
	_, err := finalizeArtifact("/nonexistent/flex", t.TempDir(), LayoutFlat)
	if err == nil {
		t.Fatalf("expected error for missing built binary")
	}
}

func TestWheelOverrides(t *testing.T) {
	ov := wheelOverrides("linux", ResolveTarget("x86_64"))
	if ov.PythonTag != "py3" {
		t.Errorf("PythonTag = %q, want py3", ov.PythonTag)
	}
	if ov.PyLimitedAPI != "none" {
		t.Errorf("PyLimitedAPI = %q, want none", ov.PyLimitedAPI)
	}
	if len(ov.PlatNames) != 3 {
		t.Errorf("PlatNames = %v, want three tags", ov.PlatNames)
	}

	ov = wheelOverrides("darwin", ResolveTarget("x86_64"))
	if ov.PlatNames != nil {
		t.Errorf("non-linux PlatNames = %v, want nil", ov.PlatNames)
	}
	if ov.PythonTag != "py3" || ov.PyLimitedAPI != "none" {
		t.Errorf("python tags must be set even without a platform override: %+v", ov)
	}
}

func TestArtifactName(t *testing.T) {
	if got := artifactName("2.6.4", "aarch64"); got != "flex-2.6.4-aarch64.tar.zst" {
		t.Errorf("artifactName = %q", got)
	}
	// Empty arch tag falls back to the host architecture.
	if got := artifactName("2.6.4", ""); got == "flex-2.6.4-.tar.zst" {
		t.Errorf("empty arch tag not substituted: %q", got)
	}
}

func TestFlexPath(t *testing.T) {
	prefix := t.TempDir()

	if _, err := FlexPath(prefix); !errors.Is(err, ErrMissingArtifact) {
		t.Fatalf("FlexPath on empty prefix = %v, want ErrMissingArtifact", err)
	}

	// Flat layout.
	flat := filepath.Join(prefix, "flex")
	if err := os.WriteFile(flat, []byte("ELF"), 0o755); err != nil {
		t.Fatalf("failed to write binary: %v", err)
	}
	got, err := FlexPath(prefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != flat {
		t.Errorf("FlexPath = %q, want %q", got, flat)
	}

	// Namespaced layout wins over flat when both exist.
	namespaced := filepath.Join(prefix, "gnu_flex", "bin", "flex")
	if err := os.MkdirAll(filepath.Dir(namespaced), 0o755); err != nil {
		t.Fatalf("failed to create layout dirs: %v", err)
	}
	if err := os.WriteFile(namespaced, []byte("ELF"), 0o755); err != nil {
		t.Fatalf("failed to write binary: %v", err)
	}
	got, err = FlexPath(prefix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != namespaced {
		t.Errorf("FlexPath = %q, want %q", got, namespaced)
	}
}
