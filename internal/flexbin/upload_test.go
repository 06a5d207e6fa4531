package flexbin

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseArtifactIndex(t *testing.T) {
	data := []byte(`[
	  {"name":"flex","version":"2.6.4","arch":"x86_64","filename":"flex-2.6.4-x86_64.tar.zst","size":310000,"b3sum":"abc"},
	  {"name":"flex","version":"2.6.4","arch":"aarch64","filename":"flex-2.6.4-aarch64.tar.zst","size":298000,"b3sum":"def"}
	]`)
	entries, err := ParseArtifactIndex(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Arch != "x86_64" || entries[1].Arch != "aarch64" {
		t.Errorf("entries parsed wrong: %+v", entries)
	}

	if _, err := ParseArtifactIndex([]byte("not json")); err == nil {
		t.Errorf("malformed index accepted")
	}
}

func TestReadArtifactMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flex-2.6.4-ppc64le.tar.zst")
	if err := os.WriteFile(path, []byte("zstd bytes"), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	entry, err := readArtifactMetadata(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Name != "flex" || entry.Version != "2.6.4" || entry.Arch != "ppc64le" {
		t.Errorf("metadata = %+v", entry)
	}
	if entry.Size != int64(len("zstd bytes")) {
		t.Errorf("size = %d", entry.Size)
	}
	if entry.B3Sum == "" {
		t.Errorf("checksum missing")
	}

	if _, err := readArtifactMetadata(filepath.Join(dir, "notes.txt")); err == nil {
		t.Errorf("non-artifact file accepted")
	}
	if _, err := readArtifactMetadata(filepath.Join(dir, "other-1.0-x86_64.tar.zst")); err == nil {
		t.Errorf("foreign artifact name accepted")
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := humanReadableSize(tt.in); got != tt.want {
			t.Errorf("humanReadableSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
