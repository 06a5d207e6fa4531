package flexbin

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"lukechampine.com/blake3"
)

func hashString(s string) string {
	// Try system b3sum first
	if _, err := exec.LookPath("b3sum"); err == nil {
		cmd := exec.Command("b3sum")
		cmd.Stdin = strings.NewReader(s)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err == nil {
			fields := strings.Fields(out.String())
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}

	// Fallback: internal Go BLAKE3 (32-byte output, no key)
	h := blake3.New(32, nil)
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// fileChecksum streams a file through BLAKE3 and returns the hex digest.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// recordChecksum writes the digest of path into a sidecar file so later
// runs can detect a corrupted cache entry.
func recordChecksum(path string) error {
	sum, err := fileChecksum(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path+".b3", []byte(sum+"\n"), 0o644)
}

// verifyChecksum checks path against its sidecar digest. A missing sidecar
// counts as valid (nothing was ever recorded); a mismatch does not.
func verifyChecksum(path string) (bool, error) {
	data, err := os.ReadFile(path + ".b3")
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	want := strings.TrimSpace(string(data))
	got, err := fileChecksum(path)
	if err != nil {
		return false, err
	}
	return want == got, nil
}
