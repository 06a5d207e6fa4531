package flexbin

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func tarballName(version string) string {
	return fmt.Sprintf("%s-%s.tar.gz", flexName, version)
}

// tarballURL builds the release URL for a version, honoring a configured
// mirror base (FLEXBIN_MIRROR) over the canonical GitHub location.
func tarballURL(cfg *Config, version string) string {
	name := tarballName(version)
	if mirror := cfg.Values["FLEXBIN_MIRROR"]; mirror != "" {
		return fmt.Sprintf("%s/%s", trimSlash(mirror), name)
	}
	return fmt.Sprintf(releaseURLTemplate, version, name)
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// cachedTarballPath returns the cache location for a version. The name is
// keyed on blake3(url+version) so a changed URL or version busts the cache.
func cachedTarballPath(url, version string) string {
	return filepath.Join(CacheStore, fmt.Sprintf("%s-%s", hashString(url+version), tarballName(version)))
}

// EnsureTarball returns a path to the release archive for version,
// resolving in order: cache hit, bundled copy, network download. A fresh
// download is persisted to the cache and copied back beside the executable
// for future offline reuse.
func EnsureTarball(cfg *Config, version string, quiet bool) (string, error) {
	url := tarballURL(cfg, version)
	cachePath := cachedTarballPath(url, version)

	if err := os.MkdirAll(CacheStore, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", CacheStore, err)
	}

	if _, err := os.Stat(cachePath); err == nil {
		ok, err := verifyChecksum(cachePath)
		if err != nil {
			return "", fmt.Errorf("failed to verify cached tarball: %w", err)
		}
		if ok {
			debugf("Already in cache: %s\n", cachePath)
			return cachePath, nil
		}
		cPrintf(colWarn, "Cached tarball failed checksum, re-downloading: %s\n", cachePath)
		_ = os.Remove(cachePath)
	}

	// A tarball shipped alongside the package beats the network.
	bundled := filepath.Join(BundleDir, tarballName(version))
	if _, err := os.Stat(bundled); err == nil {
		debugf("Using bundled tarball: %s\n", bundled)
		if err := copyFile(bundled, cachePath); err != nil {
			return "", fmt.Errorf("failed to copy bundled tarball: %w", err)
		}
		if err := recordChecksum(cachePath); err != nil {
			return "", err
		}
		return cachePath, nil
	}

	if !quiet {
		colArrow.Print("-> ")
		colSuccess.Printf("Fetching source: %s\n", url)
	}
	if err := downloadFile(cfg, url, cachePath, quiet); err != nil {
		_ = os.Remove(cachePath)
		return "", err
	}
	if err := recordChecksum(cachePath); err != nil {
		return "", err
	}

	// Best effort: keep a bundled copy for the next fully-offline build.
	if BundleDir != "" {
		_ = copyFile(cachePath, bundled)
	}
	return cachePath, nil
}

// downloadFile fetches a URL into destFile. It prefers curl, then wget,
// then a native HTTP client with a bounded timeout. The cache entry is
// protected by an exclusive flock so overlapping invocations cannot
// corrupt each other's downloads.
func downloadFile(cfg *Config, url, destFile string, quiet bool) error {
	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", destFile, err)
	}

	lockPath := destFile + ".lock"
	lFile, err := os.Create(lockPath)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lFile.Close()

	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// Another invocation may have finished the download while we waited.
	if _, err := os.Stat(destFile); err == nil {
		debugf("File %s appeared after acquiring lock, skipping download.\n", destFile)
		_ = os.Remove(lockPath)
		return nil
	}

	defer func() {
		if _, err := os.Stat(destFile); err == nil {
			_ = os.Remove(lockPath)
		}
	}()

	debugf("Downloading %s -> %s\n", url, destFile)

	nativeOnly := cfg.Values["FLEXBIN_NATIVE_FETCH"] == "1"

	// --- Primary choice: curl ---
	if !nativeOnly {
		if _, err := exec.LookPath("curl"); err == nil {
			args := []string{"-L", "--fail", "-o", destFile}
			if quiet {
				args = append(args, "-sS")
			} else {
				args = append(args, "-#")
			}
			args = append(args, url)
			cmd := exec.Command("curl", args...)
			if quiet {
				cmd.Stdout = io.Discard
				cmd.Stderr = io.Discard
			} else {
				cmd.Stdout = os.Stdout
				cmd.Stderr = os.Stderr
			}
			if err := cmd.Run(); err == nil {
				return nil
			}
			debugf("curl failed, falling back to wget\n")
		} else {
			debugf("curl not found, trying wget\n")
		}

		// --- Fallback 1: wget ---
		if _, err := exec.LookPath("wget"); err == nil {
			args := []string{"-O", destFile, url}
			if quiet {
				args = append([]string{"-q"}, args...)
			} else {
				args = append([]string{"-nv"}, args...)
			}
			cmd := exec.Command("wget", args...)
			if quiet {
				cmd.Stdout = io.Discard
				cmd.Stderr = io.Discard
			} else {
				cmd.Stdout = os.Stdout
				cmd.Stderr = os.Stderr
			}
			if err := cmd.Run(); err == nil {
				return nil
			}
			debugf("wget failed, falling back to native Go HTTP client\n")
		} else {
			debugf("wget not found, using native Go HTTP client\n")
		}
	}

	// --- Fallback 2: native Go HTTP client ---
	client := &http.Client{Timeout: 600 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %s for %s", ErrNetworkFetch, resp.Status, url)
	}

	out, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destFile, err)
	}
	defer out.Close()

	var w io.Writer = out
	if !quiet && term.IsTerminal(int(os.Stderr.Fd())) {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destFile))
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write to destination file: %w", err)
	}

	debugf("Download successful with native Go HTTP client.\n")
	return nil
}

// ResolveSource produces a readable, extracted source tree for version
// under extractDir. FLEX_SOURCE short-circuits everything: a directory is
// used in place, an archive is extracted. Otherwise the release tarball is
// ensured (cache/bundle/network) and unpacked, and the single expected
// versioned root directory located.
func ResolveSource(cfg *Config, version, extractDir string, quiet bool) (string, error) {
	if override := cfg.SourceOverride(); override != "" {
		info, err := os.Stat(override)
		if err != nil {
			return "", fmt.Errorf("%w: FLEX_SOURCE %s: %v", ErrSourceNotFound, override, err)
		}
		if info.IsDir() {
			debugf("Using source checkout from FLEX_SOURCE: %s\n", override)
			return override, nil
		}
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create extract dir: %w", err)
		}
		if err := extractArchive(override, extractDir); err != nil {
			return "", err
		}
		return singleRoot(extractDir)
	}

	tarball, err := EnsureTarball(cfg, version, quiet)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create extract dir: %w", err)
	}
	if err := extractArchive(tarball, extractDir); err != nil {
		return "", err
	}

	root, err := singleRoot(extractDir)
	if err != nil {
		return "", err
	}
	want := fmt.Sprintf("%s-%s", flexName, version)
	if filepath.Base(root) != want {
		return "", fmt.Errorf("%w: expected %s under %s, found %s", ErrSourceNotFound, want, extractDir, filepath.Base(root))
	}
	return root, nil
}
