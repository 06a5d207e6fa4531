package flexbin

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load /etc/flexbin.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge FLEXBIN_* env overrides
	mergeEnvOverrides(cfg)

	// Ensure TMPDIR has a default
	if tmp := cfg.Values["TMPDIR"]; tmp == "" {
		cfg.Values["TMPDIR"] = "/tmp"
	}

	return cfg, nil
}

// Merge FLEXBIN_* env overrides, plus the upstream-compatible
// FLEX_VERSION and FLEX_SOURCE variables.
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "FLEXBIN_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}

	// FLEX_VERSION and FLEX_SOURCE come from the environment only; they
	// never overwrite an explicit config file value.
	for _, key := range []string{"FLEX_VERSION", "FLEX_SOURCE", "TMPDIR"} {
		if v := os.Getenv(key); v != "" {
			if _, exists := cfg.Values[key]; !exists {
				cfg.Values[key] = v
			}
		}
	}
}

func initConfig(cfg *Config) {
	CacheDir = cfg.Values["FLEXBIN_CACHE_DIR"]
	if CacheDir == "" {
		if home, err := os.UserCacheDir(); err == nil {
			CacheDir = filepath.Join(home, "flexbin")
		} else {
			CacheDir = "/var/cache/flexbin"
		}
	}

	tmpDir = cfg.Values["TMPDIR"]
	if tmpDir == "" {
		tmpDir = "/tmp"
	}

	Debug = cfg.Values["FLEXBIN_DEBUG"] == "1"
	Verbose = cfg.Values["FLEXBIN_VERBOSE"] == "1"

	BundleDir = cfg.Values["FLEXBIN_BUNDLE_DIR"]
	if BundleDir == "" {
		// Default: a tarball shipped next to the flexbin executable.
		if exe, err := os.Executable(); err == nil {
			BundleDir = filepath.Dir(exe)
		}
	}

	CacheStore = filepath.Join(CacheDir, "sources", "_cache")
	LogsDir = filepath.Join(CacheDir, "logs")
}

// FlexVersion returns the upstream version this invocation packages.
func (cfg *Config) FlexVersion() string {
	if v := cfg.Values["FLEX_VERSION"]; v != "" {
		return v
	}
	return defaultFlexVersion
}

// SourceOverride returns the path of a pre-existing source checkout or
// archive, bypassing download. Empty when unset.
func (cfg *Config) SourceOverride() string {
	return cfg.Values["FLEX_SOURCE"]
}

// StagingMode returns the configured install variant.
func (cfg *Config) StagingMode() string {
	switch cfg.Values["FLEXBIN_STAGING"] {
	case StagingDirect:
		return StagingDirect
	default:
		return StagingDestdir
	}
}

// OutputLayout returns the configured staging layout.
func (cfg *Config) OutputLayout() string {
	switch cfg.Values["FLEXBIN_LAYOUT"] {
	case LayoutFlat:
		return LayoutFlat
	default:
		return LayoutNamespaced
	}
}

// KeepTmp reports whether scratch build directories should survive the run.
func (cfg *Config) KeepTmp() bool {
	return cfg.Values["FLEXBIN_KEEP_TMP"] == "1"
}

// Jobs returns the make parallelism, defaulting to the host core count.
func (cfg *Config) Jobs() int {
	if v := cfg.Values["FLEXBIN_JOBS"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultJobs()
}

func defaultJobs() int {
	return max(1, runtime.NumCPU())
}
