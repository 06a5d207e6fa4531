package flexbin

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Target is the resolved cross-compilation description for the host CPU.
// A zero Target means "build natively with the host toolchain, no package
// architecture override". That is a valid outcome, never an error.
type Target struct {
	Triple  string // compiler target triple (musl), empty for native
	ArchTag string // package architecture tag, empty for no override
}

// NormalizeArch lowercases and canonicalizes a raw machine string
// ("X86-64" -> "x86_64").
func NormalizeArch(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
}

// DetectArch returns the normalized host architecture. The config value
// FLEXBIN_ARCH wins, then uname, then the Go runtime.
func DetectArch(cfg *Config) string {
	arch := cfg.Values["FLEXBIN_ARCH"]
	if arch == "" {
		cmd := exec.Command("uname", "-m")
		out, err := cmd.Output()
		if err == nil {
			arch = strings.TrimSpace(string(out))
		} else {
			arch = runtime.GOARCH
		}
	}
	return NormalizeArch(arch)
}

// ResolveTarget maps a normalized architecture to its compiler triple and
// package tag. Unknown architectures resolve to the zero Target.
func ResolveTarget(arch string) Target {
	switch arch {
	case "x86_64", "amd64":
		return Target{Triple: "x86_64-linux-musl", ArchTag: "x86_64"}
	case "aarch64", "arm64":
		return Target{Triple: "aarch64-linux-musl", ArchTag: "aarch64"}
	case "i386", "i486", "i586", "i686", "x86":
		return Target{Triple: "x86-linux-musl", ArchTag: "i686"}
	case "s390x":
		return Target{Triple: "s390x-linux-musl", ArchTag: "s390x"}
	case "ppc64le":
		return Target{Triple: "powerpc64le-linux-musl", ArchTag: "ppc64le"}
	}
	return Target{}
}

// PlatformTags derives the platform-compatibility tag strings used to label
// the packaged artifact. Returns nil when the host is not Linux or the
// architecture is unmapped: that means "no override", not a failure.
//
// 32-bit-capable x86 architectures get the older manylinux baselines; the
// 64-bit-only ones start at manylinux_2_17.
func PlatformTags(goos string, t Target) []string {
	if goos != "linux" || t.ArchTag == "" {
		return nil
	}

	var templates []string
	switch t.ArchTag {
	case "x86_64", "i686":
		templates = []string{
			"manylinux_2_5_%s",
			"manylinux1_%s",
			"musllinux_1_1_%s",
		}
	default:
		templates = []string{
			"manylinux_2_17_%s",
			"manylinux2014_%s",
			"musllinux_1_1_%s",
		}
	}

	tags := make([]string, 0, len(templates))
	for _, tpl := range templates {
		tags = append(tags, fmt.Sprintf(tpl, t.ArchTag))
	}
	return tags
}
