package flexbin

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// WheelOverrides is the configuration handed back to the surrounding
// packaging context: the artifact is tied to a native platform but
// agnostic to the interpreter version that invokes it.
type WheelOverrides struct {
	PythonTag    string
	PyLimitedAPI string
	PlatNames    []string // nil means "no platform override"
}

func wheelOverrides(goos string, target Target) WheelOverrides {
	return WheelOverrides{
		PythonTag:    "py3",
		PyLimitedAPI: "none",
		PlatNames:    PlatformTags(goos, target),
	}
}

// finalizeArtifact copies the validated built executable into the final
// package layout under destDir and marks it executable (read/execute for
// all, write for owner). Returns the final binary path.
func finalizeArtifact(builtBinary, destDir, layout string) (string, error) {
	var target string
	if layout == LayoutFlat {
		target = filepath.Join(destDir, flexName)
	} else {
		target = filepath.Join(destDir, "gnu_flex", "bin", flexName)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := copyFile(builtBinary, target); err != nil {
		return "", fmt.Errorf("failed to copy binary: %w", err)
	}
	if err := os.Chmod(target, 0o755); err != nil {
		return "", fmt.Errorf("failed to set binary permissions: %w", err)
	}
	return target, nil
}

// artifactName is the canonical file name for a packaged staging tree.
func artifactName(version, archTag string) string {
	if archTag == "" {
		archTag = runtime.GOARCH
	}
	return fmt.Sprintf("%s-%s-%s.tar.zst", flexName, version, archTag)
}

// artifactTarball packs the staged output tree into a .tar.zst under the
// cache's artifacts directory, root-owned entries for portability.
func artifactTarball(outputDir, version, archTag string) (string, error) {
	artifactsDir := filepath.Join(CacheDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifacts dir: %w", err)
	}
	tarballPath := filepath.Join(artifactsDir, artifactName(version, archTag))

	outFile, err := os.Create(tarballPath)
	if err != nil {
		return "", fmt.Errorf("failed to create tarball file: %w", err)
	}
	defer outFile.Close()

	zw, err := zstd.NewWriter(outFile)
	if err != nil {
		return "", fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	err = filepath.Walk(outputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}

		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}

		if rel == "." {
			hdr.Name = "./"
			hdr.Mode = 0o755
		} else {
			hdr.Name = rel
		}

		// Portable artifacts are always numerically root-owned.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "root", "root"

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if rel == "." || !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to add files to tarball: %w", err)
	}
	return tarballPath, nil
}
