package flexbin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const mirrorIndexKey = "flex-index.json"

// ArtifactEntry is a single packaged build in the mirror index.
type ArtifactEntry struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Arch     string `json:"arch"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	B3Sum    string `json:"b3sum"`
}

// ParseArtifactIndex decodes the JSON mirror index.
func ParseArtifactIndex(data []byte) ([]ArtifactEntry, error) {
	var entries []ArtifactEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// readArtifactMetadata derives an index entry from a local artifact file.
// Artifact names are flex-<version>-<arch>.tar.zst.
func readArtifactMetadata(path string) (ArtifactEntry, error) {
	var entry ArtifactEntry

	base := filepath.Base(path)
	trimmed := strings.TrimSuffix(base, ".tar.zst")
	if trimmed == base {
		return entry, fmt.Errorf("not an artifact tarball: %s", base)
	}
	parts := strings.Split(trimmed, "-")
	if len(parts) < 3 || parts[0] != flexName {
		return entry, fmt.Errorf("unrecognized artifact name: %s", base)
	}

	info, err := os.Stat(path)
	if err != nil {
		return entry, err
	}
	sum, err := fileChecksum(path)
	if err != nil {
		return entry, err
	}

	entry = ArtifactEntry{
		Name:     parts[0],
		Version:  strings.Join(parts[1:len(parts)-1], "-"),
		Arch:     parts[len(parts)-1],
		Filename: base,
		Size:     info.Size(),
		B3Sum:    sum,
	}
	return entry, nil
}

// handleUploadCommand pushes local packaged artifacts to the mirror and
// refreshes the remote index. Entries already present with the same
// checksum are skipped.
func handleUploadCommand(args []string, cfg *Config) error {
	ctx := context.Background()

	m, err := NewMirrorClient(cfg)
	if err != nil {
		return err
	}

	colArrow.Print("-> ")
	colSuccess.Println("Fetching remote index from mirror")
	var remoteIndex []ArtifactEntry
	remoteData, err := m.DownloadFile(ctx, mirrorIndexKey)
	if err != nil {
		debugf("Remote index not found or error fetching: %v\n", err)
	} else {
		remoteIndex, err = ParseArtifactIndex(remoteData)
		if err != nil {
			return fmt.Errorf("failed to parse remote index: %w", err)
		}
	}

	artifactsDir := filepath.Join(CacheDir, "artifacts")
	localFiles := args
	if len(localFiles) == 0 {
		colArrow.Print("-> ")
		colSuccess.Printf("Scanning local artifacts in %s\n", artifactsDir)
		localFiles, err = filepath.Glob(filepath.Join(artifactsDir, flexName+"-*.tar.zst"))
		if err != nil {
			return err
		}
	}
	if len(localFiles) == 0 {
		return fmt.Errorf("no local artifacts to upload (run 'flexbin build -package' first)")
	}

	indexMap := make(map[string]ArtifactEntry)
	for _, entry := range remoteIndex {
		indexMap[entry.Filename] = entry
	}

	sort.Strings(localFiles)
	var uploadedCount int
	for _, file := range localFiles {
		entry, err := readArtifactMetadata(file)
		if err != nil {
			debugf("Warning: skipping %s: %v\n", file, err)
			continue
		}

		if remote, exists := indexMap[entry.Filename]; exists && remote.B3Sum == entry.B3Sum {
			debugf("Already on mirror: %s\n", entry.Filename)
			continue
		}

		colArrow.Print("-> ")
		colSuccess.Printf("Uploading to mirror: %s (%s)\n", entry.Filename, humanReadableSize(entry.Size))
		if err := m.UploadLocalFile(ctx, entry.Filename, file); err != nil {
			return fmt.Errorf("failed to upload %s: %w", entry.Filename, err)
		}
		indexMap[entry.Filename] = entry
		uploadedCount++
	}

	// Rewrite the index whenever anything changed.
	if uploadedCount > 0 {
		var newIndex []ArtifactEntry
		for _, entry := range indexMap {
			newIndex = append(newIndex, entry)
		}
		sort.Slice(newIndex, func(i, j int) bool { return newIndex[i].Filename < newIndex[j].Filename })

		data, err := json.MarshalIndent(newIndex, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode index: %w", err)
		}
		if err := m.UploadFile(ctx, mirrorIndexKey, data); err != nil {
			return fmt.Errorf("failed to upload index: %w", err)
		}
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Upload complete (%d artifact(s) pushed)\n", uploadedCount)
	return nil
}

func humanReadableSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
