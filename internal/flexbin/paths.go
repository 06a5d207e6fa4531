package flexbin

import (
	"fmt"
	"path/filepath"
)

// FlexPath returns the absolute path of the packaged flex binary inside an
// installed package tree rooted at prefix. Both staging layouts are
// checked: the namespaced gnu_flex/bin location first, then flat.
func FlexPath(prefix string) (string, error) {
	abs, err := filepath.Abs(prefix)
	if err != nil {
		return "", err
	}

	candidates := []string{
		filepath.Join(abs, "gnu_flex", "bin", flexName),
		filepath.Join(abs, flexName),
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no %s binary under %s", ErrMissingArtifact, flexName, abs)
}
