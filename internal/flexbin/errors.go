package flexbin

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the pipeline. All of them are fatal: nothing is
// retried, a failed run leaves no usable artifact.
var (
	ErrSourceNotFound   = errors.New("source tree not found")
	ErrMultipleRoots    = errors.New("archive contains multiple top-level entries")
	ErrNetworkFetch     = errors.New("network fetch failed")
	ErrBuildToolMissing = errors.New("required build tool missing")
	ErrBuildStepFailed  = errors.New("build step failed")
	ErrMissingArtifact  = errors.New("built binary missing after install")
)

// StageError records which pipeline stage a failure happened in and, when a
// subprocess was involved, the command that ran. errors.Is resolves the
// underlying kind.
type StageError struct {
	Stage Stage
	Cmd   []string
	Err   error
}

func (e *StageError) Error() string {
	if len(e.Cmd) > 0 {
		return fmt.Sprintf("stage %s: %v (command: %s)", e.Stage, e.Err, strings.Join(e.Cmd, " "))
	}
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
