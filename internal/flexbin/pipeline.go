package flexbin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Stage identifies where in the build pipeline an invocation currently is.
// The pipeline only ever moves forward; any failure jumps straight to
// StageFailed and the caller must restart from StageInit.
type Stage int

const (
	StageInit Stage = iota
	StageSourceReady
	StageConfigured
	StageBuilt
	StageInstalled
	StageStaged
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "INIT"
	case StageSourceReady:
		return "SOURCE_READY"
	case StageConfigured:
		return "CONFIGURED"
	case StageBuilt:
		return "BUILT"
	case StageInstalled:
		return "INSTALLED"
	case StageStaged:
		return "STAGED"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// advance validates a forward transition. StageFailed is reachable from
// anywhere; everything else must follow the linear order.
func advance(from, to Stage) error {
	if to == StageFailed {
		return nil
	}
	if to != from+1 {
		return fmt.Errorf("invalid pipeline transition %s -> %s", from, to)
	}
	return nil
}

// Staging and layout variants of a build invocation.
const (
	StagingDirect  = "direct"  // install straight into the prefix
	StagingDestdir = "destdir" // install under DESTDIR, prefix /usr/local

	LayoutFlat       = "flat"       // <dest>/flex
	LayoutNamespaced = "namespaced" // <dest>/gnu_flex/bin/flex
)

// PipelineOptions enumerates the variation points of a build invocation.
type PipelineOptions struct {
	StagingMode     string // StagingDirect or StagingDestdir
	OutputLayout    string // LayoutFlat or LayoutNamespaced
	CleanupOnFinish bool
	Jobs            int
	Quiet           bool
	PackageArtifact bool // also produce a .tar.zst of the staged tree
	LogWriter       io.Writer
}

// Artifact describes the finished output of a pipeline run.
type Artifact struct {
	Binary       string // absolute path of the staged executable
	Version      string
	Target       Target
	Overrides    WheelOverrides
	TarballPath  string // non-empty when PackageArtifact was requested
	BuildLogPath string
}

// Pipeline is a single-use build run. Construct with NewPipeline and call
// Run exactly once.
type Pipeline struct {
	cfg    *Config
	target Target
	runner Runner
	opts   PipelineOptions
	stage  Stage
}

func NewPipeline(cfg *Config, target Target, runner Runner, opts PipelineOptions) *Pipeline {
	if opts.StagingMode == "" {
		opts.StagingMode = StagingDestdir
	}
	if opts.OutputLayout == "" {
		opts.OutputLayout = LayoutNamespaced
	}
	if opts.Jobs <= 0 {
		opts.Jobs = defaultJobs()
	}
	return &Pipeline{cfg: cfg, target: target, runner: runner, opts: opts, stage: StageInit}
}

// Stage reports the pipeline's current stage.
func (p *Pipeline) Stage() Stage { return p.stage }

func (p *Pipeline) step(to Stage) error {
	if err := advance(p.stage, to); err != nil {
		return err
	}
	p.stage = to
	return nil
}

func (p *Pipeline) fail(err error, cmd ...string) error {
	at := p.stage
	p.stage = StageFailed
	return &StageError{Stage: at, Cmd: cmd, Err: err}
}

// Run executes the whole pipeline: acquire sources, build, stage into
// destDir. The scratch working directory lives under TMPDIR and is removed
// when CleanupOnFinish is set, kept for inspection otherwise.
func (p *Pipeline) Run(destDir string) (*Artifact, error) {
	flexVer := p.cfg.FlexVersion()
	start := time.Now()

	workDir, err := os.MkdirTemp(tmpDir, flexName+"-build-")
	if err != nil {
		return nil, p.fail(fmt.Errorf("failed to create work dir: %w", err))
	}
	cleanedUp := false
	defer func() {
		if p.opts.CleanupOnFinish && !cleanedUp {
			_ = os.RemoveAll(workDir)
		}
	}()

	logDir := filepath.Join(workDir, "log")
	stageDir := filepath.Join(workDir, "stage")
	for _, dir := range []string{logDir, stageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, p.fail(fmt.Errorf("failed to create dir %s: %w", dir, err))
		}
	}

	// Build log captures every subprocess's output, mirrored to the
	// console when verbose.
	logPath := filepath.Join(logDir, "build-log.txt")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, p.fail(fmt.Errorf("failed to create build log: %w", err))
	}
	defer logFile.Close()
	var logw io.Writer = logFile
	if p.opts.LogWriter != nil {
		logw = io.MultiWriter(logFile, p.opts.LogWriter)
	} else if Verbose || Debug {
		logw = io.MultiWriter(logFile, os.Stdout)
	}

	// 1. Source acquisition
	srcDir, err := ResolveSource(p.cfg, flexVer, filepath.Join(workDir, "build"), p.opts.Quiet)
	if err != nil {
		return nil, p.fail(err)
	}
	if err := p.step(StageSourceReady); err != nil {
		return nil, p.fail(err)
	}
	if !p.opts.Quiet {
		colArrow.Print("-> ")
		colSuccess.Printf("Source tree ready: %s\n", srcDir)
	}

	// 2-4. configure / make / make install
	env := buildEnv(p.cfg, p.target)
	if err := ensureConfigure(srcDir, env, p.runner, logw); err != nil {
		return nil, p.fail(err)
	}
	ensureManPage(srcDir, logw)

	prefix, installedBinary := stagePaths(p.opts.StagingMode, stageDir)

	steps := buildSteps(srcDir, prefix, stageDir, p.opts.StagingMode, p.opts.Jobs)
	after := []Stage{StageConfigured, StageBuilt, StageInstalled}
	for i, bs := range steps {
		if !p.opts.Quiet {
			colArrow.Print("-> ")
			colSuccess.Printf("Running: %s\n", bs.describe())
		}
		if err := runStep(bs, srcDir, env, p.runner, logw); err != nil {
			return nil, p.fail(err, bs.argv...)
		}
		if err := p.step(after[i]); err != nil {
			return nil, p.fail(err)
		}
	}

	// Install claims success; the binary must actually be there.
	if _, err := os.Stat(installedBinary); err != nil {
		return nil, p.fail(fmt.Errorf("%w: %s", ErrMissingArtifact, installedBinary))
	}

	// 5. Staging / finalization
	finalBinary, err := finalizeArtifact(installedBinary, destDir, p.opts.OutputLayout)
	if err != nil {
		return nil, p.fail(err)
	}
	if err := p.step(StageStaged); err != nil {
		return nil, p.fail(err)
	}

	art := &Artifact{
		Binary:       finalBinary,
		Version:      flexVer,
		Target:       p.target,
		Overrides:    wheelOverrides(runtime.GOOS, p.target),
		BuildLogPath: logPath,
	}

	if p.opts.PackageArtifact {
		tarball, err := artifactTarball(destDir, flexVer, p.target.ArchTag)
		if err != nil {
			return nil, p.fail(err)
		}
		art.TarballPath = tarball
	}

	// Preserve the build log before the scratch tree goes away.
	if LogsDir != "" {
		if err := os.MkdirAll(LogsDir, 0o755); err == nil {
			kept := filepath.Join(LogsDir, fmt.Sprintf("%s-%s-%d.log", flexName, flexVer, start.Unix()))
			if err := copyFile(logPath, kept); err == nil {
				art.BuildLogPath = kept
			}
		}
	}

	if err := p.step(StageDone); err != nil {
		return nil, p.fail(err)
	}
	if p.opts.CleanupOnFinish {
		cleanedUp = true
		_ = os.RemoveAll(workDir)
	} else {
		debugf("Keeping work dir for inspection: %s\n", workDir)
	}

	if !p.opts.Quiet {
		colArrow.Print("-> ")
		colSuccess.Printf("Staged %s binary at %s (%s)\n", flexName, finalBinary, time.Since(start).Truncate(time.Second))
	}
	return art, nil
}
