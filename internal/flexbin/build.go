package flexbin

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Fixed configure arguments: static binary, no shared libs, no NLS, and
// the feature macro flex's scanner sources require.
var configureArgs = []string{
	"CFLAGS=-D_GNU_SOURCE",
	"--disable-nls",
	"--disable-shared",
	"--enable-static",
}

type buildStep struct {
	argv []string
}

func (b buildStep) describe() string {
	return strings.Join(b.argv, " ")
}

// stagePaths returns the configure prefix and the path the installed flex
// binary must appear at for a given staging mode.
func stagePaths(mode, stageDir string) (prefix, installedBinary string) {
	if mode == StagingDirect {
		return stageDir, filepath.Join(stageDir, "bin", flexName)
	}
	return "/usr/local", filepath.Join(stageDir, "usr", "local", "bin", flexName)
}

// buildSteps assembles the configure/make/install command lines. The only
// parallelism in the whole pipeline is the -j flag handed to make.
func buildSteps(srcDir, prefix, stageDir, mode string, jobs int) []buildStep {
	configure := append([]string{"bash", "./configure", "--prefix=" + prefix}, configureArgs...)
	build := []string{"make", fmt.Sprintf("-j%d", jobs)}
	install := []string{"make", "install"}
	if mode == StagingDestdir {
		install = []string{"make", "DESTDIR=" + stageDir, "install"}
	}
	return []buildStep{{argv: configure}, {argv: build}, {argv: install}}
}

func runStep(bs buildStep, srcDir string, env []string, runner Runner, logw io.Writer) error {
	cmd := exec.Command(bs.argv[0], bs.argv[1:]...)
	cmd.Dir = srcDir
	cmd.Env = env
	cmd.Stdout = logw
	cmd.Stderr = logw
	cmd.Stdin = strings.NewReader("")
	if err := runner.Run(cmd); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBuildStepFailed, bs.describe(), err)
	}
	return nil
}

// ensureConfigure guarantees srcDir has a configure script, generating one
// with autogen.sh for git checkouts. Fails before any subprocess runs when
// neither exists, and without running autogen when libtoolize is absent.
func ensureConfigure(srcDir string, env []string, runner Runner, logw io.Writer) error {
	configure := filepath.Join(srcDir, "configure")
	if _, err := os.Stat(configure); err == nil {
		return nil
	}

	autogen := filepath.Join(srcDir, "autogen.sh")
	if _, err := os.Stat(autogen); err != nil {
		return fmt.Errorf("%w: no configure script and no autogen.sh in %s; use a release tarball or a FLEX_SOURCE with generated build files", ErrSourceNotFound, srcDir)
	}

	if envGet(env, "LIBTOOLIZE") == "" {
		return fmt.Errorf("%w: autogen.sh requires libtoolize/glibtoolize; install libtool to generate configure", ErrBuildToolMissing)
	}

	debugf("Running autogen.sh to generate configure in %s\n", srcDir)
	if err := runStep(buildStep{argv: []string{"sh", "./autogen.sh"}}, srcDir, env, runner, logw); err != nil {
		return err
	}

	if _, err := os.Stat(configure); err != nil {
		return fmt.Errorf("%w: configure script still missing after autogen", ErrBuildStepFailed)
	}
	return nil
}

// ensureManPage writes a minimal flex.1 when absent. help2man is often
// missing in CI and 'make install' of git sources fails without the page.
func ensureManPage(srcDir string, logw io.Writer) {
	manPage := filepath.Join(srcDir, "doc", flexName+".1")
	if _, err := os.Stat(manPage); err == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(manPage), 0o755); err != nil {
		return
	}
	stub := ".TH flex 1\n.SH NAME\nflex - the fast lexical analyser generator\n"
	if err := os.WriteFile(manPage, []byte(stub), 0o644); err == nil {
		fmt.Fprintf(logw, "Wrote stub man page %s\n", manPage)
	}
}

// buildEnv assembles the subprocess environment: the caller's environment,
// defaults for the toolchain knobs the build needs, no-op stand-ins for
// the optional documentation tools, and the cross compiler when Target
// Resolution produced a triple.
func buildEnv(cfg *Config, target Target) []string {
	env := os.Environ()

	env = envSetDefault(env, "CFLAGS", "-O2")
	env = envSetDefault(env, "CPPFLAGS", "-D_GNU_SOURCE")
	// Avoid doc toolchain failures when building from git sources
	env = envSetDefault(env, "MAKEINFO", "true")
	env = envSetDefault(env, "HELP2MAN", "true")

	if envGet(env, "LIBTOOLIZE") == "" {
		for _, candidate := range []string{"libtoolize", "glibtoolize"} {
			if found, err := exec.LookPath(candidate); err == nil {
				env = append(env, "LIBTOOLIZE="+found)
				break
			}
		}
	}

	if target.Triple != "" {
		if zig := zigCompiler(cfg); zig != "" {
			env = envSet(env, "CC", fmt.Sprintf("%s cc -target %s", zig, target.Triple))
		}
	}

	return env
}

// zigCompiler returns the zig binary to use for cross builds, or "" when
// none is configured or discoverable.
func zigCompiler(cfg *Config) string {
	if z := cfg.Values["FLEXBIN_ZIG"]; z != "" {
		return z
	}
	if found, err := exec.LookPath("zig"); err == nil {
		return found
	}
	return ""
}

func envGet(env []string, key string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return strings.TrimPrefix(env[i], prefix)
		}
	}
	return ""
}

func envSet(env []string, key, val string) []string {
	prefix := key + "="
	out := env[:0]
	for _, e := range env {
		if !strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return append(out, prefix+val)
}

func envSetDefault(env []string, key, val string) []string {
	if envGet(env, key) != "" {
		return env
	}
	return append(env, key+"="+val)
}
