package flexbin

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: flexbin <command> [arguments]")
	colSuccess.Println("Run 'flexbin <command> -h' for command options")
	fmt.Println()
	colInfo.Println("Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"version, --version", "", "Version information"},
		{"build, b", "[options]", "Fetch, build and stage the flex binary"},
		{"fetch, f", "", "Download and cache the flex source tarball"},
		{"target, t", "[arch]", "Show resolved compiler triple and platform tags"},
		{"path, p", "[prefix]", "Print the staged flex binary path"},
		{"checksum, c", "", "Print the BLAKE3 checksum of the cached tarball"},
		{"upload, u", "[file...]", "Upload packaged artifacts to the configured mirror"},
		{"log", "", "TUI build log viewer"},
	}

	// Find the longest usage string to size the first column.
	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		colInfo.Println(c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for the flexbin command.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case sig := <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Printf("Received %v. Cancelling build gracefully\n", sig)
				cancel()
				select {
				case <-sigs:
					colArrow.Print("\n-> ")
					color.Danger.Println("Second interrupt received. Forcing immediate exit.")
					os.Exit(130)
				case <-time.After(2 * time.Second):
					colArrow.Print("\n-> ")
					color.Danger.Println("Graceful shutdown timeout. Exiting.")
					os.Exit(130)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	configPath := ConfigFile
	if p := os.Getenv("FLEXBIN_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to read %s: %v\n", configPath, err)
	}
	initConfig(cfg)

	// Target resolution happens exactly once, here, and is threaded
	// through as a value. Unknown architectures are a valid "build
	// native" outcome.
	target := ResolveTarget(DetectArch(cfg))

	exitCode := 0
	switch os.Args[1] {
	case "build", "b":
		exitCode = handleBuildCommand(ctx, os.Args[2:], cfg, target)
	case "fetch", "f":
		if _, err := EnsureTarball(cfg, cfg.FlexVersion(), false); err != nil {
			reportError(err)
			exitCode = 1
		}
	case "target", "t":
		arch := ""
		if len(os.Args) > 2 {
			arch = NormalizeArch(os.Args[2])
			target = ResolveTarget(arch)
		}
		printTarget(target)
	case "path", "p":
		prefix := "."
		if len(os.Args) > 2 {
			prefix = os.Args[2]
		}
		p, err := FlexPath(prefix)
		if err != nil {
			reportError(err)
			exitCode = 1
		} else {
			fmt.Println(p)
		}
	case "checksum", "c":
		exitCode = handleChecksumCommand(cfg)
	case "upload", "u":
		if err := handleUploadCommand(os.Args[2:], cfg); err != nil {
			reportError(err)
			exitCode = 1
		}
	case "log":
		exitCode = runLogViewer()
	case "version", "--version", "-v":
		fmt.Printf("flexbin %s (%s/%s, built %s)\n", version, runtime.GOOS, runtime.GOARCH, buildDate)
		fmt.Printf("packages GNU %s %s\n", flexName, defaultFlexVersion)
	case "help", "--help", "-h":
		printHelp()
	default:
		cPrintf(colError, "Unknown command: %s\n", os.Args[1])
		printHelp()
		exitCode = 1
	}
	os.Exit(exitCode)
}

func handleBuildCommand(ctx context.Context, args []string, cfg *Config, target Target) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("out", "dist", "destination directory for the staged binary")
	staging := fs.String("staging", cfg.StagingMode(), "install variant: direct or destdir")
	layout := fs.String("layout", cfg.OutputLayout(), "output layout: flat or namespaced")
	jobs := fs.Int("jobs", cfg.Jobs(), "make parallelism")
	keep := fs.Bool("keep", cfg.KeepTmp(), "keep the scratch build directory")
	pack := fs.Bool("package", false, "also produce a .tar.zst artifact")
	quiet := fs.Bool("q", false, "suppress progress output")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *staging != StagingDirect && *staging != StagingDestdir {
		cPrintf(colError, "Invalid staging mode: %s\n", *staging)
		return 1
	}
	if *layout != LayoutFlat && *layout != LayoutNamespaced {
		cPrintf(colError, "Invalid layout: %s\n", *layout)
		return 1
	}

	p := NewPipeline(cfg, target, NewExecutor(ctx), PipelineOptions{
		StagingMode:     *staging,
		OutputLayout:    *layout,
		CleanupOnFinish: !*keep,
		Jobs:            *jobs,
		Quiet:           *quiet,
		PackageArtifact: *pack,
	})

	art, err := p.Run(*out)
	if err != nil {
		reportError(err)
		return 1
	}

	if !*quiet {
		if len(art.Overrides.PlatNames) > 0 {
			colArrow.Print("-> ")
			colSuccess.Printf("Platform tags: %s (python tag %s)\n", strings.Join(art.Overrides.PlatNames, ", "), art.Overrides.PythonTag)
		}
		if art.TarballPath != "" {
			colArrow.Print("-> ")
			colSuccess.Printf("Packaged artifact: %s\n", art.TarballPath)
		}
	}
	return 0
}

func handleChecksumCommand(cfg *Config) int {
	ver := cfg.FlexVersion()
	url := tarballURL(cfg, ver)
	cachePath := cachedTarballPath(url, ver)
	if !fileExists(cachePath) {
		cPrintf(colWarn, "No cached tarball for %s %s (run 'flexbin fetch' first)\n", flexName, ver)
		return 1
	}
	sum, err := fileChecksum(cachePath)
	if err != nil {
		reportError(err)
		return 1
	}
	fmt.Printf("%s  %s\n", sum, tarballName(ver))
	return 0
}

func printTarget(t Target) {
	if t.Triple == "" {
		fmt.Println("no cross-compilation override (native host toolchain)")
		return
	}
	fmt.Printf("triple: %s\n", t.Triple)
	fmt.Printf("arch tag: %s\n", t.ArchTag)
	if tags := PlatformTags(runtime.GOOS, t); len(tags) > 0 {
		fmt.Printf("platform tags: %s\n", strings.Join(tags, ", "))
	}
}

// reportError prints a failure, calling out the pipeline stage when known.
func reportError(err error) {
	var se *StageError
	if errors.As(err, &se) {
		colArrow.Print("-> ")
		colError.Printf("Pipeline failed at stage %s: %v\n", se.Stage, se.Err)
		if len(se.Cmd) > 0 {
			colError.Printf("   command: %s\n", strings.Join(se.Cmd, " "))
		}
		return
	}
	colArrow.Print("-> ")
	colError.Printf("Error: %v\n", err)
}
