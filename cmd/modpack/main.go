package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/modpack/pkg/config"
	"github.com/ritzau/modpack/pkg/emit"
	"github.com/ritzau/modpack/pkg/graph"
	"github.com/ritzau/modpack/pkg/logging"
	"github.com/ritzau/modpack/pkg/manifest"
	"github.com/ritzau/modpack/pkg/module"
	"github.com/ritzau/modpack/pkg/output"
	"github.com/ritzau/modpack/pkg/pack"
	"github.com/ritzau/modpack/pkg/watcher"
)

const usage = `Usage:
  modpack pack [flags]        pack a module manifest into an embeddable blob
  modpack inspect <file>      decode a packed .c or .bin blob

Run 'modpack pack --help' for pack flags.
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	switch args[0] {
	case "pack":
		return runPack(ctx, args[1:], stdout, stderr)
	case "inspect":
		return runInspect(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func packFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	fs.StringP("manifest", "m", "modules.toml", "TOML manifest describing the module hierarchy")
	fs.StringP("output", "o", "devc.c", "Output file, '-' for stdout")
	fs.String("symbol", "", "Array symbol name (default "+emit.DevBlobSymbol+")")
	fs.Bool("system-lib", false, "Register the blob with the runtime system library at static init")
	fs.String("format", config.FormatC, "Output format: c or bin")
	fs.BoolP("watch", "w", false, "Re-pack whenever the manifest or a payload changes")
	fs.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	fs.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	fs.Bool("json-log", false, "Log as JSON")
	return fs
}

func runPack(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := packFlags()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	configureLogging(cfg, stderr)

	// The report shares stdout with the artifact only when writing to a file
	report := stdout
	if cfg.Output == "-" {
		report = stderr
	}

	files, err := packOnce(newBuildContext(ctx), cfg, stdout, report)
	if err != nil {
		return err
	}
	if !cfg.Watch {
		return nil
	}
	return watch(ctx, cfg, files, stdout, report)
}

func configureLogging(cfg *config.Config, w io.Writer) {
	level := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	logging.SetOutput(w, level)
	if cfg.JSONLog {
		logging.SetJSONOutput(level)
	}
}

func newBuildContext(ctx context.Context) context.Context {
	return logging.WithBuildID(ctx, logging.NewBuildID())
}

// packOnce loads the manifest, packs it and writes the artifact.
// It returns the files the result depends on, manifest first.
func packOnce(ctx context.Context, cfg *config.Config, stdout, report io.Writer) ([]string, error) {
	start := time.Now()
	logging.InfoContext(ctx, "loading manifest", "path", cfg.Manifest)

	res, err := manifest.Load(cfg.Manifest)
	if err != nil {
		return nil, err
	}

	tree, err := graph.BuildImportTree(res.Root)
	if err != nil {
		return res.Files, fmt.Errorf("manifest %s: %w", cfg.Manifest, err)
	}
	blob, err := pack.Pack(res.Root, tree, tree.CanonicalOrder())
	if err != nil {
		return res.Files, fmt.Errorf("manifest %s: %w", cfg.Manifest, err)
	}

	var artifact []byte
	switch cfg.Format {
	case config.FormatBin:
		artifact = blob
	default:
		artifact = []byte(emit.EmitC(blob, emit.Options{Symbol: cfg.Symbol, SystemLib: cfg.SystemLib}))
	}

	if cfg.Output == "-" {
		if _, err := stdout.Write(artifact); err != nil {
			return res.Files, err
		}
	} else if err := writeFileAtomic(cfg.Output, artifact); err != nil {
		return res.Files, err
	}

	logging.InfoContext(ctx, "packed modules",
		"root", res.Root.TypeKey(),
		"legacy", tree.Legacy(),
		"bytes", len(blob),
		"output", cfg.Output,
		"durationMs", time.Since(start).Milliseconds(),
	)

	dest := cfg.Output
	if dest == "-" {
		dest = ""
	}
	output.PrintPackReport(report, tree, res.Root, len(blob), dest)
	return res.Files, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// watch re-packs on every debounced change until ctx is done. A manifest
// change that alters the set of payload files restarts the watcher.
func watch(ctx context.Context, cfg *config.Config, files []string, stdout, report io.Writer) error {
	for {
		wctx, cancel := context.WithCancel(ctx)
		fw, err := watcher.NewFileWatcher(files[0], files[1:])
		if err != nil {
			cancel()
			return err
		}
		if err := fw.Start(wctx); err != nil {
			cancel()
			return err
		}
		debouncer := watcher.NewDebouncer(fw.Events(), 200*time.Millisecond, 2*time.Second)
		debouncer.Start(wctx)

		reload := false
		for ev := range debouncer.Output() {
			bctx := newBuildContext(ctx)
			logging.InfoContext(bctx, "change detected", "type", ev.Type.String(), "files", len(ev.Paths))

			next, err := packOnce(bctx, cfg, stdout, report)
			if err != nil {
				logging.ErrorContext(bctx, "re-pack failed", "error", err)
				continue
			}
			if !slices.Equal(next, files) {
				files = next
				reload = true
				break
			}
		}
		cancel()

		if !reload {
			return nil
		}
		logging.Info("payload set changed, restarting watcher", "files", len(files))
	}
}

func runInspect(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect takes exactly one file", errUsage)
	}
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	blob := data
	if isCSource(path, data) {
		arr, err := emit.DecodeArray(string(data))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		blob = arr.Blob
		logging.Debug("decoded blob array", "symbol", arr.Symbol, "cells", arr.Declared, "systemLib", arr.SystemLib)
	}

	u, err := pack.Unpack(blob, module.LoadBlob)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	output.PrintBlobReport(stdout, path, u, len(blob))
	return nil
}

func isCSource(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".cc", ".cpp", ".h":
		return true
	case ".bin":
		return false
	}
	return strings.HasPrefix(string(data), "#ifdef")
}
