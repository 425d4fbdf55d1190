// Package canvascli implements the canvas command: batch layout, migration, preview
// rendering and template instantiation of exchange documents, plus a live preview server.
package canvascli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cdr.dev/slog"
	"github.com/spf13/pflag"

	"oss.terrastruct.com/util-go/go2"
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2canvas/canvascatalog"
	"oss.terrastruct.com/d2canvas/canvasconfig"
	"oss.terrastruct.com/d2canvas/canvaslayouts"
	"oss.terrastruct.com/d2canvas/canvassvg"
	"oss.terrastruct.com/d2canvas/lib/log"
	"oss.terrastruct.com/d2canvas/lib/version"
)

// flags holds the parsed global flags every subcommand may consult.
type flags struct {
	cfg     *canvasconfig.Config
	catalog *canvascatalog.Catalog
	pad     int64
	timeout time.Duration
	host    string
	port    string
}

func Run(ctx context.Context, ms *xmain.State) (err error) {
	ctx = log.Stderr(ctx)
	// These should be kept up-to-date with help.
	configFlag := ms.Opts.String("CANVAS_CONFIG", "config", "c", "", "path to a TOML engine configuration. Defaults are used for anything it leaves out.")
	catalogFlag := ms.Opts.String("CANVAS_CATALOG", "catalog", "", "", "path to a YAML catalog merged over the built-in one. Overrides the catalog of the configuration.")
	directionFlag := ms.Opts.String("CANVAS_DIRECTION", "direction", "", "", "layout direction, one of TB, LR, BT or RL. Overrides the configuration.")
	layoutFlag := ms.Opts.String("CANVAS_LAYOUT", "layout", "l", "", "layout algorithm, layered or dot. Overrides the configuration.")
	padFlag, err := ms.Opts.Int64("CANVAS_PAD", "pad", "", canvassvg.DEFAULT_PADDING, "pixels padded around the rendered preview")
	if err != nil {
		return err
	}
	timeoutFlag, err := ms.Opts.Int64("CANVAS_TIMEOUT", "timeout", "", 120, "the maximum number of seconds a layout runs for before it is canceled")
	if err != nil {
		return err
	}
	hostFlag := ms.Opts.String("HOST", "host", "h", "localhost", "host listening address used by watch")
	portFlag := ms.Opts.String("PORT", "port", "p", "0", "port listening address used by watch")
	browserFlag := ms.Opts.String("BROWSER", "browser", "", "", "browser executable that watch opens. Setting to 0 opens no browser.")
	debugFlag, err := ms.Opts.Bool("DEBUG", "debug", "d", false, "print debug logs.")
	if err != nil {
		ms.Log.Warn.Printf("Invalid DEBUG flag value ignored")
		debugFlag = go2.Pointer(false)
	}
	versionFlag, err := ms.Opts.Bool("", "version", "v", false, "get the version")
	if err != nil {
		return err
	}
	printConfigFlag, err := ms.Opts.Bool("", "print-config", "", false, "print the effective configuration as TOML and exit")
	if err != nil {
		return err
	}

	err = ms.Opts.Flags.Parse(ms.Opts.Args)
	if !errors.Is(err, pflag.ErrHelp) && err != nil {
		return xmain.UsageErrorf("failed to parse flags: %v", err)
	}
	if errors.Is(err, pflag.ErrHelp) {
		help(ms)
		return nil
	}

	if *debugFlag {
		ctx = log.Leveled(ctx, slog.LevelDebug)
		ms.Env.Setenv("DEBUG", "1")
	}
	if *browserFlag != "" {
		ms.Env.Setenv("BROWSER", *browserFlag)
	}
	if *padFlag < 0 {
		return xmain.UsageErrorf("--pad must not be negative, got %d", *padFlag)
	}

	f := &flags{
		pad:     *padFlag,
		timeout: time.Duration(*timeoutFlag) * time.Second,
		host:    *hostFlag,
		port:    *portFlag,
	}
	f.cfg, err = loadConfig(ms, *configFlag, *catalogFlag, *directionFlag, *layoutFlag)
	if err != nil {
		return err
	}

	if *printConfigFlag {
		return f.cfg.Encode(ms.Stdout)
	}

	args := ms.Opts.Flags.Args()
	if len(args) == 0 {
		if *versionFlag {
			fmt.Fprintln(ms.Stdout, version.Version)
			return nil
		}
		help(ms)
		return nil
	}

	f.catalog, err = f.cfg.LoadCatalog()
	if err != nil {
		return err
	}

	switch args[0] {
	case "layout":
		return layoutCmd(ctx, ms, f)
	case "migrate":
		return migrateCmd(ctx, ms, f)
	case "render":
		return renderCmd(ctx, ms, f)
	case "template":
		return templateCmd(ctx, ms, f)
	case "templates":
		templatesCmd(ms, f)
		return nil
	case "watch":
		return watchCmd(ctx, ms, f)
	case "version":
		if len(args) > 1 {
			return xmain.UsageErrorf("version subcommand accepts no arguments")
		}
		fmt.Fprintln(ms.Stdout, version.Version)
		return nil
	case "help":
		help(ms)
		return nil
	}
	return xmain.UsageErrorf("unknown subcommand %q", args[0])
}

// loadConfig reads the configuration and applies the flag overrides on top of it.
func loadConfig(ms *xmain.State, configPath, catalogPath, direction, algorithm string) (*canvasconfig.Config, error) {
	if configPath != "" {
		configPath = ms.AbsPath(configPath)
	}
	cfg, err := canvasconfig.Load(configPath)
	if err != nil {
		return nil, xmain.UsageErrorf("%v", err)
	}
	if catalogPath != "" {
		cfg.Catalog = ms.AbsPath(catalogPath)
	}
	if direction != "" {
		d, err := canvaslayouts.ParseDirection(direction)
		if err != nil {
			return nil, xmain.UsageErrorf("--direction: %v", err)
		}
		cfg.Layout.Direction = d
	}
	if algorithm != "" {
		cfg.Layout.Algorithm = canvaslayouts.Algorithm(strings.ToLower(algorithm))
	}
	if err := cfg.Validate(); err != nil {
		return nil, xmain.UsageErrorf("%v", err)
	}
	return cfg, nil
}

// inOut resolves the input and output paths of a subcommand taking `in [out]`. A missing
// output is derived from the input with ext, or stdout when ext is empty or the input is
// stdin.
func inOut(ms *xmain.State, name, ext string) (inputPath, outputPath string, err error) {
	args := ms.Opts.Args
	if len(args) == 0 {
		return "", "", xmain.UsageErrorf("%s must be passed an input file", name)
	}
	if len(args) > 2 {
		return "", "", xmain.UsageErrorf("too many arguments passed to %s", name)
	}
	inputPath = args[0]
	if len(args) == 2 {
		outputPath = args[1]
	} else if inputPath == "-" || ext == "" {
		outputPath = "-"
	} else {
		outputPath = renameExt(inputPath, ext)
	}
	if inputPath != "-" {
		inputPath = ms.AbsPath(inputPath)
	}
	if outputPath != "-" {
		outputPath = ms.AbsPath(outputPath)
	}
	return inputPath, outputPath, nil
}

func renameExt(fp string, newExt string) string {
	ext := filepath.Ext(fp)
	if ext == "" {
		return fp + newExt
	}
	return strings.TrimSuffix(fp, ext) + newExt
}

func writeOutput(ms *xmain.State, outputPath string, b []byte) error {
	if outputPath != "-" {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			return err
		}
	}
	if err := ms.WritePath(outputPath, b); err != nil {
		return err
	}
	if outputPath != "-" {
		ms.Log.Success.Printf("wrote %s", ms.HumanPath(outputPath))
	}
	return nil
}
