// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The cli package provides the slicedoctor command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/stmt"
	"github.com/godoctor/slicedoctor/config"
	"github.com/godoctor/slicedoctor/engine"
	"github.com/godoctor/slicedoctor/engine/protocol"
	"github.com/godoctor/slicedoctor/refactoring"
)

// Exit codes returned by Run.
const (
	ExitOK       = 0
	ExitUsage    = 1
	ExitAnalysis = 2
)

var version = "dev"

// An exitError carries the exit code for a failed command.  A nil err means
// the problem has already been reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func (e *exitError) ExitCode() int { return e.code }

func usageErrorf(format string, args ...interface{}) error {
	return &exitError{code: ExitUsage, err: fmt.Errorf(format, args...)}
}

func analysisError(err error) error {
	return &exitError{code: ExitAnalysis, err: err}
}

// Run runs the slicedoctor command-line interface.  Typical usage is
//
//	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args))
//
// All arguments must be non-nil, and args[0] is required.
func Run(stdin io.Reader, stdout io.Writer, stderr io.Writer, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &runner{stdin: stdin, stdout: stdout, stderr: stderr}
	err := r.app().RunContext(ctx, args)
	if err == nil {
		return ExitOK
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintf(stderr, "Error: %s\n", msg)
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitUsage
}

// A runner holds the state shared by the commands of one invocation.
type runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	logger  *slog.Logger
	colored bool
}

func (r *runner) app() *cli.App {
	return &cli.App{
		Name:    "slicedoctor",
		Usage:   "Find Extract Method opportunities in Java code",
		Version: version,
		Description: `slicedoctor computes program slices of Java methods and reports the ones
that can be extracted into a method of their own, along with the
parameters and return value the new method would need.  A scan also
groups structurally identical slices found in different methods.`,
		Reader:         r.stdin,
		Writer:         r.stdout,
		ErrWriter:      r.stderr,
		ExitErrHandler: func(*cli.Context, error) {},
		OnUsageError:   onUsageError,
		Commands: []*cli.Command{
			r.scanCmd(),
			r.sliceCmd(),
			r.debugCmd(),
			r.listCmd(),
			r.configCmd(),
			r.serveCmd(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return usageErrorf("there is no command named %q", c.Args().First())
			}
			if err := cli.ShowAppHelp(c); err != nil {
				return err
			}
			return &exitError{code: ExitUsage}
		},
	}
}

func onUsageError(_ *cli.Context, err error, _ bool) error {
	return &exitError{code: ExitUsage, err: err}
}

// commonFlags returns the flags accepted by every command.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file (TOML, YAML, or JSON)",
			EnvVars: []string{"SLICEDOCTOR_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, markdown",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "Disable colored output",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log analysis progress to standard error",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"j"},
			Usage:   "Maximum number of files or methods analyzed concurrently (0: one per CPU)",
		},
	}
}

// analysisFlags returns the flags that override the analysis configuration.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "min-statements",
			Usage: "Smallest number of statements an extractable slice may span",
		},
		&cli.BoolFlag{
			Name:  "no-closure",
			Usage: "Do not extend slices to later statements that consume the sliced variable",
		},
		&cli.BoolFlag{
			Name:  "normalize-literals",
			Usage: "Ignore literal values when grouping duplicate slices",
		},
		&cli.IntFlag{
			Name:  "min-group-size",
			Usage: "Smallest number of slices reported as a duplicate group",
		},
		&cli.BoolFlag{
			Name:  "no-revalidate",
			Usage: "Do not check slices against a fresh parse before reporting them",
		},
	}
}

// setup loads the configuration, applies command-line overrides, and
// creates the logger.  It runs before every command.
func (r *runner) setup(c *cli.Context) error {
	var err error
	if path := c.String("config"); path != "" {
		r.cfg, err = config.Load(path)
	} else {
		r.cfg, _, err = config.LoadOrDefault(".")
	}
	if err != nil {
		return usageErrorf("%v", err)
	}

	if c.IsSet("format") {
		r.cfg.Output.Format = c.String("format")
	}
	if c.Bool("no-color") {
		r.cfg.Output.Color = false
	}
	if c.Bool("verbose") {
		r.cfg.Output.Verbose = true
	}
	if c.IsSet("workers") {
		r.cfg.Workers = c.Int("workers")
	}
	if c.IsSet("min-statements") {
		r.cfg.Analysis.MinStatements = c.Int("min-statements")
	}
	if c.Bool("no-closure") {
		r.cfg.Analysis.ForwardClosure = false
	}
	if c.Bool("normalize-literals") {
		r.cfg.Analysis.NormalizeLiterals = true
	}
	if c.IsSet("min-group-size") {
		r.cfg.Analysis.MinGroupSize = c.Int("min-group-size")
	}
	if c.Bool("no-revalidate") {
		r.cfg.Analysis.Revalidate = false
	}
	if err := r.cfg.Validate(); err != nil {
		return usageErrorf("%v", err)
	}

	level := slog.LevelWarn
	if r.cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	r.logger = slog.New(slog.NewTextHandler(r.stderr, &slog.HandlerOptions{Level: level}))
	r.colored = r.cfg.Output.Color && isTerminal(r.stdout)
	return nil
}

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func (r *runner) scanCmd() *cli.Command {
	return &cli.Command{
		Name:         "scan",
		Usage:        "Find Extract Method opportunities and duplicate slices in a project",
		ArgsUsage:    "[path...]",
		Flags:        append(commonFlags(), analysisFlags()...),
		Before:       r.setup,
		OnUsageError: onUsageError,
		Action:       r.runScan,
	}
}

func (r *runner) runScan(c *cli.Context) error {
	files, err := loader.Discover(getPaths(c), r.cfg)
	if err != nil {
		return usageErrorf("%v", err)
	}
	if len(files) == 0 {
		warningf(r.stderr, r.colored, "No Java source files found")
		return nil
	}

	prog, err := loader.Load(c.Context, files,
		loader.WithWorkers(r.cfg.WorkerCount()),
		loader.WithLogger(r.logger))
	if err != nil {
		return analysisError(err)
	}

	tracker := newTracker(r.stderr, "Analyzing methods", len(prog.Methods))
	result, err := engine.Scan(c.Context, prog, engine.ScanOptions{
		Analysis: r.cfg.Analysis,
		Workers:  r.cfg.Workers,
		Logger:   r.logger,
		Progress: tracker.Tick,
	})
	tracker.Finish()
	if err != nil {
		return analysisError(err)
	}

	if err := render(r.stdout, r.cfg.Output.Format, r.colored, scanReport(prog, result)); err != nil {
		return analysisError(err)
	}
	writeLog(r.stderr, result.Log, r.colored)
	if result.Log.ContainsErrors() {
		return &exitError{code: ExitAnalysis}
	}
	return nil
}

func selectionFlags(lineRequired bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Usage:    "Java source file containing the method",
			Required: true,
		},
		&cli.IntFlag{
			Name:     "line",
			Aliases:  []string{"l"},
			Usage:    "Line number within the method",
			Required: lineRequired,
		},
	}
}

func (r *runner) sliceCmd() *cli.Command {
	flags := append(commonFlags(), analysisFlags()...)
	flags = append(flags, selectionFlags(true)...)
	flags = append(flags, &cli.StringFlag{
		Name:  "var",
		Usage: "Slice only on this variable",
	})
	return &cli.Command{
		Name:         "slice",
		Usage:        "List the slices of one method and whether each can be extracted",
		Flags:        flags,
		Before:       r.setup,
		OnUsageError: onUsageError,
		Action:       r.runSlice,
	}
}

// loadMethod loads the file named by --file and finds the method
// containing --line, if given.
func (r *runner) loadMethod(c *cli.Context) (*loader.Program, *stmt.Method, error) {
	filename := c.String("file")
	prog, err := loader.Load(c.Context, []string{filename}, loader.WithLogger(r.logger))
	if err != nil {
		return nil, nil, usageErrorf("%v", err)
	}
	if !c.IsSet("line") {
		return prog, nil, nil
	}
	line := c.Int("line")
	m := prog.MethodAt(filename, line)
	if m == nil {
		return nil, nil, usageErrorf("no method contains line %d of %s", line, filename)
	}
	return prog, m, nil
}

func (r *runner) runSlice(c *cli.Context) error {
	if c.NArg() > 0 {
		return usageErrorf("unexpected argument %q", c.Args().First())
	}
	prog, m, err := r.loadMethod(c)
	if err != nil {
		return err
	}

	result := engine.GetRefactoring("extract").Run(&refactoring.Config{
		Program:  prog,
		Method:   m,
		Line:     c.Int("line"),
		Var:      c.String("var"),
		Analysis: r.cfg.Analysis,
		Logger:   r.logger,
	})
	if len(result.Opportunities)+len(result.Rejected) > 0 {
		if err := render(r.stdout, r.cfg.Output.Format, r.colored, sliceReport(prog, m, result)); err != nil {
			return analysisError(err)
		}
	}
	writeLog(r.stderr, result.Log, r.colored)
	if result.Log.ContainsErrors() {
		return &exitError{code: ExitAnalysis}
	}
	return nil
}

func (r *runner) debugCmd() *cli.Command {
	return &cli.Command{
		Name:         "debug",
		Usage:        "Print the analyses of a method (showcfg, showdefuse, showlive, showpdg, showslices, showmethods)",
		ArgsUsage:    "<command>",
		Flags:        append(append(commonFlags(), analysisFlags()...), selectionFlags(false)...),
		Before:       r.setup,
		OnUsageError: onUsageError,
		Action:       r.runDebug,
	}
}

func (r *runner) runDebug(c *cli.Context) error {
	prog, m, err := r.loadMethod(c)
	if err != nil {
		return err
	}
	var args []interface{}
	for _, a := range c.Args().Slice() {
		args = append(args, a)
	}
	result := engine.GetRefactoring("debug").Run(&refactoring.Config{
		Program:  prog,
		Method:   m,
		Line:     c.Int("line"),
		Analysis: r.cfg.Analysis,
		Args:     args,
		Logger:   r.logger,
	})
	if _, err := result.DebugOutput.WriteTo(r.stdout); err != nil {
		return analysisError(err)
	}
	writeLog(r.stderr, result.Log, r.colored)
	if result.Log.ContainsErrors() {
		return &exitError{code: ExitAnalysis}
	}
	return nil
}

func (r *runner) listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the available refactorings",
		Flags: append(commonFlags(), &cli.BoolFlag{
			Name:  "all",
			Usage: "Include hidden refactorings",
		}),
		Before:       r.setup,
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return usageErrorf("the list command does not accept arguments")
			}
			return render(r.stdout, r.cfg.Output.Format, r.colored, listReport(c.Bool("all")))
		},
	}
}

func (r *runner) configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration",
		Flags: append(append(commonFlags(), analysisFlags()...), &cli.StringFlag{
			Name:  "as",
			Value: "toml",
			Usage: "Configuration file format: toml, yaml, json",
		}),
		Before:       r.setup,
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			data, err := r.cfg.Marshal(c.String("as"))
			if err != nil {
				return usageErrorf("%v", err)
			}
			_, err = r.stdout.Write(data)
			return err
		},
	}
}

func (r *runner) serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Accept editor commands in JSON, one per line on standard input",
		Description: `With an argument, the argument is a JSON array of commands, which are run
in order; only the reply to the last command is printed.`,
		ArgsUsage:    "[<json array>]",
		Flags:        append(commonFlags(), analysisFlags()...),
		Before:       r.setup,
		OnUsageError: onUsageError,
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return usageErrorf("serve accepts at most one argument")
			}
			protocol.Run(c.Context, r.stdin, r.stdout, r.cfg, c.Args().Slice())
			return nil
		},
	}
}
