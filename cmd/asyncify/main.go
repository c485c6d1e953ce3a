package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/electronicarts/ea-async/asyncify"
	"github.com/electronicarts/ea-async/bytecode"
	"github.com/electronicarts/ea-async/vm"
)

// app holds the state shared by every command.
type app struct {
	cfg    Config
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	if err := a.cli().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) cli() *cli.App {
	app := cli.NewApp()
	app.Name = "asyncify"
	app.Usage = "rewrite await calls in bytecode units into state machines"
	app.Writer = a.stdout
	app.ErrWriter = a.stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "project file (default: nearest " + ConfigFileName + ")",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "development logging at debug level",
		},
		cli.BoolFlag{
			Name:  "no-color",
			Usage: "hide colors in diagnostics",
		},
	}
	app.Before = a.setup

	transformFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "d",
			Usage: "output directory (default: rewrite in place)",
		},
		cli.StringFlag{
			Name:  "report",
			Usage: "write a JSON report of the batch to this file",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "number of units transformed in parallel",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "development logging at debug level",
		},
	}
	classpathFlag := cli.StringSliceFlag{
		Name:  "cp, classpath",
		Usage: "unit file or directory declaring classes the inputs use (repeatable)",
	}
	viewFlags := []cli.Flag{
		cli.BoolFlag{
			Name:  "transform, t",
			Usage: "transform the unit first",
		},
		classpathFlag,
	}

	app.Commands = []cli.Command{
		{
			Name:      "transform",
			Usage:     "Transform units and directories of units",
			ArgsUsage: "<file|dir>...",
			Flags:     append(transformFlags, classpathFlag),
			Action:    func(c *cli.Context) error { return a.transform(c, false) },
		},
		{
			Name:      "check",
			Aliases:   []string{"c"},
			Usage:     "Report await misuse without writing anything",
			ArgsUsage: "<file|dir>...",
			Flags:     []cli.Flag{transformFlags[3], classpathFlag},
			Action:    func(c *cli.Context) error { return a.transform(c, true) },
		},
		{
			Name:      "dis",
			Usage:     "Disassemble a unit",
			ArgsUsage: "<file> [function]",
			Flags:     viewFlags,
			Action:    a.disassemble,
		},
		{
			Name:      "run",
			Aliases:   []string{"r"},
			Usage:     "Call a function of a unit in the vm",
			ArgsUsage: "<file> <function> [args...]",
			Flags: append(viewFlags, cli.DurationFlag{
				Name:  "timeout",
				Value: 10 * time.Second,
				Usage: "how long to wait for a pending result",
			}),
			Action: a.run,
		},
		{
			Name:      "browse",
			Aliases:   []string{"i"},
			Usage:     "Browse and run the functions of a unit interactively",
			ArgsUsage: "<file>",
			Flags:     []cli.Flag{classpathFlag},
			Action:    a.browse,
		},
	}

	app.Action = func(c *cli.Context) error {
		return cli.ShowAppHelp(c)
	}
	return app
}

// setup loads the project file and builds the logger.
func (a *app) setup(c *cli.Context) error {
	path := c.GlobalString("config")
	if path == "" {
		path = FindConfigFile(".")
	}
	if path != "" {
		cfg, err := LoadConfig(path)
		if err != nil {
			return err
		}
		a.cfg = *cfg
	}

	if c.GlobalBool("no-color") {
		color.NoColor = true
	} else if f, ok := a.stderr.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		color.NoColor = true
	}
	return nil
}

func (a *app) initLogger(verbose bool) error {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.logger = logger
	asyncify.SetLogger(logger)
	vm.SetLogger(logger)
	return nil
}

func (a *app) transform(c *cli.Context, dryRun bool) error {
	if c.NArg() == 0 {
		return cli.ShowCommandHelp(c, c.Command.Name)
	}

	cfg := a.cfg.Transform
	if c.IsSet("d") {
		cfg.Output = c.String("d")
	}
	if c.IsSet("report") {
		cfg.Report = c.String("report")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	cfg.Verbose = cfg.Verbose || c.Bool("verbose") || c.GlobalBool("verbose")
	cfg.Classpath = classpathOf(c, cfg)

	if err := a.initLogger(cfg.Verbose); err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	inputs, err := collectInputs(c.Args())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	loader, err := loadClasspath(cfg.Classpath, inputPaths(inputs)...)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("classpath: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := &batch{cfg: cfg, logger: a.logger, stderr: a.stderr, loader: loader, dryRun: dryRun}
	report := b.run(ctx, inputs)
	b.summary(a.stdout, report)

	if cfg.Report != "" && !dryRun {
		if err := WriteReport(cfg.Report, report); err != nil {
			return cli.NewExitError(fmt.Sprintf("write report: %v", err), 1)
		}
	}
	if err := report.Err(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	if dryRun {
		for _, f := range report.Files {
			if len(f.Diagnostics) > 0 {
				return cli.NewExitError("await misuse found", 1)
			}
		}
	}
	return nil
}

// classpathOf returns the configured classpath extended by -cp flags.
func classpathOf(c *cli.Context, cfg TransformConfig) []string {
	cp := append([]string(nil), cfg.Classpath...)
	return append(cp, c.StringSlice("cp")...)
}

// load reads the unit named by the first argument, transforming it when
// the -transform flag is set. The resolver covers the unit and the
// classpath.
func (a *app) load(c *cli.Context) ([]byte, bytecode.ClassResolver, error) {
	if c.NArg() == 0 {
		return nil, nil, fmt.Errorf("missing unit file")
	}
	if err := a.initLogger(a.cfg.Transform.Verbose || c.GlobalBool("verbose")); err != nil {
		return nil, nil, err
	}
	path := c.Args().First()
	data, err := readUnit(path)
	if err != nil {
		return nil, nil, err
	}
	loader, err := loadClasspath(classpathOf(c, a.cfg.Transform), path)
	if err != nil {
		return nil, nil, fmt.Errorf("classpath: %w", err)
	}
	if !c.Bool("transform") {
		return data, loader, nil
	}
	out, err := transformed(data, a.cfg.Transform, loader, func(msg string) {
		diagColor.Fprint(a.stderr, "error")
		fmt.Fprintf(a.stderr, " %s\n", msg)
	})
	return out, loader, err
}

func (a *app) disassemble(c *cli.Context) error {
	data, _, err := a.load(c)
	if err != nil {
		return err
	}
	u, err := bytecode.ParseUnit(data)
	if err != nil {
		return err
	}

	name := c.Args().Get(1)
	if name == "" {
		return bytecode.Disassemble(a.stdout, u)
	}
	var buf bytes.Buffer
	for _, n := range []string{name, name + bytecode.ContinuationSuffix} {
		if idx := u.FindFunction(n); idx >= 0 {
			if err := bytecode.DisassembleFunction(&buf, u, idx); err != nil {
				return err
			}
		}
	}
	if buf.Len() == 0 {
		return fmt.Errorf("function %q not found", name)
	}
	_, err = buf.WriteTo(a.stdout)
	return err
}

func (a *app) run(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowCommandHelp(c, c.Command.Name)
	}
	data, loader, err := a.load(c)
	if err != nil {
		return err
	}
	machine, err := vm.Load(data, vm.WithClassResolver(loader))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := c.Args()
	res, err := callFunction(ctx, machine, args.Get(1), args[2:], c.Duration("timeout"))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Fprintln(a.stdout, res)
	return nil
}

func (a *app) browse(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, c.Command.Name)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("browse needs a terminal")
	}
	// Logging would draw over the UI.
	asyncify.SetLogger(zap.NewNop())
	vm.SetLogger(zap.NewNop())
	cfg := a.cfg.Transform
	cfg.Classpath = classpathOf(c, cfg)
	return runInteractive(c.Args().First(), cfg)
}
