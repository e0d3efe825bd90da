package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ZenLiuCN/dynlib"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "failure %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "host"
	app.Usage = "load a shared library and call its entry points"
	app.Description = "host loads a module exporting GetName() and Add(int, int), calls both and unloads it"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, EnvVars: []string{"DYNLIB_DEBUG"}},
		&cli.BoolFlag{Name: "lazy", EnvVars: []string{"DYNLIB_LAZY"}, Usage: "resolve functions on first call"},
		&cli.BoolFlag{Name: "global", EnvVars: []string{"DYNLIB_GLOBAL"}, Usage: "share the module symbols with modules loaded later"},
	}
	app.Before = setup
	app.After = func(*cli.Context) error {
		_ = dynlib.Logger().Sync()
		return nil
	}
	app.Action = run
	app.Flags = append(app.Flags, runFlags()...)
	app.Args = true
	app.ArgsUsage = "<module>"
	app.Commands = []*cli.Command{
		{Name: "run", Action: run, Usage: "load a module, call its entry points and unload it", Flags: runFlags(), Args: true, ArgsUsage: "<module>"},
		{Name: "probe", Action: probe, Usage: "check that modules load and unload", Args: true, ArgsUsage: "<module>..."},
		{Name: "exports", Action: exports, Usage: "list the functions a library exports", Args: true, ArgsUsage: "<library>..."},
		{Name: "build",
			Action: build,
			Usage:  "build a C source or Go package into a shared library",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "library file to write"},
			},
			Args:      true,
			ArgsUsage: "<source>",
		},
	}
	return app
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Value: "GetName", Usage: "entry point returning the module name"},
		&cli.StringFlag{Name: "add", Value: "Add", Usage: "entry point adding two ints"},
		&cli.IntFlag{Name: "a", Value: 10},
		&cli.IntFlag{Name: "b", Value: 25},
		&cli.DurationFlag{Name: "timeout", Usage: "give up waiting for the load after this long"},
	}
}

func setup(ctx *cli.Context) (err error) {
	var l *zap.Logger
	if ctx.Bool("debug") {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		l, err = cfg.Build()
	}
	if err != nil {
		return err
	}
	dynlib.SetLogger(l)
	return nil
}

func loadOptions(ctx *cli.Context) (opts []dynlib.Option) {
	if ctx.Bool("lazy") {
		opts = append(opts, dynlib.WithLazy())
	}
	if ctx.Bool("global") {
		opts = append(opts, dynlib.WithGlobal())
	}
	return
}

func run(ctx *cli.Context) (err error) {
	path := ctx.Args().First()
	if path == "" {
		return fmt.Errorf("missing module path")
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "Attempting to load module: %s\n", path)
	c := context.Background()
	if t := ctx.Duration("timeout"); t > 0 {
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(c, t)
		defer cancel()
	}
	m, err := dynlib.LoadContext(c, path, loadOptions(ctx)...)
	if err != nil {
		return err
	}
	defer func() {
		if e := m.Release(); e != nil {
			dynlib.Logger().Warn("could not unload module", zap.Error(e))
			if err == nil && !errors.Is(e, dynlib.ErrUnload) {
				err = e
			}
			return
		}
		fmt.Fprintln(w, "Module unloaded.")
	}()
	fmt.Fprintln(w, "Module loaded.")
	name, err := dynlib.Resolve[func() string](m, ctx.String("name"))
	if err != nil {
		return err
	}
	add, err := dynlib.Resolve[func(a, b int32) int32](m, ctx.String("add"))
	if err != nil {
		return err
	}
	a, b := int32(ctx.Int("a")), int32(ctx.Int("b"))
	fmt.Fprintf(w, "Module says: Hello from '%s'!\n", name())
	fmt.Fprintf(w, "Module performed %d + %d = %d\n", a, b, add(a, b))
	return nil
}

func probe(ctx *cli.Context) error {
	paths := ctx.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("missing module paths")
	}
	var failed []string
	for _, p := range paths {
		m, err := dynlib.Load(p, loadOptions(ctx)...)
		if err == nil {
			err = m.Release()
		}
		if err != nil {
			failed = append(failed, p)
			fmt.Fprintf(ctx.App.Writer, "fail\t%s\t%s\n", p, err)
			continue
		}
		fmt.Fprintf(ctx.App.Writer, "ok\t%s\n", p)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d modules failed: %s", len(failed), len(paths), strings.Join(failed, ", "))
	}
	return nil
}

func exports(ctx *cli.Context) error {
	for _, p := range ctx.Args().Slice() {
		names, err := dynlib.Exports(p)
		if err != nil {
			return err
		}
		if ctx.NArg() > 1 {
			fmt.Fprintf(ctx.App.Writer, "%s:\n", p)
		}
		for _, n := range names {
			fmt.Fprintln(ctx.App.Writer, n)
		}
	}
	return nil
}

func build(ctx *cli.Context) error {
	src := ctx.Args().First()
	if src == "" {
		return fmt.Errorf("missing source")
	}
	return dynlib.Build(ctx.Bool("debug"), src, ctx.String("out"))
}
