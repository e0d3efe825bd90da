package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZenLiuCN/dynlib"
	"github.com/ZenLiuCN/dynlib/object"
	"github.com/ZenLiuCN/fn"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := cli.NewApp()
	app.Usage = "object module compiler"
	app.Name = "compile"
	app.Description = "compile go sources into object files which package object links at runtime"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, EnvVars: []string{"DYNLIB_DEBUG"}},
		&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Value: "main", Usage: "package path of the sources"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "object file to write, <pkg base>.o by default"},
	}
	app.Before = func(ctx *cli.Context) error {
		if ctx.Bool("debug") {
			dynlib.SetLogger(fn.Panic1(zap.NewDevelopment()))
		}
		return nil
	}
	app.Action = compile
	app.Args = true
	app.Commands = []*cli.Command{
		{Name: "prepare", Action: prepare, Usage: "copy internals of go sdk"},
		{Name: "clean", Action: clean, Usage: "remove copied internals of go sdk"},
		{Name: "imports",
			Action: imports,
			Usage:  "display imports of object files",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path or default main"},
			},
			Args: true,
		},
		{Name: "linkable", Action: linkable, Usage: "display imports of serialized linker files", Args: true},
		{Name: "symbols",
			Action: symbols,
			Usage:  "display symbols defined by object files",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package path or default main"},
			},
			Args: true,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "failure %s\n", err)
		os.Exit(1)
	}
}

func compile(ctx *cli.Context) error {
	src := ctx.Args().Slice()
	if len(src) == 0 {
		return fmt.Errorf("missing target sources list")
	}
	pkg := ctx.String("pkg")
	out := ctx.String("out")
	if out == "" {
		out = filepath.Base(pkg) + ".o"
	}
	return object.Compile(ctx.Bool("debug"), pkg, out, src)
}

func imports(ctx *cli.Context) error {
	for _, s := range ctx.Args().Slice() {
		v, err := object.ObjectImports(s, ctx.String("pkg"))
		if err != nil {
			return err
		}
		fmt.Fprint(ctx.App.Writer, v.String())
	}
	return nil
}

func linkable(ctx *cli.Context) error {
	for _, s := range ctx.Args().Slice() {
		f, err := os.Open(s)
		if err != nil {
			return err
		}
		v, err := object.LinkerImports(f)
		fn.IgnoreClose(f)()
		if err != nil {
			return err
		}
		fmt.Fprint(ctx.App.Writer, v.String())
	}
	return nil
}

func symbols(ctx *cli.Context) error {
	for _, s := range ctx.Args().Slice() {
		names, err := object.Inspect(s, ctx.String("pkg"))
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, strings.Join(names, "\n"))
	}
	return nil
}

func prepare(ctx *cli.Context) error {
	done, err := object.PrepareSDK()
	if err == nil && !done {
		fmt.Fprintln(ctx.App.Writer, "go sdk already prepared")
	}
	return err
}

func clean(ctx *cli.Context) error {
	done, err := object.CleanSDK()
	if err == nil && !done {
		fmt.Fprintln(ctx.App.Writer, "nothing to clean")
	}
	return err
}
