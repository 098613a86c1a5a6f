package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/BarrensZeppelin/pta"
	"github.com/BarrensZeppelin/pta/monitor"
	"github.com/BarrensZeppelin/pta/pkgutil"
	"github.com/BarrensZeppelin/pta/ssair"
	"github.com/fatih/color"
	"github.com/goccy/go-graphviz"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa/ssautil"
)

func main() {
	app := cli.NewApp()
	app.Name = "pta"
	app.Usage = "context-sensitive points-to analysis and call graph construction for Go programs"
	app.ArgsUsage = "packages..."
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "load analysis options from YAML `file`"},
		cli.StringFlag{Name: "context", Usage: "context policy: insensitive, call-site or object"},
		cli.IntFlag{Name: "depth", Usage: "number of context elements kept by sensitive policies"},
		cli.StringFlag{Name: "dir", Usage: "alternative directory to run the go build tool in"},
		cli.BoolFlag{Name: "tests", Usage: "include test packages"},
		cli.BoolFlag{Name: "methods-as-roots", Usage: "analyse all methods of runtime types"},
		cli.StringFlag{Name: "dot", Usage: "write the call graph in DOT format to `file`"},
		cli.StringFlag{Name: "format", Usage: "also render the DOT file with graphviz (svg, png, ...)"},
		cli.StringFlag{Name: "cpuprofile", Usage: "write cpu profile to `file`"},
		cli.BoolFlag{Name: "verbose, v", Usage: "log debug output and list warnings"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func options(c *cli.Context) (pta.Options, error) {
	opts := pta.DefaultOptions()
	if path := c.String("config"); path != "" {
		var err error
		if opts, err = pta.LoadOptions(path); err != nil {
			return opts, err
		}
	}

	if c.IsSet("context") {
		opts.Context = c.String("context")
	}
	if c.IsSet("depth") {
		opts.Depth = c.Int("depth")
	}
	return opts, opts.Validate()
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("Specify a package query on the command line", 1)
	}

	logger := log.New()
	if c.Bool("verbose") {
		logger.SetLevel(log.DebugLevel)
	}

	opts, err := options(c)
	if err != nil {
		return err
	}

	if path := c.String("cpuprofile"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Error("Failed to close ", f.Name())
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	pkgs, err := pkgutil.LoadPackagesWithConfig(&packages.Config{
		Mode:  pkgutil.LoadMode,
		Tests: c.Bool("tests"),
		Dir:   c.String("dir"),
	}, c.Args()...)
	if err != nil {
		return fmt.Errorf("loading packages failed: %w", err)
	}

	logger.Infof("Loaded %d packages", len(pkgs))

	prog, _ := pkgutil.BuildSSA(pkgs, 0)

	mains := ssautil.MainPackages(prog.AllPackages())
	if len(mains) == 0 {
		return cli.NewExitError("No main packages found", 1)
	}

	logger.Infof("Built %d main packages", len(mains))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := ssair.NewProgram(prog)
	res, err := pta.Analyze(pta.Config{
		Program:     p,
		EntryPoints: p.EntryPoints(mains, c.Bool("methods-as-roots")),
		Options:     opts,
		Monitor:     monitor.WithContext(ctx, nil),
		Logger:      logger,
	})
	switch {
	case errors.Is(err, pta.ErrBuildCanceled):
		fmt.Println(color.YellowString("Analysis canceled, results are partial"))
	case err != nil:
		return err
	}

	summarize(c, res)

	if path := c.String("dot"); path != "" {
		return writeDOT(res, path, c.String("format"))
	}
	return nil
}

func summarize(c *cli.Context, res *pta.Result) {
	st := res.Stats
	fmt.Println("Reachable functions:", color.GreenString("%d", len(res.CallGraph.Methods())))
	fmt.Println("Call graph nodes:", color.GreenString("%d", res.CallGraph.NumNodes()),
		"contexts:", color.GreenString("%d", st.Contexts))
	fmt.Println("Pointer keys:", color.GreenString("%d", st.PointerKeys),
		"instance keys:", color.GreenString("%d", st.InstanceKeys))
	fmt.Println("Solver iterations:", color.BlueString("%d", st.Iterations),
		"in", color.BlueString(st.Duration.String()))

	colorize := color.GreenString
	if len(res.Warnings) > 0 {
		colorize = color.YellowString
	}
	fmt.Println("Warnings:", colorize("%d", len(res.Warnings)))
	if c.Bool("verbose") {
		for _, w := range res.Warnings {
			fmt.Println("  ", w)
		}
	}
}

func writeDOT(res *pta.Result, path, format string) error {
	var buf bytes.Buffer
	if err := res.CallGraph.WriteDOT(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Printf("Exported dot graph to %s\n", path)

	if format == "" {
		return nil
	}

	g := graphviz.New()
	defer g.Close()
	graph, err := graphviz.ParseBytes(buf.Bytes())
	if err != nil {
		return err
	}
	defer graph.Close()

	img := fmt.Sprintf("%s.%s", path, format)
	if err := g.RenderFilename(graph, graphviz.Format(format), img); err != nil {
		return err
	}
	fmt.Printf("Rendered call graph to %s\n", img)
	return nil
}
