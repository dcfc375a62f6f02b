package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/glyphic/descry/describe"
	"github.com/glyphic/descry/graph/rdfio"
)

const (
	exitOK = iota
	exitPartial
	exitIO
	exitConfig
)

func main() {
	app := &cli.App{
		Name:  "descry",
		Usage: "describe files, archives and containers as an RDF graph",
		Commands: []*cli.Command{
			inspectCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		if code, ok := err.(cli.ExitCoder); ok {
			os.Exit(code.ExitCode())
		}
		logrus.WithError(err).Error("run failed")
		os.Exit(exitIO)
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "inspect paths and emit their description",
		ArgsUsage: "<paths...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: ".descry.yaml", Usage: "configuration file"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "output syntax: turtle, ntriples, rdfxml, json-ld, nq"},
			&cli.StringSliceFlag{Name: "algorithm", Aliases: []string{"a"}, Usage: "hash algorithms (md5, sha1, sha256, blake3, xxh64, highway64)"},
			&cli.StringSliceFlag{Name: "include", Usage: "include glob (doublestar)"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "exclude glob (doublestar)"},
			&cli.IntFlag{Name: "max-depth", Usage: "container descent limit"},
			&cli.IntFlag{Name: "burst", Usage: "parallelism for burst-safe containers"},
			&cli.StringFlag{Name: "query", Usage: "ASK query deciding sub-artifact materialization"},
			&cli.StringFlag{Name: "extract", Usage: "directory for materialized sub-artifacts"},
			&cli.StringFlag{Name: "listen", Usage: "expose /metrics on this address while running"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging with caller file and line (no stack traces)"},
		},
		Action: runInspect,
	}
}

func runInspect(c *cli.Context) error {
	if c.Bool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetReportCaller(true)
	}
	cfg, err := describe.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	applyOverrides(cfg, c)
	if c.Args().Len() > 0 {
		cfg.Roots = c.Args().Slice()
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	out := os.Stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return cli.Exit(err.Error(), exitIO)
		}
		defer f.Close()
		out = f
	}
	sink, err := rdfio.New(out, rdfio.Syntax(cfg.Format))
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}

	opts := []describe.Option{}
	if addr := c.String("listen"); addr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, describe.WithMetrics(describe.NewMetrics(reg)))
		go serveMetrics(addr, reg)
	}

	d, err := describe.New(cfg, sink, opts...)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	summary, err := d.Run(c.Context, cfg.Roots...)
	if err != nil {
		return cli.Exit(err.Error(), exitIO)
	}
	if summary.Failures > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d entities failed", summary.Failures, summary.Entities), exitPartial)
	}
	return nil
}

func applyOverrides(cfg *describe.Config, c *cli.Context) {
	if v := c.String("output"); v != "" {
		cfg.Output = v
	}
	if v := c.String("format"); v != "" {
		cfg.Format = v
	}
	if v := c.StringSlice("algorithm"); len(v) > 0 {
		cfg.Algorithms = v
	}
	if v := c.StringSlice("include"); len(v) > 0 {
		cfg.Include = v
	}
	if v := c.StringSlice("exclude"); len(v) > 0 {
		cfg.Exclude = append(cfg.Exclude, v...)
	}
	if c.IsSet("max-depth") {
		cfg.MaxDepth = c.Int("max-depth")
	}
	if c.IsSet("burst") {
		cfg.Burst = c.Int("burst")
	}
	if v := c.String("query"); v != "" {
		cfg.Query = v
	}
	if v := c.String("extract"); v != "" {
		cfg.Extract = v
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Warn("metrics listener stopped")
	}
}
