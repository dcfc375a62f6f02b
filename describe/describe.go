// Package describe assembles the extraction pipeline and drives it over
// file-system roots: configuration, format and analyzer registration, root
// walking, and the run summary.
package describe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	aurl "github.com/viant/afs/url"

	"github.com/glyphic/descry/analysis"
	"github.com/glyphic/descry/digest"
	"github.com/glyphic/descry/entity"
	"github.com/glyphic/descry/format"
	"github.com/glyphic/descry/format/archive"
	"github.com/glyphic/descry/format/image"
	"github.com/glyphic/descry/graph"
)

// Summary reports one run.
type Summary struct {
	Entities   int64
	Failures   int64
	Containers int64
	Duration   time.Duration
}

// Describer walks roots and feeds every selected file through the pipeline.
type Describer struct {
	fs         afs.Service
	cfg        *Config
	factory    *graph.Factory
	dispatcher *analysis.Dispatcher
	algorithms []digest.Algorithm
	counters   *counters
	log        *logrus.Entry
}

// Option tunes a Describer during construction.
type Option func(*Describer)

// WithMetrics attaches Prometheus counters to the run.
func WithMetrics(m *Metrics) Option {
	return func(d *Describer) {
		d.counters.metrics = m
	}
}

// WithFS replaces the file service, e.g. with an in-memory one in tests.
func WithFS(fs afs.Service) Option {
	return func(d *Describer) {
		d.fs = fs
	}
}

// New assembles a Describer emitting to sink. Configuration problems are
// fatal here, before any entity is processed.
func New(cfg *Config, sink graph.Sink, opts ...Option) (*Describer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	algos, err := digest.ByIDs(cfg.Algorithms)
	if err != nil {
		return nil, err
	}
	if len(algos) == 0 {
		algos = digest.Default()
	}

	d := &Describer{
		fs:         afs.New(),
		cfg:        cfg,
		algorithms: algos,
		counters:   &counters{},
		log:        logrus.WithField("component", "describe"),
	}
	for _, opt := range opts {
		opt(d)
	}

	var materializer analysis.Materializer
	if cfg.Query != "" {
		text, err := os.ReadFile(cfg.Query)
		if err != nil {
			return nil, fmt.Errorf("describe: read query %s: %w", cfg.Query, err)
		}
		query, err := graph.ParseQuery(string(text))
		if err != nil {
			return nil, err
		}
		if cfg.Extract != "" {
			tee := graph.NewMemory()
			sink = &teeSink{out: sink, mem: tee}
			materializer = newExtractor(query, cfg.Extract, tee)
		}
	}
	d.factory = graph.NewFactory(sink)

	data := analysis.NewDataAnalyzer(Registry(), algos, d.counters)
	data.Materializer = materializer
	if cfg.ValueLimit > 0 {
		data.ValueLimit = cfg.ValueLimit
	}

	disp := analysis.NewDispatcher(d.counters)
	disp.Register((*entity.FileNode)(nil), analysis.FileAnalyzer{})
	disp.Register((*entity.DirectoryNode)(nil), analysis.DirectoryAnalyzer{})
	disp.Register((*entity.DataObject)(nil), data)
	disp.Register((*entity.FormatObject)(nil), analysis.FormatAnalyzer{})
	disp.Register((*format.Document)(nil), analysis.XMLAnalyzer{})
	disp.Register((*image.Metadata)(nil), analysis.ImageAnalyzer{})
	disp.RegisterInterface((*format.Container)(nil), analysis.NewContainerEngine(d.counters))
	d.dispatcher = disp
	return d, nil
}

// Registry builds the default format set: containers, images, XML with its
// vocabulary handlers, and the plain-text catch-all.
func Registry() *format.Registry {
	return format.NewRegistry(
		archive.Zip{},
		archive.Tar{},
		archive.Gzip{},
		image.PNG{},
		&format.XML{Handlers: []format.XMLHandler{
			format.SVGHandler{},
			format.XHTMLHandler{},
		}},
		format.Text{},
	)
}

// Run inspects every root (files directly, directories walked), emits the
// graph and returns the summary. Per-entity failures are contained; the
// returned error reports I/O-level problems only.
func (d *Describer) Run(ctx context.Context, roots ...string) (*Summary, error) {
	start := time.Now()
	if len(roots) == 0 {
		roots = d.cfg.Roots
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("describe: no input roots")
	}
	var ioErr error
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("describe: %w", err)
		}
		if info.IsDir() {
			if err := d.walk(ctx, root); err != nil {
				ioErr = err
			}
			continue
		}
		d.processFile(ctx, root, filepath.Base(root), info)
	}
	if err := d.factory.End(); err != nil && ioErr == nil {
		ioErr = err
	}
	summary := &Summary{
		Entities:   d.counters.entities.Load(),
		Failures:   d.counters.failures.Load(),
		Containers: d.counters.containers.Load(),
		Duration:   time.Since(start),
	}
	d.log.WithFields(logrus.Fields{
		"entities":   summary.Entities,
		"failures":   summary.Failures,
		"containers": summary.Containers,
		"duration":   summary.Duration,
	}).Info("run complete")
	return summary, ioErr
}

func (d *Describer) walk(ctx context.Context, root string) error {
	var visitor storage.OnVisit = func(ctx context.Context, base, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if info.IsDir() {
			return true, nil
		}
		rel := path.Join(parent, info.Name())
		if !d.cfg.selects(rel) {
			return true, nil
		}
		d.processFile(ctx, aurl.Join(base, rel), rel, info)
		return true, nil
	}
	return d.fs.Walk(ctx, root, visitor)
}

// processFile runs one file through the pipeline; failures are contained
// and counted.
func (d *Describer) processFile(ctx context.Context, fileURL, rel string, info os.FileInfo) {
	fn := &entity.FileNode{
		Name:     info.Name(),
		Path:     fileURL,
		Modified: info.ModTime(),
		Kind:     entity.KindRegular,
		Key:      entity.Key{Reference: "fs", Data: fileURL},
		Data: &entity.DataObject{
			Length: info.Size(),
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return d.fs.OpenURL(ctx, fileURL)
			},
		},
	}
	parent := path.Dir(rel)
	if parent == "." {
		parent = ""
	}
	actx := analysis.Context{
		Ctx:      ctx,
		Factory:  d.factory,
		Match:    &format.MatchContext{Path: parent, Namespaces: map[string]string{}},
		MaxDepth: d.cfg.MaxDepth,
		Burst:    d.cfg.Burst,
		Keys:     analysis.NewKeyStack(),
	}
	if _, err := d.dispatcher.Analyze(actx, fn); err != nil {
		d.counters.EntityFailed("file")
		d.log.WithField("path", rel).WithError(err).Warn("file analysis failed")
	}
}

// counters aggregates the run summary and forwards to Prometheus when
// metrics are attached.
type counters struct {
	entities   atomic.Int64
	failures   atomic.Int64
	containers atomic.Int64
	metrics    *Metrics
}

func (c *counters) EntityProcessed() {
	c.entities.Add(1)
	c.metrics.EntityProcessed()
}

func (c *counters) EntityFailed(stage string) {
	c.failures.Add(1)
	c.metrics.EntityFailed(stage)
}

func (c *counters) ContainerDescended() {
	c.containers.Add(1)
	c.metrics.ContainerDescended()
}

func (c *counters) BytesHashed(n int64) {
	c.metrics.BytesHashed(n)
}
