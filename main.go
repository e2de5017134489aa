package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voxelsplace/model2glb/api"
	"github.com/voxelsplace/model2glb/config"
	"github.com/voxelsplace/model2glb/engine"
	"github.com/voxelsplace/model2glb/metrics"
	"github.com/voxelsplace/model2glb/model"
	"github.com/voxelsplace/model2glb/utils"
)

var version = "dev"

// errUsage asks run to print the usage on stderr.
var errUsage = errors.New("usage")

// errFailed marks a conversion that ran and failed; its notices already said
// why.
var errFailed = errors.New("conversion failed")

type cli struct {
	stdout, stderr io.Writer
	getenv         func(string) string
	// newConverter is replaced in tests.
	newConverter func(ctx context.Context, path string, log *logrus.Entry) api.Converter

	noticeLevel int
	enginePath  string
	root        string
	manifest    string
	jobs        int
	metricsFile string
	logLevel    string
	bundle      string
}

func main() {
	c := &cli{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv, newConverter: newLazyEngine}
	os.Exit(c.run(context.Background(), os.Args[1:]))
}

func (c *cli) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model2glb <inputPath> <outputPath>",
		Short: "Convert 3D model files to binary glTF 2.0 (.glb)",
		Long: `model2glb converts a 3D model (OBJ, FBX, STL, Collada, 3DS, PLY and more,
or a .zip bundle of a model with its materials and textures) into a GLB file.

Notices are printed as <tier>_<id>: <message>. Tiers are 1 debug, 2 info,
3 warning and 4 error; -n sets the lowest tier printed.

With --bundle the arguments are a model and its side files, which are zipped
into a bundle that can then be converted as one input.`,
		Example: `  model2glb chair.fbx chair.glb
  model2glb --bundle chair.zip chair.obj chair.mtl wood.png
  model2glb --manifest jobs.yaml -j 4`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.bundle != "" {
				if c.manifest != "" || len(args) == 0 {
					return errUsage
				}
				return c.runBundle(cmd, args)
			}
			if c.manifest != "" {
				if len(args) != 0 {
					return errUsage
				}
				return c.runManifest(cmd)
			}
			if len(args) != 2 {
				return errUsage
			}
			return c.runSingle(cmd, args[0], args[1])
		},
	}
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)

	f := cmd.Flags()
	f.IntVarP(&c.noticeLevel, "notice-level", "n", model.DefaultNoticeLevel, "lowest notice tier printed, 1 (debug) to 4 (errors only)")
	f.StringVar(&c.enginePath, "engine", "", "engine wasm module, plain or .zst (default $MODEL2GLB_ENGINE or the built-in module)")
	f.StringVar(&c.root, "root", "", "resolve all paths below this directory")
	f.StringVar(&c.manifest, "manifest", "", "run the conversions listed in a YAML manifest")
	f.IntVarP(&c.jobs, "jobs", "j", 1, "conversions run in parallel in manifest mode")
	f.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	f.StringVar(&c.logLevel, "log-level", "warn", "diagnostic log level on stderr")
	f.StringVar(&c.bundle, "bundle", "", "zip the given files into this .zip bundle instead of converting")
	return cmd
}

func (c *cli) run(ctx context.Context, args []string) int {
	cmd := c.command()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
	case errors.Is(err, errUsage):
		fmt.Fprint(c.stderr, cmd.UsageString())
	default:
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
	}
	return 1
}

// session is what one invocation sets up before converting.
type session struct {
	store   api.Storage
	conv    api.Converter
	opts    []api.RunOption
	formats *model.FormatTable
	rec     *metrics.Recorder
	log     *logrus.Logger
}

func (c *cli) open(cmd *cobra.Command) (*session, error) {
	log := logrus.New()
	log.SetOutput(c.stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return nil, errors.Wrap(err, "--log-level")
	}
	log.SetLevel(level)

	cfg, err := config.LoadFrom(c.getenv)
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStorage(cmd.Context(), c.root)
	if err != nil {
		return nil, err
	}
	enginePath := c.enginePath
	if enginePath == "" {
		enginePath = cfg.Engine
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}

	entry := logrus.NewEntry(log)
	s := &session{
		store:   store,
		conv:    c.newConverter(cmd.Context(), enginePath, entry),
		formats: cfg.Formats(),
		log:     log,
	}
	s.opts = []api.RunOption{api.WithFormats(s.formats), api.WithResolver(resolver)}
	if log.IsLevelEnabled(logrus.DebugLevel) {
		// notices already go to stdout; stderr only repeats them when debugging
		s.opts = append(s.opts, api.WithLogger(entry))
	}
	if c.metricsFile != "" {
		s.rec = metrics.NewRecorder()
		s.opts = append(s.opts, s.rec.RunOption())
	}
	return s, nil
}

func (s *session) close(ctx context.Context, metricsFile string) {
	if closer, ok := s.conv.(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(ctx); err != nil {
			s.log.WithError(err).Warn("closing engine")
		}
	}
	if s.rec != nil {
		if err := s.rec.WriteTextfile(metricsFile); err != nil {
			s.log.WithError(err).Error("writing metrics")
		}
	}
}

func (c *cli) options(cmd *cobra.Command) model.RawOptions {
	if !cmd.Flags().Changed("notice-level") {
		return nil
	}
	return model.RawOptions{model.KeyNoticeLevel: c.noticeLevel}
}

func (c *cli) runSingle(cmd *cobra.Command, inputPath, outputPath string) error {
	s, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer s.close(cmd.Context(), c.metricsFile)

	res, err := api.RunConversion(cmd.Context(), inputPath, outputPath, c.options(cmd), s.conv, s.store, s.opts...)
	if err != nil {
		return err
	}
	for _, n := range res.Notices {
		fmt.Fprintln(c.stdout, n.String())
	}
	if !res.DidSucceed {
		return errFailed
	}
	return nil
}

func (c *cli) runManifest(cmd *cobra.Command) error {
	s, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer s.close(cmd.Context(), c.metricsFile)

	m, err := utils.LoadManifest(c.manifest, s.formats)
	if err != nil {
		return err
	}
	opts := s.opts
	if raw := c.options(cmd); raw != nil {
		// -n sets the default level of jobs without their own options
		r, err := model.NewResolver(model.Options{NoticeLevel: c.noticeLevel})
		if err != nil {
			return err
		}
		opts = append(opts, api.WithResolver(r))
	}

	failed := 0
	for _, jr := range utils.RunManifest(cmd.Context(), m, c.jobs, s.conv, s.store, opts...) {
		fmt.Fprintf(c.stdout, "%s -> %s\n", jr.Job.Input, jr.Job.Output)
		if jr.Err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", jr.Err)
			failed++
			continue
		}
		for _, n := range jr.Result.Notices {
			fmt.Fprintln(c.stdout, n.String())
		}
		if !jr.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		s.log.WithField("failed", failed).WithField("jobs", len(m.Jobs)).Warn("manifest finished with failures")
		return errFailed
	}
	return nil
}

func (c *cli) runBundle(cmd *cobra.Command, files []string) error {
	if err := utils.CreateBundle(cmd.Context(), files, c.bundle); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s: %d files bundled\n", c.bundle, len(files))
	return nil
}

// lazyEngine compiles the engine module on the first conversion, so argument
// errors are reported without paying for it.
type lazyEngine struct {
	path string
	log  *logrus.Entry

	once sync.Once
	eng  *engine.Engine
	err  error
}

func newLazyEngine(_ context.Context, path string, log *logrus.Entry) api.Converter {
	return &lazyEngine{path: path, log: log}
}

func (l *lazyEngine) load(ctx context.Context) (*engine.Engine, error) {
	l.once.Do(func() {
		if l.path != "" {
			l.eng, l.err = engine.Load(ctx, l.path, engine.WithLogger(l.log))
			return
		}
		l.eng, l.err = engine.NewEmbedded(ctx, engine.WithLogger(l.log))
	})
	return l.eng, l.err
}

func (l *lazyEngine) Convert(ctx context.Context, filename string, data []byte) ([]byte, error) {
	eng, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return eng.Convert(ctx, filename, data)
}

func (l *lazyEngine) Close(ctx context.Context) error {
	if l.eng == nil {
		return nil
	}
	return l.eng.Close(ctx)
}
