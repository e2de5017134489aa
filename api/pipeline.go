package api

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voxelsplace/model2glb/glb"
	"github.com/voxelsplace/model2glb/model"
	"github.com/voxelsplace/model2glb/notice"
	"github.com/voxelsplace/model2glb/storage"
)

const fnRunConversion = "RunConversion"

var (
	loggerMu sync.RWMutex
	logger   = discardLogger() // package default, replaceable with SetLogger
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetLogger changes the logger used by runs without WithLogger. Until it is
// called such runs log nothing.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		return
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func defaultLogger() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Stage is a step of a conversion run. Runs only move forward.
type Stage int

const (
	Idle Stage = iota
	ValidatingArgs
	Reading
	Converting
	Writing
	Done
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case ValidatingArgs:
		return "validating"
	case Reading:
		return "reading"
	case Converting:
		return "converting"
	case Writing:
		return "writing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Result is the outcome of a run. DidSucceed is true iff no error-tier
// notice was recorded.
type Result struct {
	DidSucceed bool
	Notices    []notice.Notice
	// FailedStage is the stage that recorded the error, Idle on success.
	FailedStage Stage
	OutputBytes int
}

type runConfig struct {
	entry    *logrus.Entry
	formats  *model.FormatTable
	resolver *model.Resolver
	observer func(*Result, time.Duration)
}

// RunOption configures RunConversion.
type RunOption func(*runConfig)

// WithLogger sets the logger notices are mirrored to.
func WithLogger(e *logrus.Entry) RunOption {
	return func(c *runConfig) { c.entry = e }
}

// WithFormats replaces the table of accepted input formats.
func WithFormats(t *model.FormatTable) RunOption {
	return func(c *runConfig) { c.formats = t }
}

// WithResolver fills absent options from the defaults of r instead of the
// built-in ones. model.NewResolver validates those defaults.
func WithResolver(r *model.Resolver) RunOption {
	return func(c *runConfig) { c.resolver = r }
}

// WithObserver registers fn to be called with every finished run and its
// duration.
func WithObserver(fn func(*Result, time.Duration)) RunOption {
	return func(c *runConfig) { c.observer = fn }
}

// RunConversion converts the model at inputPath into a GLB at outputPath.
//
// Malformed paths or options, and a nil conv, are returned as
// *model.ArgumentError before any I/O. Everything after that is reported in
// the result's notices: the error return is then always nil. A nil options
// map means defaults; a nil store means the local filesystem.
func RunConversion(ctx context.Context, inputPath, outputPath string, options model.RawOptions,
	conv Converter, store Storage, opts ...RunOption,
) (*Result, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	validator := model.NewPathValidator(cfg.formats)
	if err := validator.Validate(fnRunConversion, model.Output, outputPath); err != nil {
		return nil, err
	}
	if err := validator.Validate(fnRunConversion, model.Input, inputPath); err != nil {
		return nil, err
	}

	resolver := &model.Resolver{Func: fnRunConversion, Defaults: model.DefaultOptions()}
	if cfg.resolver != nil {
		resolver.Defaults = cfg.resolver.Defaults
	}
	if options == nil {
		options = model.RawOptions{}
	}
	resolved, err := resolver.Resolve(options)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, &model.ArgumentError{Func: fnRunConversion, Arg: "converter", Rule: model.RuleMissing, Msg: "must be set"}
	}
	if store == nil {
		store = storage.NewOS()
	}

	entry := cfg.entry
	if entry == nil {
		entry = logrus.NewEntry(defaultLogger())
	}
	entry = entry.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"input":  inputPath,
		"output": outputPath,
	})

	r := &run{
		in:    inputPath,
		out:   outputPath,
		conv:  conv,
		store: store,
		log:   notice.NewLog(notice.Tier(resolved.NoticeLevel), entry),
		entry: entry,
		stage: ValidatingArgs,
	}
	r.log.Recordf(notice.OptionsResolved, "noticeLevel=%d", resolved.NoticeLevel)
	r.log.Recordf(notice.ConversionStarted, "%s -> %s", inputPath, outputPath)

	start := time.Now()
	res := r.execute(ctx)
	if cfg.observer != nil {
		cfg.observer(res, time.Since(start))
	}
	return res, nil
}

// run is the state of one conversion.
type run struct {
	in, out string
	conv    Converter
	store   Storage
	log     *notice.Log
	entry   *logrus.Entry
	stage   Stage
	failed  Stage
	written int
}

func (r *run) enter(s Stage) {
	r.stage = s
	r.entry.WithField("stage", s.String()).Debug("stage entered")
}

func (r *run) fail(ev notice.Event, err error, path string) {
	r.failed = r.stage
	r.log.Recordf(ev, "%s: %v", path, err)
}

func (r *run) execute(ctx context.Context) *Result {
	if data, ok := r.read(ctx); ok {
		if out, ok := r.convert(ctx, data); ok {
			r.write(ctx, out)
		}
	}
	r.enter(Done)
	return &Result{
		DidSucceed:  !r.log.HasErrors(),
		Notices:     r.log.Notices(),
		FailedStage: r.failed,
		OutputBytes: r.written,
	}
}

func (r *run) read(ctx context.Context) ([]byte, bool) {
	r.enter(Reading)
	data, err := r.store.Fetch(ctx, r.in)
	if err != nil {
		r.fail(notice.ReadFailed, err, r.in)
		return nil, false
	}
	r.log.Recordf(notice.InputRead, "%d bytes", len(data))
	r.log.Recordf(notice.InputDigest, "%016x", xxhash.Sum64(data))
	if len(data) == 0 {
		r.log.Recordf(notice.InputEmpty, "%s", r.in)
	}
	return data, true
}

func (r *run) convert(ctx context.Context, data []byte) ([]byte, bool) {
	r.enter(Converting)
	out, err := r.conv.Convert(ctx, r.in, data)
	if err == nil && len(out) == 0 {
		err = errNoOutput
	}
	if err != nil {
		r.fail(notice.ConvertFailed, err, r.in)
		return nil, false
	}
	r.log.Recordf(notice.ModelConverted, "%d bytes", len(out))
	return out, true
}

func (r *run) write(ctx context.Context, out []byte) {
	r.enter(Writing)
	if sum, err := glb.Inspect(out); err != nil {
		r.log.Recordf(notice.OutputNotGLB2, "%v", err)
	} else {
		r.log.Recordf(notice.OutputSummary, "%s", sum)
	}
	if err := r.store.Store(ctx, r.out, out); err != nil {
		r.fail(notice.WriteFailed, err, r.out)
		return
	}
	r.written = len(out)
	r.log.Recordf(notice.OutputWritten, "%d bytes", len(out))
}
