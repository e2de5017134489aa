// Package engine runs the assimp WebAssembly build that does the actual model
// conversion. An Engine is a caller-owned handle: create it once, share it,
// and Close it when done. Each Convert runs in its own module instance, so an
// Engine may be used from several goroutines.
package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// ExportFormat is the assimp exporter id for binary glTF 2.0.
const ExportFormat = "glb2"

// ErrNoOutput is the message of conversions that finish without output files.
var ErrNoOutput = errors.New("conversion produced no output")

// ConversionError is returned when the engine cannot produce output. Code and
// Message come from the engine and are not interpreted.
type ConversionError struct {
	Code    int32
	Message string
}

func (e *ConversionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine: conversion failed with code %d", e.Code)
	}
	return fmt.Sprintf("engine: conversion failed with code %d: %s", e.Code, e.Message)
}

// Engine is a compiled engine module.
type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	digest   string
	format   string
	log      *logrus.Entry
}

type options struct {
	logger     *logrus.Entry
	format     string
	limitPages uint32
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger for engine diagnostics and captured engine output.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// WithExportFormat overrides the assimp export format id.
func WithExportFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// WithMemoryLimitPages caps each instance's memory, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.limitPages = pages }
}

// Load reads the module at path (plain or zstd compressed) and compiles it.
func Load(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	wasm, err := ReadModule(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, wasm, opts...)
}

// New compiles wasm and checks that it exports the engine ABI.
func New(ctx context.Context, wasm []byte, opts ...Option) (*Engine, error) {
	o := options{format: ExportFormat}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logrus.NewEntry(logrus.StandardLogger())
	}

	wasm, err := DecodeModule(wasm)
	if err != nil {
		return nil, err
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if o.limitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(o.limitPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, cfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(err, "engine: instantiate wasi")
	}
	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.Wrap(err, "engine: compile module")
	}
	exported := compiled.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exported[name]; !ok {
			_ = r.Close(ctx)
			return nil, errors.Errorf("engine: module does not export %q", name)
		}
	}

	e := &Engine{
		runtime:  r,
		compiled: compiled,
		digest:   Digest(wasm),
		format:   o.format,
		log:      o.logger.WithField("component", "engine"),
	}
	e.log.WithFields(logrus.Fields{
		"digest": e.digest,
		"bytes":  len(wasm),
	}).Debug("engine module compiled")
	return e, nil
}

// Digest identifies the loaded module build.
func (e *Engine) Digest() string { return e.digest }

// Close releases the runtime and everything compiled in it.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.runtime.Close(ctx); err != nil {
		return errors.Wrap(err, "engine: close runtime")
	}
	return nil
}

// Convert turns the model in data into GLB bytes. filename supplies the
// format hint; a .zip bundle is unpacked and all of its files are passed on.
func (e *Engine) Convert(ctx context.Context, filename string, data []byte) ([]byte, error) {
	files, err := inputFiles(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize").
		WithStdout(&stdout).
		WithStderr(&stderr)
	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "engine: instantiate module")
	}
	defer func() {
		_ = mod.Close(ctx)
		e.logOutput(filename, &stdout, &stderr)
	}()

	in := &instance{mod: mod}
	for _, f := range files {
		status, err := in.addFile(ctx, f)
		if err != nil {
			return nil, trapError(ctx, err)
		}
		if status != 0 {
			return nil, &ConversionError{Code: int32(status), Message: in.errorMessage(ctx)}
		}
	}

	status, err := in.convert(ctx, e.format)
	if err != nil {
		return nil, trapError(ctx, err)
	}
	if status != 0 {
		return nil, &ConversionError{Code: int32(status), Message: in.errorMessage(ctx)}
	}

	outputs, err := in.results(ctx)
	if err != nil {
		return nil, trapError(ctx, err)
	}
	if len(outputs) == 0 {
		return nil, &ConversionError{Code: -1, Message: ErrNoOutput.Error()}
	}
	if len(outputs) > 1 {
		e.log.WithField("files", len(outputs)).Warn("engine returned several files, using the first")
	}
	return outputs[0], nil
}

func (e *Engine) logOutput(filename string, stdout, stderr *bytes.Buffer) {
	if stdout.Len() == 0 && stderr.Len() == 0 {
		return
	}
	e.log.WithFields(logrus.Fields{
		"file":   filename,
		"stdout": stdout.String(),
		"stderr": stderr.String(),
	}).Debug("engine output")
}

// trapError maps a module exit or trap to a ConversionError. An exit caused by
// ctx being done is reported as the context error instead.
func trapError(ctx context.Context, err error) error {
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		code := exit.ExitCode()
		if (code == sys.ExitCodeContextCanceled || code == sys.ExitCodeDeadlineExceeded) && ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "engine: conversion interrupted")
		}
		return &ConversionError{Code: int32(code), Message: "engine exited"}
	}
	return &ConversionError{Code: -2, Message: err.Error()}
}
