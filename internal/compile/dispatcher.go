package compile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/checksum"
	"github.com/starford/incipit/internal/models"
	"github.com/starford/incipit/internal/storage"
)

// StandaloneInput is the file name a standalone document is compiled as.
const StandaloneInput = "document.tex"

// DefaultOutputDir is the build directory, relative to the project root.
const DefaultOutputDir = "build"

// Hook receives compile records. OnStart hooks run on the caller's goroutine
// once a slot is acquired; OnFinish hooks run on the compile goroutine.
type Hook func(models.CompileRecord)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMaxParallel bounds how many compiles may run at once.
func WithMaxParallel(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxParallel = n
		}
	}
}

// WithOutputDir sets the build directory (slash path relative to the project root).
func WithOutputDir(dir string) Option {
	return func(d *Dispatcher) {
		if dir != "" {
			d.outDir = path.Clean(filepath.ToSlash(dir))
		}
	}
}

// OnStart registers a hook called when a compile begins.
func OnStart(h Hook) Option {
	return func(d *Dispatcher) {
		d.onStart = append(d.onStart, h)
	}
}

// OnFinish registers a hook called with the outcome of every compile.
func OnFinish(h Hook) Option {
	return func(d *Dispatcher) {
		d.onFinish = append(d.onFinish, h)
	}
}

// Dispatcher prepares inputs, runs the engine off the caller's goroutine,
// and reads back the produced PDF.
type Dispatcher struct {
	engine      Engine
	outDir      string
	maxParallel int
	sem         *semaphore.Weighted
	onStart     []Hook
	onFinish    []Hook
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher around engine.
func NewDispatcher(engine Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:      engine,
		outDir:      DefaultOutputDir,
		maxParallel: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sem = semaphore.NewWeighted(int64(d.maxParallel))
	return d
}

// Engine returns the engine compiles are dispatched to.
func (d *Dispatcher) Engine() Engine {
	return d.engine
}

// OutputDir returns the build directory relative to a project root.
func (d *Dispatcher) OutputDir() string {
	return d.outDir
}

// CompileStandalone compiles a single in-memory document with no auxiliary
// files and returns the PDF bytes.
func (d *Dispatcher) CompileStandalone(ctx context.Context, source string) ([]byte, error) {
	rec := models.CompileRecord{Mode: models.ModeStandalone, File: StandaloneInput}
	return d.dispatch(ctx, rec, func() ([]byte, error) {
		return d.standalone(source)
	})
}

// CompileProject writes source to file inside the project at root, compiles
// it with the project directory as the engine's working directory, and
// returns the PDF bytes. The file stays written even if compilation fails.
func (d *Dispatcher) CompileProject(ctx context.Context, root, file, source string) ([]byte, error) {
	if file == "" {
		return nil, fmt.Errorf("%w: file path is required", apperr.ErrInvalidInput)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	input, err := InputPath(store, file)
	if err != nil {
		return nil, err
	}

	rec := models.CompileRecord{Mode: models.ModeProject, Project: store.Root(), File: input}
	return d.dispatch(ctx, rec, func() ([]byte, error) {
		return d.project(store, input, source)
	})
}

func (d *Dispatcher) standalone(source string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "incipit-standalone-*")
	if err != nil {
		return nil, fmt.Errorf("compile: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	store, err := storage.NewFS(dir)
	if err != nil {
		return nil, err
	}
	return d.project(store, StandaloneInput, source)
}

func (d *Dispatcher) project(store storage.Provider, input, source string) ([]byte, error) {
	if err := store.Write(input, []byte(source)); err != nil {
		return nil, fmt.Errorf("compile: failed to write file: %w", err)
	}
	outAbs, err := store.Abs(d.outDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outAbs, 0o755); err != nil {
		return nil, fmt.Errorf("compile: failed to create build directory: %w", err)
	}

	d.logger.Debug("compile: running engine",
		slog.String("root", store.Root()),
		slog.String("input", input),
		slog.String("outdir", d.outDir))

	before := SnapshotOutput(store, input, d.outDir)
	if err := d.engine.Run(store.Root(), input, d.outDir); err != nil {
		return nil, err
	}
	return ReadFreshOutput(store, input, d.outDir, before)
}

type result struct {
	data []byte
	err  error
}

// dispatch runs fn on a worker goroutine once a slot is free. If ctx ends
// first the caller gets ctx.Err() while the compile runs to completion.
func (d *Dispatcher) dispatch(ctx context.Context, rec models.CompileRecord, fn func() ([]byte, error)) ([]byte, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	rec.ID = uuid.NewString()
	rec.StartedAt = time.Now()
	for _, h := range d.onStart {
		h(rec)
	}

	done := make(chan result, 1)
	go func() {
		defer d.sem.Release(1)
		data, err := fn()
		d.finish(rec, data, err)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		d.logger.Warn("compile: caller stopped waiting, compile continues",
			slog.String("id", rec.ID),
			slog.String("file", rec.File))
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) finish(rec models.CompileRecord, data []byte, err error) {
	rec.Duration = time.Since(rec.StartedAt)
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
		d.logger.Warn("compile: failed",
			slog.String("id", rec.ID),
			slog.String("mode", rec.Mode),
			slog.String("file", rec.File),
			slog.String("error", err.Error()))
	} else {
		rec.OutputBytes = len(data)
		rec.Checksum = checksum.Sum(data)
		d.logger.Info("compile: finished",
			slog.String("id", rec.ID),
			slog.String("mode", rec.Mode),
			slog.String("file", rec.File),
			slog.Int("bytes", rec.OutputBytes),
			slog.Duration("duration", rec.Duration))
	}
	for _, h := range d.onFinish {
		h(rec)
	}
}
