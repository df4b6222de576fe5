package parallel

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
)

// LogMode selects how much each rank writes to its loggers
type LogMode int

const (
	Quiet LogMode = iota
	Normal
	Debug
)

type Options struct {
	OutputDir string    // Root of all files written by the run, "" means "./tmp"
	LogMode   LogMode   // Quiet silences everything, Normal logs on rank 0 only
	LogOutput io.Writer // Defaults to os.Stderr
}

// RuntimeContext is handed to every rank and to everything constructed on it.
// It replaces process wide state like the output directory and rank registry.
type RuntimeContext struct {
	Comm      *Comm
	OutputDir string
	LogMode   LogMode
	logOutput io.Writer
}

func NewRuntimeContext(comm *Comm, opts Options) (ctx *RuntimeContext) {
	ctx = &RuntimeContext{
		Comm:      comm,
		OutputDir: opts.OutputDir,
		LogMode:   opts.LogMode,
		logOutput: opts.LogOutput,
	}
	if ctx.OutputDir == "" {
		ctx.OutputDir = "./tmp"
	}
	if ctx.logOutput == nil {
		ctx.logOutput = os.Stderr
	}
	return
}

func (ctx *RuntimeContext) Rank() int { return ctx.Comm.Rank() }
func (ctx *RuntimeContext) Size() int { return ctx.Comm.Size() }

// IsMain is true on the rank that owns shared output
func (ctx *RuntimeContext) IsMain() bool { return ctx.Comm.Rank() == 0 }

// Logger returns a logger prefixed with the component name. Only rank 0
// writes in Normal mode, every rank writes in Debug mode.
func (ctx *RuntimeContext) Logger(component string) *log.Logger {
	out := ctx.logOutput
	switch {
	case ctx.LogMode == Quiet:
		out = io.Discard
	case ctx.LogMode == Normal && !ctx.IsMain():
		out = io.Discard
	}
	prefix := fmt.Sprintf("[%s] ", component)
	if ctx.LogMode == Debug && ctx.Size() > 1 {
		prefix = fmt.Sprintf("[%s:%d] ", component, ctx.Rank())
	}
	return log.New(out, prefix, 0)
}

// MultiLogger writes on every rank regardless of the mode, unless Quiet
func (ctx *RuntimeContext) MultiLogger(component string) *log.Logger {
	out := ctx.logOutput
	if ctx.LogMode == Quiet {
		out = io.Discard
	}
	return log.New(out, fmt.Sprintf("[%s:%d] ", component, ctx.Rank()), 0)
}

// ParallelFileName decorates name with the rank and the world size, so that
// every rank writes its own file
func (ctx *RuntimeContext) ParallelFileName(name string) string {
	return fmt.Sprintf("%s_rank%d_size%d", name, ctx.Rank(), ctx.Size())
}

// OutputPath joins name onto the output directory, creating the directory
func (ctx *RuntimeContext) OutputPath(name string) (path string, err error) {
	if err = os.MkdirAll(ctx.OutputDir, 0o755); err != nil {
		err = fmt.Errorf("unable to create output directory %s: %w", ctx.OutputDir, err)
		return
	}
	path = filepath.Join(ctx.OutputDir, name)
	return
}

// Run executes fn on np ranks, one goroutine per rank, and waits for all of
// them. A rank that returns an error or panics aborts pending receives on its
// peers. The first error in rank order is returned, preferring the original
// failure over the aborts it caused.
func Run(np int, opts Options, fn func(ctx *RuntimeContext) error) (err error) {
	var (
		world *World
		wg    sync.WaitGroup
	)
	if world, err = NewWorld(np); err != nil {
		return
	}
	errs := make([]error, np)
	for rank := 0; rank < np; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(error); ok && errors.Is(e, ErrAborted) {
						errs[rank] = e
					} else {
						errs[rank] = fmt.Errorf("rank %d panicked: %v\n%s", rank, r, debug.Stack())
					}
				}
				if errs[rank] != nil {
					world.abort()
				}
			}()
			ctx := NewRuntimeContext(world.Comm(rank), opts)
			if e := fn(ctx); e != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, e)
			}
		}(rank)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil && !errors.Is(e, ErrAborted) {
			return e
		}
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
