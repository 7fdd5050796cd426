// pkg/efi/helpers/helpers.go

// Package helpers owns the process-wide diagnostic sink and memory allocator
// an application uses while boot services are available, and tears both down
// when they go away.
package helpers

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"efi-access/pkg/efi"
)

// Options selects the helpers Init enables.
type Options struct {
	// Logger enables the diagnostic sink.
	Logger bool
	// Allocator enables the pool allocator.
	Allocator bool
	// Level is a zap level name; empty means info.
	Level string
	// Encoding is "console" or "json"; empty means console.
	Encoding string
	// Debug is the secondary diagnostic channel. It outlives boot services.
	Debug io.Writer
}

// Context holds one set of helpers. Applications normally use the default
// context through Init and L.
type Context struct {
	table *efi.BootTable
	opts  Options

	mu      sync.Mutex
	state   lifecycle
	logger  *zap.Logger
	console *consoleWriter
	alloc   *Allocator
}

// New creates an uninitialized context bound to t.
func New(t *efi.BootTable, opts Options) *Context {
	return &Context{
		table:  t,
		opts:   opts,
		logger: zap.NewNop(),
		alloc:  newAllocator(),
	}
}

// Init enables the configured helpers and registers Exit to run before boot
// services are exited. Calling it again is a no-op.
func (c *Context) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != uninitialized {
		return nil
	}

	level := zap.NewAtomicLevel()
	if c.opts.Level != "" {
		l, err := zapcore.ParseLevel(c.opts.Level)
		if err != nil {
			return fmt.Errorf("failed to parse helpers level: %w", err)
		}
		level.SetLevel(l)
	}

	var console *consoleWriter
	if c.opts.Logger {
		out, err := c.table.ConOut()
		if err != nil {
			return err
		}
		if out != nil {
			console = newConsoleWriter(out)
		}
	}

	var boot efi.BootServices
	if c.opts.Allocator {
		bs, err := c.table.BootServices()
		if err != nil {
			return err
		}
		boot = bs
	}

	if err := c.table.OnExit(c.Exit); err != nil {
		return fmt.Errorf("failed to register exit hook: %w", err)
	}

	if c.opts.Logger {
		c.console = console
		c.logger = newSink(console, c.opts.Debug, level, c.opts.Encoding)
	}
	if boot != nil {
		c.alloc.init(boot)
	}
	c.state = ready

	c.logger.Debug("Helpers initialized",
		zap.Bool("console", console != nil),
		zap.Bool("debug", c.opts.Debug != nil),
		zap.Bool("allocator", boot != nil),
	)
	return nil
}

// Exit disables every capability that depends on boot services. It runs
// automatically from ExitBootServices and is idempotent.
func (c *Context) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ready {
		return
	}

	stats := c.alloc.Stats()
	c.logger.Info("Boot services exiting",
		zap.Int("live_allocations", stats.Live),
		zap.Int("live_bytes", stats.LiveBytes),
	)

	if c.console != nil {
		c.console.disable()
	}
	c.alloc.exit()
	c.state = exited
}

// Logger returns the diagnostic logger, or a no-op logger before Init.
func (c *Context) Logger() *zap.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

// Allocator returns the pool allocator. It fails every call until Init has
// enabled it.
func (c *Context) Allocator() *Allocator {
	return c.alloc
}

// Initialized reports whether Init has run.
func (c *Context) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != uninitialized
}

// Exited reports whether Exit has run.
func (c *Context) Exited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == exited
}

var (
	defaultMu  sync.Mutex
	defaultCtx *Context
)

// Init initializes the default context. The first call wins; later calls
// return the existing context unchanged.
func Init(t *efi.BootTable, opts Options) (*Context, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCtx != nil {
		return defaultCtx, nil
	}

	c := New(t, opts)
	if err := c.Init(); err != nil {
		return nil, err
	}

	defaultCtx = c
	return c, nil
}

// Default returns the default context, or nil before Init.
func Default() *Context {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultCtx
}

// L returns the default context's logger.
func L() *zap.Logger {
	if c := Default(); c != nil {
		return c.Logger()
	}
	return zap.NewNop()
}

// ReplaceDefault installs c as the default context and returns a function
// that restores the previous one.
func ReplaceDefault(c *Context) func() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultCtx
	defaultCtx = c
	return func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		defaultCtx = prev
	}
}
