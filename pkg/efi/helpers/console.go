// pkg/efi/helpers/console.go
package helpers

import (
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"efi-access/pkg/efi"
)

// consoleWriter writes log lines to the firmware console. Once disabled it
// drops everything: the console belongs to boot services.
type consoleWriter struct {
	mu      sync.Mutex
	out     efi.TextOutput
	enabled atomic.Bool
}

func newConsoleWriter(out efi.TextOutput) *consoleWriter {
	w := &consoleWriter{out: out}
	w.enabled.Store(true)
	return w
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	if !w.enabled.Load() {
		return len(p), nil
	}

	text, err := efi.EncodeString(string(efi.ConsoleText(p)))
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// re-check under the lock so no write races past disable
	if !w.enabled.Load() {
		return len(p), nil
	}
	if err := w.out.OutputString(text); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *consoleWriter) Sync() error {
	return nil
}

func (w *consoleWriter) disable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled.Store(false)
}

// encoderConfig returns the diagnostic encoder configuration. Console lines
// carry only level and message: the firmware clock is a runtime service and
// not worth a call per line. Debug channel lines add an ISO8601 host time and
// the short caller.
func encoderConfig(debug bool) zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = ""
	config.CallerKey = ""
	config.StacktraceKey = ""
	config.LevelKey = "level"
	config.MessageKey = "message"
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	if debug {
		config.TimeKey = "timestamp"
		config.EncodeTime = zapcore.ISO8601TimeEncoder
		config.CallerKey = "caller"
		config.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return config
}

func newEncoder(encoding string, debug bool) zapcore.Encoder {
	if encoding == "json" {
		return zapcore.NewJSONEncoder(encoderConfig(debug))
	}
	return zapcore.NewConsoleEncoder(encoderConfig(debug))
}

// newSink builds the diagnostic logger: a console core, when firmware has a
// console, teed with a debug core, when a debug writer is configured.
func newSink(console *consoleWriter, debug io.Writer, level zap.AtomicLevel, encoding string) *zap.Logger {
	var cores []zapcore.Core
	if console != nil {
		cores = append(cores, zapcore.NewCore(newEncoder(encoding, false), console, level))
	}
	if debug != nil {
		cores = append(cores, zapcore.NewCore(newEncoder(encoding, true), zapcore.AddSync(debug), level))
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}

	errOut := zapcore.AddSync(io.Discard)
	if debug != nil {
		errOut = zapcore.AddSync(debug)
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.ErrorOutput(errOut))
}
