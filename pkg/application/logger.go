package application

import (
	"io"

	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/settings"
	"github.com/luxfi/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a console logger named name that writes entries at or
// above level to w.
func NewLogger(name string, w io.Writer, level string) (log.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, core.ErrInvalidInputf(settings.KeyLogLevel, "unknown log level %q", level)
	}

	atomic := zap.NewAtomicLevelAt(lvl)
	writer := zapcore.Lock(zapcore.AddSync(w))
	wrapped := log.WrappedCore{
		Core:        zapcore.NewCore(log.Plain.ConsoleEncoder(), writer, atomic),
		AtomicLevel: atomic,
		Writer:      writer,
	}
	return log.NewLogger(name, wrapped), nil
}
