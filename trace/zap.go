package trace

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// A Logger writing trace records to a zap logger.
//
// Schedule steps are written when the verbosity is above 0, the replay banner is always written,
// and all other kinds are written when the verbosity is above 3.
type ZapLogger struct {
	log       *zap.Logger
	verbosity int
	disabled  atomic.Bool
}

func NewZapLogger(log *zap.Logger, verbosity int) *ZapLogger {
	return &ZapLogger{
		log:       log.Named("trace"),
		verbosity: verbosity,
	}
}

// Create a ZapLogger writing human readable lines to the provided sink.
func NewConsoleLogger(w zapcore.WriteSyncer, verbosity int) *ZapLogger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cfg.CallerKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), w, zapcore.InfoLevel)
	return NewZapLogger(zap.New(core), verbosity)
}

func (zl *ZapLogger) Enable()  { zl.disabled.Store(false) }
func (zl *ZapLogger) Disable() { zl.disabled.Store(true) }

func (zl *ZapLogger) Log(r Record) {
	if zl.disabled.Load() {
		return
	}
	switch r.Kind {
	case ReplayBegin:
		zl.log.Info("------------------------")
		zl.log.Info("Replaying Counterexample")
		zl.log.Info("------------------------")
	case ScheduleStep:
		if zl.verbosity > 0 {
			zl.log.Info(r.String(),
				zap.Int("depth", r.Depth),
				zap.Stringer("sender", r.Machine),
				zap.String("event", string(r.Event)),
				zap.Stringer("target", r.Target),
			)
		}
	default:
		if zl.verbosity > 3 {
			zl.log.Info(r.String(), zap.Stringer("kind", r.Kind))
		}
	}
}

// Flush any buffered log entries. Errors are ignored since the trace is best effort.
func (zl *ZapLogger) Sync() {
	_ = zl.log.Sync()
}
