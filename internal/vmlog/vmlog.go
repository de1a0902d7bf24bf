// Package vmlog wraps go.uber.org/zap the way zboralski-galago's
// internal/log package configures it, replacing the interpreter core's
// fmt.Println(err, instruction) diagnostic with structured fields the
// execute loop's recover handler can fill in (spec.md §7).
package vmlog

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with a fixed vm_id field and VM-fault helpers.
type Logger struct {
	*zap.Logger
	vmID uuid.UUID
}

var (
	L    *Logger
	once sync.Once
)

// Init initializes the global logger. Safe to call multiple times;
// only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New builds a Logger: a development (color, human-readable) encoder
// when debug is set, a JSON encoder otherwise - the same split the
// galago's internal/log.New makes between interactive and headless use.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	id := uuid.New()
	return &Logger{
		Logger: logger.With(zap.String("vm_id", id.String())),
		vmID:   id,
	}
}

// NewNop builds a no-op logger, for tests that don't want log noise.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), vmID: uuid.New()}
}

// VMID returns the session identifier this logger tags every line with.
func (l *Logger) VMID() uuid.UUID { return l.vmID }

// Fault logs a fatal interpreter error with the PC/opcode/operand
// snapshot spec.md §7 requires of the recover handler, mirroring the
// teacher's recover-and-print diagnostic but as a structured line.
func (l *Logger) Fault(msg string, pc uint32, opcode uint32, operands []uint32, err error) {
	l.Error(msg,
		zap.Uint32("pc", pc),
		zap.Uint32("opcode", opcode),
		zap.Uint32s("operands", operands),
		zap.Error(err),
	)
}

// Trace logs a single executed instruction at debug level.
func (l *Logger) Trace(pc uint32, opcode uint32, operands []uint32) {
	l.Debug("step",
		zap.Uint32("pc", pc),
		zap.Uint32("opcode", opcode),
		zap.Uint32s("operands", operands),
	)
}
