package cashier

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalVerboseLevel int
	debugFlags         map[string]bool

	loggerMu     sync.RWMutex
	globalLogger *zap.Logger
	globalLevel  = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

func init() {
	globalLogger = newConsoleLogger(os.Stderr, globalLevel)
}

// newConsoleLogger builds the logger used by the CLI: console encoding, no
// timestamps, no caller.
func newConsoleLogger(w zapcore.WriteSyncer, level zap.AtomicLevel) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.NameKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(w),
		level,
	)
	return zap.New(core)
}

// NewConsoleLogger returns a console logger writing to w that follows the
// global verbose level.
func NewConsoleLogger(w io.Writer) *zap.Logger {
	return newConsoleLogger(zapcore.AddSync(w), globalLevel)
}

// Logger returns the package-wide diagnostic logger
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the package-wide diagnostic logger. Passing nil restores
// the default stderr logger.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = newConsoleLogger(os.Stderr, globalLevel)
	}
	globalLogger = l
}

// SetVerboseLevel sets the global verbose level
// 0 shows warnings only, 1 adds info, 2 and above add debug output.
func SetVerboseLevel(level int) {
	globalVerboseLevel = level
	switch {
	case level <= 0:
		globalLevel.SetLevel(zapcore.WarnLevel)
	case level == 1:
		globalLevel.SetLevel(zapcore.InfoLevel)
	default:
		globalLevel.SetLevel(zapcore.DebugLevel)
	}
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	return globalVerboseLevel
}

// VerboseEnter logs function entry at level 3+ and returns a defer function for exit logging
func VerboseEnter() func() {
	if globalVerboseLevel < 3 {
		return func() {}
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}

	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	log := Logger().Sugar()
	log.Debugf("[TRACE] Entering function: %s", funcName)
	return func() {
		log.Debugf("[TRACE] Exiting function: %s", funcName)
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if globalVerboseLevel < level {
		return
	}
	format = strings.TrimSuffix(format, "\n")
	if level <= 1 {
		Logger().Sugar().Infof(format, args...)
		return
	}
	Logger().Sugar().Debugf(format, args...)
}

// SetDebugFlags sets the debug flags from a comma-separated string
// Supports both simple flags ("walk,record") and key:value format ("walk:true,record:false")
func SetDebugFlags(flagsStr string) {
	debugFlags = make(map[string]bool)
	if flagsStr == "" {
		return
	}

	for _, flag := range strings.Split(flagsStr, ",") {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		parts := strings.SplitN(flag, ":", 2)
		flagName := strings.ToLower(parts[0])
		flagValue := true

		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "false", "0", "no", "off":
				flagValue = false
			default:
				flagValue = true
			}
		}

		debugFlags[flagName] = flagValue
	}
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	if debugFlags == nil {
		return false
	}
	return debugFlags[strings.ToLower(flag)]
}
