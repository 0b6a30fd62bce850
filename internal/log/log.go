// Package log wires up the hub's structured logger: a development encoder
// when stderr is a terminal, a production JSON encoder otherwise, both
// through zap the way daemon_ref/cl_common/daemonutils.SetupLogs does for
// Brightgate's cloud daemons (trimmed of the Stackdriver export path, which
// has no equivalent here).
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/ssh/terminal"
)

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// SetLevel adjusts the global logger's minimum level at runtime (e.g. from
// a SIGHUP handler or an operator CLI flag).
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// New builds the hub's root logger. name identifies the component in every
// log line (the extension's name for a supervisor session, "client" for the
// WS manager, and so on).
func New(name string) *zap.Logger {
	isTerm := terminal.IsTerminal(int(os.Stderr.Fd()))

	var config zap.Config
	if isTerm {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	config.Level = level

	logger, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		// config.Build only fails on a malformed sink URL, which our
		// hardcoded stderr default never produces.
		panic(err)
	}
	return logger.Named(name)
}
