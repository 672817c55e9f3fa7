// Package trace owns the debug channels behind the --debug-* flags. The
// loggers are no-ops unless a channel is enabled at startup, so shell code
// can log unconditionally.
package trace

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	tokens    = zap.NewNop().Sugar()
	astLog    = zap.NewNop().Sugar()
	expansion = zap.NewNop().Sugar()
	execLog   = zap.NewNop().Sugar()
)

// Channel names accepted by Enable.
const (
	Tokens    = "tokens"
	AST       = "ast"
	Expansion = "expansion"
	Exec      = "exec"
)

// Enable turns one debug channel on, writing to stderr.
func Enable(channel string) {
	logger := newStderrLogger(channel)
	switch channel {
	case Tokens:
		tokens = logger
	case AST:
		astLog = logger
	case Expansion:
		expansion = logger
	case Exec:
		execLog = logger
	}
}

func newStderrLogger(name string) *zap.SugaredLogger {
	cfg := zapcore.EncoderConfig{
		MessageKey: "msg",
		LevelKey:   "",
		TimeKey:    "",
		NameKey:    "chan",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		zapcore.DebugLevel,
	)
	return zap.New(core).Named(name).Sugar()
}

// TokensLog, ASTLog, ExpansionLog and ExecLog return the channel loggers.
func TokensLog() *zap.SugaredLogger    { return tokens }
func ASTLog() *zap.SugaredLogger       { return astLog }
func ExpansionLog() *zap.SugaredLogger { return expansion }
func ExecLog() *zap.SugaredLogger      { return execLog }
