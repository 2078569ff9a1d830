// Package logging builds the process logger: structured JSON written to a
// session-scoped file under ~/.billfetch/logs, teed with a console echo on
// stderr. When the log directory cannot be created the file core is dropped
// and logging degrades to the console alone.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sessionID     string
	sessionIDOnce sync.Once
)

// SessionID returns the identifier shared by every logger of this process.
// Log files are named after it, so one run's components land in one file.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.NewString()
	})
	return sessionID
}

// Dir returns the log directory, creating it when absent.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".billfetch", "logs")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return dir, nil
}

// New builds the process logger. Debug widens the console echo from warnings
// to everything; the file always receives debug and up. The returned close
// function flushes buffered entries.
func New(debug bool) (*zap.Logger, func(), error) {
	consoleLevel := zapcore.WarnLevel
	if debug {
		consoleLevel = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.Lock(os.Stderr),
			consoleLevel,
		),
	}

	var closeFile func()
	if file, err := openSessionFile(); err != nil {
		fmt.Fprintf(os.Stderr, "file logging disabled: %v\n", err)
	} else {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(file),
			zapcore.DebugLevel,
		))
		closeFile = func() { _ = file.Close() }
	}

	log := zap.New(zapcore.NewTee(cores...))
	closer := func() {
		_ = log.Sync()
		if closeFile != nil {
			closeFile()
		}
	}
	return log, closer, nil
}

func openSessionFile() (*os.File, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, SessionID()+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}
