package log

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

var (
	// reuse the same logger across all tests
	testingLoggerMtx = sync.Mutex{}
	testingLogger    Logger
)

// TestingLogger returns a Logger which writes to STDOUT if test(s) are being
// run with the verbose (-v) flag, NopLogger otherwise.
//
// NOTE:
// - A call to NewTestingLogger() must be made inside a test (not in the init
// func) because verbose flag only set at the time of testing.
func TestingLogger() Logger {
	testingLoggerMtx.Lock()
	defer testingLoggerMtx.Unlock()

	if testingLogger != nil {
		return testingLogger
	}

	if testing.Verbose() {
		testingLogger = MustNewDefaultLogger(LogFormatPlain, LogLevelDebug, true)
	} else {
		testingLogger = NewNopLogger()
	}

	return testingLogger
}

// NewTestingLogger converts a testing.T into a logging interface to make
// test failures and verbose provide better feedback associated with test
// failures. This logging instance is safe for concurrent use from multiple
// goroutines, but by itself does not give you atomicity of messages with
// respect to other calls to the same underlying test.
func NewTestingLogger(t testing.TB) Logger {
	level := LogLevelDebug
	if !testing.Verbose() {
		level = LogLevelError
	}

	return NewTestingLoggerWithLevel(t, level)
}

// NewTestingLoggerWithLevel creates a testing logger instance at a specific
// level that wraps the behavior of testing.T.Log().
func NewTestingLoggerWithLevel(t testing.TB, level string) Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		t.Fatalf("failed to parse log level (%s): %v", level, err)
	}

	return defaultLogger{
		Logger: zerolog.New(NewSyncWriter(testingWriter{t})).Level(logLevel),
	}
}

type testingWriter struct {
	t testing.TB
}

func (tw testingWriter) Write(in []byte) (int, error) {
	tw.t.Log(string(in))
	return len(in), nil
}
