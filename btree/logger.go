package btree

import "log"

var (
	defaultLogger __loggerSpec = &nopLogger{}
)

var (
	_ __loggerSpec = (*nopLogger)(nil)
	_ __loggerSpec = (*stdLogger)(nil)
)

type __loggerSpec interface {
	Log(format string, args ...interface{})
}

// SetDebugLog routes split/merge/borrow trace lines to the standard log
// package when enabled. The default logger discards them.
func SetDebugLog(enabled bool) {
	if enabled {
		defaultLogger = &stdLogger{}
		return
	}
	defaultLogger = &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Log(format string, args ...interface{}) {}

type stdLogger struct{}

func (s *stdLogger) Log(format string, args ...interface{}) {
	if format[len(format)-1] != '\n' {
		format += "\n"
	}
	log.Printf("BTREE: "+format, args...)
}
