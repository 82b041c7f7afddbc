package pipedb

import "go.uber.org/zap"

// nopLogger is used whenever Config.Logger is nil, so call sites never
// need a nil check before logging.
func nopLogger() *zap.Logger {
	return zap.NewNop()
}
