package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestContext returns a context whose logger records every entry into
// the returned ObservedLogs, so a test can assert on what a code path
// logged.
func TestContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return ContextWithLogger(context.Background(), zap.New(core)), logs
}
