package testutils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/evdnx/gosig/logger"
)

// MockLogger is a logger.Logger whose entries are kept in memory by a zap
// observer core, so tests can assert on messages, levels and fields.
type MockLogger struct {
	logger.Logger
	logs *observer.ObservedLogs
}

// NewMockLogger returns a logger that records everything from debug up.
func NewMockLogger() *MockLogger {
	core, logs := observer.New(zapcore.DebugLevel)
	return &MockLogger{Logger: logger.Wrap(zap.New(core)), logs: logs}
}

// LastMessage returns the message of the most recent entry.
func (l *MockLogger) LastMessage() string {
	all := l.logs.All()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1].Message
}

// Count returns how many entries carry msg.
func (l *MockLogger) Count(msg string) int {
	return l.logs.FilterMessage(msg).Len()
}

// Levels returns the level of every entry carrying msg, in order.
func (l *MockLogger) Levels(msg string) []string {
	var out []string
	for _, e := range l.logs.FilterMessage(msg).All() {
		out = append(out, e.Level.String())
	}
	return out
}

// Fields returns the context of the latest entry carrying msg, or nil.
func (l *MockLogger) Fields(msg string) map[string]any {
	entries := l.logs.FilterMessage(msg).All()
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1].ContextMap()
}
