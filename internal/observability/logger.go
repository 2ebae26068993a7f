// Package observability provides the zap logging setup and the adapter
// that bridges zap to the client's Logger interface.
//
// All detail maps pass through s3lite.Sanitize before reaching the sink,
// so credential material never lands in log output regardless of which
// component produced the entry.
package observability

import (
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/skylatch/s3lite/pkg/s3lite"
)

// NewLogger builds a production zap logger at the given level.
// Unrecognized level strings fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// Adapter implements s3lite.Logger on top of a zap logger.
type Adapter struct {
	log *zap.Logger
}

// NewAdapter wraps a zap logger for use as an s3lite.Logger.
func NewAdapter(log *zap.Logger) *Adapter {
	return &Adapter{log: log}
}

// Default returns an adapter over a no-op zap logger, useful as a safe
// placeholder before configuration is loaded.
func Default() *Adapter {
	return &Adapter{log: zap.NewNop()}
}

// Info logs at info level with sanitized details.
func (a *Adapter) Info(msg string, details map[string]any) {
	a.log.Info(msg, fields(details)...)
}

// Warn logs at warn level with sanitized details.
func (a *Adapter) Warn(msg string, details map[string]any) {
	a.log.Warn(msg, fields(details)...)
}

// Error logs at error level with sanitized details.
func (a *Adapter) Error(msg string, details map[string]any) {
	a.log.Error(msg, fields(details)...)
}

// fields converts a sanitized detail map to zap fields in a stable key
// order, so repeated entries diff cleanly.
func fields(details map[string]any) []zap.Field {
	clean, ok := s3lite.Sanitize(details).(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(clean))
	for k := range clean {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fs := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fs = append(fs, zap.Any(k, clean[k]))
	}
	return fs
}
