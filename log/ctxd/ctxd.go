// Package ctxd adapts a bool64/ctxd logger to depcache.Logger.
package ctxd

import (
	"context"

	"github.com/bool64/ctxd"

	"github.com/unkn0wn-root/depcache"
)

var _ depcache.Logger = Logger{}

// Logger forwards to L with Ctx, so context fields attached via
// ctxd.AddFields end up on every record.
type Logger struct {
	L   ctxd.Logger
	Ctx context.Context
}

func New(ctx context.Context, l ctxd.Logger) Logger {
	if l == nil {
		l = ctxd.NoOpLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return Logger{L: l, Ctx: ctx}
}

func (l Logger) Debug(msg string, f depcache.Fields) { l.L.Debug(l.ctx(), msg, kv(f)...) }
func (l Logger) Info(msg string, f depcache.Fields)  { l.L.Info(l.ctx(), msg, kv(f)...) }
func (l Logger) Warn(msg string, f depcache.Fields)  { l.L.Warn(l.ctx(), msg, kv(f)...) }
func (l Logger) Error(msg string, f depcache.Fields) { l.L.Error(l.ctx(), msg, kv(f)...) }

func (l Logger) ctx() context.Context {
	if l.Ctx == nil {
		return context.Background()
	}
	return l.Ctx
}

func kv(f depcache.Fields) []interface{} {
	if len(f) == 0 {
		return nil
	}
	out := make([]interface{}, 0, 2*len(f))
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
