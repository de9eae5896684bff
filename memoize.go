package depcache

import "context"

// Cacheable is implemented by requests whose responses may be cached.
type Cacheable interface {
	CacheKey() string
	CacheTypes() []Type
}

// Handler serves a request.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Memoize wraps next so that Cacheable requests are served through
// c.GetOrCreate. Other requests, and all requests on a disabled cache, go
// straight to next.
func Memoize[Req, Resp any](c Cache[Resp], next Handler[Req, Resp], opts ...EntryOption) Handler[Req, Resp] {
	return func(ctx context.Context, req Req) (Resp, error) {
		cr, ok := any(req).(Cacheable)
		if !ok || !c.Enabled() {
			return next(ctx, req)
		}
		return c.GetOrCreate(ctx, cr.CacheKey(), cr.CacheTypes(),
			func(ctx context.Context, _ *Entry) (Resp, error) { return next(ctx, req) },
			opts...)
	}
}
