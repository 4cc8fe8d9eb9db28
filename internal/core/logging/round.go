package logging

import "context"

// Round identifies the improvement round a context belongs to.
type Round struct {
	SessionID   string
	RoundID     string
	BaseVersion int
}

type roundKey struct{}

// WithRound attaches r to ctx. Log events written with .Ctx(ctx) through a
// logger carrying ContextHook gain the round's fields.
func WithRound(ctx context.Context, r Round) context.Context {
	return context.WithValue(ctx, roundKey{}, r)
}

// RoundFrom returns the round attached to ctx.
func RoundFrom(ctx context.Context) (Round, bool) {
	if ctx == nil {
		return Round{}, false
	}
	r, ok := ctx.Value(roundKey{}).(Round)
	return r, ok
}
