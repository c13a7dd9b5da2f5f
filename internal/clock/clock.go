package clock

import (
	"context"
	"time"
)

type ctxClockKey struct{}

// Clock returns the current time.
type Clock func() time.Time

// Now returns the context's clock reading, or time.Now when none is set.
func Now(ctx context.Context) time.Time {
	clock, ok := ctx.Value(ctxClockKey{}).(Clock)
	if !ok {
		return time.Now()
	}
	return clock()
}

// With returns a copy of ctx whose Now reads from clock.
func With(ctx context.Context, clock Clock) context.Context {
	return context.WithValue(ctx, ctxClockKey{}, clock)
}

// Fixed returns a clock that always reads t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

type ctxTimezoneKey struct{}

// WithTimezone returns a copy of ctx that cuts calendar days in location.
func WithTimezone(ctx context.Context, location *time.Location) context.Context {
	return context.WithValue(ctx, ctxTimezoneKey{}, location)
}

// Timezone is the location used to cut calendar days. Defaults to UTC.
func Timezone(ctx context.Context) *time.Location {
	location, ok := ctx.Value(ctxTimezoneKey{}).(*time.Location)
	if !ok || location == nil {
		return time.UTC
	}
	return location
}
