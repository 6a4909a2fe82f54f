package amm

import (
	"context"
	"time"
)

// Clock reports the current time in unix seconds.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// ClockFunc adapts a function to Clock.
type ClockFunc func(ctx context.Context) (int64, error)

func (f ClockFunc) Now(ctx context.Context) (int64, error) { return f(ctx) }

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now(context.Context) (int64, error) { return time.Now().Unix(), nil }
