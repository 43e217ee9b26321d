package http

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

type systemClock struct{}

// SystemClock returns a Clock backed by the standard time package.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type randomJitter struct{}

// RandomJitter returns a JitterSource backed by math/rand/v2.
func RandomJitter() JitterSource {
	return randomJitter{}
}

func (randomJitter) Symmetric() float64 {
	return 2*rand.Float64() - 1
}

// applyJitter spreads d by ±frac using src. The result lies in
// [max(0, d*(1-frac)), d*(1+frac)].
func applyJitter(d time.Duration, frac float64, src JitterSource) time.Duration {
	if frac <= 0 {
		return d
	}
	r := src.Symmetric()
	switch {
	case r < -1:
		r = -1
	case r > 1:
		r = 1
	}
	result := float64(d) + float64(d)*frac*r
	switch {
	case result <= 0:
		return 0
	case result >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(result)
}
